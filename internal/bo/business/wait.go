package business

import (
	"context"
	"time"
)

// WaitIdle merges async results until no rule is outstanding anywhere in the
// graph or ctx is done. Cancelling the wait does not cancel the rules.
func (o *Object) WaitIdle(ctx context.Context) error {
	return waitIdle(ctx, o, o.inbox.ready, o.rt.pollInterval)
}

// WaitIdle merges async results of the items until none is busy or ctx is done
func (l *List) WaitIdle(ctx context.Context) error {
	return waitIdle(ctx, l, nil, l.rt.pollInterval)
}

func waitIdle(ctx context.Context, n Node, ready <-chan struct{}, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n.ProcessCompletions()
		if !n.IsBusy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
		case <-ticker.C:
		}
	}
}
