package viewmodel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// SaveAll saves several view models concurrently and returns the first error.
// Each view model must wrap a separate object graph.
func SaveAll(ctx context.Context, vms ...*ViewModel) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, vm := range vms {
		vm := vm
		g.Go(func() error {
			return vm.Save(gctx)
		})
	}
	return g.Wait()
}

// WaitAll waits until none of the models has outstanding async rules
func WaitAll(ctx context.Context, models ...Model) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range models {
		m := m
		g.Go(func() error {
			return m.WaitIdle(gctx)
		})
	}
	return g.Wait()
}
