package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Observer receives events on the goroutine that caused them
type Observer func(Event)

// Subscription identifies a registered observer
type Subscription uint64

type entry struct {
	id       Subscription
	observer Observer
}

// Notifier is an explicit observer registry for one instance.
// Registration is safe for concurrent use; delivery happens outside the lock
// in subscription order.
type Notifier struct {
	mu        sync.Mutex
	next      Subscription
	entries   []entry
	suspended int
	source    string
	logger    *zap.Logger
}

// NewNotifier creates a notifier whose events carry source as their origin
func NewNotifier(source string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		source: source,
		logger: logger,
	}
}

// Subscribe registers an observer and returns its handle
func (n *Notifier) Subscribe(observer Observer) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.next++
	n.entries = append(n.entries, entry{id: n.next, observer: observer})
	return n.next
}

// Unsubscribe removes an observer. It reports whether the handle was registered.
func (n *Notifier) Unsubscribe(sub Subscription) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, e := range n.entries {
		if e.id == sub {
			n.entries = append(n.entries[:i:i], n.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Count returns the number of registered observers
func (n *Notifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// Clear removes every observer
func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = nil
}

// Suspend stops delivery until the matching Resume
func (n *Notifier) Suspend() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.suspended++
}

// Resume re-enables delivery
func (n *Notifier) Resume() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.suspended > 0 {
		n.suspended--
	}
}

// Suspended reports whether delivery is currently suspended
func (n *Notifier) Suspended() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.suspended > 0
}

// Notify delivers an event to every observer
func (n *Notifier) Notify(e Event) {
	n.mu.Lock()
	if n.suspended > 0 {
		n.mu.Unlock()
		return
	}
	if e.Source == "" {
		e.Source = n.source
	}
	observers := make([]entry, len(n.entries))
	copy(observers, n.entries)
	n.mu.Unlock()

	for _, o := range observers {
		n.deliver(o, e)
	}
}

func (n *Notifier) deliver(o entry, e Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("observer panicked",
				zap.String("source", n.source),
				zap.Uint64("subscription", uint64(o.id)),
				zap.Stringer("event", e),
				zap.Any("panic", r),
			)
		}
	}()
	o.observer(e)
}

// PropertyChanged notifies that a property changed
func (n *Notifier) PropertyChanged(property string) {
	n.Notify(Event{Kind: PropertyChanged, Property: property})
}

// BusyChanged notifies that a property's busy state flipped
func (n *Notifier) BusyChanged(property string, busy bool) {
	n.Notify(Event{Kind: BusyChanged, Property: property, Busy: busy})
}

// ChildChanged notifies that something inside a child changed
func (n *Notifier) ChildChanged(path []string, change ChildChange) {
	n.Notify(Event{Kind: ChildChanged, Path: path, Change: &change, Property: change.Property})
}
