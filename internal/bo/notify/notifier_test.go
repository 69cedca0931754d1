package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestNotifier_SubscribeUnsubscribe(t *testing.T) {
	n := NewNotifier("obj-1", nil)
	rec := &recorder{}

	sub := n.Subscribe(rec.observe)
	assert.Equal(t, 1, n.Count())

	n.PropertyChanged("Name")
	require.Len(t, rec.all(), 1)
	assert.Equal(t, PropertyChanged, rec.all()[0].Kind)
	assert.Equal(t, "Name", rec.all()[0].Property)
	assert.Equal(t, "obj-1", rec.all()[0].Source)

	assert.True(t, n.Unsubscribe(sub))
	assert.False(t, n.Unsubscribe(sub), "second unsubscribe is a no-op")

	n.PropertyChanged("Name")
	assert.Len(t, rec.all(), 1)
}

func TestNotifier_DeliveryOrder(t *testing.T) {
	n := NewNotifier("obj", nil)
	var order []int
	n.Subscribe(func(Event) { order = append(order, 1) })
	n.Subscribe(func(Event) { order = append(order, 2) })
	n.Subscribe(func(Event) { order = append(order, 3) })

	n.BusyChanged("Email", true)
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestNotifier_Suspend(t *testing.T) {
	n := NewNotifier("obj", nil)
	rec := &recorder{}
	n.Subscribe(rec.observe)

	n.Suspend()
	assert.True(t, n.Suspended())
	n.PropertyChanged("A")
	n.Resume()
	n.PropertyChanged("B")

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "B", events[0].Property)
}

func TestNotifier_PanickingObserver(t *testing.T) {
	n := NewNotifier("obj", nil)
	rec := &recorder{}
	n.Subscribe(func(Event) { panic("boom") })
	n.Subscribe(rec.observe)

	assert.NotPanics(t, func() { n.PropertyChanged("A") })
	assert.Len(t, rec.all(), 1, "later observers still receive the event")
}

func TestNotifier_UnsubscribeDuringDelivery(t *testing.T) {
	n := NewNotifier("obj", nil)
	rec := &recorder{}
	var sub Subscription
	sub = n.Subscribe(func(Event) { n.Unsubscribe(sub) })
	n.Subscribe(rec.observe)

	n.PropertyChanged("A")
	n.PropertyChanged("B")

	assert.Equal(t, 1, n.Count())
	assert.Len(t, rec.all(), 2)
}

func TestEvent_Prefix(t *testing.T) {
	e := Event{Kind: ChildChanged, Path: []string{"Quantity"}, Change: &ChildChange{Kind: ChildPropertyChanged}}
	outer := e.Prefix("Lines[2]").Prefix("Order")

	assert.Equal(t, "Order.Lines[2].Quantity", outer.PathString())
	assert.Equal(t, []string{"Quantity"}, e.Path, "prefix does not mutate the original")
	assert.Equal(t, "child_changed Order.Lines[2].Quantity (property)", outer.String())
}
