package business

import (
	"strings"

	"github.com/conduit-lang/bizobj/internal/bo/notify"
)

// forward turns an event raised by a child into the parent's ChildChanged
// event, prefixing the child's path segment. List segments like "[2]" are
// joined to the owning property name ("Lines[2]").
func forward(segment string, e notify.Event) notify.Event {
	out := notify.Event{Kind: notify.ChildChanged, Property: e.Property}

	switch e.Kind {
	case notify.PropertyChanged:
		out.Path = []string{segment, e.Property}
		out.Change = &notify.ChildChange{Kind: notify.ChildPropertyChanged, Property: e.Property}
	case notify.BusyChanged:
		out.Path = []string{segment, e.Property}
		out.Busy = e.Busy
		out.Change = &notify.ChildChange{Kind: notify.ChildBusyChanged, Property: e.Property, Busy: e.Busy}
	default:
		out.Busy = e.Busy
		out.Change = e.Change
		if len(e.Path) > 0 && strings.HasPrefix(e.Path[0], "[") {
			out.Path = append([]string{segment + e.Path[0]}, e.Path[1:]...)
		} else {
			out.Path = append([]string{segment}, e.Path...)
		}
	}
	return out
}
