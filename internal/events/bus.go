// Package events carries change notifications from datasets, filter sets and
// the session to whatever presentation layer is attached.
package events

import "fmt"

// Kind identifies what changed
type Kind int

const (
	RowsChanged Kind = iota
	FiltersChanged
	FilterToggled
	PrimaryKeyChanged
	TagsChanged
	ShortlistChanged
)

// String returns the string representation of a Kind
func (k Kind) String() string {
	switch k {
	case RowsChanged:
		return "rows_changed"
	case FiltersChanged:
		return "filters_changed"
	case FilterToggled:
		return "filter_toggled"
	case PrimaryKeyChanged:
		return "primary_key_changed"
	case TagsChanged:
		return "tags_changed"
	case ShortlistChanged:
		return "shortlist_changed"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is published after a mutation has completed
type Event struct {
	Kind      Kind
	DatasetID string
	// Index is the affected filter position, or -1
	Index int
}

// Handler receives events
type Handler func(Event)

// Bus delivers events synchronously, in subscription order
type Bus struct {
	nextID   int
	handlers []subscription
}

type subscription struct {
	id      int
	handler Handler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler and returns a function that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, subscription{id: id, handler: h})

	return func() {
		for i, s := range b.handlers {
			if s.id == id {
				b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers e to every handler. A nil bus drops the event.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	for _, s := range append([]subscription(nil), b.handlers...) {
		s.handler(e)
	}
}
