package events

// Buffer is an append-only list of pending events owned by one repository
// or unit of work. The zero value is ready to use.
type Buffer struct {
	events []Event
}

func (b *Buffer) Append(e Event) {
	b.events = append(b.events, e)
}

// Events returns the pending events in append order.
func (b *Buffer) Events() []Event {
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

func (b *Buffer) Len() int { return len(b.events) }

func (b *Buffer) Clear() { b.events = nil }
