package bridge

import "github.com/Alia5/padbridge/hdl"

// EventKind classifies slot lifecycle events.
type EventKind int

const (
	EventAttached EventKind = iota
	EventDetached
	// EventLost means the host stopped presenting the device on its own.
	EventLost
	EventAttachFailed
)

func (k EventKind) String() string {
	switch k {
	case EventAttached:
		return "attached"
	case EventDetached:
		return "detached"
	case EventLost:
		return "lost"
	case EventAttachFailed:
		return "attach_failed"
	default:
		return "unknown"
	}
}

// Event reports a slot lifecycle change. Sinks are called from the loop that
// caused the change and must not block.
type Event struct {
	Kind   EventKind
	Slot   int
	Handle hdl.Handle
	Err    error
}

// EventSink receives slot lifecycle events.
type EventSink func(Event)
