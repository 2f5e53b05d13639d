package sim

import "fmt"

// EventKind tags an Event record.
type EventKind string

const (
	EventInjected      EventKind = "injected"
	EventEnqueued      EventKind = "enqueued"
	EventDequeued      EventKind = "dequeued"
	EventServiceStart  EventKind = "service_start"
	EventServiceEnd    EventKind = "service_end"
	EventTransferStart EventKind = "transfer_start"
	EventTransferEnd   EventKind = "transfer_end"
	EventCompleted     EventKind = "completed"
)

// EventKinds lists every kind in lifecycle order.
var EventKinds = []EventKind{
	EventInjected, EventEnqueued, EventDequeued,
	EventServiceStart, EventServiceEnd,
	EventTransferStart, EventTransferEnd, EventCompleted,
}

// Event is one structured record of a tray's progress.
//
// Station is the station the event happened at: the destination for
// injected/enqueued, the sink for completed, and the tail of the link for
// transfer events. Tail and Head are set on transfer events only; Duration is
// set on service_start and transfer_start.
type Event struct {
	Time      Time
	Kind      EventKind
	Station   StationID
	Tray      TrayID
	Workpiece WorkpieceID
	Tail      StationID
	Head      StationID
	Duration  Time
}

func (e Event) String() string {
	switch e.Kind {
	case EventTransferStart, EventTransferEnd:
		return fmt.Sprintf("%v %s tray=%d wp=%d %d->%d", e.Time, e.Kind, e.Tray, e.Workpiece, e.Tail, e.Head)
	default:
		return fmt.Sprintf("%v %s tray=%d wp=%d station=%d", e.Time, e.Kind, e.Tray, e.Workpiece, e.Station)
	}
}

// EventSink consumes event records. Sink failures are reported by the caller
// and never interrupt the simulation.
type EventSink interface {
	Record(Event) error
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event) error

// Record calls f(e).
func (f SinkFunc) Record(e Event) error {
	return f(e)
}

// DiscardSink drops every event.
var DiscardSink EventSink = SinkFunc(func(Event) error { return nil })
