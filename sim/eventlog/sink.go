// Package eventlog provides sim.EventSink implementations: an in-memory
// recorder, a logrus sink, a JSON-lines writer, a SQLite store, and fan-out.
package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/traysim/traysim/sim"
)

// MemorySink keeps every event in memory.
type MemorySink struct {
	events []sim.Event
}

// NewMemorySink creates an empty recorder.
func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]sim.Event, 0)}
}

// Record implements sim.EventSink.
func (m *MemorySink) Record(e sim.Event) error {
	m.events = append(m.events, e)
	return nil
}

// Events returns all recorded events in order.
func (m *MemorySink) Events() []sim.Event {
	return m.events
}

// ForTray returns the events of one tray in order.
func (m *MemorySink) ForTray(id sim.TrayID) []sim.Event {
	var out []sim.Event
	for _, e := range m.events {
		if e.Tray == id {
			out = append(out, e)
		}
	}
	return out
}

// Kinds returns the kinds of the given events.
func Kinds(events []sim.Event) []sim.EventKind {
	kinds := make([]sim.EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

// LogSink writes each event as a structured logrus entry.
type LogSink struct {
	Logger *logrus.Logger
	Level  logrus.Level
}

// NewLogSink logs through the standard logger at level.
func NewLogSink(level logrus.Level) *LogSink {
	return &LogSink{Logger: logrus.StandardLogger(), Level: level}
}

// Record implements sim.EventSink.
func (l *LogSink) Record(e sim.Event) error {
	fields := logrus.Fields{
		"t":         float64(e.Time),
		"station":   e.Station,
		"tray":      e.Tray,
		"workpiece": e.Workpiece,
	}
	switch e.Kind {
	case sim.EventTransferStart, sim.EventTransferEnd:
		fields["tail"], fields["head"] = e.Tail, e.Head
	}
	if e.Duration > 0 {
		fields["duration"] = float64(e.Duration)
	}
	l.Logger.WithFields(fields).Log(l.Level, string(e.Kind))
	return nil
}

// Record is the JSON form of a sim.Event.
type Record struct {
	T         float64 `json:"t"`
	Kind      string  `json:"type"`
	Station   uint32  `json:"station_id"`
	Tray      uint32  `json:"tray_id"`
	Workpiece uint32  `json:"workpiece_id"`
	Tail      uint32  `json:"tail,omitempty"`
	Head      uint32  `json:"head,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

// NewRecord converts e.
func NewRecord(e sim.Event) Record {
	return Record{
		T:         float64(e.Time),
		Kind:      string(e.Kind),
		Station:   uint32(e.Station),
		Tray:      uint32(e.Tray),
		Workpiece: uint32(e.Workpiece),
		Tail:      uint32(e.Tail),
		Head:      uint32(e.Head),
		Duration:  float64(e.Duration),
	}
}

// JSONLSink writes one JSON object per line.
type JSONLSink struct {
	enc *json.Encoder
}

// NewJSONLSink writes to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{enc: json.NewEncoder(w)}
}

// Record implements sim.EventSink.
func (j *JSONLSink) Record(e sim.Event) error {
	if err := j.enc.Encode(NewRecord(e)); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Multi fans every event out to all sinks. A failing sink does not stop the
// others; the errors are joined.
type Multi []sim.EventSink

// Record implements sim.EventSink.
func (m Multi) Record(e sim.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
