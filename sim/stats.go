// Aggregates end-of-run statistics: tray sojourn times, station
// utilisation and buffer occupancy.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
)

// StationStats summarises one station.
type StationStats struct {
	Station     StationID `json:"station"`
	Dequeued    int       `json:"dequeued"`
	Served      int       `json:"served"`
	Released    int       `json:"released"`
	BufferLen   int       `json:"buffer_len"`
	BufferPeak  int       `json:"buffer_peak"`
	BlockedPuts int       `json:"blocked_puts"`
	SlotPeak    int       `json:"slot_peak"`
}

// Stats aggregates a run.
type Stats struct {
	Clock       Time           `json:"clock"`
	Steps       uint64         `json:"steps"`
	Injected    int            `json:"injected"`
	Completed   int            `json:"completed"`
	Active      int            `json:"active"`
	InTransit   int            `json:"in_transit"`
	Events      int            `json:"events"`
	SinkErrors  int            `json:"sink_errors"`
	SojournMean float64        `json:"sojourn_mean"`
	SojournP50  float64        `json:"sojourn_p50"`
	SojournP90  float64        `json:"sojourn_p90"`
	SojournP99  float64        `json:"sojourn_p99"`
	Stations    []StationStats `json:"stations"`
}

// Stats snapshots the controller.
func (c *Controller) Stats() Stats {
	s := Stats{
		Clock:      c.sched.Now(),
		Steps:      c.sched.Steps(),
		Injected:   int(c.nextTray),
		Completed:  len(c.completed),
		Active:     len(c.active),
		InTransit:  c.inTransit,
		Events:     c.events,
		SinkErrors: c.sinkErrors,
	}
	sojourns := make([]float64, 0, len(c.completed))
	for _, comp := range c.completed {
		sojourns = append(sojourns, float64(comp.Sojourn()))
	}
	sort.Float64s(sojourns)
	s.SojournMean = CalculateMean(sojourns)
	s.SojournP50 = CalculatePercentile(sojourns, 50)
	s.SojournP90 = CalculatePercentile(sojourns, 90)
	s.SojournP99 = CalculatePercentile(sojourns, 99)
	for _, w := range c.ordered {
		s.Stations = append(s.Stations, StationStats{
			Station:     w.station.ID,
			Dequeued:    w.dequeued,
			Served:      w.served,
			Released:    w.released,
			BufferLen:   w.buffer.Len(),
			BufferPeak:  w.buffer.Peak(),
			BlockedPuts: w.buffer.BlockedPuts(),
			SlotPeak:    w.pool.Peak(),
		})
	}
	return s
}

// Print writes a human-readable header followed by the stats as JSON.
func (s Stats) Print(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "=== Simulation Metrics ==="); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

type IntOrFloat64 interface {
	int | int64 | float64
}

// CalculatePercentile returns the p-th percentile of sorted data by linear
// interpolation. Returns 0 for empty data.
func CalculatePercentile[T IntOrFloat64](data []T, p float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if upperIdx >= n {
		return float64(data[n-1])
	}
	if lowerIdx == upperIdx {
		return float64(data[lowerIdx])
	}
	lowerVal := float64(data[lowerIdx])
	upperVal := float64(data[upperIdx])
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx))
}

// CalculateMean returns the arithmetic mean, or 0 for empty data.
func CalculateMean[T IntOrFloat64](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, number := range numbers {
		sum += float64(number)
	}
	return sum / float64(len(numbers))
}
