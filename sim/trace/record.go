// Package trace records the decisions a routing authority made during a run.
// It holds plain data and does not import sim.
package trace

// Query names the decision point a record was taken at.
type Query string

const (
	QueryAction  Query = "action"
	QueryRouting Query = "routing"
)

// Outcome values for DecisionRecord.Outcome.
const (
	OutcomeRelease    = "release"
	OutcomeExecute    = "execute"
	OutcomeNoDecision = "none"
)

// DecisionRecord captures a single routing authority answer as seen by a
// station worker.
type DecisionRecord struct {
	Clock     float64 // simulated time the answer was consumed
	Waited    float64 // simulated time between request and answer
	Station   uint32
	Tray      uint32
	Query     Query
	Outcome   string
	Target    uint32 // next station; meaningful for release only
	Workpiece uint32
	Fallback  bool // answered by the local fallback after a timeout
}
