package sim

import (
	"fmt"

	"github.com/traysim/traysim/sim/trace"
)

// NoDecisionPolicy selects how a StationWorker proceeds when its authority
// answers with NoDecision.
type NoDecisionPolicy string

const (
	// NoDecisionRetry re-issues the same query (default).
	NoDecisionRetry NoDecisionPolicy = "retry"
	// NoDecisionLocal answers that one query with the LocalDefaultPolicy.
	NoDecisionLocal NoDecisionPolicy = "local"
	// NoDecisionFail aborts the run with ErrNoDecision.
	NoDecisionFail NoDecisionPolicy = "fail"
)

// ValidNoDecisionPolicies is the set of recognized policy names.
var ValidNoDecisionPolicies = map[string]bool{"": true, "retry": true, "local": true, "fail": true}

// Config groups controller parameters. Zero values select the defaults.
type Config struct {
	ServiceSlots       int              // slots per station ServicePool (default DefaultServiceSlots)
	MaxInFlightPerLink int              // cap on concurrent transfers per link (0 = unbounded)
	NoDecision         NoDecisionPolicy // reaction to a decision timeout (default retry)
	MaxSteps           uint64           // scheduler step budget per Run (0 = unlimited)
	MonitorInterval    Time             // progress log cadence (0 = off)
	Fallback           *LocalDefaultPolicy
	Trace              *trace.SimulationTrace // decision trace (nil = off)
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.ServiceSlots < 0 {
		return fmt.Errorf("service slots must be >= 0, got %d", c.ServiceSlots)
	}
	if c.MaxInFlightPerLink < 0 {
		return fmt.Errorf("max in-flight per link must be >= 0, got %d", c.MaxInFlightPerLink)
	}
	if !ValidNoDecisionPolicies[string(c.NoDecision)] {
		return fmt.Errorf("unknown no-decision policy %q", c.NoDecision)
	}
	if c.MonitorInterval < 0 {
		return fmt.Errorf("monitor interval must be >= 0, got %v", c.MonitorInterval)
	}
	return nil
}

func (c Config) withDefaults(s *Scheduler) Config {
	if c.ServiceSlots == 0 {
		c.ServiceSlots = DefaultServiceSlots
	}
	if c.NoDecision == "" {
		c.NoDecision = NoDecisionRetry
	}
	if c.Fallback == nil {
		c.Fallback = NewLocalDefaultPolicy(s)
	}
	return c
}
