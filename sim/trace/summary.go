package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions     int
	ActionQueries      int
	RoutingQueries     int
	ExecuteCount       int
	ReleaseCount       int
	NoDecisionCount    int
	FallbackCount      int
	MeanWait           float64
	MaxWait            float64
	UniqueTargets      int
	TargetDistribution map[uint32]int // next station → count of releases
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		TargetDistribution: make(map[uint32]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Decisions)
	totalWait := 0.0
	for _, d := range st.Decisions {
		switch d.Query {
		case QueryAction:
			summary.ActionQueries++
		case QueryRouting:
			summary.RoutingQueries++
		}
		switch d.Outcome {
		case OutcomeExecute:
			summary.ExecuteCount++
		case OutcomeRelease:
			summary.ReleaseCount++
			summary.TargetDistribution[d.Target]++
		case OutcomeNoDecision:
			summary.NoDecisionCount++
		}
		if d.Fallback {
			summary.FallbackCount++
		}
		totalWait += d.Waited
		if d.Waited > summary.MaxWait {
			summary.MaxWait = d.Waited
		}
	}
	if summary.TotalDecisions > 0 {
		summary.MeanWait = totalWait / float64(summary.TotalDecisions)
	}

	summary.UniqueTargets = len(summary.TargetDistribution)

	return summary
}
