package sweep

import (
	"github.com/banshee-data/expression.report/internal/sim"
)

// ParseSimulation flattens a simulation's comparison outputs into a Record.
//
// A simulation that never reached the comparison stage at all (no comparisons
// present) is an expected, common outcome: it returns ok=false rather than an
// error, and contributes nothing to the results table.
//
// Otherwise every condition present in the simulation's comparisons
// contributes all six metrics. A condition whose comparison did not reach a
// valid state records all six as explicit missing-value markers, never as
// omitted keys or stale values. Metric values are vectors (one entry per
// threshold) for multi-threshold comparisons and scalars for simple ones.
func ParseSimulation(s *sim.Simulation) (Record, bool) {
	if len(s.Comparisons) == 0 {
		return nil, false
	}

	rec := make(Record, len(s.Comparisons)*len(sim.MetricNames))
	for _, condition := range s.SortedComparisonConditions() {
		comparison := s.Comparisons[condition]
		if comparison == nil || !comparison.ReachedComparison() {
			for _, metric := range sim.MetricNames {
				rec[Key{Condition: condition, Metric: metric}] = MissingValue()
			}
			continue
		}
		for _, metric := range sim.MetricNames {
			values, _ := comparison.Metric(metric)
			rec[Key{Condition: condition, Metric: metric}] = Value{
				Values: append([]float64(nil), values...),
				Scalar: !comparison.Multi,
			}
		}
	}
	return rec, true
}
