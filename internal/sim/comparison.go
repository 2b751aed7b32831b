package sim

// Comparison metric names. Every comparison carries all six, whether or not
// it reached a valid state.
const (
	MetricAbove          = "above"
	MetricBelow          = "below"
	MetricError          = "error"
	MetricAboveThreshold = "above_threshold"
	MetricBelowThreshold = "below_threshold"
	MetricThresholdError = "threshold_error"
)

// MetricNames lists the six comparison metrics in canonical order.
var MetricNames = []string{
	MetricAbove,
	MetricBelow,
	MetricError,
	MetricAboveThreshold,
	MetricBelowThreshold,
	MetricThresholdError,
}

// Comparison summarises how a perturbed trajectory bundle deviates from its
// control under one environmental condition.
//
// A simple comparison is evaluated at a single threshold setting and all
// metric slices have length one. A multi-threshold comparison is evaluated at
// each entry of FractionsOfMax and the metric slices are parallel to it.
// Reached records, per threshold, whether the evaluation produced a usable
// result; metric values at unreached thresholds are not meaningful.
type Comparison struct {
	Multi          bool      `json:"multi"`
	FractionsOfMax []float64 `json:"fractions_of_max,omitempty"`
	Deviations     bool      `json:"deviations,omitempty"`

	Reached []bool `json:"reached"`

	Above          []float64 `json:"above"`
	Below          []float64 `json:"below"`
	Error          []float64 `json:"error"`
	AboveThreshold []float64 `json:"above_threshold"`
	BelowThreshold []float64 `json:"below_threshold"`
	ThresholdError []float64 `json:"threshold_error"`
}

// ReachedComparison reports whether at least one threshold evaluation reached
// a usable comparison.
func (c *Comparison) ReachedComparison() bool {
	for _, r := range c.Reached {
		if r {
			return true
		}
	}
	return false
}

// Metric returns the named metric slice.
func (c *Comparison) Metric(name string) ([]float64, bool) {
	switch name {
	case MetricAbove:
		return c.Above, true
	case MetricBelow:
		return c.Below, true
	case MetricError:
		return c.Error, true
	case MetricAboveThreshold:
		return c.AboveThreshold, true
	case MetricBelowThreshold:
		return c.BelowThreshold, true
	case MetricThresholdError:
		return c.ThresholdError, true
	}
	return nil, false
}
