// Package sim holds the state of a single stochastic gene-expression
// simulation: the model under test, its pulse configuration, the simulated
// trajectories under each environmental condition, and the before/after
// comparisons derived from them. It also owns the on-disk layout of one
// simulation directory.
package sim

import "math"

// FeedbackTerm is one set of negative-feedback strengths applied to a model.
// Terms flagged Perturbed belong only to the perturbed variant of the model;
// unflagged terms are present in both the control and the perturbation.
type FeedbackTerm struct {
	Strengths []float64 `json:"strengths"`
	Perturbed bool      `json:"perturbed"`

	// Repressor kinetics, used by Hill-type families only.
	MichaelisConstant float64 `json:"michaelis_constant,omitempty"`
	HillCoefficient   float64 `json:"hill_coefficient,omitempty"`
}

// Model is a parameterised gene-expression model from one model family.
// Rate constant semantics (which index means what) are fixed per family.
type Model struct {
	Family        string         `json:"family"`
	RateConstants []float64      `json:"rate_constants"`
	Labels        []string       `json:"labels,omitempty"`
	Feedback      []FeedbackTerm `json:"feedback,omitempty"`

	// HillCoefficient is the transcriptional activation cooperativity for
	// Hill-type families; zero for mass-action families.
	HillCoefficient float64 `json:"hill_coefficient,omitempty"`
}

// EffectiveRates collapses the model's rate constants into one effective
// synthesis rate and one effective decay rate. Family builders order
// RateConstants so the first half are synthesis constants and the second half
// decay constants; the collapse is the geometric mean of each half.
func (m *Model) EffectiveRates() (synthesis, decay float64) {
	n := len(m.RateConstants)
	if n == 0 {
		return 0, 0
	}
	half := n / 2
	if half == 0 {
		half = 1
	}
	return geomMean(m.RateConstants[:half]), geomMean(m.RateConstants[half:])
}

func geomMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	prod := 1.0
	for _, x := range xs {
		if x <= 0 {
			return 0
		}
		prod *= x
	}
	return math.Pow(prod, 1/float64(len(xs)))
}

// AddFeedback appends a feedback term to the model.
func (m *Model) AddFeedback(term FeedbackTerm) {
	m.Feedback = append(m.Feedback, term)
}

// PerturbedStrength sums the feedback strengths that apply only to the
// perturbed variant, projected onto strength index i.
func (m *Model) PerturbedStrength(i int) float64 {
	var total float64
	for _, f := range m.Feedback {
		if f.Perturbed && i < len(f.Strengths) {
			total += f.Strengths[i]
		}
	}
	return total
}

// BaselineStrength sums the feedback strengths present in both variants,
// projected onto strength index i.
func (m *Model) BaselineStrength(i int) float64 {
	var total float64
	for _, f := range m.Feedback {
		if !f.Perturbed && i < len(f.Strengths) {
			total += f.Strengths[i]
		}
	}
	return total
}
