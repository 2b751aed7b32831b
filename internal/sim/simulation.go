package sim

import "sort"

// Environmental condition tags.
const (
	ConditionNormal   = "normal"
	ConditionDiabetic = "diabetic"
	ConditionMinute   = "minute"
)

// DefaultConditions is the condition set simulated when none is specified.
var DefaultConditions = []string{ConditionNormal, ConditionDiabetic, ConditionMinute}

// ConditionNames maps condition tags to display names.
var ConditionNames = map[string]string{
	ConditionNormal:   "Normal",
	ConditionDiabetic: "Reduced Metabolism",
	ConditionMinute:   "Reduced Translation",
}

// ConditionDynamics is the pair of trajectory bundles simulated for one
// condition: the control (before perturbation) and the perturbation itself.
type ConditionDynamics struct {
	Before *Trajectory
	After  *Trajectory
}

// Simulation is one model plus its perturbation protocol. Dynamics and
// Comparisons are derived state: both are nil until the corresponding stage
// has run, and a stored simulation may legitimately have neither.
type Simulation struct {
	Model      *Model
	Config     *Config
	Conditions []string

	// Dynamics maps condition -> simulated trajectories. Never persisted in
	// the state file; only saved when trajectory persistence was requested.
	Dynamics map[string]ConditionDynamics

	// Comparisons maps condition -> comparison result. Persisted with the
	// state file once Compare has run.
	Comparisons map[string]*Comparison

	// SaveAll records whether trajectory data was written alongside the
	// state file, so loads know to look for it.
	SaveAll bool
}

// New returns a simulation of model under cfg across the default conditions.
func New(model *Model, cfg *Config) *Simulation {
	return &Simulation{
		Model:      model,
		Config:     cfg,
		Conditions: append([]string(nil), DefaultConditions...),
	}
}

// SortedComparisonConditions returns the conditions present in Comparisons in
// ascending order, for deterministic iteration.
func (s *Simulation) SortedComparisonConditions() []string {
	conditions := make([]string, 0, len(s.Comparisons))
	for c := range s.Comparisons {
		conditions = append(conditions, c)
	}
	sort.Strings(conditions)
	return conditions
}
