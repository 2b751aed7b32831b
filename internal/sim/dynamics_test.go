package sim

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func fptr(v float64) *float64 { return &v }

// shortConfig keeps test runs fast: a 40 time-unit window around a pulse at
// t=10.
func shortConfig() *Config {
	return &Config{
		PulseStart:         fptr(10),
		PulseDuration:      fptr(3),
		SimulationDuration: fptr(40),
		DT:                 fptr(1),
	}
}

func testModel() *Model {
	m := &Model{
		Family:        "simple",
		RateConstants: []float64{2, 0.1},
		Labels:        []string{"k", "gamma"},
	}
	m.AddFeedback(FeedbackTerm{Strengths: []float64{0.05}, Perturbed: true})
	return m
}

func TestRunPopulatesAllConditions(t *testing.T) {
	s := New(testModel(), shortConfig())
	if err := s.Run(20, 1); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(s.Dynamics) != len(DefaultConditions) {
		t.Fatalf("dynamics for %d conditions, want %d", len(s.Dynamics), len(DefaultConditions))
	}
	for _, condition := range DefaultConditions {
		dyn, ok := s.Dynamics[condition]
		if !ok {
			t.Fatalf("no dynamics for condition %q", condition)
		}
		for name, tr := range map[string]*Trajectory{"control": dyn.Before, "perturbation": dyn.After} {
			if tr.Runs() != 20 {
				t.Errorf("%s/%s has %d runs, want 20", condition, name, tr.Runs())
			}
			if len(tr.Times) != 41 {
				t.Errorf("%s/%s has %d time points, want 41", condition, name, len(tr.Times))
			}
		}
	}
}

func TestRunDeterministicForSeed(t *testing.T) {
	a := New(testModel(), shortConfig())
	b := New(testModel(), shortConfig())
	if err := a.Run(10, 42); err != nil {
		t.Fatalf("run a: %v", err)
	}
	if err := b.Run(10, 42); err != nil {
		t.Fatalf("run b: %v", err)
	}
	if diff := cmp.Diff(a.Dynamics, b.Dynamics); diff != "" {
		t.Errorf("same seed produced different dynamics (-a +b):\n%s", diff)
	}

	c := New(testModel(), shortConfig())
	if err := c.Run(10, 43); err != nil {
		t.Fatalf("run c: %v", err)
	}
	if cmp.Equal(a.Dynamics, c.Dynamics) {
		t.Error("different seeds produced identical dynamics")
	}
}

func TestRunRejectsNonPositiveCount(t *testing.T) {
	s := New(testModel(), shortConfig())
	if err := s.Run(0, 1); err == nil {
		t.Error("expected error for zero trajectory count")
	}
}

func TestRunRejectsUnknownCondition(t *testing.T) {
	s := New(testModel(), shortConfig())
	s.Conditions = []string{"weightless"}
	if err := s.Run(5, 1); err == nil {
		t.Error("expected error for unknown condition")
	}
}

func TestCompareBeforeRun(t *testing.T) {
	s := New(testModel(), shortConfig())
	if err := s.Compare(false, nil); !errors.Is(err, ErrNoDynamics) {
		t.Errorf("err = %v, want ErrNoDynamics", err)
	}
}

func TestCompareMultiThreshold(t *testing.T) {
	s := New(testModel(), shortConfig())
	if err := s.Run(30, 7); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := s.Compare(false, nil); err != nil {
		t.Fatalf("compare: %v", err)
	}

	if len(s.Comparisons) != len(DefaultConditions) {
		t.Fatalf("comparisons for %d conditions, want %d", len(s.Comparisons), len(DefaultConditions))
	}
	for condition, c := range s.Comparisons {
		if !c.Multi {
			t.Errorf("%s: default fractions should yield a multi comparison", condition)
		}
		if len(c.Reached) != len(DefaultFractionsOfMax) {
			t.Errorf("%s: %d thresholds, want %d", condition, len(c.Reached), len(DefaultFractionsOfMax))
		}
		for _, metric := range MetricNames {
			values, ok := c.Metric(metric)
			if !ok {
				t.Fatalf("%s: unknown metric %q", condition, metric)
			}
			if len(values) != len(DefaultFractionsOfMax) {
				t.Errorf("%s/%s: %d values, want %d", condition, metric, len(values), len(DefaultFractionsOfMax))
			}
		}
	}
}

func TestCompareSingleFractionIsScalar(t *testing.T) {
	s := New(testModel(), shortConfig())
	if err := s.Run(10, 3); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := s.Compare(false, []float64{0.5}); err != nil {
		t.Fatalf("compare: %v", err)
	}
	for condition, c := range s.Comparisons {
		if c.Multi {
			t.Errorf("%s: single fraction should yield a simple comparison", condition)
		}
		if len(c.Above) != 1 {
			t.Errorf("%s: %d values, want 1", condition, len(c.Above))
		}
	}
}

func TestCompareFlatControlUnreached(t *testing.T) {
	// No pulse and no baseline: the control never leaves zero, so there is
	// no usable peak to set thresholds against.
	cfg := shortConfig()
	cfg.PulseMagnitude = fptr(0)

	s := New(testModel(), cfg)
	if err := s.Run(10, 5); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := s.Compare(false, nil); err != nil {
		t.Fatalf("compare: %v", err)
	}
	for condition, c := range s.Comparisons {
		if c.ReachedComparison() {
			t.Errorf("%s: flat control should leave every threshold unreached", condition)
		}
	}
}

func TestMetricUnknownName(t *testing.T) {
	c := &Comparison{}
	if _, ok := c.Metric("variance"); ok {
		t.Error("unknown metric name should not resolve")
	}
}
