package sim

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
)

// ErrNoDynamics reports a comparison attempted before any trajectories exist.
var ErrNoDynamics = errors.New("sim: no dynamics to compare")

// DefaultFractionsOfMax are the multi-threshold settings used by Compare when
// none are specified: thresholds at these fractions of the control peak.
var DefaultFractionsOfMax = []float64{0.5, 0.6, 0.7, 0.8, 0.9}

// conditionScaling adjusts effective rates per environmental condition.
type conditionScaling struct {
	Metabolic     float64 // scales all first-order rates
	Translational float64 // scales synthesis only
}

var conditionScalings = map[string]conditionScaling{
	ConditionNormal:   {Metabolic: 1.0, Translational: 1.0},
	ConditionDiabetic: {Metabolic: 0.5, Translational: 1.0},
	ConditionMinute:   {Metabolic: 1.0, Translational: 0.3},
}

// Run simulates the pulse response of the control and perturbed variants of
// the model under every configured condition, storing the resulting
// trajectory pairs in s.Dynamics. runs is the number of independent
// stochastic trajectories per variant. The run is deterministic for a fixed
// seed.
func (s *Simulation) Run(runs int, seed uint64) error {
	if runs <= 0 {
		return fmt.Errorf("sim: trajectory count must be positive, got %d", runs)
	}
	if len(s.Conditions) == 0 {
		s.Conditions = append([]string(nil), DefaultConditions...)
	}

	dynamics := make(map[string]ConditionDynamics, len(s.Conditions))
	for ci, condition := range s.Conditions {
		scaling, ok := conditionScalings[condition]
		if !ok {
			return fmt.Errorf("sim: unknown condition %q", condition)
		}
		// Independent substreams per condition and variant keep runs
		// reproducible regardless of condition order.
		base := seed + uint64(ci)*1_000_003
		before := s.simulateVariant(scaling, false, runs, base)
		after := s.simulateVariant(scaling, true, runs, base+500_009)
		dynamics[condition] = ConditionDynamics{Before: before, After: after}
	}
	s.Dynamics = dynamics
	return nil
}

// simulateVariant integrates a chemical-Langevin pulse response for either
// the control (perturbed=false) or the perturbation variant.
func (s *Simulation) simulateVariant(scaling conditionScaling, perturbed bool, runs int, seed uint64) *Trajectory {
	cfg := s.Config
	dt := cfg.GetDT()
	duration := cfg.GetSimulationDuration()
	timescale := cfg.GetTimescale()
	if timescale <= 0 {
		timescale = 1
	}

	pulseStart := cfg.GetPulseStart()
	pulseDuration := cfg.GetPulseDuration()
	if cfg.GetPulseSensitive() && scaling.Metabolic > 0 {
		pulseDuration /= scaling.Metabolic
	}
	baseline := cfg.GetPulseBaseline()
	magnitude := cfg.GetPulseMagnitude()

	synth, decay := s.Model.EffectiveRates()
	synth *= scaling.Metabolic * scaling.Translational
	decay *= scaling.Metabolic

	eta := s.Model.BaselineStrength(0)
	if perturbed {
		eta += s.Model.PerturbedStrength(0)
	}

	steps := int(duration/dt) + 1
	times := make([]float64, steps)
	for i := range times {
		times[i] = float64(i) * dt * timescale
	}

	rng := rand.New(rand.NewSource(seed))
	samples := make([][]float64, runs)
	for r := 0; r < runs; r++ {
		run := make([]float64, steps)
		x := 0.0
		if decay > 0 {
			x = synth * baseline / decay
		}
		for i := 0; i < steps; i++ {
			run[i] = x
			t := float64(i) * dt
			signal := baseline
			if t >= pulseStart && t < pulseStart+pulseDuration {
				signal = baseline + magnitude
			}
			production := synth * signal
			loss := decay*x + eta*x*x
			drift := (production - loss) * dt
			diffusion := math.Sqrt(math.Abs(production+loss)*dt) * rng.NormFloat64()
			x += drift + diffusion
			if x < 0 {
				x = 0
			}
		}
		samples[r] = run
	}
	return &Trajectory{Times: times, Samples: samples}
}

// Compare evaluates a before/after comparison for every condition with
// dynamics, storing the results in s.Comparisons. fractions are the threshold
// settings as fractions of the control peak; nil selects
// DefaultFractionsOfMax. A single fraction yields simple (scalar-metric)
// comparisons, several yield multi-threshold comparisons. deviations compares
// deviations from each run's initial value instead of absolute levels.
func (s *Simulation) Compare(deviations bool, fractions []float64) error {
	if s.Dynamics == nil {
		return ErrNoDynamics
	}
	if fractions == nil {
		fractions = DefaultFractionsOfMax
	}
	if len(fractions) == 0 {
		return fmt.Errorf("sim: no threshold fractions")
	}

	comparisons := make(map[string]*Comparison, len(s.Dynamics))
	for condition, dyn := range s.Dynamics {
		comparisons[condition] = compareDynamics(dyn, deviations, fractions)
	}
	s.Comparisons = comparisons
	return nil
}

func compareDynamics(dyn ConditionDynamics, deviations bool, fractions []float64) *Comparison {
	before, after := dyn.Before, dyn.After
	if deviations {
		before = before.Deviations()
		after = after.Deviations()
	}

	n := len(fractions)
	c := &Comparison{
		Multi:          n > 1,
		FractionsOfMax: append([]float64(nil), fractions...),
		Deviations:     deviations,
		Reached:        make([]bool, n),
		Above:          make([]float64, n),
		Below:          make([]float64, n),
		Error:          make([]float64, n),
		AboveThreshold: make([]float64, n),
		BelowThreshold: make([]float64, n),
		ThresholdError: make([]float64, n),
	}

	if before == nil || after == nil || before.Runs() == 0 || after.Runs() == 0 {
		return c
	}

	bMean := before.Mean()
	bStd := stddevAcrossRuns(before, bMean)
	peak := maxOf(bMean)
	if peak <= 0 {
		// Flat control: no usable reference, all thresholds unreached.
		return c
	}

	above, below := bandExcess(after, bMean, bStd)
	beforePeaks := runPeaks(before)
	afterPeaks := runPeaks(after)

	for i, f := range fractions {
		threshold := f * peak
		c.Reached[i] = true
		c.Above[i] = above
		c.Below[i] = below
		c.Error[i] = above + below

		afterFrac := fracAtOrAbove(afterPeaks, threshold)
		beforeFrac := fracAtOrAbove(beforePeaks, threshold)
		c.AboveThreshold[i] = afterFrac
		c.BelowThreshold[i] = 1 - afterFrac
		c.ThresholdError[i] = math.Abs(afterFrac - beforeFrac)
	}
	return c
}

// bandExcess returns the time-averaged fraction of after-runs above the
// control band's upper edge and below its lower edge.
func bandExcess(after *Trajectory, mean, std []float64) (above, below float64) {
	if len(mean) == 0 || after.Runs() == 0 {
		return 0, 0
	}
	var aSum, bSum float64
	points := 0
	for ti := range mean {
		upper := mean[ti] + std[ti]
		lower := mean[ti] - std[ti]
		var a, b int
		counted := 0
		for _, run := range after.Samples {
			if ti >= len(run) {
				continue
			}
			counted++
			if run[ti] > upper {
				a++
			} else if run[ti] < lower {
				b++
			}
		}
		if counted == 0 {
			continue
		}
		aSum += float64(a) / float64(counted)
		bSum += float64(b) / float64(counted)
		points++
	}
	if points == 0 {
		return 0, 0
	}
	return aSum / float64(points), bSum / float64(points)
}

func stddevAcrossRuns(t *Trajectory, mean []float64) []float64 {
	std := make([]float64, len(mean))
	if t.Runs() < 2 {
		return std
	}
	for ti := range mean {
		var sum float64
		counted := 0
		for _, run := range t.Samples {
			if ti >= len(run) {
				continue
			}
			d := run[ti] - mean[ti]
			sum += d * d
			counted++
		}
		if counted > 1 {
			std[ti] = math.Sqrt(sum / float64(counted-1))
		}
	}
	return std
}

func runPeaks(t *Trajectory) []float64 {
	peaks := make([]float64, 0, t.Runs())
	for _, run := range t.Samples {
		peaks = append(peaks, maxOf(run))
	}
	return peaks
}

func fracAtOrAbove(xs []float64, threshold float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	n := 0
	for _, x := range xs {
		if x >= threshold {
			n++
		}
	}
	return float64(n) / float64(len(xs))
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	if math.IsInf(m, -1) {
		return 0
	}
	return m
}
