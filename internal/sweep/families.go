package sweep

import (
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/expression.report/internal/sim"
)

// Family binds a model family tag to its base parameter vector, per-parameter
// labels, and the pure builder mapping a parameter vector to a model with its
// feedback terms attached. Base values are log10 exponents; samplers
// exponentiate before calling Build.
type Family struct {
	Tag    string
	Base   []float64
	Labels []string
	Build  func(parameters []float64) (*sim.Model, error)
}

var (
	familyMu sync.RWMutex
	families = map[string]Family{}
)

// RegisterFamily adds a family to the registry. Registering a duplicate tag
// is a programming error.
func RegisterFamily(f Family) {
	familyMu.Lock()
	defer familyMu.Unlock()
	if _, dup := families[f.Tag]; dup {
		panic(fmt.Sprintf("sweep: family %q registered twice", f.Tag))
	}
	families[f.Tag] = f
}

// LookupFamily returns the family registered under tag.
func LookupFamily(tag string) (Family, bool) {
	familyMu.RLock()
	defer familyMu.RUnlock()
	f, ok := families[tag]
	return f, ok
}

// FamilyTags returns the registered family tags in sorted order.
func FamilyTags() []string {
	familyMu.RLock()
	defer familyMu.RUnlock()
	tags := make([]string, 0, len(families))
	for tag := range families {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func checkArity(tag string, parameters []float64, want int) error {
	if len(parameters) != want {
		return fmt.Errorf("sweep: family %s expects %d parameters, got %d", tag, want, len(parameters))
	}
	return nil
}

func init() {
	// Simple model: protein-only birth/death with one perturbed feedback.
	RegisterFamily(Family{
		Tag:    "simple",
		Base:   []float64{0, -3, -3},
		Labels: []string{"k", "gamma", "eta"},
		Build: func(p []float64) (*sim.Model, error) {
			if err := checkArity("simple", p, 3); err != nil {
				return nil, err
			}
			k, g, eta := p[0], p[1], p[2]
			m := &sim.Model{
				Family:        "simple",
				RateConstants: []float64{k, g},
				Labels:        []string{"k", "gamma"},
			}
			m.AddFeedback(sim.FeedbackTerm{Strengths: []float64{eta}, Perturbed: true})
			return m, nil
		},
	})

	// Linear model: gene activation, transcription, translation stages with
	// mass-action feedback on each stage.
	RegisterFamily(Family{
		Tag:    "linear",
		Base:   []float64{0, 0, 0, 0, -2, -3, -4, -4, -4},
		Labels: []string{"k_0", "k_1", "k_2", "gamma_0", "gamma_1", "gamma_2", "eta_0", "eta_1", "eta_2"},
		Build: func(p []float64) (*sim.Model, error) {
			if err := checkArity("linear", p, 9); err != nil {
				return nil, err
			}
			m := &sim.Model{
				Family:        "linear",
				RateConstants: []float64{p[0], p[1], p[2], p[3], p[4], p[5]},
				Labels:        []string{"k_0", "k_1", "k_2", "gamma_0", "gamma_1", "gamma_2"},
			}
			// Two equivalent feedback sets: one shared, one perturbed.
			m.AddFeedback(sim.FeedbackTerm{Strengths: []float64{p[6], p[7], p[8]}, Perturbed: false})
			m.AddFeedback(sim.FeedbackTerm{Strengths: []float64{p[6], p[7], p[8]}, Perturbed: true})
			return m, nil
		},
	})

	// Hill model: cooperative transcription with a repressor.
	RegisterFamily(Family{
		Tag:    "hill",
		Base:   []float64{0, 0, 0, -2, -3, 4, 0, -5, -4},
		Labels: []string{"H", "k_R", "k_P", "gamma_R", "gamma_P", "K_r", "H_r", "eta_R", "eta_P"},
		Build: func(p []float64) (*sim.Model, error) {
			if err := checkArity("hill", p, 9); err != nil {
				return nil, err
			}
			n, kR, kP, gR, gP, kM, rN, etaR, etaP := p[0], p[1], p[2], p[3], p[4], p[5], p[6], p[7], p[8]
			m := &sim.Model{
				Family:          "hill",
				RateConstants:   []float64{kR, kP, gR, gP},
				Labels:          []string{"k_R", "k_P", "gamma_R", "gamma_P"},
				HillCoefficient: n,
			}
			repressor := sim.FeedbackTerm{
				Strengths:         []float64{etaR, etaP},
				MichaelisConstant: kM,
				HillCoefficient:   rN,
			}
			m.AddFeedback(repressor)
			perturbedRepressor := repressor
			perturbedRepressor.Perturbed = true
			m.AddFeedback(perturbedRepressor)
			return m, nil
		},
	})

	// Two-state model: gene switching, transcription, translation.
	RegisterFamily(Family{
		Tag:    "twostate",
		Base:   []float64{0, 0, 0, -1, -2, -3, -4, -4.5, -4},
		Labels: []string{"k_G", "k_R", "k_P", "gamma_G", "gamma_R", "gamma_P", "eta_G", "eta_R", "eta_P"},
		Build: func(p []float64) (*sim.Model, error) {
			if err := checkArity("twostate", p, 9); err != nil {
				return nil, err
			}
			m := &sim.Model{
				Family:        "twostate",
				RateConstants: []float64{p[0], p[1], p[2], p[3], p[4], p[5]},
				Labels:        []string{"k_G", "k_R", "k_P", "gamma_G", "gamma_R", "gamma_P"},
			}
			m.AddFeedback(sim.FeedbackTerm{Strengths: []float64{p[6], p[7], p[8]}, Perturbed: false})
			m.AddFeedback(sim.FeedbackTerm{Strengths: []float64{p[6], p[7], p[8]}, Perturbed: true})
			return m, nil
		},
	})
}
