package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// StateFileName is the serialized simulation state at the root of a
	// simulation directory.
	StateFileName = "simulation.json"

	// Trajectory subdirectory names inside each condition directory.
	ControlDirName      = "control"
	PerturbationDirName = "perturbation"
)

// Store serializes and deserializes a simulation's full state. The standard
// implementation is DirStore; tests may substitute an in-memory double.
type Store interface {
	// Save persists the simulation under path. saveAll additionally writes
	// per-condition trajectory data.
	Save(path string, s *Simulation, saveAll bool) error

	// Load restores a simulation from path, including trajectory data when
	// it was saved with saveAll.
	Load(path string) (*Simulation, error)
}

// DirStore stores one simulation per directory: a simulation.json state file
// plus, when trajectory persistence was requested, one subdirectory per
// condition holding control and perturbation trajectory stores.
type DirStore struct{}

// state is the persisted schema. Dynamics are deliberately excluded: the
// state file must stay small, and trajectories round-trip through their own
// per-condition stores.
type state struct {
	Model       *Model                 `json:"model"`
	Config      *Config                `json:"config,omitempty"`
	Conditions  []string               `json:"conditions"`
	Comparisons map[string]*Comparison `json:"comparisons,omitempty"`
	SaveAll     bool                   `json:"save_all"`
}

// Save writes the simulation state to path, creating the directory if needed.
func (DirStore) Save(path string, s *Simulation, saveAll bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating simulation directory: %w", err)
	}

	if saveAll {
		for condition, dyn := range s.Dynamics {
			subdir := filepath.Join(path, condition)
			if dyn.Before != nil {
				if err := dyn.Before.Save(filepath.Join(subdir, ControlDirName)); err != nil {
					return fmt.Errorf("saving %s control trajectories: %w", condition, err)
				}
			}
			if dyn.After != nil {
				if err := dyn.After.Save(filepath.Join(subdir, PerturbationDirName)); err != nil {
					return fmt.Errorf("saving %s perturbation trajectories: %w", condition, err)
				}
			}
		}
	}
	s.SaveAll = saveAll

	data, err := json.MarshalIndent(state{
		Model:       s.Model,
		Config:      s.Config,
		Conditions:  s.Conditions,
		Comparisons: s.Comparisons,
		SaveAll:     saveAll,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding simulation state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, StateFileName), data, 0o644); err != nil {
		return fmt.Errorf("writing simulation state: %w", err)
	}
	return nil
}

// Load reads a simulation directory written by Save.
func (DirStore) Load(path string) (*Simulation, error) {
	data, err := os.ReadFile(filepath.Join(path, StateFileName))
	if err != nil {
		return nil, fmt.Errorf("reading simulation state: %w", err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decoding simulation state in %s: %w", path, err)
	}

	s := &Simulation{
		Model:       st.Model,
		Config:      st.Config,
		Conditions:  st.Conditions,
		Comparisons: st.Comparisons,
		SaveAll:     st.SaveAll,
	}

	if st.SaveAll {
		if err := loadTrajectories(path, s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// loadTrajectories restores per-condition trajectory stores. Conditions whose
// subdirectory was never materialised are skipped, matching the partial-save
// tolerance of the directory contract.
func loadTrajectories(path string, s *Simulation) error {
	dynamics := make(map[string]ConditionDynamics)
	for _, condition := range s.Conditions {
		subdir := filepath.Join(path, condition)
		if _, err := os.Stat(subdir); os.IsNotExist(err) {
			continue
		}

		var dyn ConditionDynamics
		controlDir := filepath.Join(subdir, ControlDirName)
		if _, err := os.Stat(controlDir); err == nil {
			before, err := LoadTrajectory(controlDir)
			if err != nil {
				return fmt.Errorf("loading %s control trajectories: %w", condition, err)
			}
			dyn.Before = before
		}
		perturbationDir := filepath.Join(subdir, PerturbationDirName)
		if _, err := os.Stat(perturbationDir); err == nil {
			after, err := LoadTrajectory(perturbationDir)
			if err != nil {
				return fmt.Errorf("loading %s perturbation trajectories: %w", condition, err)
			}
			dyn.After = after
		}
		dynamics[condition] = dyn
	}
	if len(dynamics) > 0 {
		s.Dynamics = dynamics
	}
	return nil
}
