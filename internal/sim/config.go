package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Default pulse and integration settings. These match the reference protocol:
// the system settles for pulseStart time units, receives a square signal pulse,
// and is observed until simulationDuration.
const (
	defaultPulseStart         = 100.0
	defaultPulseDuration      = 3.0
	defaultPulseBaseline      = 0.0
	defaultPulseMagnitude     = 1.0
	defaultPulseSensitive     = false
	defaultSimulationDuration = 400.0
	defaultDT                 = 1.0
	defaultTimescale          = 1.0
)

// Config holds the perturbation-simulation settings applied uniformly to every
// simulation in a batch. Fields are pointers so a partial JSON config is safe:
// omitted fields fall back to defaults through the Get* accessors.
type Config struct {
	PulseStart     *float64 `json:"pulse_start,omitempty"`
	PulseDuration  *float64 `json:"pulse_duration,omitempty"`
	PulseBaseline  *float64 `json:"pulse_baseline,omitempty"`
	PulseMagnitude *float64 `json:"pulse_magnitude,omitempty"`

	// PulseSensitive scales the pulse duration by each condition's metabolic
	// rate, so slow-metabolism conditions see a proportionally longer pulse.
	PulseSensitive *bool `json:"pulse_sensitive,omitempty"`

	SimulationDuration *float64 `json:"simulation_duration,omitempty"`
	DT                 *float64 `json:"dt,omitempty"`
	Timescale          *float64 `json:"timescale,omitempty"`
}

func (c *Config) GetPulseStart() float64 {
	if c == nil || c.PulseStart == nil {
		return defaultPulseStart
	}
	return *c.PulseStart
}

func (c *Config) GetPulseDuration() float64 {
	if c == nil || c.PulseDuration == nil {
		return defaultPulseDuration
	}
	return *c.PulseDuration
}

func (c *Config) GetPulseBaseline() float64 {
	if c == nil || c.PulseBaseline == nil {
		return defaultPulseBaseline
	}
	return *c.PulseBaseline
}

func (c *Config) GetPulseMagnitude() float64 {
	if c == nil || c.PulseMagnitude == nil {
		return defaultPulseMagnitude
	}
	return *c.PulseMagnitude
}

func (c *Config) GetPulseSensitive() bool {
	if c == nil || c.PulseSensitive == nil {
		return defaultPulseSensitive
	}
	return *c.PulseSensitive
}

func (c *Config) GetSimulationDuration() float64 {
	if c == nil || c.SimulationDuration == nil {
		return defaultSimulationDuration
	}
	return *c.SimulationDuration
}

func (c *Config) GetDT() float64 {
	if c == nil || c.DT == nil {
		return defaultDT
	}
	return *c.DT
}

func (c *Config) GetTimescale() float64 {
	if c == nil || c.Timescale == nil {
		return defaultTimescale
	}
	return *c.Timescale
}

// LoadConfig loads a Config from a JSON file. Fields omitted from the file
// retain their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", cleanPath, err)
	}
	return cfg, nil
}
