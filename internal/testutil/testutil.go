// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"sync"
	"testing"

	"github.com/banshee-data/expression.report/internal/sim"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// MemStore is an in-memory sim.Store keyed by path. It lets batch and sweep
// tests run without touching trajectory files on disk; directory structure
// is still created by the batch build itself.
type MemStore struct {
	mu   sync.Mutex
	sims map[string]*sim.Simulation
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{sims: make(map[string]*sim.Simulation)}
}

// Save records the simulation under path. The saveAll flag is ignored; the
// in-memory copy always retains dynamics.
func (m *MemStore) Save(path string, s *sim.Simulation, saveAll bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sims[path] = s
	return nil
}

// Load returns the simulation recorded under path.
func (m *MemStore) Load(path string) (*sim.Simulation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sims[path]
	if !ok {
		return nil, &MissingSimulationError{Path: path}
	}
	return s, nil
}

// Delete forgets the simulation recorded under path, so a later Load fails
// as if the state file had vanished.
func (m *MemStore) Delete(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sims, path)
}

// Len returns the number of stored simulations.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sims)
}

// MissingSimulationError reports a Load of a path never saved.
type MissingSimulationError struct {
	Path string
}

func (e *MissingSimulationError) Error() string {
	return "testutil: no simulation stored at " + e.Path
}
