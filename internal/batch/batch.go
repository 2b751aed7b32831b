// Package batch maps an enumerable parameter space onto an on-disk job
// directory tree: one serialized simulation per parameter set, chunked path
// lists for external job submission, and index-stable lazy iteration over the
// stored simulations.
package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/expression.report/internal/monitoring"
	"github.com/banshee-data/expression.report/internal/sim"
	"github.com/banshee-data/expression.report/internal/timeutil"
)

var (
	// ErrNoParameters reports construction or build over an empty parameter set.
	ErrNoParameters = errors.New("batch: empty parameter set")

	// ErrUnbuilt reports an operation that requires a built batch.
	ErrUnbuilt = errors.New("batch: not built")

	// ErrAlreadyBuilt reports a second Build on the same batch.
	ErrAlreadyBuilt = errors.New("batch: already built")

	// ErrIndexOutOfRange reports a simulation index outside [0, N).
	ErrIndexOutOfRange = errors.New("batch: simulation index out of range")
)

// BuilderFunc constructs a model from one parameter set. Family registries
// supply these; a builder must be pure so rebuilding a batch from its stored
// parameters is reproducible.
type BuilderFunc func(parameters []float64) (*sim.Model, error)

// Options configures a batch's collaborators. The zero value selects the
// production defaults.
type Options struct {
	// Tag prefixes the generated batch directory name. Defaults to "batch".
	Tag string

	// Layout names the batch subdirectories. Zero value means DefaultLayout.
	Layout Layout

	// Store persists simulations. Defaults to sim.DirStore.
	Store sim.Store

	// Clock supplies the build timestamp for directory naming.
	Clock timeutil.Clock

	// SimConfig is applied uniformly to every simulation in the batch.
	SimConfig *sim.Config

	// Workers bounds build/aggregation parallelism across indices. Values
	// below 1 mean sequential.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.Tag == "" {
		o.Tag = "batch"
	}
	if o.Layout == (Layout{}) {
		o.Layout = DefaultLayout()
	}
	if o.Store == nil {
		o.Store = sim.DirStore{}
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// BuildConfig holds the per-build settings recorded in the batch state and
// forwarded to the submission scripts.
type BuildConfig struct {
	// BatchSize is the number of simulation paths per chunk file.
	BatchSize int `json:"batch_size"`

	// Trajectories is the stochastic run count each job simulates.
	Trajectories int `json:"trajectories"`

	// SaveAll asks jobs to persist trajectory data.
	SaveAll bool `json:"save_all"`

	// Deviations asks jobs to compare deviation variables.
	Deviations bool `json:"deviations"`

	// Allocation is the cluster project allocation charged by the jobs.
	Allocation string `json:"allocation,omitempty"`
}

func (c BuildConfig) withDefaults() BuildConfig {
	if c.BatchSize < 1 {
		c.BatchSize = 25
	}
	if c.Trajectories < 1 {
		c.Trajectories = 1000
	}
	return c
}

// Batch owns an ordered collection of parameter sets and, once built, the
// directory tree holding one serialized simulation per set.
type Batch struct {
	path       string
	parameters [][]float64
	simPaths   []string // relative to path; nil until built
	builder    BuilderFunc
	opts       Options
	buildCfg   BuildConfig
}

// New returns an unbuilt batch over the given parameter sets.
func New(parameters [][]float64, builder BuilderFunc, opts Options) (*Batch, error) {
	if len(parameters) == 0 {
		return nil, ErrNoParameters
	}
	if builder == nil {
		return nil, errors.New("batch: nil builder")
	}
	return &Batch{
		parameters: parameters,
		builder:    builder,
		opts:       opts.withDefaults(),
	}, nil
}

// Len returns the number of parameter sets.
func (b *Batch) Len() int { return len(b.parameters) }

// Path returns the batch root, empty until built or loaded.
func (b *Batch) Path() string { return b.path }

// Built reports whether the batch has a materialised directory tree.
func (b *Batch) Built() bool { return b.simPaths != nil }

// Layout returns the directory layout in use.
func (b *Batch) Layout() Layout { return b.opts.Layout }

// Parameters returns a copy of parameter set i.
func (b *Batch) Parameters(i int) ([]float64, error) {
	if i < 0 || i >= len(b.parameters) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(b.parameters))
	}
	return append([]float64(nil), b.parameters[i]...), nil
}

// AllParameters returns a copy of every parameter set, index-ordered.
func (b *Batch) AllParameters() [][]float64 {
	out := make([][]float64, len(b.parameters))
	for i, p := range b.parameters {
		out[i] = append([]float64(nil), p...)
	}
	return out
}

// dirName derives the timestamped batch directory name.
func (b *Batch) dirName(now time.Time) string {
	return fmt.Sprintf("%s_%s", b.opts.Tag, now.Format("060102_150405"))
}

// Build materialises the batch under destination: a fresh timestamped
// directory holding one simulation per parameter set, the serialized batch
// state, chunked path lists for job submission, and the submission scripts.
//
// There is no rollback: a failed Build leaves a partial tree that must be
// discarded, and re-running against the same destination is only safe once
// the clock has moved past the original timestamp.
func (b *Batch) Build(destination string, cfg BuildConfig) error {
	if b.Built() {
		return ErrAlreadyBuilt
	}
	if len(b.parameters) == 0 {
		return ErrNoParameters
	}
	cfg = cfg.withDefaults()

	path := filepath.Join(destination, b.dirName(b.opts.Clock.Now()))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("batch: directory %s already exists", path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("batch: creating directory: %w", err)
	}
	for _, sub := range []string{b.opts.Layout.SimulationsDir, b.opts.Layout.ScriptsDir, b.opts.Layout.BatchesDir} {
		if err := os.Mkdir(filepath.Join(path, sub), 0o755); err != nil {
			return fmt.Errorf("batch: creating %s: %w", sub, err)
		}
	}
	b.path = path
	b.buildCfg = cfg

	simPaths, err := b.buildSimulations(cfg)
	if err != nil {
		return err
	}
	b.simPaths = simPaths

	if err := b.saveState(); err != nil {
		return err
	}
	if err := writeChunks(path, b.opts.Layout, simPaths, cfg.BatchSize); err != nil {
		return err
	}
	if err := writeScripts(path, b.opts.Layout, cfg); err != nil {
		return err
	}

	monitoring.Logf("batch: built %d simulations under %s", len(simPaths), path)
	return nil
}

// buildSimulations constructs and persists one simulation per index. Indices
// are distributed over Workers goroutines; each index writes only its own
// subdirectory, and the relative paths are projected into an index-ordered
// slice so completion order never leaks into the result.
func (b *Batch) buildSimulations(cfg BuildConfig) ([]string, error) {
	n := len(b.parameters)
	simPaths := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	sem := make(chan struct{}, b.opts.Workers)
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			rel := filepath.Join(b.opts.Layout.SimulationsDir, fmt.Sprintf("%d", i))
			simPaths[i] = rel
			errs[i] = b.buildSimulation(i, filepath.Join(b.path, rel))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("batch: building simulation %d: %w", i, err)
		}
	}
	return simPaths, nil
}

func (b *Batch) buildSimulation(i int, path string) error {
	model, err := b.builder(b.parameters[i])
	if err != nil {
		return err
	}
	s := sim.New(model, b.opts.SimConfig)
	return b.opts.Store.Save(path, s, false)
}

// state is the persisted batch schema: explicit fields rather than an opaque
// object dump, so loads stay forward-compatible.
type state struct {
	Tag             string      `json:"tag"`
	CreatedAt       time.Time   `json:"created_at"`
	Build           BuildConfig `json:"build"`
	Parameters      [][]float64 `json:"parameters"`
	SimulationPaths []string    `json:"simulation_paths"`
	SimConfig       *sim.Config `json:"sim_config,omitempty"`
}

func (b *Batch) saveState() error {
	data, err := json.MarshalIndent(state{
		Tag:             b.opts.Tag,
		CreatedAt:       b.opts.Clock.Now().UTC(),
		Build:           b.buildCfg,
		Parameters:      b.parameters,
		SimulationPaths: b.simPaths,
		SimConfig:       b.opts.SimConfig,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: encoding state: %w", err)
	}
	statePath := filepath.Join(b.path, b.opts.Layout.StateFile)
	if err := os.WriteFile(statePath, data, 0o644); err != nil {
		return fmt.Errorf("batch: writing state: %w", err)
	}
	return nil
}

// Load restores a batch from path. The path recorded inside the state file is
// not trusted: batches are relocatable, so the load path wins.
func Load(path string, builder BuilderFunc, opts Options) (*Batch, error) {
	opts = opts.withDefaults()
	data, err := os.ReadFile(filepath.Join(path, opts.Layout.StateFile))
	if err != nil {
		return nil, fmt.Errorf("batch: reading state: %w", err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("batch: decoding state in %s: %w", path, err)
	}
	if len(st.Parameters) == 0 {
		return nil, fmt.Errorf("%w: state in %s", ErrNoParameters, path)
	}
	if len(st.SimulationPaths) != len(st.Parameters) {
		return nil, fmt.Errorf("batch: state in %s has %d simulation paths for %d parameter sets",
			path, len(st.SimulationPaths), len(st.Parameters))
	}

	if st.Tag != "" {
		opts.Tag = st.Tag
	}
	opts.SimConfig = st.SimConfig
	return &Batch{
		path:       path,
		parameters: st.Parameters,
		simPaths:   st.SimulationPaths,
		builder:    builder,
		opts:       opts,
		buildCfg:   st.Build,
	}, nil
}

// LoadSimulation loads the stored simulation for index i.
func (b *Batch) LoadSimulation(i int) (*sim.Simulation, error) {
	if !b.Built() {
		return nil, ErrUnbuilt
	}
	if i < 0 || i >= len(b.simPaths) {
		return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(b.simPaths))
	}
	s, err := b.opts.Store.Load(filepath.Join(b.path, b.simPaths[i]))
	if err != nil {
		return nil, fmt.Errorf("batch: loading simulation %d: %w", i, err)
	}
	return s, nil
}

// Iter returns a fresh cursor over the stored simulations in ascending index
// order. Every Next performs a fresh disk load, so mutating a yielded
// simulation does not persist, and concurrent consumers must each take their
// own cursor.
func (b *Batch) Iter() *Iter {
	return &Iter{b: b}
}

// Iter is a restartable cursor over a batch's stored simulations, in the
// style of sql.Rows: Next advances, Simulation returns the current value, and
// Err reports the first load failure.
type Iter struct {
	b   *Batch
	i   int
	cur *sim.Simulation
	err error
}

// Next advances to the next simulation, returning false at the end of the
// batch or on the first load error.
func (it *Iter) Next() bool {
	if it.err != nil || !it.b.Built() || it.i >= it.b.Len() {
		if !it.b.Built() && it.err == nil {
			it.err = ErrUnbuilt
		}
		return false
	}
	s, err := it.b.LoadSimulation(it.i)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = s
	it.i++
	return true
}

// Index returns the index of the current simulation.
func (it *Iter) Index() int { return it.i - 1 }

// Simulation returns the current simulation.
func (it *Iter) Simulation() *sim.Simulation { return it.cur }

// Err returns the first error encountered during iteration.
func (it *Iter) Err() error { return it.err }

// Apply loads every simulation in index order, applies fn, and returns a
// dense mapping over all indices. Unlike aggregation it never filters on
// completion state; any load or fn error aborts with the failing index.
func Apply[T any](b *Batch, fn func(*sim.Simulation) (T, error)) (map[int]T, error) {
	if !b.Built() {
		return nil, ErrUnbuilt
	}
	out := make(map[int]T, b.Len())
	for i := 0; i < b.Len(); i++ {
		s, err := b.LoadSimulation(i)
		if err != nil {
			return nil, err
		}
		v, err := fn(s)
		if err != nil {
			return nil, fmt.Errorf("batch: applying to simulation %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
