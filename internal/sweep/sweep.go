// Package sweep runs parameter sweeps of gene-expression models: it samples
// a parameter space around a family's base vector, builds a batch of
// simulations over the samples, and aggregates the per-simulation comparison
// outputs into a (condition, metric)-keyed results table.
package sweep

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/expression.report/internal/batch"
	"github.com/banshee-data/expression.report/internal/monitoring"
	"github.com/banshee-data/expression.report/internal/sampling"
)

var (
	// ErrUnknownFamily reports a family tag missing from the registry.
	ErrUnknownFamily = errors.New("sweep: unknown model family")

	// ErrNotAggregated reports access to results before Aggregate has run.
	ErrNotAggregated = errors.New("sweep: not aggregated")
)

// sweepStateFile is the sweep-specific state persisted next to the batch
// state at the sweep root.
const sweepStateFile = "sweep.json"

// ResultsDBFile is the sqlite results store at the sweep root.
const ResultsDBFile = "results.db"

// Options configures sweep construction. The zero value of any field selects
// its default.
type Options struct {
	// Delta is the log-deviation about the family base. DeltaVec overrides
	// it per parameter when non-nil. Default 0.5.
	Delta    float64
	DeltaVec []float64

	// Pad is extra padding added beyond the deviation. Default 0.1.
	Pad float64

	// NumSamples is the number of parameter sets to draw. Default 1000.
	NumSamples int

	// LogBase is the logarithmic sampling basis. Default 10.
	LogBase float64

	// Seed fixes the quasi-random sequence for reproducible batches.
	Seed uint64

	// Batch carries the batch collaborators (layout, store, clock, workers,
	// simulation config).
	Batch batch.Options
}

func (o Options) withDefaults() Options {
	if o.Delta == 0 {
		o.Delta = 0.5
	}
	if o.Pad == 0 {
		o.Pad = 0.1
	}
	if o.NumSamples == 0 {
		o.NumSamples = 1000
	}
	if o.LogBase == 0 {
		o.LogBase = 10
	}
	return o
}

// Sweep is a batch over a sampled parameter space plus the aggregation
// pipeline that collapses per-simulation comparisons into a results table.
type Sweep struct {
	*batch.Batch

	family Family
	opts   Options

	mu        sync.Mutex
	results   *Table
	completed []bool
}

// New samples the parameter space of the given family and returns an unbuilt
// sweep over the samples. Bounds for each parameter i are
// base[i]-delta[i]-pad to base[i]+delta[i]+pad in log space.
func New(familyTag string, opts Options) (*Sweep, error) {
	family, ok := LookupFamily(familyTag)
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownFamily, familyTag, FamilyTags())
	}
	opts = opts.withDefaults()

	if opts.DeltaVec != nil && len(opts.DeltaVec) != len(family.Base) {
		return nil, fmt.Errorf("sweep: delta vector has %d entries for %d parameters",
			len(opts.DeltaVec), len(family.Base))
	}

	bounds := make([]sampling.Bounds, len(family.Base))
	for i, base := range family.Base {
		delta := opts.Delta
		if opts.DeltaVec != nil {
			delta = opts.DeltaVec[i]
		}
		bounds[i] = sampling.Bounds{
			Low:  base - delta - opts.Pad,
			High: base + delta + opts.Pad,
		}
	}

	sampler, err := sampling.New(bounds, opts.LogBase, opts.Seed)
	if err != nil {
		return nil, err
	}
	parameters, err := sampler.Sample(opts.NumSamples)
	if err != nil {
		return nil, err
	}

	if opts.Batch.Tag == "" {
		opts.Batch.Tag = "sweep_" + family.Tag
	}
	b, err := batch.New(parameters, family.Build, opts.Batch)
	if err != nil {
		return nil, err
	}
	return &Sweep{Batch: b, family: family, opts: opts}, nil
}

// Family returns the model family swept.
func (s *Sweep) Family() Family { return s.family }

// Build materialises the sweep like a batch build and then persists the
// sweep-specific state.
func (s *Sweep) Build(destination string, cfg batch.BuildConfig) error {
	if err := s.Batch.Build(destination, cfg); err != nil {
		return err
	}
	return s.saveState()
}

// sweepState is the persisted sweep schema.
type sweepState struct {
	Family     string    `json:"family"`
	Delta      float64   `json:"delta"`
	DeltaVec   []float64 `json:"delta_vec,omitempty"`
	Pad        float64   `json:"pad"`
	NumSamples int       `json:"num_samples"`
	LogBase    float64   `json:"log_base"`
	Seed       uint64    `json:"seed"`
}

func (s *Sweep) saveState() error {
	data, err := json.MarshalIndent(sweepState{
		Family:     s.family.Tag,
		Delta:      s.opts.Delta,
		DeltaVec:   s.opts.DeltaVec,
		Pad:        s.opts.Pad,
		NumSamples: s.opts.NumSamples,
		LogBase:    s.opts.LogBase,
		Seed:       s.opts.Seed,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("sweep: encoding state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Path(), sweepStateFile), data, 0o644); err != nil {
		return fmt.Errorf("sweep: writing state: %w", err)
	}
	return nil
}

// Load restores a sweep from a built sweep directory. Aggregated results are
// reloaded from the results store when present; otherwise the sweep requires
// an explicit Aggregate to recompute them.
func Load(path string, opts batch.Options) (*Sweep, error) {
	data, err := os.ReadFile(filepath.Join(path, sweepStateFile))
	if err != nil {
		return nil, fmt.Errorf("sweep: reading state: %w", err)
	}
	var st sweepState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("sweep: decoding state in %s: %w", path, err)
	}
	family, ok := LookupFamily(st.Family)
	if !ok {
		return nil, fmt.Errorf("%w: %q in state %s", ErrUnknownFamily, st.Family, path)
	}

	b, err := batch.Load(path, family.Build, opts)
	if err != nil {
		return nil, err
	}

	s := &Sweep{
		Batch:  b,
		family: family,
		opts: Options{
			Delta:      st.Delta,
			DeltaVec:   st.DeltaVec,
			Pad:        st.Pad,
			NumSamples: st.NumSamples,
			LogBase:    st.LogBase,
			Seed:       st.Seed,
			Batch:      opts,
		},
	}

	dbPath := filepath.Join(path, ResultsDBFile)
	if _, err := os.Stat(dbPath); err == nil {
		store, err := OpenResultsStore(dbPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		results, completed, err := store.LoadLatest()
		if err != nil && !errors.Is(err, ErrNoRuns) {
			return nil, err
		}
		if err == nil {
			s.results = results
			s.completed = completed
		}
	}
	return s, nil
}

// Results returns the aggregated results table.
func (s *Sweep) Results() (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		return nil, ErrNotAggregated
	}
	return s.results, nil
}

// Completed returns a copy of the per-sample completion vector.
func (s *Sweep) Completed() ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed == nil {
		return nil, ErrNotAggregated
	}
	return append([]bool(nil), s.completed...), nil
}

// PercentComplete is the fraction of samples whose simulations reached a
// valid comparison state. Derived from the in-memory completion vector; it
// never re-aggregates.
func (s *Sweep) PercentComplete() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed == nil {
		return 0, ErrNotAggregated
	}
	n := 0
	for _, ok := range s.completed {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(s.completed)), nil
}

// Aggregate reloads every stored simulation, parses its comparisons, and
// rebuilds the results table and completion vector from scratch. Per-sample
// comparison failure is expected and simply leaves a gap; a storage failure
// on load aborts the whole aggregation.
//
// Indices are parsed across the batch's configured workers; completion order
// never affects the final row order, which always follows ascending sample
// index.
func (s *Sweep) Aggregate() error {
	if !s.Built() {
		return batch.ErrUnbuilt
	}

	n := s.Len()
	records := make([]Record, n)
	oks := make([]bool, n)
	errs := make([]error, n)

	workers := s.opts.Batch.Workers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			simulation, err := s.LoadSimulation(i)
			if err != nil {
				errs[i] = err
				return
			}
			records[i], oks[i] = ParseSimulation(simulation)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("sweep: aggregating: %w", err)
		}
	}

	contributing := make(map[int]Record)
	completed := make([]bool, n)
	for i := 0; i < n; i++ {
		completed[i] = oks[i]
		if oks[i] {
			contributing[i] = records[i]
		}
	}

	results := NewTable(contributing)

	store, err := OpenResultsStore(filepath.Join(s.Path(), ResultsDBFile))
	if err != nil {
		return err
	}
	defer store.Close()
	runID, err := store.SaveRun(s.family.Tag, results, completed)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.results = results
	s.completed = completed
	s.mu.Unlock()

	monitoring.Logf("sweep: aggregated %d/%d completed samples (run %s)", len(contributing), n, runID)
	return nil
}
