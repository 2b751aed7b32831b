package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/expression.report/internal/sim"
	"github.com/banshee-data/expression.report/internal/testutil"
	"github.com/banshee-data/expression.report/internal/timeutil"
)

// testBuilder maps a two-entry parameter set to a minimal model.
func testBuilder(p []float64) (*sim.Model, error) {
	if len(p) != 2 {
		return nil, fmt.Errorf("want 2 parameters, got %d", len(p))
	}
	m := &sim.Model{
		Family:        "simple",
		RateConstants: []float64{p[0], p[1]},
	}
	m.AddFeedback(sim.FeedbackTerm{Strengths: []float64{0.01}, Perturbed: true})
	return m, nil
}

func testParameters(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = []float64{float64(i) + 1, 0.1}
	}
	return out
}

func testOptions() Options {
	return Options{
		Tag:   "test",
		Store: testutil.NewMemStore(),
		Clock: timeutil.NewMockClock(time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)),
	}
}

func TestParameters(t *testing.T) {
	b, err := New(testParameters(3), testBuilder, testOptions())
	require.NoError(t, err)

	p, err := b.Parameters(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0.1}, p)

	// Mutating the returned slice must not write through to the batch.
	p[0] = 99
	again, err := b.Parameters(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 0.1}, again)

	_, err = b.Parameters(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = b.Parameters(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, testBuilder, testOptions())
	assert.ErrorIs(t, err, ErrNoParameters)

	_, err = New(testParameters(3), nil, testOptions())
	assert.Error(t, err)
}

func TestBuildLayout(t *testing.T) {
	opts := testOptions()
	store := opts.Store.(*testutil.MemStore)
	b, err := New(testParameters(7), testBuilder, opts)
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, b.Build(dest, BuildConfig{BatchSize: 3}))

	// The batch directory is tag plus build timestamp.
	want := filepath.Join(dest, "test_260314_150926")
	assert.Equal(t, want, b.Path())
	assert.True(t, b.Built())

	// One persisted simulation per parameter set.
	assert.Equal(t, 7, store.Len())
	for i := 0; i < 7; i++ {
		s, err := b.LoadSimulation(i)
		require.NoError(t, err)
		assert.Equal(t, []float64{float64(i) + 1, 0.1}, s.Model.RateConstants)
	}

	// State file, chunk files, and scripts exist on disk.
	for _, rel := range []string{
		"batch.json",
		filepath.Join("batches", "index.txt"),
		filepath.Join("batches", "0.txt"),
		filepath.Join("batches", "1.txt"),
		filepath.Join("batches", "2.txt"),
		filepath.Join("scripts", "run.sh"),
		filepath.Join("scripts", "submit.sh"),
	} {
		_, err := os.Stat(filepath.Join(b.Path(), rel))
		assert.NoError(t, err, rel)
	}

	// 7 paths at batch size 3: two full chunks and a final partial one.
	chunks, err := ReadChunkIndex(b.Path(), b.Layout())
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	last, err := ReadChunkFile(b.Path(), chunks[2])
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("simulations", "6")}, last)
}

func TestBuildTwiceFails(t *testing.T) {
	b, err := New(testParameters(2), testBuilder, testOptions())
	require.NoError(t, err)

	dest := t.TempDir()
	require.NoError(t, b.Build(dest, BuildConfig{}))
	assert.ErrorIs(t, b.Build(dest, BuildConfig{}), ErrAlreadyBuilt)
}

func TestBuildDirectoryCollision(t *testing.T) {
	opts := testOptions()
	dest := t.TempDir()

	a, err := New(testParameters(2), testBuilder, opts)
	require.NoError(t, err)
	require.NoError(t, a.Build(dest, BuildConfig{}))

	// Same clock, same tag: the second build must refuse to reuse the tree.
	b, err := New(testParameters(2), testBuilder, opts)
	require.NoError(t, err)
	err = b.Build(dest, BuildConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// Once the clock moves, the build succeeds under a fresh directory.
	opts.Clock.(*timeutil.MockClock).Advance(time.Second)
	c, err := New(testParameters(2), testBuilder, opts)
	require.NoError(t, err)
	require.NoError(t, c.Build(dest, BuildConfig{}))
	assert.NotEqual(t, a.Path(), c.Path())
}

func TestLoadRoundTrip(t *testing.T) {
	opts := testOptions()
	params := testParameters(5)
	b, err := New(params, testBuilder, opts)
	require.NoError(t, err)
	require.NoError(t, b.Build(t.TempDir(), BuildConfig{BatchSize: 2, Trajectories: 50}))

	loaded, err := Load(b.Path(), testBuilder, opts)
	require.NoError(t, err)

	assert.Equal(t, b.Path(), loaded.Path())
	assert.Equal(t, 5, loaded.Len())
	assert.True(t, loaded.Built())
	if diff := cmp.Diff(params, loaded.AllParameters()); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	s, err := loaded.LoadSimulation(3)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0.1}, s.Model.RateConstants)
}

func TestLoadMissingState(t *testing.T) {
	_, err := Load(t.TempDir(), testBuilder, testOptions())
	require.Error(t, err)
}

func TestLoadSimulationBeforeBuild(t *testing.T) {
	b, err := New(testParameters(2), testBuilder, testOptions())
	require.NoError(t, err)
	_, err = b.LoadSimulation(0)
	assert.ErrorIs(t, err, ErrUnbuilt)
}

func TestLoadSimulationOutOfRange(t *testing.T) {
	b, err := New(testParameters(2), testBuilder, testOptions())
	require.NoError(t, err)
	require.NoError(t, b.Build(t.TempDir(), BuildConfig{}))

	_, err = b.LoadSimulation(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = b.LoadSimulation(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestIterAscending(t *testing.T) {
	b, err := New(testParameters(4), testBuilder, testOptions())
	require.NoError(t, err)
	require.NoError(t, b.Build(t.TempDir(), BuildConfig{}))

	it := b.Iter()
	var indices []int
	for it.Next() {
		indices = append(indices, it.Index())
		require.NotNil(t, it.Simulation())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []int{0, 1, 2, 3}, indices)
}

func TestIterBeforeBuild(t *testing.T) {
	b, err := New(testParameters(2), testBuilder, testOptions())
	require.NoError(t, err)

	it := b.Iter()
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), ErrUnbuilt)
}

func TestIterYieldsFreshLoads(t *testing.T) {
	// Uses the real directory store: the in-memory double hands back shared
	// pointers, which would mask the fresh-load behaviour under test.
	opts := testOptions()
	opts.Store = sim.DirStore{}
	b, err := New(testParameters(2), testBuilder, opts)
	require.NoError(t, err)
	require.NoError(t, b.Build(t.TempDir(), BuildConfig{}))

	first := b.Iter()
	require.True(t, first.Next())
	first.Simulation().Model.Family = "mutated"

	second := b.Iter()
	require.True(t, second.Next())
	assert.Equal(t, "simple", second.Simulation().Model.Family)
}

func TestApplyDense(t *testing.T) {
	b, err := New(testParameters(6), testBuilder, testOptions())
	require.NoError(t, err)
	require.NoError(t, b.Build(t.TempDir(), BuildConfig{}))

	got, err := Apply(b, func(s *sim.Simulation) (float64, error) {
		return s.Model.RateConstants[0], nil
	})
	require.NoError(t, err)

	require.Len(t, got, 6)
	for i := 0; i < 6; i++ {
		assert.Equal(t, float64(i)+1, got[i])
	}
}

func TestApplyPropagatesError(t *testing.T) {
	b, err := New(testParameters(3), testBuilder, testOptions())
	require.NoError(t, err)
	require.NoError(t, b.Build(t.TempDir(), BuildConfig{}))

	boom := errors.New("boom")
	_, err = Apply(b, func(*sim.Simulation) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestParallelBuildMatchesSequential(t *testing.T) {
	params := testParameters(9)

	seq := testOptions()
	b1, err := New(params, testBuilder, seq)
	require.NoError(t, err)
	require.NoError(t, b1.Build(t.TempDir(), BuildConfig{BatchSize: 4}))

	par := testOptions()
	par.Workers = 4
	b2, err := New(params, testBuilder, par)
	require.NoError(t, err)
	require.NoError(t, b2.Build(t.TempDir(), BuildConfig{BatchSize: 4}))

	// Completion order must never leak into the projected path order.
	c1, err := ReadChunkIndex(b1.Path(), b1.Layout())
	require.NoError(t, err)
	c2, err := ReadChunkIndex(b2.Path(), b2.Layout())
	require.NoError(t, err)
	require.Equal(t, c1, c2)
	for i := range c1 {
		p1, err := ReadChunkFile(b1.Path(), c1[i])
		require.NoError(t, err)
		p2, err := ReadChunkFile(b2.Path(), c2[i])
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
	}
}
