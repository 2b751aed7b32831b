package sweep

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/expression.report/internal/sim"
)

func openTestStore(t *testing.T) *ResultsStore {
	t.Helper()
	store, err := OpenResultsStore(filepath.Join(t.TempDir(), ResultsDBFile))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestResultsStoreLoadLatestEmpty(t *testing.T) {
	store := openTestStore(t)
	_, _, err := store.LoadLatest()
	assert.True(t, errors.Is(err, ErrNoRuns), "err = %v, want ErrNoRuns", err)
}

func TestResultsStoreRoundTrip(t *testing.T) {
	store := openTestStore(t)

	missingRec := make(Record)
	for _, m := range sim.MetricNames {
		missingRec[Key{Condition: sim.ConditionDiabetic, Metric: m}] = MissingValue()
	}
	records := map[int]Record{
		0: fullRecord(0, sim.ConditionNormal, sim.ConditionDiabetic),
		3: missingRec,
		7: fullRecord(7, sim.ConditionNormal),
	}
	table := NewTable(records)
	completed := []bool{true, false, false, true, false, false, false, true}

	runID, err := store.SaveRun("simple", table, completed)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	gotTable, gotCompleted, err := store.LoadLatest()
	require.NoError(t, err)

	assert.Equal(t, completed, gotCompleted)
	assert.Equal(t, table.Rows, gotTable.Rows)
	assert.Equal(t, table.Columns, gotTable.Columns)
	if diff := cmp.Diff(table.Cells, gotTable.Cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestResultsStoreVectorValues(t *testing.T) {
	store := openTestStore(t)

	rec := make(Record)
	for _, m := range sim.MetricNames {
		rec[Key{Condition: sim.ConditionNormal, Metric: m}] = Value{
			Values: []float64{0.1, 0.2, 0.3, 0.4, 0.5},
		}
	}
	table := NewTable(map[int]Record{2: rec})

	_, err := store.SaveRun("linear", table, []bool{false, false, true})
	require.NoError(t, err)

	got, _, err := store.LoadLatest()
	require.NoError(t, err)
	v, ok := got.Value(2, Key{Condition: sim.ConditionNormal, Metric: sim.MetricBelow})
	require.True(t, ok)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5}, v.Values)
	assert.False(t, v.Scalar)
}

func TestResultsStoreLoadLatestPicksNewestRun(t *testing.T) {
	store := openTestStore(t)

	first := NewTable(map[int]Record{0: fullRecord(0, sim.ConditionNormal)})
	_, err := store.SaveRun("simple", first, []bool{true})
	require.NoError(t, err)

	second := NewTable(map[int]Record{
		0: fullRecord(0, sim.ConditionNormal),
		1: fullRecord(1, sim.ConditionNormal),
	})
	_, err = store.SaveRun("simple", second, []bool{true, true})
	require.NoError(t, err)

	got, completed, err := store.LoadLatest()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, got.Rows)
	assert.Equal(t, []bool{true, true}, completed)

	runs, err := store.Runs()
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRetryOnBusy(t *testing.T) {
	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries busy errors", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			if calls < 3 {
				return errors.New("database is locked (5) (SQLITE_BUSY)")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-busy error fails immediately", func(t *testing.T) {
		boom := errors.New("constraint violation")
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			return boom
		})
		assert.Equal(t, boom, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := retryOnBusy(func() error {
			calls++
			return errors.New("SQLITE_BUSY")
		})
		require.Error(t, err)
		assert.Equal(t, 5, calls)
	})
}

func TestIsSQLiteBusy(t *testing.T) {
	assert.False(t, isSQLiteBusy(nil))
	assert.True(t, isSQLiteBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, isSQLiteBusy(errors.New("SQLITE_BUSY")))
	assert.False(t, isSQLiteBusy(errors.New("some other error")))
}
