package sim

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// trajectoryFileName is the single CSV holding a trajectory store's data.
const trajectoryFileName = "trajectory.csv"

// Trajectory holds a set of stochastic simulation runs sampled on a shared
// time grid. Samples is indexed [run][time point].
type Trajectory struct {
	Times   []float64
	Samples [][]float64
}

// Runs returns the number of stochastic runs.
func (t *Trajectory) Runs() int { return len(t.Samples) }

// Mean returns the per-time-point mean across runs.
func (t *Trajectory) Mean() []float64 {
	mean := make([]float64, len(t.Times))
	if len(t.Samples) == 0 {
		return mean
	}
	for _, run := range t.Samples {
		for i, v := range run {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(t.Samples))
	}
	return mean
}

// Deviations returns a copy of the trajectory with each run shifted so that
// its initial value is zero.
func (t *Trajectory) Deviations() *Trajectory {
	out := &Trajectory{Times: append([]float64(nil), t.Times...)}
	out.Samples = make([][]float64, len(t.Samples))
	for i, run := range t.Samples {
		shifted := make([]float64, len(run))
		if len(run) > 0 {
			for j, v := range run {
				shifted[j] = v - run[0]
			}
		}
		out.Samples[i] = shifted
	}
	return out
}

// Save writes the trajectory to dir as a single CSV. The first column is the
// time grid; each further column is one run. Values are formatted so that
// reloading reproduces them bit-exactly.
func (t *Trajectory) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating trajectory directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, trajectoryFileName))
	if err != nil {
		return fmt.Errorf("creating trajectory file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := make([]string, 1+len(t.Samples))
	header[0] = "t"
	for i := range t.Samples {
		header[i+1] = fmt.Sprintf("run_%d", i)
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing trajectory header: %w", err)
	}

	row := make([]string, 1+len(t.Samples))
	for ti, tv := range t.Times {
		row[0] = strconv.FormatFloat(tv, 'g', -1, 64)
		for ri, run := range t.Samples {
			if ti < len(run) {
				row[ri+1] = strconv.FormatFloat(run[ti], 'g', -1, 64)
			} else {
				row[ri+1] = ""
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing trajectory row %d: %w", ti, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing trajectory file: %w", err)
	}
	return f.Close()
}

// LoadTrajectory reads a trajectory store written by Save.
func LoadTrajectory(dir string) (*Trajectory, error) {
	f, err := os.Open(filepath.Join(dir, trajectoryFileName))
	if err != nil {
		return nil, fmt.Errorf("opening trajectory file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading trajectory file in %s: %w", dir, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("trajectory file in %s is empty", dir)
	}

	runs := len(records[0]) - 1
	if runs < 0 {
		return nil, fmt.Errorf("trajectory file in %s has no columns", dir)
	}

	t := &Trajectory{Samples: make([][]float64, runs)}
	for _, rec := range records[1:] {
		tv, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing trajectory time %q: %w", rec[0], err)
		}
		t.Times = append(t.Times, tv)
		for ri := 0; ri < runs; ri++ {
			if rec[ri+1] == "" {
				continue
			}
			v, err := strconv.ParseFloat(rec[ri+1], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing trajectory value %q: %w", rec[ri+1], err)
			}
			t.Samples[ri] = append(t.Samples[ri], v)
		}
	}
	return t, nil
}
