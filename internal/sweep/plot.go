package sweep

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// RenderHistogram saves a PNG histogram of the scalar values of one
// (condition, metric) column. Missing cells are skipped; an all-missing
// column is an error since there is nothing to bin.
func RenderHistogram(path string, table *Table, key Key, bins int) error {
	if bins <= 0 {
		bins = 20
	}

	values := table.ScalarColumn(key)
	pts := make(plotter.Values, 0, len(values))
	for _, v := range values {
		pts = append(pts, v)
	}
	if len(pts) == 0 {
		return fmt.Errorf("sweep: no values for condition %q metric %q", key.Condition, key.Metric)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s / %s (%d samples)", key.Condition, key.Metric, len(pts))
	p.X.Label.Text = key.Metric
	p.Y.Label.Text = "count"

	hist, err := plotter.NewHist(pts, bins)
	if err != nil {
		return fmt.Errorf("sweep: building histogram: %w", err)
	}
	p.Add(hist)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("sweep: saving histogram: %w", err)
	}
	return nil
}
