package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// RenderDynamics saves a PNG of one condition's control and perturbation
// mean trajectories. Individual runs are not drawn; the mean across runs is
// what the comparison metrics are computed from.
func RenderDynamics(path, condition string, dyn *ConditionDynamics) error {
	if dyn == nil || dyn.Before == nil || dyn.After == nil {
		return fmt.Errorf("sim: no dynamics for condition %q", condition)
	}

	p := plot.New()
	p.Title.Text = conditionTitle(condition)
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Expression"

	before, err := meanLine(dyn.Before)
	if err != nil {
		return err
	}
	before.Color = color.RGBA{R: 0x42, G: 0x85, B: 0xf4, A: 255}
	before.Width = vg.Points(1.5)
	p.Add(before)
	p.Legend.Add("control", before)

	after, err := meanLine(dyn.After)
	if err != nil {
		return err
	}
	after.Color = color.RGBA{R: 0xea, G: 0x43, B: 0x35, A: 255}
	after.Width = vg.Points(1.5)
	p.Add(after)
	p.Legend.Add("perturbation", after)

	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("sim: saving dynamics plot: %w", err)
	}
	return nil
}

func meanLine(tr *Trajectory) (*plotter.Line, error) {
	mean := tr.Mean()
	pts := make(plotter.XYs, len(tr.Times))
	for i, t := range tr.Times {
		pts[i] = plotter.XY{X: t, Y: mean[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("sim: building trajectory line: %w", err)
	}
	return line, nil
}

func conditionTitle(condition string) string {
	if name, ok := ConditionNames[condition]; ok {
		return name
	}
	return condition
}
