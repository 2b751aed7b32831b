package sweep

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/expression.report/internal/sim"
)

// WriteReport renders an HTML report of aggregated sweep results: one
// scatter chart per condition with a series per metric, plus a bar chart of
// per-condition completion counts. Missing cells leave gaps in the series.
func WriteReport(w io.Writer, family string, table *Table, completed []bool) error {
	page := components.NewPage()
	page.PageTitle = "Sweep results: " + family

	page.AddCharts(completionChart(table, completed))
	for _, condition := range table.Conditions() {
		page.AddCharts(conditionChart(family, condition, table))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("sweep: rendering report: %w", err)
	}
	return nil
}

// WriteReportFile renders the HTML report to a file at path.
func WriteReportFile(path, family string, table *Table, completed []bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sweep: creating report file: %w", err)
	}
	defer f.Close()
	return WriteReport(f, family, table, completed)
}

// conditionChart plots the scalar value of each metric against sample index
// for a single comparison condition.
func conditionChart(family, condition string, table *Table) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    conditionLabel(condition),
			Subtitle: fmt.Sprintf("family=%s samples=%d", family, table.Len()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "sample", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "value", NameLocation: "middle", NameGap: 40}),
	)

	for _, metric := range sim.MetricNames {
		key := Key{Condition: condition, Metric: metric}
		data := make([]opts.ScatterData, 0, table.Len())
		for _, idx := range table.Rows {
			value, ok := table.Value(idx, key)
			if !ok || value.Missing || len(value.Values) == 0 {
				continue
			}
			data = append(data, opts.ScatterData{
				Value: []interface{}{idx, value.Values[len(value.Values)-1]},
			})
		}
		scatter.AddSeries(metric, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	}
	return scatter
}

// completionChart summarises how many samples contributed results per
// condition, next to the overall completion count.
func completionChart(table *Table, completed []bool) *charts.Bar {
	numCompleted := 0
	for _, ok := range completed {
		if ok {
			numCompleted++
		}
	}

	x := []string{"completed"}
	y := []opts.BarData{{Value: numCompleted}}
	for _, condition := range table.Conditions() {
		reached := 0
		for _, idx := range table.Rows {
			key := Key{Condition: condition, Metric: sim.MetricAbove}
			if value, ok := table.Value(idx, key); ok && !value.Missing {
				reached++
			}
		}
		x = append(x, conditionLabel(condition))
		y = append(y, opts.BarData{Value: reached})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Completion",
			Subtitle: fmt.Sprintf("%d/%d samples completed", numCompleted, len(completed)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("samples", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func conditionLabel(condition string) string {
	if name, ok := sim.ConditionNames[condition]; ok {
		return name
	}
	return condition
}
