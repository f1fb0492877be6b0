// Package report builds the HTML chart report and the tabular exports from
// joined atlas records.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rotisserie/eris"

	"github.com/sells-group/foodatlas-cli/internal/atlas"
)

// RenderHTML writes the chart report page to w.
func RenderHTML(w io.Writer, summary atlas.Summary, counties []atlas.CountyStats) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s Food Access Atlas", summary.StateName)
	page.SetLayout(components.PageFlexLayout)

	page.AddCharts(
		coverageGauge(summary),
		joinBar(summary),
		populationBar(counties),
		ratioBar(counties),
	)

	if err := page.Render(w); err != nil {
		return eris.Wrap(err, "report: render charts")
	}
	return nil
}

// WriteHTML renders the report page to path.
func WriteHTML(path string, summary atlas.Summary, counties []atlas.CountyStats) error {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, summary, counties); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

func coverageGauge(summary atlas.Summary) *charts.Gauge {
	g := charts.NewGauge()
	g.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "500px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Access Record Coverage",
			Subtitle: fmt.Sprintf("%d of %d tracts matched", summary.Join.Matched, summary.Join.Tracts),
		}),
	)
	g.AddSeries("coverage", []opts.GaugeData{
		{Name: "matched %", Value: float64(int(summary.CoveragePct*10)) / 10},
	})
	return g
}

func joinBar(summary atlas.Summary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "500px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Join Breakdown"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis([]string{"matched", "unmatched", "duplicates", "orphans"}).
		AddSeries("tracts", []opts.BarData{
			{Value: summary.Join.Matched},
			{Value: summary.Join.Unmatched},
			{Value: summary.Join.Duplicates},
			{Value: summary.Join.Orphans},
		})
	return bar
}

func populationBar(counties []atlas.CountyStats) *charts.Bar {
	names := make([]string, len(counties))
	data := make([]opts.BarData, len(counties))
	for i, c := range counties {
		names[i] = c.County
		data[i] = opts.BarData{Value: c.Population}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{Title: "County Populations"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Rotate: 45}}),
	)
	bar.SetXAxis(names).AddSeries("population", data)
	return bar
}

func ratioBar(counties []atlas.CountyStats) *charts.Bar {
	names := make([]string, len(counties))
	half := make([]opts.BarData, len(counties))
	lowIHalf := make([]opts.BarData, len(counties))
	ten := make([]opts.BarData, len(counties))
	lowI10 := make([]opts.BarData, len(counties))
	for i, c := range counties {
		names[i] = c.County
		half[i] = opts.BarData{Value: c.RatioHalf}
		lowIHalf[i] = opts.BarData{Value: c.RatioLowIHalf}
		ten[i] = opts.BarData{Value: c.Ratio10}
		lowI10[i] = opts.BarData{Value: c.RatioLowI10}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "450px"}),
		charts.WithTitleOpts(opts.Title{Title: "Low Access Population Share by County"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Rotate: 45}}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1}),
	)
	bar.SetXAxis(names).
		AddSeries("low access: half", half).
		AddSeries("low access + low income: half", lowIHalf).
		AddSeries("low access: 10", ten).
		AddSeries("low access + low income: 10", lowI10)
	return bar
}
