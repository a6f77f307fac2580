package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/nabbelbabbel/serenity/internal/lmp2"
)

// WritePlot renders the convergence page into a standalone HTML file.
func WritePlot(path string, trace []lmp2.CycleStats, rep *Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}

	if err := RenderPlot(f, trace, rep); err != nil {
		f.Close()

		return err
	}

	return f.Close()
}

// RenderPlot writes the convergence page: residual and energy-change
// lines per cycle, and the largest pair contributions as bars.
func RenderPlot(w io.Writer, trace []lmp2.CycleStats, rep *Report) error {
	page := components.NewPage()
	page.AddCharts(convergenceChart(trace), pairEnergyChart(rep))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func convergenceChart(trace []lmp2.CycleStats) *charts.Line {
	if len(trace) == 0 {
		return emptyConvergenceChart()
	}

	labels := make([]string, len(trace))
	residuals := make([]opts.LineData, len(trace))
	deltas := make([]opts.LineData, len(trace))

	for i, row := range trace {
		labels[i] = strconv.Itoa(row.Cycle)
		residuals[i] = opts.LineData{Value: row.MaxResidual}
		deltas[i] = opts.LineData{Value: math.Abs(row.EnergyDelta)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Residual Convergence",
			Subtitle: "Maximum residual entry and energy change per cycle",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "5px"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cycle"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Magnitude", Type: "log"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("max residual", residuals)
	line.AddSeries("energy change", deltas)

	return line
}

func emptyConvergenceChart() *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Residual Convergence",
			Subtitle: "No data",
		}),
	)
	line.SetXAxis([]string{})

	return line
}

func pairEnergyChart(rep *Report) *charts.Bar {
	shown := rep.shownPairs()

	labels := make([]string, len(shown))
	data := make([]opts.BarData, len(shown))

	for i, row := range shown {
		labels[i] = fmt.Sprintf("(%d, %d)", row.I, row.J)
		data[i] = opts.BarData{Value: row.Energy}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Pair Contributions",
			Subtitle: "Largest pair correlation energies",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Pair"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Hartree"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("pair energy", data)

	return bar
}
