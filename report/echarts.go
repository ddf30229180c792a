package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
)

func scatterData(xs, ys []float64) []opts.ScatterData {
	data := make([]opts.ScatterData, 0, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) || math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			continue
		}
		data = append(data, opts.ScatterData{Value: []interface{}{xs[i], ys[i]}})
	}
	return data
}

func newScatter(title, subtitle, xName, yName string) *charts.Scatter {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: xName, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: yName, NameLocation: "middle", NameGap: 30}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)
	return scatter
}

// EpisodeHTML 把跟车片段画成HTML页面
// 功能：时间-车距与相对速度-车距两张散点图
// 参数：w-输出，name-片段名称，traj-轨迹
// 说明：非有限值的采样点（无前车等）不画出
func EpisodeHTML(w io.Writer, name string, traj *trajectory.Trajectory) error {
	s := traj.Summary()
	subtitle := fmt.Sprintf("samples=%d duration=%.1fs mean speed=%.2fm/s", s.Samples, s.Duration, s.MeanSpeed)
	t, dx, dv := traj.Time(), traj.Spacing(), traj.DV()

	tX := newScatter(name+": time vs. spacing", subtitle, "Time [s]", "Spacing [m]")
	tX.AddSeries("spacing", scatterData(t, dx), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	dvX := newScatter(name+": relative velocity vs. spacing", subtitle, "Relative velocity [m/s]", "Spacing [m]")
	dvX.AddSeries("spacing", scatterData(dv, dx), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	tDV := newScatter(name+": time vs. relative velocity", subtitle, "Time [s]", "Relative velocity [m/s]")
	tDV.AddSeries("dv", scatterData(t, dv), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	page := components.NewPage()
	page.SetPageTitle(name)
	page.AddCharts(tX, dvX, tDV)
	return page.Render(w)
}
