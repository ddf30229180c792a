// 标定结果与跟车片段的图表、导出文件
package report

import (
	"fmt"
	"image/color"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var log = logrus.WithField("module", "report")

// finiteXYs 丢弃NaN与±Inf点（plotter拒绝非有限数据）
func finiteXYs(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(xs))
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsInf(xs[i], 0) || math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	return pts
}

// ScoreHistoryPNG 绘制逐代种群得分曲线
// 参数：title-图标题，history-每代的种群得分，file-输出文件（扩展名决定格式）
// 说明：得分为NaN或+Inf的代不画出；没有有限得分时不输出文件并返回错误
func ScoreHistoryPNG(title string, history []float64, file string) error {
	gens := make([]float64, len(history))
	for i := range gens {
		gens[i] = float64(i + 1)
	}
	pts := finiteXYs(gens, history)
	if len(pts) == 0 {
		return fmt.Errorf("report: no finite population score to plot for %s", title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Population score (spacing RMSE, m)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{B: 200, A: 255}
	line.Width = vg.Points(1)
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.Color = line.Color
	p.Add(line, scatter)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, file); err != nil {
		return fmt.Errorf("report: save %s: %w", file, err)
	}
	log.Debugf("saved score history to %s", file)
	return nil
}
