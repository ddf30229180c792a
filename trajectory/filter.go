package trajectory

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// 雷达相对速度测量方差（NDS雷达文档给出的估计值）
const (
	DefaultProcessVariance     = 0.0001
	DefaultMeasurementVariance = 0.01
)

// relink 用平滑后的相对速度重新计算前车速度
// 说明：平滑值为NaN或±Inf时保留原前车速度
func relink(c *Columns) {
	for i, dv := range c.DV {
		if math.IsNaN(dv) || math.IsInf(dv, 0) {
			continue
		}
		c.VLead[i] = c.VFollow[i] - dv
	}
}

// MovingAverage 相对速度滑动平均
// 功能：以resolution个采样点为窗口平滑相对速度，抑制雷达噪声
// 参数：resolution-窗口大小（采样点数），不小于2
// 返回：平滑后的新轨迹
// 算法说明：
// 1. h=resolution/2，第i个点的平滑值为X[i-h+1..i+h]中非NaN值的均值
// 2. 前h个点没有完整窗口，平滑值为NaN
// 3. 窗口内全为NaN时沿用上一个点的平滑值
// 4. 结尾h个点没有完整窗口，直接丢弃
// 5. 前车速度按平滑后的相对速度重新计算
func (t *Trajectory) MovingAverage(resolution int) (*Trajectory, error) {
	if resolution < 2 {
		return nil, fmt.Errorf("trajectory: moving average resolution must be >= 2, got %d", resolution)
	}
	h := resolution / 2
	n := t.Len()
	if n-h <= 0 {
		return nil, fmt.Errorf("%w: %d samples cannot be smoothed with resolution %d", ErrEmpty, n, resolution)
	}
	x := t.cols.DV
	y := nanColumn(n - h)
	for i := h; i < n-h; i++ {
		sum, count := 0.0, 0
		for j := i - h + 1; j <= i+h; j++ {
			if math.IsNaN(x[j]) {
				continue
			}
			sum += x[j]
			count++
		}
		if count == 0 {
			y[i] = y[i-1]
		} else {
			y[i] = sum / float64(count)
		}
	}
	c := t.slice(0, n-h)
	c.DV = y
	relink(&c)
	return &Trajectory{cols: c}, nil
}

// KalmanFilter 相对速度一维卡尔曼滤波
// 功能：对雷达相对速度做预测-校正，得到更平滑的估计
// 参数：processVariance-过程噪声方差，measurementVariance-测量噪声方差
// 返回：滤波后的新轨迹，长度比原轨迹少1（第一个点作为初始测量被丢弃）
// 算法说明：
// 1. 初始估计为0，初始误差为1
// 2. 对第k+1个测量：先验误差=后验误差+过程方差，增益=先验误差/(先验误差+测量方差)
// 3. 后验估计=先验估计+增益*(测量-先验估计)，后验误差=(1-增益)*先验误差
func (t *Trajectory) KalmanFilter(processVariance, measurementVariance float64) (*Trajectory, error) {
	n := t.Len()
	if n < 2 {
		return nil, fmt.Errorf("%w: kalman filter needs at least 2 samples", ErrEmpty)
	}
	if processVariance < 0 || measurementVariance <= 0 {
		return nil, fmt.Errorf("trajectory: invalid kalman variances %v, %v", processVariance, measurementVariance)
	}
	dv := t.cols.DV
	estimate, errEstimate := 0.0, 1.0
	y := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		priori, prioriErr := estimate, errEstimate+processVariance
		gain := prioriErr / (prioriErr + measurementVariance)
		estimate = priori + gain*(dv[i]-priori)
		errEstimate = (1 - gain) * prioriErr
		y = append(y, estimate)
	}
	c := t.slice(1, n)
	c.DV = y
	relink(&c)
	return &Trajectory{cols: c}, nil
}

// Summary 轨迹统计信息
type Summary struct {
	Samples    int     `json:"samples" bson:"samples"`
	Duration   float64 `json:"duration" bson:"duration"`       // 秒
	MeanSpeed  float64 `json:"mean_speed" bson:"mean_speed"`   // 米/秒
	MinSpacing float64 `json:"min_spacing" bson:"min_spacing"` // 米
	MaxSpacing float64 `json:"max_spacing" bson:"max_spacing"` // 米
	MeanDV     float64 `json:"mean_dv" bson:"mean_dv"`         // 米/秒
	StdDV      float64 `json:"std_dv" bson:"std_dv"`           // 米/秒
	LeadRatio  float64 `json:"lead_ratio" bson:"lead_ratio"`   // 有前车的采样点比例
}

func finite(xs []float64) []float64 {
	return lo.Filter(xs, func(x float64, _ int) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) })
}

// Summary 计算轨迹统计信息
// 说明：NaN与±Inf不参与统计；没有有效值的统计量为NaN
func (t *Trajectory) Summary() Summary {
	c := &t.cols
	s := Summary{
		Samples:    t.Len(),
		Duration:   c.Time[len(c.Time)-1] - c.Time[0],
		MeanSpeed:  math.NaN(),
		MinSpacing: math.NaN(),
		MaxSpacing: math.NaN(),
		MeanDV:     math.NaN(),
		StdDV:      math.NaN(),
	}
	if v := finite(c.VFollow); len(v) > 0 {
		s.MeanSpeed = stat.Mean(v, nil)
	}
	if v := finite(c.Spacing); len(v) > 0 {
		s.MinSpacing = floats.Min(v)
		s.MaxSpacing = floats.Max(v)
	}
	if v := finite(c.DV); len(v) > 0 {
		s.MeanDV, s.StdDV = stat.MeanStdDev(v, nil)
	}
	s.LeadRatio = float64(lo.CountBy(c.VLead, hasLead)) / float64(t.Len())
	return s
}
