package episode

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Collection 按时间排列的一组数据点
type Collection []DataPoint

// TimeElapsed 覆盖的驾驶时间（秒），按10Hz计
func (c Collection) TimeElapsed() float64 {
	return float64(len(c)) / 10
}

// Targets 出现过的全部目标编号（按首次出现顺序）
func (c Collection) Targets() []int {
	return lo.Uniq(lo.FlatMap(c, func(p DataPoint, _ int) []int { return p.CurrentTargets() }))
}

// LeadTargets 出现过的前车目标编号（按首次出现顺序）
func (c Collection) LeadTargets() []int {
	return lo.Uniq(lo.FilterMap(c, func(p DataPoint, _ int) (int, bool) { return p.LeadTargetID() }))
}

// DistanceTraveled 行驶距离（千米），假设数据点连续
func (c Collection) DistanceTraveled() float64 {
	dist := 0.0
	for _, p := range c {
		if !math.IsNaN(p.Speed) {
			dist += p.Speed / 36000
		}
	}
	return randengine.Round(dist, 3)
}

func nonNaN(xs []float64) []float64 {
	return lo.Filter(xs, func(x float64, _ int) bool { return !math.IsNaN(x) })
}

// MeanSpeed 平均车速（千米/时），忽略NaN
func (c Collection) MeanSpeed() float64 {
	v := nonNaN(lo.Map(c, func(p DataPoint, _ int) float64 { return p.Speed }))
	if len(v) == 0 {
		return math.NaN()
	}
	return randengine.Round(stat.Mean(v, nil), 3)
}

// MaxDeceleration 最大减速度（纵向加速度的最小值），忽略NaN
func (c Collection) MaxDeceleration() float64 {
	v := nonNaN(lo.Map(c, func(p DataPoint, _ int) float64 { return p.AccelX }))
	if len(v) == 0 {
		return math.NaN()
	}
	return randengine.Round(floats.Min(v), 3)
}

// PercentCarFollowing 处于跟车状态的数据点比例
func (c Collection) PercentCarFollowing() float64 {
	if len(c) == 0 {
		return 0
	}
	n := lo.CountBy(c, func(p DataPoint) bool { return p.IsCarFollowing() })
	return randengine.Round(float64(n)/float64(len(c)), 3)
}

// MinLeadDistance 与前车的最小距离
func (c Collection) MinLeadDistance() float64 {
	v := nonNaN(lo.Map(c, func(p DataPoint, _ int) float64 { return p.LeadDistance() }))
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Min(v)
}

// ToTrajectory 转换为跟车轨迹
// 功能：把连续的m个数据点转换为m-1个采样点
// 算法说明：
// 1. 跟驰车速度取第i个点的车速，千米/时换算为米/秒
// 2. 相对速度与车距取第i+1个点的前车数据
// 3. 前车速度 = 跟驰车速度 - 相对速度，没有前车时为+Inf
// 4. 时间为相对第一个点的累计时间（秒）
func (c Collection) ToTrajectory() (*trajectory.Trajectory, error) {
	n := len(c) - 1
	if n <= 0 {
		return nil, trajectory.ErrEmpty
	}
	cols := trajectory.Columns{
		Time:    make([]float64, n),
		Stamp:   make([]float64, n),
		VFollow: make([]float64, n),
		VLead:   make([]float64, n),
		Spacing: make([]float64, n),
		DV:      make([]float64, n),
		AFollow: make([]float64, n),
		ALead:   make([]float64, n),
	}
	t := 0.0
	for i := range n {
		cur, next := &c[i], &c[i+1]
		t += (next.Stamp - cur.Stamp) / 1000
		cols.Time[i] = t
		cols.Stamp[i] = cur.Stamp
		cols.VFollow[i] = cur.Speed * 1000 / 3600
		cols.DV[i] = next.LeadRelativeVelocity()
		cols.Spacing[i] = next.LeadDistance()
		if math.IsInf(cols.DV[i], 0) {
			cols.VLead[i] = math.Inf(1)
		} else {
			cols.VLead[i] = cols.VFollow[i] - cols.DV[i]
		}
		cols.AFollow[i] = cur.AccelX
		cols.ALead[i] = cur.LeadAcceleration()
	}
	return trajectory.New(cols)
}
