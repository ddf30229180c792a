package gipps

import (
	"fmt"
	"math"

	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

// Steps 反应时间对应的采样点数
// 说明：与原始数据处理保持一致，直接截断t/0.1（例如0.3/0.1截断为2）
func Steps(tRxn float64) int {
	return int(tRxn / trajectory.SampleInterval)
}

// Displacement 匀加速运动在t时间内的位移
// 说明：加速度由t时间内的速度变化估计
func Displacement(v, vNext, t float64) float64 {
	acc := (vNext - v) / t
	return v*t + 0.5*acc*t*t
}

// NextSpacing 预测t时间后的车距，保留三位小数
func NextSpacing(spacing, vFollow, vFollowNext, vLead, vLeadNext, t float64) float64 {
	return randengine.Round(spacing-Displacement(vFollow, vFollowNext, t)+Displacement(vLead, vLeadNext, t), 3)
}

// LeadProfile 前车速度曲线，返回第i个采样点的前车速度
type LeadProfile func(i int) float64

// ConstantLead 匀速前车
func ConstantLead(v float64) LeadProfile {
	return func(int) float64 { return v }
}

// State 跟驰车初始状态
type State struct {
	VFollow float64
	Spacing float64
}

// Simulate 用Gipps模型生成无噪声的跟车轨迹
// 功能：生成与适应度计算完全一致的合成数据，用于验证标定流程与演示
// 参数：p-模型参数，lead-前车速度曲线，init-初始状态，n-采样点个数
// 返回：轨迹
// 算法说明：
// 1. 前steps个采样点都使用初始状态
// 2. 第i个采样点（i>=steps）由第i-steps个采样点经过一次反应时间的预测得到
// 3. 车距按前车与跟驰车的匀加速位移更新
// 说明：每个余数类各自独立推进，因此用同一组参数评价该轨迹时误差为0
func Simulate(p Params, lead LeadProfile, init State, n int) (*trajectory.Trajectory, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	steps := Steps(p.TRxn)
	if steps < 1 {
		return nil, fmt.Errorf("gipps: t_rxn %v is shorter than one sample", p.TRxn)
	}
	if n <= 0 {
		return nil, trajectory.ErrEmpty
	}
	vf := make([]float64, n)
	vl := make([]float64, n)
	dx := make([]float64, n)
	for i := range n {
		vl[i] = lead(i)
		if i < steps {
			vf[i], dx[i] = init.VFollow, init.Spacing
			continue
		}
		j := i - steps
		vf[i] = PredictNextVelocity(p, vf[j], vl[j], dx[j])
		dx[i] = NextSpacing(dx[j], vf[j], vf[i], vl[j], vl[i], p.TRxn)
	}
	af := make([]float64, n)
	al := make([]float64, n)
	for i := 1; i < n; i++ {
		af[i] = (vf[i] - vf[i-1]) / trajectory.SampleInterval
		al[i] = (vl[i] - vl[i-1]) / trajectory.SampleInterval
	}
	af[0], al[0] = math.NaN(), math.NaN()
	return trajectory.New(trajectory.Columns{
		VFollow: vf,
		VLead:   vl,
		Spacing: dx,
		AFollow: af,
		ALead:   al,
	})
}
