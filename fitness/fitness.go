// 适应度计算：在整条轨迹上模拟Gipps模型并计算车距RMSE
package fitness

import (
	"math"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"gonum.org/v1/gonum/stat"
)

var log = logrus.WithField("module", "fitness")

// Diagnostics 单个个体的评价结果
// 说明：只有SpacingRMSE参与优化，其余字段用于日志
type Diagnostics struct {
	Params         gipps.Params `json:"params"`
	VelocityRMSE   float64      `json:"velocity_rmse"`   // 米/秒
	VelocityRMSpE  float64      `json:"velocity_rmspe"`  // %
	SpacingRMSE    float64      `json:"spacing_rmse"`    // 米
	SpacingRMSpE   float64      `json:"spacing_rmspe"`   // %
	VelocityPairs  int          `json:"velocity_pairs"`  // 有效速度对个数
	SpacingPairs   int          `json:"spacing_pairs"`   // 有效车距对个数
	PredictionStep int          `json:"prediction_step"` // 预测步数
}

// Score 个体得分（车距RMSE）
func (d Diagnostics) Score() float64 {
	return d.SpacingRMSE
}

// pairs 预测值与实际值
type pairs struct {
	pred, act []float64
}

func (p *pairs) add(pred, act float64) {
	p.pred = append(p.pred, pred)
	p.act = append(p.act, act)
}

// errors 计算RMSE与RMSpE
// 算法说明：
// 1. 差的平方为NaN的点对同时从分子与分母中剔除
// 2. 没有有效点对时RMSE为NaN
// 3. RMSpE = RMSE / 有效点对实际值的均值 * 100
func (p *pairs) errors() (rmse, rmspe float64, valid int) {
	var sum, actSum float64
	for i := range p.pred {
		d := p.pred[i] - p.act[i]
		sq := d * d
		if math.IsNaN(sq) {
			continue
		}
		sum += sq
		actSum += p.act[i]
		valid++
	}
	if valid == 0 {
		return math.NaN(), math.NaN(), 0
	}
	rmse = math.Sqrt(sum / float64(valid))
	rmspe = rmse / (actSum / float64(valid)) * 100
	return
}

// RMSE 均方根误差，忽略NaN点对
func RMSE(pred, act []float64) float64 {
	p := pairs{pred: pred, act: act}
	rmse, _, _ := p.errors()
	return rmse
}

// Evaluate 在轨迹上评价一组参数
// 功能：逐点预测反应时间后的跟驰车速度与车距，与实际值比较
// 参数：p-模型参数，traj-轨迹
// 返回：速度与车距的RMSE/RMSpE
// 算法说明：
// 1. steps = int(t_rxn/0.1)
// 2. 对i∈[0, n-steps)：用第i个点的状态预测第i+steps个点的跟驰车速度
// 3. 前车与跟驰车位移按t_rxn内的匀加速运动估计，预测车距 = round3(dX_i - 跟驰车位移 + 前车位移)
// 4. steps>=n时没有可比较的点，得分为NaN
func Evaluate(p gipps.Params, traj *trajectory.Trajectory) Diagnostics {
	steps := gipps.Steps(p.TRxn)
	n := traj.Len()
	var v, dx pairs
	for i := 0; i < n-steps; i++ {
		now, next := traj.At(i), traj.At(i+steps)
		vPred := gipps.PredictNextVelocity(p, now.VFollow, now.VLead, now.Spacing)
		v.add(vPred, next.VFollow)
		dx.add(gipps.NextSpacing(now.Spacing, now.VFollow, vPred, now.VLead, next.VLead, p.TRxn), next.Spacing)
	}
	d := Diagnostics{Params: p, PredictionStep: steps}
	d.VelocityRMSE, d.VelocityRMSpE, d.VelocityPairs = v.errors()
	d.SpacingRMSE, d.SpacingRMSpE, d.SpacingPairs = dx.errors()
	return d
}

// ScoreIndividual 个体得分：车距RMSE（米），越小越好，NaN表示无法评价
func ScoreIndividual(p gipps.Params, traj *trajectory.Trajectory) float64 {
	return Evaluate(p, traj).SpacingRMSE
}

// ScoreAll 并行计算每个个体的得分
// 说明：轨迹只读，各个体的计算互不依赖
func ScoreAll(pop []gipps.Params, traj *trajectory.Trajectory) []float64 {
	return parallel.GoMap(pop, func(p gipps.Params) float64 {
		return ScoreIndividual(p, traj)
	})
}

// EvaluateAll 并行评价每个个体，返回完整诊断信息
func EvaluateAll(pop []gipps.Params, traj *trajectory.Trajectory) []Diagnostics {
	return parallel.GoMap(pop, func(p gipps.Params) Diagnostics {
		return Evaluate(p, traj)
	})
}

// ScorePopulation 种群得分：个体得分的算术平均
// 说明：任一个体得分为NaN时种群得分为NaN（不做屏蔽，以暴露数据问题）
func ScorePopulation(pop []gipps.Params, traj *trajectory.Trajectory) float64 {
	return Mean(ScoreAll(pop, traj))
}

// Mean 算术平均，NaN传播；空切片返回NaN
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		log.Warn("mean of empty score list")
		return math.NaN()
	}
	return stat.Mean(scores, nil)
}

// CountNaN 统计NaN得分个数
func CountNaN(scores []float64) int {
	count := 0
	for _, s := range scores {
		if math.IsNaN(s) {
			count++
		}
	}
	return count
}
