package ga

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gipps-calibration/fitness"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/container"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

// Scored 带得分的个体
type Scored struct {
	Params      gipps.Params
	Score       float64
	Diagnostics fitness.Diagnostics // 完整评价结果，用于逐代日志
}

// Ranked 按得分从小到大排列的个体
type Ranked []Scored

// Population 去掉得分，保留顺序
func (r Ranked) Population() Population {
	return lo.Map(r, func(s Scored, _ int) gipps.Params { return s.Params })
}

// Scores 各个体的得分
func (r Ranked) Scores() []float64 {
	return lo.Map(r, func(s Scored, _ int) float64 { return s.Score })
}

// Diagnostics 各个体的完整评价结果
func (r Ranked) Diagnostics() []fitness.Diagnostics {
	return lo.Map(r, func(s Scored, _ int) fitness.Diagnostics { return s.Diagnostics })
}

// Rank 评价并按得分从小到大排序
// 说明：得分相同的个体保持原顺序；NaN排在最后，只影响排序，不改变得分
func Rank(pop Population, traj *trajectory.Trajectory) Ranked {
	diagnostics := fitness.EvaluateAll(pop, traj)
	q := container.NewPriorityQueue[fitness.Diagnostics]()
	for _, d := range diagnostics {
		q.Push(d, d.Score())
	}
	q.Heapify()
	values, priorities := q.PopN(q.Len())
	return lo.Map(values, func(d fitness.Diagnostics, i int) Scored {
		return Scored{Params: d.Params, Score: priorities[i], Diagnostics: d}
	})
}

// SelectParents 父代选择
// 功能：精英保留加随机选择，得到交叉用的父代
// 参数：pop-（变异后的）种群，traj-轨迹，e-随机数引擎，retain-精英比例，randomSelect-非精英个体入选概率
// 返回：parents-父代，ranked-排序后的全部个体与得分
// 算法说明：
// 1. 评价并排序
// 2. 前int(n*retain)个个体无条件入选
// 3. 其余个体各自以概率randomSelect入选，用于保持多样性
func SelectParents(
	pop Population, traj *trajectory.Trajectory, e *randengine.Engine, retain, randomSelect float64,
) (parents Population, ranked Ranked) {
	ranked = Rank(pop, traj)
	keep := elites(len(pop), retain)
	parents = make(Population, 0, len(pop))
	for i, s := range ranked {
		if i < keep || e.PTrue(randomSelect) {
			parents = append(parents, s.Params)
		}
	}
	return parents, ranked
}

// SelectSurvivors 幸存者选择
// 功能：父代与子代合并后按得分保留前n个
// 返回：排序后的幸存者及其评价结果
// 说明：精英没有保底，完全按得分竞争
func SelectSurvivors(parents, children Population, traj *trajectory.Trajectory, n int) Ranked {
	pool := make(Population, 0, len(parents)+len(children))
	pool = append(pool, parents...)
	pool = append(pool, children...)
	ranked := Rank(pool, traj)
	return ranked[:min(n, len(ranked))]
}
