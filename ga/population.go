package ga

import (
	"slices"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

// Population 种群，有序的个体列表
type Population []gipps.Params

// NewPopulation 随机生成n个个体
func NewPopulation(n int, e *randengine.Engine) Population {
	return lo.Times(n, func(int) gipps.Params { return gipps.Random(e) })
}

// Clone 种群快照
func (p Population) Clone() Population {
	return slices.Clone(p)
}

// Unique 去重后的个体（保持首次出现的顺序）
func (p Population) Unique() Population {
	return lo.Uniq(p)
}

// InDomain 所有个体的所有参数都在取值区间内
func (p Population) InDomain() bool {
	return lo.EveryBy(p, gipps.Params.InDomain)
}

// Best 种群中得分最低的个体
// 返回：个体及其得分，空种群返回ok=false
func (p Population) Best(traj *trajectory.Trajectory) (best gipps.Params, score float64, ok bool) {
	if len(p) == 0 {
		return
	}
	ranked := Rank(p, traj)
	return ranked[0].Params, ranked[0].Score, true
}

// Values 按位置编码导出全部个体
func (p Population) Values() [][]float64 {
	return lo.Map(p, func(x gipps.Params, _ int) []float64 { return x.Values() })
}
