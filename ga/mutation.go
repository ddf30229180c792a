package ga

import (
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

// Mutate 变异
// 功能：返回变异后的种群副本，原种群不变
// 参数：pop-种群，e-随机数引擎，rate-单次尝试的变异概率
// 算法说明：
// 1. 每个个体随机决定尝试次数k∈[1, 6]
// 2. 每次尝试随机选一个参数，以概率rate在其取值区间内重新采样
// 3. 同一个参数可能被多次选中
func Mutate(pop Population, e *randengine.Engine, rate float64) Population {
	out := pop.Clone()
	for i := range out {
		k := e.IntRange(1, gipps.NumKinds)
		for range k {
			kind := gipps.Kind(e.Intn(gipps.NumKinds))
			if e.PTrue(rate) {
				out[i] = out[i].With(kind, kind.Sample(e))
			}
		}
	}
	return out
}
