package ga

import (
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

// Evolver 一代进化
type Evolver struct {
	cfg  Config
	traj *trajectory.Trajectory
	rand *randengine.Engine
}

// NewEvolver 创建进化器
// 参数：cfg-遗传算法参数，traj-只读轨迹，e-本次运行唯一的随机数引擎
func NewEvolver(cfg Config, traj *trajectory.Trajectory, e *randengine.Engine) *Evolver {
	return &Evolver{cfg: cfg, traj: traj, rand: e}
}

// Evolve 进化一代
// 功能：变异 -> 父代选择 -> 交叉 -> 幸存者选择，返回与输入等大的新种群
// 返回：按得分排序的新种群，附带幸存者选择时的评价结果，调用方无需重新评价
// 说明：每一步都返回新值，输入种群不会被修改
func (ev *Evolver) Evolve(pop Population) (Ranked, error) {
	mutated := Mutate(pop, ev.rand, ev.cfg.MutateFraction)
	parents, _ := SelectParents(mutated, ev.traj, ev.rand, ev.cfg.RetainFraction, ev.cfg.RandomSelectFraction)
	children, err := Crossover(parents, len(pop), ev.rand)
	if err != nil {
		return nil, err
	}
	return SelectSurvivors(parents, children, ev.traj, len(pop)), nil
}
