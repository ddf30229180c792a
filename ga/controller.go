package ga

import (
	"context"
	"fmt"
	"math"
	"time"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gipps-calibration/clock"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/fitness"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

var log = logrus.WithField("module", "ga")

// Result 一次运行的结果
type Result struct {
	BestPopulation Population    // 最优种群快照，所有代得分均为NaN时为nil
	BestScore      float64       // 最优种群得分
	Elapsed        time.Duration // 运行耗时
	ElapsedMinutes int           // 运行耗时（分钟，四舍五入）
	Generations    int           // 代数计数器（从1开始，每代结束加1）
	Restarts       int           // 重启次数
	History        []float64     // 每一代的种群得分
	Canceled       bool          // 因ctx取消而提前结束
}

// Controller 遗传算法控制器
// 功能：驱动逐代进化，维护最优种群，执行退化/重启策略并判断终止
// 说明：单线程运行；个体评价在fitness中并行
type Controller struct {
	cfg      Config
	source   entity.ITrajectorySource
	recorder entity.IGenerationRecorder
	rand     *randengine.Engine
	clock    *clock.Clock
}

// NewController 创建控制器
// 参数：cfg-遗传算法参数，source-轨迹数据源，recorder-逐代记录（可为nil），e-随机数引擎
func NewController(
	cfg Config,
	source entity.ITrajectorySource,
	recorder entity.IGenerationRecorder,
	e *randengine.Engine,
) *Controller {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Controller{cfg: cfg, source: source, recorder: recorder, rand: e}
}

// WithClock 使用指定的计时器（测试用）
func (c *Controller) WithClock(clk *clock.Clock) *Controller {
	c.clock = clk
	return c
}

// state 运行状态，只在Run内部使用
type state struct {
	pop        Population
	best       Population
	bestScore  float64
	generation int
	degrade    int
	restart    int
	history    []float64
}

// Run 运行遗传算法直到终止
// 功能：RUNNING -> TERMINATED状态机
// 返回：最优种群等运行结果；配置不合法返回ErrInvalidConfig；ctx取消时返回当前最优结果与ctx错误
// 算法说明：
// 1. 初始化：随机种群，generation=1，degrade=restart=0，最优得分=+Inf
// 2. 每一代：进化 -> 计算种群得分 -> 严格更优则保存快照并清零degrade，否则degrade+1 -> generation+1
// 3. degrade达到阈值：从最优种群重新开始，restart+1，degrade清零
// 4. restart达到阈值：终止
// 说明：没有代数上限，终止只取决于两个阈值
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	if c.source == nil {
		return nil, fmt.Errorf("%w: no trajectory source", ErrInvalidConfig)
	}
	traj, err := c.source.Trajectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load trajectory from %v: %w", ErrInvalidConfig, c.source, err)
	}
	if traj == nil || traj.Len() == 0 {
		return nil, fmt.Errorf("%w: empty trajectory", ErrInvalidConfig)
	}
	clk := c.clock
	if clk == nil {
		clk = clock.New()
	} else {
		clk.Init()
	}

	evolver := NewEvolver(c.cfg, traj, c.rand)
	s := &state{
		pop:        NewPopulation(c.cfg.PopSize, c.rand),
		bestScore:  mathutil.INF,
		generation: 1,
	}
	log.Debugf("start: %v, %d samples, seed %d", c.cfg, traj.Len(), c.rand.Seed())

	result := func(canceled bool) *Result {
		elapsed := clk.Stop()
		r := &Result{
			BestPopulation: s.best.Clone(),
			BestScore:      s.bestScore,
			Elapsed:        elapsed,
			ElapsedMinutes: clk.ElapsedMinutes(),
			Generations:    s.generation,
			Restarts:       s.restart,
			History:        s.history,
			Canceled:       canceled,
		}
		c.recorder.RecordFinish(&entity.FinishRecord{
			BestScore:   r.BestScore,
			Elapsed:     r.Elapsed,
			Generations: r.Generations,
			Restarts:    r.Restarts,
			Canceled:    canceled,
		})
		return r
	}

	for {
		if err := ctx.Err(); err != nil {
			log.Warnf("canceled at generation %d: %v", s.generation, err)
			return result(true), err
		}
		next, err := evolver.Evolve(s.pop)
		if err != nil {
			return result(false), fmt.Errorf("generation %d: %w", s.generation, err)
		}
		s.pop = next.Population()
		scores := next.Scores()
		score := fitness.Mean(scores)
		s.history = append(s.history, score)

		improved := score < s.bestScore
		if improved {
			s.bestScore = score
			s.best = s.pop.Clone()
			s.degrade = 0
		} else {
			s.degrade++
		}
		c.recorder.RecordGeneration(&entity.GenerationRecord{
			Generation:  s.generation,
			Score:       score,
			BestScore:   s.bestScore,
			Improved:    improved,
			Degrade:     s.degrade,
			Restart:     s.restart,
			NaNScores:   fitness.CountNaN(scores),
			Individuals: next.Diagnostics(),
		})
		s.generation++

		if s.degrade == c.cfg.DegradeThreshold {
			// 还没有任何一代得到有效得分时没有可恢复的快照
			if s.best != nil {
				s.pop = s.best.Clone()
			}
			s.restart++
			s.degrade = 0
		}
		if s.restart == c.cfg.RestartThreshold {
			break
		}
	}
	r := result(false)
	if math.IsInf(r.BestScore, 1) {
		log.Warnf("no generation produced a finite population score (%d generations)", r.Generations)
	}
	return r, nil
}
