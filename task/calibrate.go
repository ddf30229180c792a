package task

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/ga"
	"github.com/tsinghua-fib-lab/gipps-calibration/report"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 10, "心跳日志间隔代数")
)

// heartbeat 在逐代记录之外，每隔若干代向任务日志输出一次进度
type heartbeat struct {
	entity.IGenerationRecorder
	name     string
	interval int
}

func (h *heartbeat) RecordGeneration(rec *entity.GenerationRecord) {
	h.IGenerationRecorder.RecordGeneration(rec)
	if h.interval > 0 && rec.Generation%h.interval == 0 {
		log.Infof("%s GENERATION: %d score %.4f best %.4f degrade %d restart %d",
			h.name, rec.Generation, rec.Score, rec.BestScore, rec.Degrade, rec.Restart)
	}
}

// testName 运行名，同时作为日志与图片文件名
func testName(test config.Test) string {
	return fmt.Sprintf("test_%03d_run_%02d", test.Number, test.Run)
}

// Run 依次运行测试网格中的全部测试
// 功能：每次运行使用独立的随机数引擎（seed+测试编号），写入运行日志、保存汇总
// 返回：ctx被取消时返回已完成（含被中断）的运行汇总与ctx.Err()；单次运行失败记录后继续
// 说明：运行按顺序执行，每次运行内部的个体评价是并行的
func (ctx *Context) Run(c context.Context) ([]*entity.RunSummary, error) {
	if ctx.traj == nil {
		return nil, errors.New("task: Init must be called before Run")
	}
	var summaries []*entity.RunSummary
	var errs []error
	for _, test := range ctx.runtimeConfig.Tests {
		if err := c.Err(); err != nil {
			return summaries, err
		}
		summary, err := ctx.runTest(c, test)
		if cerr := c.Err(); cerr != nil && summary != nil {
			// 被外部取消的运行已保存截至当时的结果
			return append(summaries, summary), cerr
		}
		if err != nil {
			log.Errorf("%s failed: %v", testName(test), err)
			errs = append(errs, fmt.Errorf("%s: %w", testName(test), err))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, errors.Join(errs...)
}

// runTest 运行一次标定
// 算法说明：
// 1. 打开运行日志文件，遗传算法逐代写入
// 2. 按配置的超时时间运行遗传算法
// 3. 计算最优种群中的唯一个体与最优个体
// 4. 保存运行汇总，按需输出种群得分曲线
// 说明：超时或被取消时仍保存截至当时的最优结果（Canceled为true）；外部ctx取消时同时返回ctx错误
func (ctx *Context) runTest(c context.Context, test config.Test) (*entity.RunSummary, error) {
	name := testName(test)
	out := ctx.runtimeConfig.All
	logFile, err := os.Create(ctx.outputPath(name + ".log"))
	if err != nil {
		return nil, err
	}
	defer logFile.Close()

	parent := c
	cfg := ga.Config(test.GA)
	log.Infof("%s start: %v seed=%d", name, cfg, test.Seed)
	recorder := &heartbeat{
		IGenerationRecorder: ga.NewLogRecorder(logFile, name),
		name:                name,
		interval:            *heartBeatInterval,
	}
	if out.GA.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		c, cancel = context.WithTimeout(c, time.Duration(out.GA.TimeoutMinutes*float64(time.Minute)))
		defer cancel()
	}
	res, err := ga.NewController(cfg, trajectorySource{ctx}, recorder, randengine.New(test.Seed)).Run(c)
	if err != nil && !ga.Interrupted(res, err) {
		return nil, err
	}
	if err != nil {
		log.Warnf("%s interrupted at generation %d: %v", name, res.Generations, err)
	}

	summary := &entity.RunSummary{
		Test:                test.Number,
		Run:                 test.Run,
		Source:              ctx.source.String(),
		GAConfig:            test.GA,
		Seed:                test.Seed,
		ElapsedMinutes:      res.ElapsedMinutes,
		ElapsedSeconds:      res.Elapsed.Seconds(),
		Generations:         res.Generations,
		Restarts:            res.Restarts,
		BestPopulationScore: res.BestScore,
		BestPopulation:      res.BestPopulation,
		ScoreHistory:        res.History,
		Canceled:            res.Canceled,
	}
	unique := res.BestPopulation.Unique()
	summary.UniqueIndividuals = len(unique)
	summary.BestIndividualScore = res.BestScore
	if best, score, ok := unique.Best(ctx.traj); ok {
		summary.BestIndividual, summary.BestIndividualScore = best, score
	}
	logReport(name, summary, unique)

	// 超时后c已取消，汇总仍需保存
	if err := ctx.store.SaveRun(context.WithoutCancel(c), summary); err != nil {
		return summary, fmt.Errorf("save run: %w", err)
	}
	if out.Output.Plot {
		if err := report.ScoreHistoryPNG(name, res.History, ctx.outputPath(name+".png")); err != nil {
			log.Warnf("%s: %v", name, err)
		}
	}
	// 单次运行超时只结束本次运行；外部取消需要结束整个任务
	return summary, parent.Err()
}

// logReport 输出一次运行的结论：唯一个体与最优个体
func logReport(name string, s *entity.RunSummary, unique ga.Population) {
	log.Infof("%s finished: %d generations, %d restarts, %d min", name, s.Generations, s.Restarts, s.ElapsedMinutes)
	log.Infof("%s best population score: %.4f", name, s.BestPopulationScore)
	log.Infof("%s unique individuals: %d", name, len(unique))
	for i, p := range unique {
		log.Debugf("%s unique %d: %v", name, i+1, p)
	}
	log.Infof("%s best individual: %v score %.4f", name, s.BestIndividual, s.BestIndividualScore)
	if s.Canceled {
		log.Warnf("%s stopped before convergence", name)
	}
}

// trajectorySource 复用已加载的轨迹
type trajectorySource struct {
	ctx *Context
}

func (s trajectorySource) Trajectory(c context.Context) (*trajectory.Trajectory, error) {
	if err := c.Err(); err != nil {
		return nil, err
	}
	return s.ctx.traj, nil
}

func (s trajectorySource) String() string {
	return s.ctx.source.String()
}

// BestRun 多次运行中种群得分最低的一次
func BestRun(summaries []*entity.RunSummary) (*entity.RunSummary, bool) {
	finite := lo.Filter(summaries, func(s *entity.RunSummary, _ int) bool {
		return !math.IsNaN(s.BestPopulationScore)
	})
	if len(finite) == 0 {
		return nil, false
	}
	return lo.MinBy(finite, func(a, b *entity.RunSummary) bool {
		return a.BestPopulationScore < b.BestPopulationScore
	}), true
}
