package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gipps-calibration/clock"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/report"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
)

var log = logrus.WithField("module", "task")

// Context 标定任务上下文
// 功能：包含一次批量标定任务的所有变量和状态
// 说明：轨迹只加载一次，测试网格中的每次运行共享同一条只读轨迹
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 整个任务的计时器
	clock *clock.Clock

	// 运行时配置
	runtimeConfig *config.RuntimeConfig
	// 轨迹数据源
	source entity.ITrajectorySource
	// 运行汇总存储
	store entity.IRunStore

	// 加载后的轨迹
	traj *trajectory.Trajectory
}

// NewContext 创建标定任务上下文
// 参数：
//   - job: 任务名称，用于输出文件名
//   - rc: 运行时配置
//   - source: 轨迹数据源
//   - store: 运行汇总存储
//
// 返回：上下文，需要先调用Init加载轨迹
func NewContext(job string, rc *config.RuntimeConfig, source entity.ITrajectorySource, store entity.IRunStore) *Context {
	return &Context{
		job:           job,
		clock:         clock.New(),
		runtimeConfig: rc,
		source:        source,
		store:         store,
	}
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) Trajectory() *trajectory.Trajectory {
	return ctx.traj
}

// outputPath 输出目录下的文件路径
func (ctx *Context) outputPath(name string) string {
	return filepath.Join(ctx.runtimeConfig.All.Output.Dir, name)
}

// Init 加载轨迹并准备输出目录
// 算法说明：
// 1. 创建输出目录
// 2. 从数据源加载轨迹，输出轨迹统计
// 3. 按配置导出处理后的轨迹CSV与HTML图
func (ctx *Context) Init(c context.Context) error {
	ctx.clock.Init()
	out := ctx.runtimeConfig.All.Output
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return fmt.Errorf("task: create output dir: %w", err)
	}
	traj, err := ctx.source.Trajectory(c)
	if err != nil {
		return fmt.Errorf("task: load %v: %w", ctx.source, err)
	}
	ctx.traj = traj

	s := traj.Summary()
	log.Infof("Source: %v", ctx.source)
	log.Infof("Samples: %d (%.1f s)", s.Samples, s.Duration)
	log.Infof("Mean speed: %.2f m/s, spacing %.2f-%.2f m", s.MeanSpeed, s.MinSpacing, s.MaxSpacing)
	log.Infof("Relative velocity: mean %.3f, std %.3f m/s, lead present %.1f%%", s.MeanDV, s.StdDV, s.LeadRatio*100)
	log.Infof("Tests: %d", len(ctx.runtimeConfig.Tests))

	if out.Export {
		if err := writeFile(ctx.outputPath(ctx.job+".csv"), func(f *os.File) error {
			return report.WriteTrajectoryCSV(f, ctx.job, traj)
		}); err != nil {
			return err
		}
	}
	if out.Plot {
		if err := writeFile(ctx.outputPath(ctx.job+".html"), func(f *os.File) error {
			return report.EpisodeHTML(f, ctx.job, traj)
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(file string, write func(f *os.File) error) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("task: write %s: %w", file, err)
	}
	return f.Close()
}

// Close 关闭存储，可重复调用
func (ctx *Context) Close() {
	if ctx.closed.Swap(true) {
		return
	}
	if err := ctx.store.Close(); err != nil {
		log.Errorf("failed to close run store: %v", err)
	}
	log.Infof("Total time: %s", ctx.clock)
}
