package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
)

// 支持的输入格式
const (
	FormatSynthetic = "synthetic"
	FormatFHWAIRV   = "fhwa_irv"
	FormatProcessed = "processed"
	FormatNDS       = "nds"
	FormatMongo     = "mongo"
)

var formats = []string{FormatSynthetic, FormatFHWAIRV, FormatProcessed, FormatNDS, FormatMongo}

// Test 测试网格中的一次运行
type Test struct {
	Number int             // 测试编号（从1开始，全局唯一）
	Run    int             // 同一参数组合下的重复序号（从1开始）
	GA     entity.GAConfig // 遗传算法参数
	Seed   uint64          // 随机种子 = seed + number
}

// RuntimeConfig 运行时配置
// 功能：补全默认值后的配置，以及展开后的测试网格
type RuntimeConfig struct {
	All   Config // 全部配置
	Tests []Test // 测试网格
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：补全默认值、校验并展开测试网格
// 参数：config-原始配置对象
// 返回：运行时配置，配置不合法时返回错误
// 算法说明：
// 1. 设置默认值：runs=1，遗传算法参数列表缺省为单个默认值，提取阈值缺省为60秒/80米/1千米/3000毫秒
// 2. 校验
// 3. 按pop_size、degrade、restart、retain、random_select、mutate的顺序嵌套展开，每个组合重复runs次
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &RuntimeConfig{All: config, Tests: config.GA.Grid()}, nil
}

func orDefault[T comparable](v *T, def T) {
	var zero T
	if *v == zero {
		*v = def
	}
}

func (c *Config) applyDefaults() {
	g := &c.GA
	orDefault(&g.Runs, 1)
	if len(g.PopSize) == 0 {
		g.PopSize = []int{10}
	}
	if len(g.Degrade) == 0 {
		g.Degrade = []int{2}
	}
	if len(g.Restart) == 0 {
		g.Restart = []int{1}
	}
	if len(g.Retain) == 0 {
		g.Retain = []float64{0.2}
	}
	if len(g.RandomSelect) == 0 {
		g.RandomSelect = []float64{0.2}
	}
	if len(g.Mutate) == 0 {
		g.Mutate = []float64{0.001}
	}
	e := &c.Input.Extraction
	orDefault(&e.MinDuration, 60)
	orDefault(&e.MaxDistance, 80)
	orDefault(&e.MinSpeed, 1)
	orDefault(&e.GapMs, 3000)
	orDefault(&e.Smoothing, 16)
	orDefault(&c.Output.Dir, "output")
}

// Validate 校验配置
// 说明：遗传算法参数本身的合法性由ga.Config.Validate在运行前检查
func (c *Config) Validate() error {
	var errs []error
	in := c.Input
	if !slices.Contains(formats, in.Format) {
		errs = append(errs, fmt.Errorf("input.format must be one of %v, got %q", formats, in.Format))
	}
	switch in.Format {
	case FormatMongo:
		if in.URI == "" || in.Episodes == nil {
			errs = append(errs, errors.New("input.uri and input.episodes are required for mongo input"))
		}
	case FormatSynthetic:
		if in.File == "" && len(in.Files) == 0 && in.Synthetic == nil {
			errs = append(errs, errors.New("input.file, input.files or input.synthetic is required"))
		}
	default:
		if in.File == "" && len(in.Files) == 0 {
			errs = append(errs, fmt.Errorf("input.file or input.files is required for %s input", in.Format))
		}
	}
	files := len(in.Files)
	if in.File != "" {
		files++
	}
	if in.Radar != "" && (in.Format != FormatNDS || files != 1) {
		errs = append(errs, errors.New("input.stac needs nds format with exactly one raw log file"))
	}
	if in.Extraction.Smoothing == 1 || in.Extraction.Smoothing < -1 {
		errs = append(errs, fmt.Errorf("input.extraction.smoothing must be -1 or >= 2, got %d", in.Extraction.Smoothing))
	}
	if c.GA.Runs < 1 {
		errs = append(errs, fmt.Errorf("ga.runs must be >= 1, got %d", c.GA.Runs))
	}
	if c.GA.TimeoutMinutes < 0 {
		errs = append(errs, fmt.Errorf("ga.timeout_minutes must be >= 0, got %v", c.GA.TimeoutMinutes))
	}
	if c.Output.Runs != nil && c.Output.URI == "" {
		errs = append(errs, errors.New("output.uri is required when output.runs is set"))
	}
	return errors.Join(errs...)
}

// Grid 展开测试网格
func (g GA) Grid() []Test {
	var tests []Test
	n := 0
	for _, pop := range g.PopSize {
		for _, degrade := range g.Degrade {
			for _, restart := range g.Restart {
				for _, retain := range g.Retain {
					for _, random := range g.RandomSelect {
						for _, mutate := range g.Mutate {
							for run := 1; run <= g.Runs; run++ {
								n++
								tests = append(tests, Test{
									Number: n,
									Run:    run,
									Seed:   g.Seed + uint64(n),
									GA: entity.GAConfig{
										PopSize:              pop,
										DegradeThreshold:     degrade,
										RestartThreshold:     restart,
										RetainFraction:       retain,
										RandomSelectFraction: random,
										MutateFraction:       mutate,
									},
								})
							}
						}
					}
				}
			}
		}
	}
	return tests
}
