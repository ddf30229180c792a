package ga

import (
	"fmt"

	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
)

// Config 遗传算法参数
// 说明：与配置文件解耦，由调用方直接构造
type Config entity.GAConfig

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		PopSize:              10,
		DegradeThreshold:     2,
		RestartThreshold:     1,
		RetainFraction:       0.2,
		RandomSelectFraction: 0.2,
		MutateFraction:       0.001,
	}
}

// Elites 每一代无条件保留的精英个数
func (c Config) Elites() int {
	return elites(c.PopSize, c.RetainFraction)
}

func elites(n int, retain float64) int {
	return int(float64(n) * retain)
}

// Validate 检查参数
// 算法说明：
// 1. 种群规模至少为2
// 2. 三个比例都在[0, 1]内
// 3. 退化与重启阈值非负
// 4. 精英个数至少为2，保证交叉时父代足够
func (c Config) Validate() error {
	if c.PopSize < 2 {
		return fmt.Errorf("%w: pop_size must be >= 2, got %d", ErrInvalidConfig, c.PopSize)
	}
	for name, f := range map[string]float64{
		"retain_fraction":        c.RetainFraction,
		"random_select_fraction": c.RandomSelectFraction,
		"mutate_fraction":        c.MutateFraction,
	} {
		if !(f >= 0 && f <= 1) {
			return fmt.Errorf("%w: %s must be in [0, 1], got %v", ErrInvalidConfig, name, f)
		}
	}
	if c.DegradeThreshold < 0 || c.RestartThreshold < 0 {
		return fmt.Errorf("%w: thresholds must be non-negative, got degrade=%d restart=%d",
			ErrInvalidConfig, c.DegradeThreshold, c.RestartThreshold)
	}
	if e := c.Elites(); e < 2 {
		return fmt.Errorf("%w: pop_size*retain_fraction must keep at least 2 elites, got %d", ErrInvalidConfig, e)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("pop=%d degrade=%d restart=%d retain=%v random=%v mutate=%v",
		c.PopSize, c.DegradeThreshold, c.RestartThreshold, c.RetainFraction, c.RandomSelectFraction, c.MutateFraction)
}
