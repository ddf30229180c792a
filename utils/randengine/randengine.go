// 随机数引擎，包装了golang.org/x/exp/rand，为一次标定运行提供唯一、可复现的随机源
package randengine

import (
	"flag"
	"math"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：为遗传算法提供单一的随机数来源（变异、选择、交叉都从这里取数）
// 说明：同一个种子得到同一条随机序列，从而保证标定过程可复现；非线程安全，每次运行独占一个引擎
type Engine struct {
	*rand.Rand        // 底层随机数生成器
	seed       uint64 // 实际使用的种子（已加上偏移量）
}

// New 创建随机数引擎
// 功能：初始化一个新的随机数引擎实例
// 参数：seed-随机数种子
// 返回：随机数引擎指针
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	s := seed + *seedOffset
	return &Engine{Rand: rand.New(rand.NewSource(s)), seed: s}
}

// Seed 返回引擎实际使用的种子
func (e *Engine) Seed() uint64 {
	return e.seed
}

// PTrue 以指定概率返回true
// 功能：根据给定概率返回布尔值
// 参数：p-返回true的概率（0.0到1.0之间）
// 说明：实现伯努利分布，p<=0时永远为false，p>=1时永远为true
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// IntRange 返回[lo, hi]闭区间内的随机整数
func (e *Engine) IntRange(lo, hi int) int {
	return lo + e.Intn(hi-lo+1)
}

// Uniform 返回[lo, hi)内均匀分布的随机浮点数
func (e *Engine) Uniform(lo, hi float64) float64 {
	return e.Float64()*(hi-lo) + lo
}

// UniformRounded 均匀采样并保留指定位数小数
// 功能：在[lo, hi]内均匀采样，然后四舍五入到digits位小数
// 说明：lo、hi本身是digits位小数时，结果一定落在[lo, hi]内
func (e *Engine) UniformRounded(lo, hi float64, digits int) float64 {
	return Round(e.Uniform(lo, hi), digits)
}

// Round 四舍五入到digits位小数（远离零方向）
func Round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
