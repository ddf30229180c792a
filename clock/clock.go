package clock

import (
	"fmt"
	"math"
	"time"
)

// Clock 标定运行计时器
// 功能：记录一次遗传算法运行的墙钟时间
// 说明：时间源可以替换，便于测试
type Clock struct {
	Now func() time.Time // 时间源，默认为time.Now

	start time.Time // 开始时间
	stop  time.Time // 结束时间，零值表示仍在计时
}

// New 创建并启动计时器
func New() *Clock {
	return NewWithSource(time.Now)
}

// NewWithSource 使用指定的时间源创建并启动计时器
func NewWithSource(now func() time.Time) *Clock {
	c := &Clock{Now: now}
	c.Init()
	return c
}

// Init 重新开始计时
func (c *Clock) Init() {
	c.start = c.Now()
	c.stop = time.Time{}
}

// Stop 停止计时，返回总耗时
func (c *Clock) Stop() time.Duration {
	if c.stop.IsZero() {
		c.stop = c.Now()
	}
	return c.Elapsed()
}

// Elapsed 已经过的时间
// 说明：停止后返回固定的总耗时
func (c *Clock) Elapsed() time.Duration {
	end := c.stop
	if end.IsZero() {
		end = c.Now()
	}
	return end.Sub(c.start)
}

// ElapsedMinutes 已经过的分钟数，四舍五入为整数
func (c *Clock) ElapsedMinutes() int {
	return int(math.Round(c.Elapsed().Minutes()))
}

// String 获取耗时的字符串表示
// 功能：将耗时格式化为可读的字符串
// 返回：格式化的时间字符串（HH:MM:SS）
// 算法说明：
// 1. 将总秒数转换为小时、分钟、秒
// 2. 格式化为标准时间格式
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

// GetHourMinuteSecond 获取耗时的小时、分钟、秒
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	t := c.Elapsed().Seconds()
	hour := int(t) / 3600
	minute := int(t) % 3600 / 60
	second := t - float64(hour*3600+minute*60)
	return hour, minute, second
}
