// 跟车轨迹数据，10Hz等间隔采样的跟驰车/前车运动学序列
package trajectory

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
)

// SampleInterval 采样间隔（秒），数据以10Hz采集
const SampleInterval = 0.1

var (
	ErrEmpty          = errors.New("trajectory: no samples")
	ErrLengthMismatch = errors.New("trajectory: column lengths differ")
)

// Columns 轨迹的列式数据
// 说明：VFollow、VLead、Spacing必填；其余列为nil时由New补全
type Columns struct {
	Time    []float64 // 相对时间（秒），从0开始累计
	Stamp   []float64 // 原始时间戳（毫秒），没有时为NaN
	VFollow []float64 // 跟驰车速度（米/秒）
	VLead   []float64 // 前车速度（米/秒），NaN或±Inf表示无前车
	Spacing []float64 // 车距（米）
	DV      []float64 // 相对速度 = 跟驰车速度 - 前车速度（米/秒）
	AFollow []float64 // 跟驰车加速度（米/秒²）
	ALead   []float64 // 前车加速度（米/秒²）
}

// Sample 单个采样点
type Sample struct {
	Time    float64
	Stamp   float64
	VFollow float64
	VLead   float64
	Spacing float64
	DV      float64
	AFollow float64
	ALead   float64
}

// Trajectory 一段跟车轨迹（跟车片段）
// 说明：创建后只读，可以被多个goroutine同时读取
type Trajectory struct {
	cols Columns
}

// New 创建轨迹
// 功能：校验列长度并补全缺省列
// 参数：cols-列式数据（内部会复制，调用方之后修改不影响轨迹）
// 返回：轨迹，列为空时返回ErrEmpty，列长度不一致时返回ErrLengthMismatch
// 算法说明：
// 1. Time缺省为i*0.1
// 2. DV缺省为VFollow-VLead（无前车时为+Inf）
// 3. Stamp、AFollow、ALead缺省为NaN
func New(cols Columns) (*Trajectory, error) {
	n := len(cols.VFollow)
	if n == 0 {
		return nil, ErrEmpty
	}
	named := map[string][]float64{
		"time":     cols.Time,
		"stamp":    cols.Stamp,
		"v_lead":   cols.VLead,
		"spacing":  cols.Spacing,
		"dv":       cols.DV,
		"a_follow": cols.AFollow,
		"a_lead":   cols.ALead,
	}
	for name, col := range named {
		required := name == "v_lead" || name == "spacing"
		if (col != nil || required) && len(col) != n {
			return nil, fmt.Errorf("%w: %s has %d samples, v_follow has %d", ErrLengthMismatch, name, len(col), n)
		}
	}
	c := Columns{
		Time:    slices.Clone(cols.Time),
		Stamp:   slices.Clone(cols.Stamp),
		VFollow: slices.Clone(cols.VFollow),
		VLead:   slices.Clone(cols.VLead),
		Spacing: slices.Clone(cols.Spacing),
		DV:      slices.Clone(cols.DV),
		AFollow: slices.Clone(cols.AFollow),
		ALead:   slices.Clone(cols.ALead),
	}
	if c.Time == nil {
		c.Time = lo.Times(n, func(i int) float64 { return float64(i) * SampleInterval })
	}
	if c.DV == nil {
		c.DV = lo.Times(n, func(i int) float64 {
			if !hasLead(c.VLead[i]) {
				return math.Inf(1)
			}
			return c.VFollow[i] - c.VLead[i]
		})
	}
	for _, col := range []*[]float64{&c.Stamp, &c.AFollow, &c.ALead} {
		if *col == nil {
			*col = nanColumn(n)
		}
	}
	return &Trajectory{cols: c}, nil
}

// MustNew 创建轨迹，失败时panic（用于测试与内置数据）
func MustNew(cols Columns) *Trajectory {
	t, err := New(cols)
	if err != nil {
		panic(err)
	}
	return t
}

func nanColumn(n int) []float64 {
	return lo.Times(n, func(int) float64 { return math.NaN() })
}

func hasLead(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Len 采样点个数
func (t *Trajectory) Len() int {
	return len(t.cols.VFollow)
}

// At 第i个采样点
func (t *Trajectory) At(i int) Sample {
	c := &t.cols
	return Sample{
		Time:    c.Time[i],
		Stamp:   c.Stamp[i],
		VFollow: c.VFollow[i],
		VLead:   c.VLead[i],
		Spacing: c.Spacing[i],
		DV:      c.DV[i],
		AFollow: c.AFollow[i],
		ALead:   c.ALead[i],
	}
}

// HasLead 第i个采样点是否存在前车
func (t *Trajectory) HasLead(i int) bool {
	return hasLead(t.cols.VLead[i])
}

// Columns 返回全部列的副本
func (t *Trajectory) Columns() Columns {
	c := t.cols
	return Columns{
		Time:    slices.Clone(c.Time),
		Stamp:   slices.Clone(c.Stamp),
		VFollow: slices.Clone(c.VFollow),
		VLead:   slices.Clone(c.VLead),
		Spacing: slices.Clone(c.Spacing),
		DV:      slices.Clone(c.DV),
		AFollow: slices.Clone(c.AFollow),
		ALead:   slices.Clone(c.ALead),
	}
}

func (t *Trajectory) Time() []float64    { return slices.Clone(t.cols.Time) }
func (t *Trajectory) VFollow() []float64 { return slices.Clone(t.cols.VFollow) }
func (t *Trajectory) VLead() []float64   { return slices.Clone(t.cols.VLead) }
func (t *Trajectory) Spacing() []float64 { return slices.Clone(t.cols.Spacing) }
func (t *Trajectory) DV() []float64      { return slices.Clone(t.cols.DV) }

// Merge 拼接多段轨迹
// 功能：按顺序把others追加到t之后，得到一段合并轨迹（用于联合标定多个跟车片段）
// 说明：各列直接拼接，时间列不做平移，与各片段导出的数据一致
func (t *Trajectory) Merge(others ...*Trajectory) *Trajectory {
	all := append([]*Trajectory{t}, others...)
	cat := func(get func(*Columns) []float64) []float64 {
		return slices.Concat(lo.Map(all, func(x *Trajectory, _ int) []float64 { return get(&x.cols) })...)
	}
	return &Trajectory{cols: Columns{
		Time:    cat(func(c *Columns) []float64 { return c.Time }),
		Stamp:   cat(func(c *Columns) []float64 { return c.Stamp }),
		VFollow: cat(func(c *Columns) []float64 { return c.VFollow }),
		VLead:   cat(func(c *Columns) []float64 { return c.VLead }),
		Spacing: cat(func(c *Columns) []float64 { return c.Spacing }),
		DV:      cat(func(c *Columns) []float64 { return c.DV }),
		AFollow: cat(func(c *Columns) []float64 { return c.AFollow }),
		ALead:   cat(func(c *Columns) []float64 { return c.ALead }),
	}}
}

// slice 取[from, to)区间的子轨迹（共享底层数组之外的副本）
func (t *Trajectory) slice(from, to int) Columns {
	c := t.cols
	return Columns{
		Time:    slices.Clone(c.Time[from:to]),
		Stamp:   slices.Clone(c.Stamp[from:to]),
		VFollow: slices.Clone(c.VFollow[from:to]),
		VLead:   slices.Clone(c.VLead[from:to]),
		Spacing: slices.Clone(c.Spacing[from:to]),
		DV:      slices.Clone(c.DV[from:to]),
		AFollow: slices.Clone(c.AFollow[from:to]),
		ALead:   slices.Clone(c.ALead[from:to]),
	}
}
