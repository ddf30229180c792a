package gipps

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

// Kind Gipps模型可标定参数的类别
type Kind int

const (
	TRxn  Kind = iota // 反应时间（秒）
	VDes              // 期望速度（米/秒）
	ADes              // 期望加速度（米/秒²）
	DDes              // 期望减速度（米/秒²，负数）
	DLead             // 估计的前车最大减速度（米/秒²，负数）
	GMin              // 最小停车间距（米）
)

// NumKinds 参数个数
const NumKinds = int(GMin) + 1

// domain 单个参数的取值范围
type domain struct {
	name     string
	unit     string
	min, max float64
}

// kindTable 参数取值范围表
// 说明：参数的生成与变异都在对应区间内均匀采样并保留一位小数；增加参数只需要扩展该表与Params字段
var kindTable = [NumKinds]domain{
	TRxn:  {"t_rxn", "s", 0.4, 3.0},
	VDes:  {"V_des", "m/s", 10, 40},
	ADes:  {"a_des", "m/s2", 0.8, 2.6},
	DDes:  {"d_des", "m/s2", -5.2, -1.6},
	DLead: {"d_lead", "m/s2", -4.5, -3.0},
	GMin:  {"g_min", "m", 2, 4},
}

// Kinds 全部参数类别（按序列化顺序）
func Kinds() []Kind {
	return lo.Map(kindTable[:], func(_ domain, i int) Kind { return Kind(i) })
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindTable[k].name
}

// Valid 是否为合法的参数类别
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < NumKinds
}

// Unit 参数单位
func (k Kind) Unit() string {
	return kindTable[k].unit
}

// Domain 参数取值区间[lo, hi]
func (k Kind) Domain() (low, high float64) {
	d := kindTable[k]
	return d.min, d.max
}

// Contains 判断取值是否落在参数区间内
func (k Kind) Contains(v float64) bool {
	low, high := k.Domain()
	return v >= low && v <= high
}

// Sample 在参数区间内均匀采样，保留一位小数
func (k Kind) Sample(e *randengine.Engine) float64 {
	low, high := k.Domain()
	return e.UniformRounded(low, high, 1)
}

// Params Gipps模型的一组参数（遗传算法中的个体）
// 说明：值类型，可直接用==比较；位置编码[t_rxn, V_des, a_des, d_des, d_lead, g_min]只在序列化时使用
type Params struct {
	TRxn  float64 `json:"t_rxn" bson:"t_rxn" yaml:"t_rxn"`
	VDes  float64 `json:"V_des" bson:"V_des" yaml:"V_des"`
	ADes  float64 `json:"a_des" bson:"a_des" yaml:"a_des"`
	DDes  float64 `json:"d_des" bson:"d_des" yaml:"d_des"`
	DLead float64 `json:"d_lead" bson:"d_lead" yaml:"d_lead"`
	GMin  float64 `json:"g_min" bson:"g_min" yaml:"g_min"`
}

// field 返回参数字段指针
func (p *Params) field(k Kind) *float64 {
	switch k {
	case TRxn:
		return &p.TRxn
	case VDes:
		return &p.VDes
	case ADes:
		return &p.ADes
	case DDes:
		return &p.DDes
	case DLead:
		return &p.DLead
	case GMin:
		return &p.GMin
	default:
		panic(fmt.Sprintf("gipps: unknown parameter kind %d", int(k)))
	}
}

// Get 按类别读取参数
func (p Params) Get(k Kind) float64 {
	return *p.field(k)
}

// With 返回将类别k替换为v后的参数副本
func (p Params) With(k Kind, v float64) Params {
	*p.field(k) = v
	return p
}

// Values 按序列化顺序导出参数
func (p Params) Values() []float64 {
	return lo.Map(Kinds(), func(k Kind, _ int) float64 { return p.Get(k) })
}

// FromValues 由位置编码构造参数
// 参数：values-按[t_rxn, V_des, a_des, d_des, d_lead, g_min]排列的取值
// 返回：参数，长度不正确时返回错误
func FromValues(values []float64) (Params, error) {
	var p Params
	if len(values) != NumKinds {
		return p, fmt.Errorf("gipps: expected %d parameter values, got %d", NumKinds, len(values))
	}
	for i, v := range values {
		p = p.With(Kind(i), v)
	}
	return p, nil
}

// InDomain 判断全部参数是否落在各自区间内
func (p Params) InDomain() bool {
	return lo.EveryBy(Kinds(), func(k Kind) bool { return k.Contains(p.Get(k)) })
}

// Validate 检查参数能否用于预测
// 说明：V_des与t_rxn必须为正，d_lead必须非零，否则预测公式会除零
func (p Params) Validate() error {
	if p.TRxn <= 0 {
		return fmt.Errorf("gipps: t_rxn must be positive, got %v", p.TRxn)
	}
	if p.VDes <= 0 {
		return fmt.Errorf("gipps: V_des must be positive, got %v", p.VDes)
	}
	if p.DLead == 0 {
		return fmt.Errorf("gipps: d_lead must be non-zero")
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g, %g, %g]", p.TRxn, p.VDes, p.ADes, p.DDes, p.DLead, p.GMin)
}

// Random 在各参数区间内随机生成一组参数
func Random(e *randengine.Engine) Params {
	var p Params
	for _, k := range Kinds() {
		p = p.With(k, k.Sample(e))
	}
	return p
}
