// 自然驾驶原始数据（NDS）处理：逐时刻数据点、跟车片段切分
package episode

import (
	"math"

	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

// NumTracks 雷达跟踪目标通道数
const NumTracks = 8

// Track 单个雷达跟踪通道
type Track struct {
	TargetID float64 // 目标编号，NaN表示没有目标
	IsLead   float64 // 是否为前车（1为前车）
	XPos     float64 // 纵向距离（米）
	XVel     float64 // 纵向相对速度（米/秒）
	XAcc     float64 // 纵向加速度估计（米/秒²）
}

func (t Track) isLead() bool {
	return !math.IsNaN(t.TargetID) && t.IsLead == 1
}

// DataPoint 单个时刻的原始数据
type DataPoint struct {
	Stamp  float64          // VTTI时间戳（毫秒）
	Speed  float64          // 网络车速（千米/时）
	AccelX float64          // 纵向加速度
	Tracks [NumTracks]Track // 雷达跟踪通道1-8
}

// IsCarFollowing 是否处于跟车状态（任一通道检测到前车）
func (p *DataPoint) IsCarFollowing() bool {
	_, ok := p.LeadTrack()
	return ok
}

// LeadTrack 前车所在的通道序号（0-7），按通道顺序取第一个
func (p *DataPoint) LeadTrack() (int, bool) {
	for i, t := range p.Tracks {
		if t.isLead() {
			return i, true
		}
	}
	return -1, false
}

// LeadTargetID 前车目标编号
func (p *DataPoint) LeadTargetID() (int, bool) {
	i, ok := p.LeadTrack()
	if !ok {
		return 0, false
	}
	return int(p.Tracks[i].TargetID), true
}

// LeadDistance 与前车的距离，保留三位小数；没有前车时为+Inf
func (p *DataPoint) LeadDistance() float64 {
	i, ok := p.LeadTrack()
	if !ok {
		return math.Inf(1)
	}
	return randengine.Round(p.Tracks[i].XPos, 3)
}

// LeadRelativeVelocity 前车相对速度；没有前车时为-Inf
func (p *DataPoint) LeadRelativeVelocity() float64 {
	i, ok := p.LeadTrack()
	if !ok {
		return math.Inf(-1)
	}
	return p.Tracks[i].XVel
}

// LeadAcceleration 前车加速度，保留三位小数；没有前车时为+Inf
func (p *DataPoint) LeadAcceleration() float64 {
	i, ok := p.LeadTrack()
	if !ok {
		return math.Inf(1)
	}
	return randengine.Round(p.Tracks[i].XAcc, 3)
}

// CurrentTargets 当前检测到的全部目标编号
func (p *DataPoint) CurrentTargets() []int {
	var targets []int
	for _, t := range p.Tracks {
		if !math.IsNaN(t.TargetID) {
			targets = append(targets, int(t.TargetID))
		}
	}
	return targets
}
