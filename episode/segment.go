package episode

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
)

var log = logrus.WithField("module", "episode")

// Thresholds 跟车片段切分阈值
type Thresholds struct {
	MinDuration float64 `yaml:"min_duration"` // 片段最短时长（秒）
	MaxDistance float64 `yaml:"max_distance"` // 与前车的最大距离（米）
	MinSpeed    float64 `yaml:"min_speed"`    // 最低车速（千米/时）
	GapMs       float64 `yaml:"gap_ms"`       // 同一前车相邻数据点的最大时间间隔（毫秒）
}

// DefaultThresholds 默认阈值：60秒、80米、1千米/时、3000毫秒
func DefaultThresholds() Thresholds {
	return Thresholds{MinDuration: 60, MaxDistance: 80, MinSpeed: 1, GapMs: 3000}
}

// splitWhile 把连续满足keep的数据点切成若干段
func splitWhile(c Collection, keep func(p *DataPoint) bool) []Collection {
	var out []Collection
	var cur Collection
	for i := range c {
		if keep(&c[i]) {
			cur = append(cur, c[i])
			continue
		}
		if len(cur) > 0 {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// Segment 切分跟车片段
// 功能：从一次行程的原始数据中找出满足条件的连续跟车片段
// 参数：points-按时间排列的数据点，th-阈值
// 返回：跟车片段列表
// 算法说明：
// 1. 按前车编号分组（按首次出现顺序），相邻数据点时间间隔达到GapMs时另起一组
// 2. 与前车距离不小于MaxDistance的数据点处断开
// 3. 车速不大于MinSpeed的数据点处断开
// 4. 只保留时长不少于MinDuration的片段
func Segment(points Collection, th Thresholds) []Collection {
	var groups []Collection
	for _, target := range points.LeadTargets() {
		var cur Collection
		for _, p := range points {
			if id, ok := p.LeadTargetID(); !ok || id != target {
				continue
			}
			if len(cur) > 0 && p.Stamp-cur[len(cur)-1].Stamp >= th.GapMs {
				groups = append(groups, cur)
				cur = nil
			}
			cur = append(cur, p)
		}
		if len(cur) > 0 {
			groups = append(groups, cur)
		}
	}
	groups = lo.FlatMap(groups, func(g Collection, _ int) []Collection {
		return splitWhile(g, func(p *DataPoint) bool { return p.LeadDistance() < th.MaxDistance })
	})
	groups = lo.FlatMap(groups, func(g Collection, _ int) []Collection {
		return splitWhile(g, func(p *DataPoint) bool { return p.Speed > th.MinSpeed })
	})
	return lo.Filter(groups, func(g Collection, _ int) bool { return g.TimeElapsed() >= th.MinDuration })
}

// Episode 一个跟车片段
type Episode struct {
	ID         string                 // <事件编号>_<序号>
	Event      string                 // 事件编号
	LeadTarget int                    // 前车目标编号
	Points     Collection             // 原始数据点
	Trajectory *trajectory.Trajectory // 处理后的轨迹
}

// Extract 提取跟车片段
// 功能：切分 -> 转换为轨迹 -> 相对速度滑动平均
// 参数：event-事件编号，points-原始数据点，th-阈值，smoothing-滑动平均窗口（小于2表示不平滑）
// 返回：跟车片段列表，编号从1开始
func Extract(event string, points Collection, th Thresholds, smoothing int) ([]*Episode, error) {
	segments := Segment(points, th)
	episodes := make([]*Episode, 0, len(segments))
	for i, seg := range segments {
		id := fmt.Sprintf("%s_%d", event, i+1)
		traj, err := seg.ToTrajectory()
		if err != nil {
			return nil, fmt.Errorf("episode %s: %w", id, err)
		}
		if smoothing >= 2 {
			if traj, err = traj.MovingAverage(smoothing); err != nil {
				return nil, fmt.Errorf("episode %s: %w", id, err)
			}
		}
		lead, _ := seg[0].LeadTargetID()
		episodes = append(episodes, &Episode{ID: id, Event: event, LeadTarget: lead, Points: seg, Trajectory: traj})
	}
	log.Infof("event %s: %d points, %.1f%% car following, %d episodes",
		event, len(points), points.PercentCarFollowing()*100, len(episodes))
	return episodes, nil
}
