package input

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gipps-calibration/episode"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils"
)

// NDSSource 从自然驾驶原始传感器日志中提取跟车片段
// 说明：指定了片段编号时只使用该片段，否则合并全部片段
type NDSSource struct {
	files     []string
	event     string
	episode   string
	th        episode.Thresholds
	smoothing int
	radar     string // STAC雷达数据文件，为空则使用原始日志中的相对速度
}

// NewNDSSource 创建自然驾驶数据源
// 参数：files-原始日志文件，event-事件编号（为空则使用文件名），episodeID-片段编号，th-切分阈值，smoothing-滑动平均窗口
func NewNDSSource(files []string, event, episodeID string, th episode.Thresholds, smoothing int) *NDSSource {
	return &NDSSource{files: files, event: event, episode: episodeID, th: th, smoothing: smoothing}
}

// WithRadar 用STAC雷达数据替换原始日志中各通道的相对速度
func (s *NDSSource) WithRadar(file string) *NDSSource {
	s.radar = file
	return s
}

// Episodes 提取全部文件中的跟车片段
func (s *NDSSource) Episodes(ctx context.Context) ([]*episode.Episode, error) {
	var all []*episode.Episode
	for _, file := range s.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		event := s.event
		if event == "" || len(s.files) > 1 {
			event = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
		episodes, err := s.extractFile(file, event)
		if err != nil {
			return nil, err
		}
		all = append(all, episodes...)
	}
	return all, nil
}

func (s *NDSSource) extractFile(file, event string) ([]*episode.Episode, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	points, err := episode.ReadPoints(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	if s.radar != "" {
		radar, err := readRadar(s.radar)
		if err != nil {
			return nil, err
		}
		points = episode.ApplyRadar(points, radar)
	}
	return episode.Extract(event, points, s.th, s.smoothing)
}

func readRadar(file string) ([]episode.RadarSample, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	radar, err := episode.ReadRadar(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return radar, nil
}

func (s *NDSSource) Trajectory(ctx context.Context) (*trajectory.Trajectory, error) {
	all, err := s.Episodes(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	if s.episode != "" {
		ids = []string{s.episode}
	}
	byID := lo.SliceToMap(all, func(e *episode.Episode) (string, *episode.Episode) { return e.ID, e })
	selected, failed := utils.Find(byID, all, ids)
	if len(failed) > 0 {
		return nil, fmt.Errorf("input: episode %v not found among %d episodes", failed, len(all))
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("input: no car-following episode in %v: %w", s.files, trajectory.ErrEmpty)
	}
	trajs := lo.Map(selected, func(e *episode.Episode, _ int) *trajectory.Trajectory { return e.Trajectory })
	return trajs[0].Merge(trajs[1:]...), nil
}

func (s *NDSSource) String() string {
	if s.episode != "" {
		return "nds(" + s.episode + ")"
	}
	return fmt.Sprintf("nds%v", s.files)
}
