package input

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
)

// layout 文本格式的表头行数与各列位置，-1表示没有该列
type layout struct {
	header                                                   int
	time, stamp, vLead, aLead, vFollow, aFollow, spacing, dv int
}

var layouts = map[string]layout{
	// T, v_lead, a_lead, dX, v_follow, a_follow, dV
	config.FormatSynthetic: {header: 4, time: 0, stamp: -1, vLead: 1, aLead: 2, spacing: 3, vFollow: 4, aFollow: 5, dv: 6},
	// driver, unique_inst, instance, timestamp, leader_vel, leader_accel, follower_vel, follower_accel, delta_dist, delta_vel
	config.FormatFHWAIRV: {header: 14, time: 3, stamp: -1, vLead: 4, aLead: 5, vFollow: 6, aFollow: 7, spacing: 8, dv: 9},
	// dV, dX, dT, dT_vtti, v_target, v_following, a_target, a_following
	config.FormatProcessed: {header: 3, dv: 0, spacing: 1, time: 2, stamp: 3, vLead: 4, vFollow: 5, aLead: 6, aFollow: 7},
}

// ProcessedHeader 导出格式的表头
const ProcessedHeader = "dV [m/s], dX [m], dT [s], dT_vtti, v_target [m/s], v_following [m/s], a_target [m/s2], a_following [m/s2]"

// Parse 解析逗号分隔的轨迹文本
// 功能：跳过格式规定的表头行，按列位置读取各列
// 参数：format-数据格式，r-文本
// 返回：轨迹
// 说明：无法解析的字段与缺少的字段记为NaN，表头之后的空行跳过
func Parse(format string, r io.Reader) (*trajectory.Trajectory, error) {
	l, ok := layouts[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	var rows [][]float64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 0; scanner.Scan(); line++ {
		if line < l.header {
			continue
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		rows = append(rows, lo.Map(strings.Split(text, ","), func(s string, _ int) float64 {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return math.NaN()
			}
			return v
		}))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	column := func(i int) []float64 {
		if i < 0 {
			return nil
		}
		return lo.Map(rows, func(row []float64, _ int) float64 {
			if i >= len(row) {
				return math.NaN()
			}
			return row[i]
		})
	}
	return trajectory.New(trajectory.Columns{
		Time:    column(l.time),
		Stamp:   column(l.stamp),
		VFollow: column(l.vFollow),
		VLead:   column(l.vLead),
		Spacing: column(l.spacing),
		DV:      column(l.dv),
		AFollow: column(l.aFollow),
		ALead:   column(l.aLead),
	})
}

// FileSource 从一个或多个文本文件读取轨迹，多个文件的轨迹按顺序合并
type FileSource struct {
	format string
	files  []string
}

// NewFileSource 创建文件数据源
func NewFileSource(format string, files ...string) (*FileSource, error) {
	if _, ok := layouts[format]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("input: no %s files", format)
	}
	return &FileSource{format: format, files: files}, nil
}

func (s *FileSource) Trajectory(ctx context.Context) (*trajectory.Trajectory, error) {
	trajs := make([]*trajectory.Trajectory, 0, len(s.files))
	for _, file := range s.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		traj, err := parseFile(s.format, file)
		if err != nil {
			return nil, err
		}
		log.Infof("loaded %d samples from %s", traj.Len(), file)
		trajs = append(trajs, traj)
	}
	return trajs[0].Merge(trajs[1:]...), nil
}

func (s *FileSource) String() string {
	return fmt.Sprintf("%s%v", s.format, s.files)
}

func parseFile(format, file string) (*trajectory.Trajectory, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	traj, err := Parse(format, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return traj, nil
}
