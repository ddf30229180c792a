package episode

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/interp"
)

// STAC雷达数据的列序号（无列名，第一行为表头）
const (
	radarColStamp = 0
	radarColTrack = 1
	radarColXVel  = 10
)

// RadarSample STAC雷达数据的一行
type RadarSample struct {
	Stamp float64 // 时间戳（毫秒，与VTTI时间戳同一时间基准）
	Track int     // 通道编号（1-8）
	XVel  float64 // 纵向相对速度（米/秒）
}

// ReadRadar 读取STAC雷达数据CSV
// 说明：时间戳缺失或通道编号不在1-8内的行被跳过，空白速度为NaN
func ReadRadar(r io.Reader) ([]RadarSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("episode: read radar header: %w", err)
	}
	var samples []RadarSample
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("episode: radar line %d: %w", line, err)
		}
		get := func(i int) float64 {
			if i >= len(record) {
				return math.NaN()
			}
			return parseValue(record[i])
		}
		stamp, track := get(radarColStamp), get(radarColTrack)
		if math.IsNaN(stamp) || track != math.Trunc(track) || track < 1 || track > NumTracks {
			continue
		}
		samples = append(samples, RadarSample{Stamp: stamp, Track: int(track), XVel: get(radarColXVel)})
	}
	return samples, nil
}

// Interpolate 把(times, values)线性插值到at的各个时刻
// 返回：与at等长；at超出times范围或times少于2个不同时刻时为NaN
// 算法说明：
// 1. 按时间排序，相同时间戳只保留第一个
// 2. 分段线性插值
// 3. 中间的非有限值用前后两个值的均值填补（顺序进行，前一个填补值参与后一个的计算）
func Interpolate(times, values, at []float64) []float64 {
	out := make([]float64, len(at))
	for i := range out {
		out[i] = math.NaN()
	}
	idx := lo.Range(len(times))
	slices.SortStableFunc(idx, func(a, b int) int { return cmp.Compare(times[a], times[b]) })
	idx = slices.CompactFunc(idx, func(a, b int) bool { return times[a] == times[b] })
	if len(idx) >= 2 {
		xs := lo.Map(idx, func(i, _ int) float64 { return times[i] })
		ys := lo.Map(idx, func(i, _ int) float64 { return values[i] })
		var pl interp.PiecewiseLinear
		_ = pl.Fit(xs, ys)
		for i, t := range at {
			if t >= xs[0] && t <= xs[len(xs)-1] {
				out[i] = pl.Predict(t)
			}
		}
	}
	for i := 1; i+1 < len(out); i++ {
		if !isFinite(out[i]) {
			out[i] = (out[i-1] + out[i+1]) / 2
		}
	}
	return out
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ApplyRadar 用STAC雷达的相对速度替换各通道的x_vel_processed
// 功能：按通道把雷达速度插值到每个数据点的VTTI时间戳上
// 返回：新的数据点列表，输入不被修改
// 说明：没有雷达数据的通道保持原值
func ApplyRadar(points Collection, radar []RadarSample) Collection {
	out := slices.Clone(points)
	stamps := lo.Map(out, func(p DataPoint, _ int) float64 { return p.Stamp })
	byTrack := lo.GroupBy(radar, func(s RadarSample) int { return s.Track })
	for track, samples := range byTrack {
		vel := Interpolate(
			lo.Map(samples, func(s RadarSample, _ int) float64 { return s.Stamp }),
			lo.Map(samples, func(s RadarSample, _ int) float64 { return s.XVel }),
			stamps,
		)
		for i := range out {
			out[i].Tracks[track-1].XVel = vel[i]
		}
	}
	log.Debugf("radar: %d samples on %d tracks applied to %d points", len(radar), len(byTrack), len(out))
	return out
}
