package episode_test

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gipps-calibration/episode"
)

var nan = math.NaN()

func emptyTracks() [episode.NumTracks]episode.Track {
	var tracks [episode.NumTracks]episode.Track
	for i := range tracks {
		tracks[i] = episode.Track{TargetID: nan, IsLead: nan, XPos: nan, XVel: nan, XAcc: nan}
	}
	return tracks
}

// point 构造一个数据点，target<0表示没有前车
func point(stamp, speed float64, target int, dist float64) episode.DataPoint {
	p := episode.DataPoint{Stamp: stamp, Speed: speed, AccelX: -0.1, Tracks: emptyTracks()}
	if target >= 0 {
		p.Tracks[2] = episode.Track{TargetID: float64(target), IsLead: 1, XPos: dist, XVel: -0.5, XAcc: 0.2}
	}
	return p
}

func stream(from, n int, speed float64, target int, dist float64) episode.Collection {
	out := make(episode.Collection, n)
	for i := range out {
		out[i] = point(float64((from+i)*100), speed, target, dist)
	}
	return out
}

func TestReadPoints(t *testing.T) {
	csv := strings.Join([]string{
		"vtti.timestamp,vtti.speed_network,vtti.accel_x,track1_target_id,track1_is_lead_vehicle,track1_x_pos_processed,track1_x_vel_processed,track1_x_acc_estimated,track2_target_id",
		"1000,54,-0.02,12,1,25.12345,-0.4,0.1,",
		"1100,,0.01,,,,,,3",
	}, "\n")
	points, err := episode.ReadPoints(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, points, 2)

	p := points[0]
	assert.Equal(t, 1000.0, p.Stamp)
	assert.True(t, p.IsCarFollowing())
	id, ok := p.LeadTargetID()
	assert.True(t, ok)
	assert.Equal(t, 12, id)
	assert.Equal(t, 25.123, p.LeadDistance())
	assert.Equal(t, -0.4, p.LeadRelativeVelocity())
	assert.Equal(t, []int{12}, p.CurrentTargets())

	q := points[1]
	assert.True(t, math.IsNaN(q.Speed))
	assert.False(t, q.IsCarFollowing())
	assert.True(t, math.IsInf(q.LeadDistance(), 1))
	assert.True(t, math.IsInf(q.LeadRelativeVelocity(), -1))
	assert.Equal(t, []int{3}, q.CurrentTargets())
	// track3-8缺失的列为NaN
	assert.True(t, math.IsNaN(q.Tracks[7].TargetID))
}

func TestReadPointsMissingColumn(t *testing.T) {
	_, err := episode.ReadPoints(strings.NewReader("vtti.timestamp,foo\n1,2\n"))
	assert.ErrorIs(t, err, episode.ErrMissingColumn)
}

func TestCollectionQueries(t *testing.T) {
	c := append(stream(0, 10, 36, 4, 20), stream(10, 10, 72, -1, 0)...)
	assert.Equal(t, 2.0, c.TimeElapsed())
	assert.Equal(t, []int{4}, c.LeadTargets())
	assert.Equal(t, 0.5, c.PercentCarFollowing())
	assert.Equal(t, 54.0, c.MeanSpeed())
	assert.Equal(t, -0.1, c.MaxDeceleration())
	// 10*36/36000 + 10*72/36000 = 0.03千米
	assert.Equal(t, 0.03, c.DistanceTraveled())
	assert.Equal(t, 20.0, c.MinLeadDistance())
}

func TestToTrajectory(t *testing.T) {
	c := episode.Collection{
		point(0, 36, 1, 30),
		point(100, 72, 1, 31),
		point(250, 72, -1, 0),
	}
	traj, err := c.ToTrajectory()
	require.NoError(t, err)
	require.Equal(t, 2, traj.Len())
	s0, s1 := traj.At(0), traj.At(1)
	assert.InDelta(t, 0.1, s0.Time, 1e-12)
	assert.InDelta(t, 0.25, s1.Time, 1e-12)
	assert.Equal(t, 0.0, s0.Stamp)
	assert.InDelta(t, 10, s0.VFollow, 1e-12)
	assert.Equal(t, 31.0, s0.Spacing)
	assert.Equal(t, -0.5, s0.DV)
	assert.InDelta(t, 10.5, s0.VLead, 1e-12)
	// 第三个点没有前车
	assert.True(t, math.IsInf(s1.VLead, 1))
	assert.False(t, traj.HasLead(1))

	_, err = episode.Collection{point(0, 1, 1, 1)}.ToTrajectory()
	assert.Error(t, err)
}

func TestSegmentSplitsOnGap(t *testing.T) {
	c := append(stream(0, 700, 50, 5, 30), stream(700, 50, 50, -1, 0)...)
	c = append(c, stream(750, 700, 50, 5, 30)...)
	segs := episode.Segment(c, episode.DefaultThresholds())
	require.Len(t, segs, 2)
	assert.Len(t, segs[0], 700)
	assert.Len(t, segs[1], 700)
	assert.Equal(t, 75000.0, segs[1][0].Stamp)
}

func TestSegmentGapBoundary(t *testing.T) {
	// 间隔恰好为GapMs时另起一组
	c := append(stream(0, 700, 50, 5, 30), stream(729, 700, 50, 5, 30)...)
	segs := episode.Segment(c, episode.DefaultThresholds())
	require.Len(t, segs, 2)
	assert.Equal(t, 72900.0, segs[1][0].Stamp)

	c = append(stream(0, 700, 50, 5, 30), stream(728, 700, 50, 5, 30)...)
	segs = episode.Segment(c, episode.DefaultThresholds())
	require.Len(t, segs, 1)
	assert.Len(t, segs[0], 1400)
}

func TestSegmentSplitsOnDistanceAndSpeed(t *testing.T) {
	c := stream(0, 1300, 50, 7, 30)
	c[650].Tracks[2].XPos = 100
	segs := episode.Segment(c, episode.DefaultThresholds())
	require.Len(t, segs, 2)
	assert.Len(t, segs[0], 650)
	assert.Len(t, segs[1], 649)

	c = stream(0, 1300, 50, 7, 30)
	c[100].Speed = 0.5
	segs = episode.Segment(c, episode.DefaultThresholds())
	require.Len(t, segs, 1)
	assert.Len(t, segs[0], 1199)
}

func TestSegmentOrdersByFirstSeenTarget(t *testing.T) {
	c := append(stream(0, 700, 50, 9, 30), stream(700, 700, 50, 3, 30)...)
	segs := episode.Segment(c, episode.DefaultThresholds())
	require.Len(t, segs, 2)
	id0, _ := segs[0][0].LeadTargetID()
	id1, _ := segs[1][0].LeadTargetID()
	assert.Equal(t, []int{9, 3}, []int{id0, id1})
}

func TestExtract(t *testing.T) {
	c := append(stream(0, 700, 50, 5, 30), stream(700, 50, 50, -1, 0)...)
	c = append(c, stream(750, 650, 50, 6, 30)...)
	episodes, err := episode.Extract("evt", c, episode.DefaultThresholds(), 16)
	require.NoError(t, err)
	require.Len(t, episodes, 2)
	assert.Equal(t, "evt_1", episodes[0].ID)
	assert.Equal(t, "evt_2", episodes[1].ID)
	assert.Equal(t, 6, episodes[1].LeadTarget)
	// 700个点 -> 699个采样点 -> 滑动平均去掉8个
	assert.Equal(t, 691, episodes[0].Trajectory.Len())

	raw, err := episode.Extract("evt", c, episode.DefaultThresholds(), 0)
	require.NoError(t, err)
	assert.Equal(t, 699, raw[0].Trajectory.Len())
	assert.Empty(t, cmp.Diff(episodes[0].Points, raw[0].Points, cmpopts.EquateNaNs()))
}

func radarRow(stamp, track, vel string) string {
	return fmt.Sprintf("%s,%s,0,0,0,0,0,0,0,0,%s\n", stamp, track, vel)
}

func TestReadRadar(t *testing.T) {
	data := "time,track,a,b,c,d,e,f,g,h,x_vel\n" +
		radarRow("0", "1", "-0.5") +
		radarRow("100", "9", "1") +
		radarRow("", "1", "1") +
		radarRow("200", "2", "") +
		radarRow("300", "1.5", "1")
	samples, err := episode.ReadRadar(strings.NewReader(data))
	require.NoError(t, err)
	want := []episode.RadarSample{
		{Stamp: 0, Track: 1, XVel: -0.5},
		{Stamp: 200, Track: 2, XVel: nan},
	}
	assert.Empty(t, cmp.Diff(want, samples, cmpopts.EquateNaNs()))

	samples, err = episode.ReadRadar(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestInterpolate(t *testing.T) {
	got := episode.Interpolate([]float64{0, 10, 20}, []float64{0, 1, 4}, []float64{-5, 0, 5, 10, 15, 20, 25})
	want := []float64{nan, 0, 0.5, 1, 2.5, 4, nan}
	assert.Empty(t, cmp.Diff(want, got, cmpopts.EquateNaNs()))

	// 乱序输入按时间排序，重复时间戳取第一个
	got = episode.Interpolate([]float64{20, 0, 10, 10}, []float64{4, 0, 1, 9}, []float64{15})
	assert.Equal(t, []float64{2.5}, got)

	// 中间的缺失值由前后两个值的均值填补
	got = episode.Interpolate([]float64{0, 10, 20}, []float64{0, 1, 2}, []float64{0, 30, 20})
	assert.Equal(t, []float64{0, 1, 2}, got)

	got = episode.Interpolate([]float64{5}, []float64{1}, []float64{5, 5})
	assert.True(t, math.IsNaN(got[0]) && math.IsNaN(got[1]))
}

func TestApplyRadar(t *testing.T) {
	points := stream(0, 5, 36, 4, 25)
	radar := []episode.RadarSample{
		{Stamp: 0, Track: 3, XVel: 0},
		{Stamp: 400, Track: 3, XVel: 4},
	}
	got := episode.ApplyRadar(points, radar)
	require.Len(t, got, len(points))
	for i := range got {
		assert.InDelta(t, float64(i), got[i].Tracks[2].XVel, 1e-12)
		assert.InDelta(t, float64(i), got[i].LeadRelativeVelocity(), 1e-12)
		assert.True(t, math.IsNaN(got[i].Tracks[0].XVel))
		assert.Equal(t, -0.5, points[i].Tracks[2].XVel)
	}
}
