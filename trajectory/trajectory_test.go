package trajectory_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestNewFillsDefaults(t *testing.T) {
	traj, err := trajectory.New(trajectory.Columns{
		VFollow: []float64{10, 11, 12},
		VLead:   []float64{12, math.NaN(), 12},
		Spacing: []float64{20, 21, 22},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, traj.Len())
	assert.InDelta(t, 0.2, traj.At(2).Time, 1e-12)
	assert.Equal(t, -2.0, traj.At(0).DV)
	assert.True(t, math.IsInf(traj.At(1).DV, 1))
	assert.True(t, traj.HasLead(0))
	assert.False(t, traj.HasLead(1))
	assert.True(t, math.IsNaN(traj.At(0).AFollow))
}

func TestNewRejectsBadColumns(t *testing.T) {
	_, err := trajectory.New(trajectory.Columns{})
	assert.ErrorIs(t, err, trajectory.ErrEmpty)

	_, err = trajectory.New(trajectory.Columns{
		VFollow: []float64{1, 2},
		VLead:   []float64{1},
		Spacing: []float64{1, 2},
	})
	assert.ErrorIs(t, err, trajectory.ErrLengthMismatch)

	_, err = trajectory.New(trajectory.Columns{
		VFollow: []float64{1, 2},
		VLead:   []float64{1, 2},
		Spacing: []float64{1, 2},
		ALead:   []float64{0},
	})
	assert.ErrorIs(t, err, trajectory.ErrLengthMismatch)
}

func TestColumnsAreCopies(t *testing.T) {
	vf := []float64{1, 2, 3}
	traj := trajectory.MustNew(trajectory.Columns{VFollow: vf, VLead: vf, Spacing: vf})
	vf[0] = 100
	assert.Equal(t, 1.0, traj.At(0).VFollow)
	got := traj.VFollow()
	got[1] = 100
	assert.Equal(t, 2.0, traj.At(1).VFollow)
}

func TestMerge(t *testing.T) {
	a := trajectory.MustNew(trajectory.Columns{VFollow: []float64{1, 2}, VLead: []float64{3, 3}, Spacing: []float64{5, 6}})
	b := trajectory.MustNew(trajectory.Columns{VFollow: []float64{7}, VLead: []float64{8}, Spacing: []float64{9}})
	m := a.Merge(b)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []float64{5, 6, 9}, m.Spacing())
	assert.Equal(t, 2, a.Len())
}

func TestMovingAverage(t *testing.T) {
	n := 10
	dv := ramp(n, 0, 1)
	dv[5] = math.NaN()
	traj := trajectory.MustNew(trajectory.Columns{
		VFollow: constant(n, 20),
		VLead:   constant(n, 20),
		Spacing: constant(n, 30),
		DV:      dv,
	})
	smoothed, err := traj.MovingAverage(4)
	require.NoError(t, err)
	// 结尾丢弃resolution/2个点
	assert.Equal(t, n-2, smoothed.Len())
	got := smoothed.DV()
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	// 窗口X[1..4]
	assert.InDelta(t, 2.5, got[2], 1e-12)
	// 窗口X[3..6]，X[5]为NaN被跳过
	assert.InDelta(t, (3.0+4+6)/3, got[4], 1e-12)
	// 前车速度随平滑后的相对速度更新，NaN处保持原值
	assert.InDelta(t, 20-2.5, smoothed.At(2).VLead, 1e-12)
	assert.Equal(t, 20.0, smoothed.At(0).VLead)

	_, err = traj.MovingAverage(1)
	assert.Error(t, err)
}

func TestMovingAverageCarriesPreviousValue(t *testing.T) {
	n := 8
	dv := constant(n, math.NaN())
	dv[0], dv[1], dv[2] = 1, 1, 1
	traj := trajectory.MustNew(trajectory.Columns{
		VFollow: constant(n, 10), VLead: constant(n, 10), Spacing: constant(n, 10), DV: dv,
	})
	smoothed, err := traj.MovingAverage(2)
	require.NoError(t, err)
	got := smoothed.DV()
	// h=1：窗口X[i..i+1]
	assert.Equal(t, 1.0, got[1])
	assert.Equal(t, 1.0, got[2])
	assert.Equal(t, 1.0, got[5])
}

func TestKalmanFilter(t *testing.T) {
	n := 200
	traj := trajectory.MustNew(trajectory.Columns{
		VFollow: constant(n, 15),
		VLead:   constant(n, 14),
		Spacing: ramp(n, 30, 0.1),
	})
	filtered, err := traj.KalmanFilter(trajectory.DefaultProcessVariance, trajectory.DefaultMeasurementVariance)
	require.NoError(t, err)
	assert.Equal(t, n-1, filtered.Len())
	got := filtered.DV()
	// 常量测量时估计值单调收敛到测量值
	assert.Less(t, got[0], got[10])
	assert.InDelta(t, 1.0, got[n-2], 1e-2)
	assert.InDelta(t, 30.1, filtered.At(0).Spacing, 1e-12)

	_, err = traj.KalmanFilter(0.1, 0)
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	traj := trajectory.MustNew(trajectory.Columns{
		VFollow: []float64{10, 20, math.NaN(), 30},
		VLead:   []float64{10, math.NaN(), 20, 30},
		Spacing: []float64{5, 6, 4, math.Inf(1)},
	})
	s := traj.Summary()
	assert.Equal(t, 4, s.Samples)
	assert.InDelta(t, 0.3, s.Duration, 1e-12)
	assert.InDelta(t, 20, s.MeanSpeed, 1e-12)
	assert.Equal(t, 4.0, s.MinSpacing)
	assert.Equal(t, 6.0, s.MaxSpacing)
	assert.InDelta(t, 0.75, s.LeadRatio, 1e-12)
}

func TestStaticSource(t *testing.T) {
	traj := trajectory.MustNew(trajectory.Columns{VFollow: []float64{1}, VLead: []float64{1}, Spacing: []float64{1}})
	got, err := trajectory.Static(traj).Trajectory(context.Background())
	require.NoError(t, err)
	assert.Same(t, traj, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = trajectory.Static(traj).Trajectory(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
