package gipps_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/randengine"
)

var typical = gipps.Params{TRxn: 1.0, VDes: 30, ADes: 1.7, DDes: -3.4, DLead: -3.8, GMin: 3}

func TestKindTable(t *testing.T) {
	kinds := gipps.Kinds()
	require.Len(t, kinds, gipps.NumKinds)
	assert.Equal(t, "t_rxn", gipps.TRxn.String())
	assert.Equal(t, "g_min", kinds[5].String())
	low, high := gipps.DDes.Domain()
	assert.Equal(t, -5.2, low)
	assert.Equal(t, -1.6, high)
	assert.False(t, gipps.Kind(6).Valid())
}

func TestRandomStaysInDomain(t *testing.T) {
	e := randengine.New(11)
	for range 1000 {
		p := gipps.Random(e)
		assert.True(t, p.InDomain(), "%v", p)
		for _, k := range gipps.Kinds() {
			v := p.Get(k)
			assert.Equal(t, randengine.Round(v, 1), v)
		}
	}
}

func TestValuesRoundTrip(t *testing.T) {
	values := typical.Values()
	assert.Equal(t, []float64{1.0, 30, 1.7, -3.4, -3.8, 3}, values)
	p, err := gipps.FromValues(values)
	require.NoError(t, err)
	assert.Equal(t, typical, p)

	_, err = gipps.FromValues([]float64{1, 2})
	assert.Error(t, err)
}

func TestWithDoesNotModifyReceiver(t *testing.T) {
	p := typical.With(gipps.GMin, 2.5)
	assert.Equal(t, 2.5, p.GMin)
	assert.Equal(t, 3.0, typical.GMin)
}

func TestPredictDeterministicAndFinite(t *testing.T) {
	a := gipps.PredictNextVelocity(typical, 15, 16, 25)
	b := gipps.PredictNextVelocity(typical, 15, 16, 25)
	assert.Equal(t, a, b)
	assert.False(t, math.IsNaN(a) || math.IsInf(a, 0))
}

func TestPredictWithoutLeadUsesAccelerationBranch(t *testing.T) {
	vf := 15.0
	want := vf + 2.5*typical.ADes*typical.TRxn*(1-vf/typical.VDes)*math.Sqrt(0.025+vf/typical.VDes)
	assert.Equal(t, want, gipps.PredictNextVelocity(typical, vf, math.NaN(), 25))
	assert.Equal(t, want, gipps.PredictNextVelocity(typical, vf, math.Inf(1), 25))
	assert.Equal(t, want, gipps.PredictNextVelocity(typical, vf, math.Inf(-1), 25))
}

func TestPredictNegativeDiscriminant(t *testing.T) {
	// 车距为很大的负数，根号下为负
	vf := 15.0
	got := gipps.PredictNextVelocity(typical, vf, 0, -1000)
	want := vf + 2.5*typical.ADes*typical.TRxn*(1-vf/typical.VDes)*math.Sqrt(0.025+vf/typical.VDes)
	assert.Equal(t, want, got)
}

func TestPredictCloseLeadBrakes(t *testing.T) {
	// 车距很小且前车停止，减速分支起作用
	got := gipps.PredictNextVelocity(typical, 15, 0, 5)
	assert.Less(t, got, 15.0)
}

func TestSteps(t *testing.T) {
	assert.Equal(t, 10, gipps.Steps(1.0))
	assert.Equal(t, 2, gipps.Steps(0.3))
	assert.Equal(t, 30, gipps.Steps(3.0))
}

func TestSimulate(t *testing.T) {
	traj, err := gipps.Simulate(typical, gipps.ConstantLead(15), gipps.State{VFollow: 14, Spacing: 30}, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, traj.Len())
	steps := gipps.Steps(typical.TRxn)
	s0, s := traj.At(0), traj.At(steps)
	assert.Equal(t, gipps.PredictNextVelocity(typical, s0.VFollow, s0.VLead, s0.Spacing), s.VFollow)

	_, err = gipps.Simulate(typical.With(gipps.TRxn, 0.05), gipps.ConstantLead(15), gipps.State{VFollow: 14, Spacing: 30}, 100)
	assert.Error(t, err)
	_, err = gipps.Simulate(typical.With(gipps.VDes, 0), gipps.ConstantLead(15), gipps.State{VFollow: 14, Spacing: 30}, 100)
	assert.Error(t, err)
}
