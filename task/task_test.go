package task_test

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/gipps"
	"github.com/tsinghua-fib-lab/gipps-calibration/store"
	"github.com/tsinghua-fib-lab/gipps-calibration/task"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/input"
)

func simulated(t *testing.T) *trajectory.Trajectory {
	truth := gipps.Params{TRxn: 1.0, VDes: 30, ADes: 1.7, DDes: -3.4, DLead: -3.8, GMin: 3}
	lead := func(i int) float64 { return 15 + 2*math.Sin(float64(i)/20) }
	traj, err := gipps.Simulate(truth, lead, gipps.State{VFollow: 14, Spacing: 30}, 50)
	require.NoError(t, err)
	return traj
}

func TestRunWritesOutputs(t *testing.T) {
	dir := t.TempDir()
	rc, err := config.NewRuntimeConfig(config.Config{
		Input:  config.Input{Format: config.FormatProcessed, File: "unused.csv"},
		GA:     config.GA{Runs: 2, Seed: 7},
		Output: config.Output{Dir: dir, Plot: true, Export: true, SQLite: filepath.Join(dir, "runs.db")},
	})
	require.NoError(t, err)
	s, err := store.Open(rc.All.Output)
	require.NoError(t, err)

	ctx := task.NewContext("synthetic", rc, trajectory.Static(simulated(t)), s)
	defer ctx.Close()
	require.NoError(t, ctx.Init(context.Background()))
	summaries, err := ctx.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	for i, sum := range summaries {
		assert.Equal(t, i+1, sum.Test)
		assert.Equal(t, uint64(8+i), sum.Seed)
		assert.NotEmpty(t, sum.ID)
		assert.Len(t, sum.ScoreHistory, sum.Generations-1)
		assert.LessOrEqual(t, sum.UniqueIndividuals, sum.PopSize)
		assert.LessOrEqual(t, sum.BestIndividualScore, sum.BestPopulationScore+1e-9)
		name := fmt.Sprintf("test_%03d_run_%02d", sum.Test, sum.Run)
		assert.FileExists(t, filepath.Join(dir, name+".log"))
		assert.FileExists(t, filepath.Join(dir, name+".png"))
	}
	assert.FileExists(t, filepath.Join(dir, "synthetic.csv"))
	assert.FileExists(t, filepath.Join(dir, "synthetic.html"))

	logText, err := os.ReadFile(filepath.Join(dir, "test_001_run_01.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logText), "Generation: 1 ")

	runs, err := s.(*store.SQLiteStore).ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	best, ok := task.BestRun(summaries)
	require.True(t, ok)
	assert.LessOrEqual(t, best.BestPopulationScore, summaries[0].BestPopulationScore)
}

func TestRunTimeoutStoresPartialResult(t *testing.T) {
	dir := t.TempDir()
	rc, err := config.NewRuntimeConfig(config.Config{
		Input: config.Input{Format: config.FormatProcessed, File: "unused.csv"},
		GA: config.GA{
			Seed:           3,
			Degrade:        []int{100000},
			Restart:        []int{100000},
			TimeoutMinutes: 0.001,
		},
		Output: config.Output{Dir: dir, SQLite: filepath.Join(dir, "runs.db")},
	})
	require.NoError(t, err)
	s, err := store.Open(rc.All.Output)
	require.NoError(t, err)

	ctx := task.NewContext("timeout", rc, trajectory.Static(simulated(t)), s)
	defer ctx.Close()
	require.NoError(t, ctx.Init(context.Background()))
	summaries, err := ctx.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Canceled)
	assert.GreaterOrEqual(t, summaries[0].Generations, 1)
	assert.Len(t, summaries[0].ScoreHistory, summaries[0].Generations-1)

	runs, err := s.(*store.SQLiteStore).ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Canceled)
	assert.Equal(t, summaries[0].ID, runs[0].ID)
}

func TestRunStopsOnParentCancel(t *testing.T) {
	dir := t.TempDir()
	rc, err := config.NewRuntimeConfig(config.Config{
		Input:  config.Input{Format: config.FormatProcessed, File: "unused.csv"},
		GA:     config.GA{Runs: 3, Degrade: []int{100000}, Restart: []int{100000}},
		Output: config.Output{Dir: dir},
	})
	require.NoError(t, err)
	ctx := task.NewContext("cancel", rc, trajectory.Static(simulated(t)), store.Nop{})
	defer ctx.Close()
	require.NoError(t, ctx.Init(context.Background()))

	c, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	summaries, err := ctx.Run(c)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].Canceled)
}

func TestRunRequiresInit(t *testing.T) {
	rc, err := config.NewRuntimeConfig(config.Config{Input: config.Input{Format: config.FormatProcessed, File: "x"}})
	require.NoError(t, err)
	ctx := task.NewContext("x", rc, trajectory.Static(simulated(t)), store.Nop{})
	_, err = ctx.Run(context.Background())
	assert.Error(t, err)
}

func TestBestRunSkipsNaN(t *testing.T) {
	_, ok := task.BestRun([]*entity.RunSummary{{BestPopulationScore: math.NaN()}})
	assert.False(t, ok)
	best, ok := task.BestRun([]*entity.RunSummary{{Test: 1, BestPopulationScore: 3}, {Test: 2, BestPopulationScore: math.NaN()}, {Test: 3, BestPopulationScore: 1}})
	require.True(t, ok)
	assert.Equal(t, 3, best.Test)
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Event_7.csv")
	var sb strings.Builder
	sb.WriteString("vtti.timestamp,vtti.speed_network,track1_target_id,track1_is_lead_vehicle,track1_x_pos_processed,track1_x_vel_processed\n")
	for i := range 650 {
		fmt.Fprintf(&sb, "%d,36,4,1,25,0.1\n", i*100)
	}
	require.NoError(t, os.WriteFile(file, []byte(sb.String()), 0o644))

	out := filepath.Join(dir, "out")
	episodes, err := task.Extract(context.Background(), config.Config{
		Input: config.Input{Format: config.FormatNDS, File: file, Extraction: config.Extraction{
			MinDuration: 60, MaxDistance: 80, MinSpeed: 1, GapMs: 3000, Smoothing: -1,
		}},
		Output: config.Output{Dir: out},
	})
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "Event_7_1", episodes[0].ID)
	assert.Equal(t, "Event_7", episodes[0].Event)

	src, err := input.NewFileSource(config.FormatProcessed, filepath.Join(out, "Event_7_1.csv"))
	require.NoError(t, err)
	traj, err := src.Trajectory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 649, traj.Len())
	assert.InDelta(t, 10.0, traj.At(0).VFollow, 1e-9)
	assert.InDelta(t, 9.9, traj.At(0).VLead, 1e-9)
}
