package report_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gipps-calibration/report"
	"github.com/tsinghua-fib-lab/gipps-calibration/trajectory"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/input"
)

func sample() *trajectory.Trajectory {
	return trajectory.MustNew(trajectory.Columns{
		Stamp:   []float64{1000, 1100, 1200, 1300},
		VFollow: []float64{14, 14.1, 14.2, 14.3},
		VLead:   []float64{15, math.NaN(), 15.2, 15.1},
		Spacing: []float64{30, 30.1, 30.25, 30.4},
		AFollow: []float64{0.1, 0.1, 0.1, 0.1},
	})
}

func TestWriteTrajectoryCSVRoundTrip(t *testing.T) {
	traj := sample()
	var buf bytes.Buffer
	require.NoError(t, report.WriteTrajectoryCSV(&buf, "evt_1", traj))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "evt_1", lines[0])
	assert.Equal(t, "", lines[1])
	assert.Equal(t, input.ProcessedHeader, lines[2])
	assert.Equal(t, "+Inf,30.1,0.1,1100,NaN,14.1,NaN,0.1", lines[4])

	back, err := input.Parse(config.FormatProcessed, &buf)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(traj.Columns(), back.Columns(), cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-12)))
}

func TestScoreHistoryPNG(t *testing.T) {
	file := filepath.Join(t.TempDir(), "history.png")
	require.NoError(t, report.ScoreHistoryPNG("test 1", []float64{5, math.Inf(1), 3, math.NaN(), 2.5}, file))
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, report.ScoreHistoryPNG("empty", []float64{math.NaN()}, filepath.Join(t.TempDir(), "x.png")))
}

func TestEpisodeHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.EpisodeHTML(&buf, "evt_1", sample()))
	html := buf.String()
	assert.Contains(t, html, "evt_1: time vs. spacing")
	assert.Contains(t, html, "relative velocity vs. spacing")
	assert.NotContains(t, html, "NaN")
}
