package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/gipps-calibration/entity"
	"github.com/tsinghua-fib-lab/gipps-calibration/utils/config"
	"gopkg.in/yaml.v2"
)

const sample = `
input:
  format: processed
  file: data/evt_1.csv
ga:
  runs: 2
  seed: 100
  pop_size: [10, 20]
  mutate: [0.001, 0.01]
output:
  sqlite: runs.db
`

func TestRuntimeConfigDefaultsAndGrid(t *testing.T) {
	var c config.Config
	require.NoError(t, yaml.UnmarshalStrict([]byte(sample), &c))
	rc, err := config.NewRuntimeConfig(c)
	require.NoError(t, err)

	assert.Equal(t, 60.0, rc.All.Input.Extraction.MinDuration)
	assert.Equal(t, 16, rc.All.Input.Extraction.Smoothing)
	assert.Equal(t, "output", rc.All.Output.Dir)
	require.Len(t, rc.Tests, 8)

	first := rc.Tests[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, 1, first.Run)
	assert.Equal(t, uint64(101), first.Seed)
	assert.Equal(t, entity.GAConfig{
		PopSize: 10, DegradeThreshold: 2, RestartThreshold: 1,
		RetainFraction: 0.2, RandomSelectFraction: 0.2, MutateFraction: 0.001,
	}, first.GA)

	second := rc.Tests[1]
	assert.Equal(t, 2, second.Run)
	assert.Equal(t, first.GA, second.GA)

	last := rc.Tests[7]
	assert.Equal(t, 8, last.Number)
	assert.Equal(t, 20, last.GA.PopSize)
	assert.Equal(t, 0.01, last.GA.MutateFraction)
}

func TestValidate(t *testing.T) {
	_, err := config.NewRuntimeConfig(config.Config{Input: config.Input{Format: "xml"}})
	assert.ErrorContains(t, err, "input.format")

	_, err = config.NewRuntimeConfig(config.Config{Input: config.Input{Format: config.FormatNDS}})
	assert.ErrorContains(t, err, "input.file")

	_, err = config.NewRuntimeConfig(config.Config{Input: config.Input{Format: config.FormatMongo}})
	assert.ErrorContains(t, err, "input.uri")

	_, err = config.NewRuntimeConfig(config.Config{
		Input:  config.Input{Format: config.FormatProcessed, File: "x"},
		Output: config.Output{Runs: &config.InputPath{DB: "a", Col: "b"}},
	})
	assert.ErrorContains(t, err, "output.uri")

	_, err = config.NewRuntimeConfig(config.Config{Input: config.Input{Format: config.FormatProcessed, File: "x", Radar: "stac.csv"}})
	assert.ErrorContains(t, err, "input.stac")
	_, err = config.NewRuntimeConfig(config.Config{Input: config.Input{Format: config.FormatNDS, Files: []string{"a", "b"}, Radar: "stac.csv"}})
	assert.ErrorContains(t, err, "input.stac")
	_, err = config.NewRuntimeConfig(config.Config{Input: config.Input{Format: config.FormatNDS, File: "a", Radar: "stac.csv"}})
	assert.NoError(t, err)
}

func TestUnmarshalStrictRejectsUnknownKeys(t *testing.T) {
	var c config.Config
	assert.Error(t, yaml.UnmarshalStrict([]byte("ga:\n  popsize: [1]\n"), &c))
}

func TestCachePath(t *testing.T) {
	assert.Equal(t, "nds.episodes.pb", config.InputPath{DB: "nds", Col: "episodes"}.GetCachePath())
	assert.Equal(t, "x.pb", config.InputPath{DB: "nds", Col: "episodes", Cache: "x.pb"}.GetCachePath())
}
