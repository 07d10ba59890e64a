package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"neuroglitch/internal/models"
	nerrors "neuroglitch/pkg/errors"
	"neuroglitch/pkg/simulation"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Greater(t, cfg.Processing.Workers, 0)
	assert.Equal(t, simulation.Count(5), cfg.Simulation.RemoveParam)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Simulation.Mode, cfg.Simulation.Mode)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "conf", name)

			cfg := DefaultConfig()
			cfg.Simulation.Mode = "chained"
			cfg.Simulation.Types = []string{"mixed_axis", "missing_slides"}
			cfg.Simulation.RemoveParam = simulation.Fraction(0.25)
			one := simulation.Fraction(1.0)
			cfg.Simulation.ShuffleParam = &one
			cfg.Simulation.WeightParam = simulation.Count(4)
			cfg.Simulation.Seed = 1234
			cfg.Processing.Workers = 3
			require.NoError(t, SaveConfig(cfg, path))

			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Simulation.Types, loaded.Simulation.Types)
			assert.Equal(t, simulation.Fraction(0.25), loaded.Simulation.RemoveParam)
			require.NotNil(t, loaded.Simulation.ShuffleParam)
			assert.Equal(t, one, *loaded.Simulation.ShuffleParam)
			assert.Equal(t, simulation.Count(4), loaded.Simulation.WeightParam)
			assert.Equal(t, uint64(1234), loaded.Simulation.Seed)
			assert.Equal(t, 3, loaded.Processing.Workers)
			assert.Equal(t, cfg.Ranges, loaded.Ranges)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yml")
	data := `
paths:
  input: scans
simulation:
  mode: independent
  types: [missing_slides, wrong_sequence]
  axis: 2
  removeParam: 0.1
  shuffleParam: null
  weightParam: 7
output:
  saveType: 3d
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "scans", cfg.Paths.Input)
	assert.Equal(t, "outputs", cfg.Paths.Output)
	assert.Equal(t, simulation.Fraction(0.1), cfg.Simulation.RemoveParam)
	assert.Nil(t, cfg.Simulation.ShuffleParam)
	assert.Equal(t, simulation.Count(7), cfg.Simulation.WeightParam)

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, simulation.ModeIndependent, mode)

	opts := cfg.FixedOptions()
	assert.Equal(t, models.AxisZ, opts.Axis)
	assert.Nil(t, opts.ShuffleParam)
	assert.Equal(t, []models.Axis{0, 1, 2}, opts.MixedAxes)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.toml")
	data := `
[simulation]
mode = "chained"
types = ["wrong_sequence", "missing_slides"]
removeParam = 3
shuffleParam = 0.2
fixedRange = "range"

[ranges.remove]
lower = 2
upper = 4
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, simulation.Count(3), cfg.Simulation.RemoveParam)
	require.NotNil(t, cfg.Simulation.ShuffleParam)
	assert.True(t, cfg.Simulation.ShuffleParam.IsFraction())
	assert.InDelta(t, 0.2, cfg.Simulation.ShuffleParam.Value(), 1e-9)
	assert.Equal(t, Bounds{Lower: 2, Upper: 4}, cfg.Ranges.Remove)
	assert.Equal(t, DefaultRanges().Weight, cfg.Ranges.Weight)
}

func TestLoadConfigParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  removeParam: lots\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		code   nerrors.Code
	}{
		{"unknown mode", func(c *Config) { c.Simulation.Mode = "parallel" }, nerrors.ErrCodeInvalidParameter},
		{"unknown type", func(c *Config) { c.Simulation.Types = []string{"blur"} }, nerrors.ErrCodeUnknownTransformType},
		{"single with two types", func(c *Config) {
			c.Simulation.Types = []string{"missing_slides", "mixed_axis"}
		}, nerrors.ErrCodeInvalidSpecCount},
		{"chained with one type", func(c *Config) { c.Simulation.Mode = "chained" }, nerrors.ErrCodeInvalidSpecCount},
		{"bad axis", func(c *Config) { c.Simulation.Axis = 3 }, nerrors.ErrCodeInvalidParameter},
		{"long mixed axis list", func(c *Config) {
			c.Simulation.Types = []string{"mixed_axis"}
			c.Simulation.MixedAxisList = []int{0, 1, 2, 1}
		}, nerrors.ErrCodeInvalidAxisList},
		{"bad save type", func(c *Config) { c.Output.SaveType = "png" }, nerrors.ErrCodeInvalidParameter},
		{"bad policy", func(c *Config) { c.Simulation.FixedRange = "sometimes" }, nerrors.ErrCodeInvalidParameter},
		{"bad ranges", func(c *Config) {
			c.Simulation.FixedRange = FixedRangeRange
			c.Ranges.Weight = Bounds{Lower: 0.5, Upper: 0.1}
		}, nerrors.ErrCodeInvalidParameter},
		{"bad gif fraction", func(c *Config) { c.Output.GIFFraction = 0 }, nerrors.ErrCodeInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, nerrors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestRangesSample(t *testing.T) {
	r := DefaultRanges()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		opts, err := r.Sample(rng)
		require.NoError(t, err)

		assert.True(t, opts.Axis.Valid())
		require.NotEmpty(t, opts.MixedAxes)
		assert.Equal(t, opts.Axis, opts.MixedAxes[0])
		assert.GreaterOrEqual(t, len(opts.MixedAxes), 2)

		// remove draws from [1, 15]: a fraction only at exactly 1
		if !opts.RemoveParam.IsFraction() {
			assert.GreaterOrEqual(t, opts.RemoveParam.Value(), 1.0)
			assert.LessOrEqual(t, opts.RemoveParam.Value(), 15.0)
		}

		require.NotNil(t, opts.ShuffleParam)
		assert.True(t, opts.ShuffleParam.IsFraction())
		assert.GreaterOrEqual(t, opts.ShuffleParam.Value(), 0.01)
		assert.LessOrEqual(t, opts.ShuffleParam.Value(), 0.5)

		assert.True(t, opts.WeightParam.IsFraction())
		assert.LessOrEqual(t, opts.WeightParam.Value(), 0.3)
	}
}

func TestRangesSampleDeterministic(t *testing.T) {
	r := DefaultRanges()
	a, err := r.Sample(rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	b, err := r.Sample(rand.New(rand.NewSource(99)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRangesSampleNoMatchingList(t *testing.T) {
	r := DefaultRanges()
	r.Axes = []int{2}
	r.MixedAxisLists = []string{"0,1"}

	_, err := r.Sample(rand.New(rand.NewSource(1)))
	assert.True(t, nerrors.Is(err, nerrors.ErrCodeInvalidAxisList))
}

func TestParseAxisList(t *testing.T) {
	tests := []struct {
		in      string
		want    []models.Axis
		wantErr bool
	}{
		{"0,1", []models.Axis{0, 1}, false},
		{" 2, 1 ,0 ", []models.Axis{2, 1, 0}, false},
		{"12", []models.Axis{1, 2}, false},
		{"1", []models.Axis{1}, false},
		{"", nil, true},
		{"0,3", nil, true},
		{"0,1,2,0", nil, true},
		{"a,b", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAxisList(tt.in)
			if tt.wantErr {
				assert.True(t, nerrors.Is(err, nerrors.ErrCodeInvalidAxisList), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
