// Package config provides configuration loading and management for neuroglitch.
// It handles loading configuration from YAML or TOML files and provides default values.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"neuroglitch/internal/models"
	nerrors "neuroglitch/pkg/errors"
	"neuroglitch/pkg/simulation"
)

// Parameter policies.
const (
	// FixedRangeFixed applies the configured parameters to every file.
	FixedRangeFixed = "fixed"
	// FixedRangeRange draws new parameters for every file from Ranges.
	FixedRangeRange = "range"
)

// Save types.
const (
	SaveNone = "none"
	Save3D   = "3d"
	SaveJPEG = "jpeg"
)

// Config represents the application configuration loaded from YAML or TOML
type Config struct {
	// Paths locate inputs and outputs
	Paths struct {
		// Input is a NIfTI file or a directory of them
		Input string `yaml:"input" toml:"input"`

		// Output receives simulated volumes and the JSON results
		Output string `yaml:"output" toml:"output"`

		// GIFDir receives the preview animations
		GIFDir string `yaml:"gifDir" toml:"gifDir"`

		// JSONFile overrides the results file location when set
		JSONFile string `yaml:"jsonFile" toml:"jsonFile"`
	} `yaml:"paths" toml:"paths"`

	// Simulation parameters
	Simulation struct {
		// Mode is single, independent or chained
		Mode string `yaml:"mode" toml:"mode"`

		// Types lists the artifacts to inject, in application order
		Types []string `yaml:"types" toml:"types"`

		// Axis is the main axis for missing_slides and wrong_sequence
		Axis int `yaml:"axis" toml:"axis"`

		RemoveParam simulation.Param `yaml:"removeParam" toml:"removeParam"`

		// ShuffleParam limits wrong_sequence to a subset; unset shuffles everything
		ShuffleParam *simulation.Param `yaml:"shuffleParam" toml:"shuffleParam"`

		WeightParam   simulation.Param `yaml:"weightParam" toml:"weightParam"`
		MixedAxisList []int            `yaml:"mixedAxisList" toml:"mixedAxisList"`

		// FixedRange is "fixed" or "range"
		FixedRange string `yaml:"fixedRange" toml:"fixedRange"`

		// ClearState resets the simulator before each file
		ClearState bool `yaml:"clearState" toml:"clearState"`

		// Seed makes runs reproducible; 0 picks a time-based seed
		Seed uint64 `yaml:"seed" toml:"seed"`
	} `yaml:"simulation" toml:"simulation"`

	// Ranges bound the parameters drawn in range mode
	Ranges Ranges `yaml:"ranges" toml:"ranges"`

	// Output parameters
	Output struct {
		// SaveType is 3d, jpeg or none
		SaveType string `yaml:"saveType" toml:"saveType"`

		// GIFFraction is the leading share of slices in each preview
		GIFFraction float64 `yaml:"gifFraction" toml:"gifFraction"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose" toml:"verbose"`
	} `yaml:"output" toml:"output"`

	// Processing parameters
	Processing struct {
		// Workers specifies how many files are processed concurrently
		Workers int `yaml:"workers" toml:"workers"`
	} `yaml:"processing" toml:"processing"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Paths.Input = "data"
	cfg.Paths.Output = "outputs"
	cfg.Paths.GIFDir = filepath.Join("outputs", "gifs")

	shuffle := simulation.Fraction(0.5)
	cfg.Simulation.Mode = string(simulation.ModeSingle)
	cfg.Simulation.Types = []string{string(simulation.KindMissingSlides)}
	cfg.Simulation.Axis = 0
	cfg.Simulation.RemoveParam = simulation.Count(5)
	cfg.Simulation.ShuffleParam = &shuffle
	cfg.Simulation.WeightParam = simulation.Fraction(0.3)
	cfg.Simulation.MixedAxisList = []int{0, 1, 2}
	cfg.Simulation.FixedRange = FixedRangeFixed

	cfg.Ranges = DefaultRanges()

	cfg.Output.SaveType = SaveNone
	cfg.Output.GIFFraction = 0.3

	cfg.Processing.Workers = runtime.NumCPU()

	return cfg
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// LoadConfig loads configuration from a YAML or TOML file, chosen by the
// .toml extension. If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if isTOML(configPath) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML or TOML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	var data []byte
	if isTOML(configPath) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the values that can be checked without looking at a
// volume: mode, type counts, axes, save type and policy.
func (c *Config) Validate() error {
	mode, err := c.Mode()
	if err != nil {
		return err
	}
	kinds, err := c.Kinds()
	if err != nil {
		return err
	}

	switch mode {
	case simulation.ModeSingle:
		if len(kinds) != 1 {
			return nerrors.New(nerrors.ErrCodeInvalidSpecCount,
				"single mode requires exactly 1 simulation type, got %d", len(kinds))
		}
	default:
		if len(kinds) < 2 {
			return nerrors.New(nerrors.ErrCodeInvalidSpecCount,
				"%s mode requires at least 2 simulation types, got %d", mode, len(kinds))
		}
	}

	if a := models.Axis(c.Simulation.Axis); !a.Valid() {
		return nerrors.New(nerrors.ErrCodeInvalidParameter, "axis must be 0, 1, or 2, got %d", c.Simulation.Axis)
	}
	for _, k := range kinds {
		if k != simulation.KindMixedAxis {
			continue
		}
		if n := len(c.Simulation.MixedAxisList); n < 1 || n > models.NumAxes {
			return nerrors.New(nerrors.ErrCodeInvalidAxisList,
				"mixed axis list must contain 1 to 3 axes, got %d", n)
		}
	}

	switch c.Output.SaveType {
	case SaveNone, Save3D, SaveJPEG:
	default:
		return nerrors.New(nerrors.ErrCodeInvalidParameter,
			"save type %q is invalid (must be 3d, jpeg, or none)", c.Output.SaveType)
	}

	switch c.Simulation.FixedRange {
	case FixedRangeFixed:
	case FixedRangeRange:
		if err := c.Ranges.Validate(); err != nil {
			return err
		}
	default:
		return nerrors.New(nerrors.ErrCodeInvalidParameter,
			"fixed range %q is invalid (must be fixed or range)", c.Simulation.FixedRange)
	}

	if c.Output.GIFFraction <= 0 || c.Output.GIFFraction > 1 {
		return nerrors.New(nerrors.ErrCodeInvalidParameter,
			"gif fraction %v must be in (0, 1]", c.Output.GIFFraction)
	}

	return nil
}

// Mode returns the parsed simulation mode.
func (c *Config) Mode() (simulation.Mode, error) {
	return simulation.ParseMode(c.Simulation.Mode)
}

// Kinds returns the parsed simulation types.
func (c *Config) Kinds() ([]simulation.Kind, error) {
	kinds := make([]simulation.Kind, 0, len(c.Simulation.Types))
	for _, s := range c.Simulation.Types {
		k, err := simulation.ParseKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// FixedOptions returns the configured parameters as spec options.
func (c *Config) FixedOptions() simulation.SpecOptions {
	axes := make([]models.Axis, len(c.Simulation.MixedAxisList))
	for i, a := range c.Simulation.MixedAxisList {
		axes[i] = models.Axis(a)
	}

	var shuffle *simulation.Param
	if c.Simulation.ShuffleParam != nil {
		p := *c.Simulation.ShuffleParam
		shuffle = &p
	}

	return simulation.SpecOptions{
		Axis:         models.Axis(c.Simulation.Axis),
		RemoveParam:  c.Simulation.RemoveParam,
		ShuffleParam: shuffle,
		WeightParam:  c.Simulation.WeightParam,
		MixedAxes:    axes,
	}
}
