package cli

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"neuroglitch/pkg/config"
	nerrors "neuroglitch/pkg/errors"
	"neuroglitch/pkg/pipeline"
	"neuroglitch/pkg/simulation"
)

// shuffleAll is the --shuffle-param value that reorders every slice.
const shuffleAll = "all"

// runOptions holds the flags of the run command. Only flags set on the
// command line override the loaded configuration.
type runOptions struct {
	configPath   string
	input        string
	output       string
	gifDir       string
	jsonFile     string
	mode         string
	types        []string
	removeParam  string
	shuffleParam string
	weightParam  string
	mixedAxes    string
	axis         int
	clearState   bool
	saveType     string
	fixedRange   string
	seed         uint64
	workers      int
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate artifacts on a NIfTI file or a directory of them",
		Example: `  neuroglitch run -i scan.nii.gz --sim-type missing_slides --remove-param 5
  neuroglitch run -i scans/ --sim-mode chained --sim-type wrong_sequence --sim-type mixed_axis --save-type 3d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file (YAML, or TOML for .toml paths)")
	f.StringVarP(&opts.input, "input", "i", "", "NIfTI file or directory of NIfTI files")
	f.StringVarP(&opts.output, "output", "o", "", "output directory")
	f.StringVar(&opts.gifDir, "gif-dir", "", "directory for preview GIFs")
	f.StringVar(&opts.jsonFile, "json-file", "", "results file (default: derived from the input)")
	f.StringVar(&opts.mode, "sim-mode", "", "simulation mode: single, independent, or chained")
	f.StringArrayVar(&opts.types, "sim-type", nil, "simulation type: missing_slides, wrong_sequence, or mixed_axis (repeatable)")
	f.StringVar(&opts.removeParam, "remove-param", "", "slices to remove: count (5) or fraction (0.1)")
	f.StringVar(&opts.shuffleParam, "shuffle-param", "", `slices to shuffle: count, fraction, or "all"`)
	f.StringVar(&opts.weightParam, "weight-param", "", "slices to substitute: count or fraction")
	f.StringVar(&opts.mixedAxes, "mixed-axis-list", "", `axes for mixed_axis, main axis first (e.g. "0,1,2")`)
	f.IntVar(&opts.axis, "axis", 0, "main axis (0, 1, or 2)")
	f.BoolVar(&opts.clearState, "clear-state", false, "reset the simulator before each file")
	f.StringVar(&opts.saveType, "save-type", "", "save simulated volumes as 3d, jpeg, or none")
	f.StringVar(&opts.fixedRange, "fixed-range", "", "parameter policy: fixed or range")
	f.Uint64Var(&opts.seed, "seed", 0, "random seed (0 picks one)")
	f.IntVar(&opts.workers, "workers", 0, "files processed concurrently")

	return cmd
}

func runSimulation(cmd *cobra.Command, opts *runOptions) error {
	logger := loggerFromContext(cmd.Context())

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(opts.configPath); err != nil {
			return err
		}
	}
	if err := opts.apply(cmd.Flags(), cfg); err != nil {
		return err
	}
	if cfg.Output.Verbose {
		logger.SetLevel(log.DebugLevel)
	}

	params, err := pipeline.ParamsFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	prog := newProgress(logger)
	summary, err := pipeline.NewRunner(params).Process(cmd.Context())
	if err != nil {
		return err
	}
	prog.done(summary.String())

	return nil
}

// apply copies every flag set on the command line into cfg.
func (o *runOptions) apply(flags *pflag.FlagSet, cfg *config.Config) error {
	set := flags.Changed

	if set("input") {
		cfg.Paths.Input = o.input
	}
	if set("output") {
		cfg.Paths.Output = o.output
	}
	if set("gif-dir") {
		cfg.Paths.GIFDir = o.gifDir
	}
	if set("json-file") {
		cfg.Paths.JSONFile = o.jsonFile
	}
	if set("sim-mode") {
		cfg.Simulation.Mode = o.mode
	}
	if set("sim-type") {
		cfg.Simulation.Types = o.types
	}
	if set("axis") {
		cfg.Simulation.Axis = o.axis
	}
	if set("remove-param") {
		p, err := simulation.ParseParam(o.removeParam)
		if err != nil {
			return err
		}
		cfg.Simulation.RemoveParam = p
	}
	if set("shuffle-param") {
		if strings.EqualFold(strings.TrimSpace(o.shuffleParam), shuffleAll) {
			cfg.Simulation.ShuffleParam = nil
		} else {
			p, err := simulation.ParseParam(o.shuffleParam)
			if err != nil {
				return err
			}
			cfg.Simulation.ShuffleParam = &p
		}
	}
	if set("weight-param") {
		p, err := simulation.ParseParam(o.weightParam)
		if err != nil {
			return err
		}
		cfg.Simulation.WeightParam = p
	}
	if set("mixed-axis-list") {
		axes, err := config.ParseAxisList(o.mixedAxes)
		if err != nil {
			return err
		}
		cfg.Simulation.MixedAxisList = make([]int, len(axes))
		for i, a := range axes {
			cfg.Simulation.MixedAxisList[i] = int(a)
		}
	}
	if set("clear-state") {
		cfg.Simulation.ClearState = o.clearState
	}
	if set("save-type") {
		cfg.Output.SaveType = strings.ToLower(o.saveType)
	}
	if set("fixed-range") {
		cfg.Simulation.FixedRange = strings.ToLower(o.fixedRange)
	}
	if set("seed") {
		cfg.Simulation.Seed = o.seed
	}
	if set("workers") {
		if o.workers < 1 {
			return nerrors.New(nerrors.ErrCodeInvalidParameter, "workers must be at least 1, got %d", o.workers)
		}
		cfg.Processing.Workers = o.workers
	}

	return nil
}
