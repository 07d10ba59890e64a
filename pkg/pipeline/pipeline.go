// Package pipeline runs artifact simulation over one NIfTI file or a
// directory of them, writing previews, simulated volumes and JSON records.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"neuroglitch/internal/models"
	"neuroglitch/pkg/config"
	nerrors "neuroglitch/pkg/errors"
	"neuroglitch/pkg/nifti"
	"neuroglitch/pkg/results"
	"neuroglitch/pkg/simulation"
	"neuroglitch/pkg/visualization"
)

// MultiResultsFile is the results file written in directory mode.
const MultiResultsFile = "multi_analysis_results.json"

// Params holds the run configuration.
type Params struct {
	// Input is a .nii/.nii.gz file or a directory containing them.
	Input string

	// OutputDir receives simulated volumes and, by default, the results file.
	OutputDir string

	// GIFDir receives the preview animations.
	GIFDir string

	// JSONFile overrides the results file location when set.
	JSONFile string

	Mode  simulation.Mode
	Kinds []simulation.Kind

	// FixedRange selects between the Fixed options and a fresh draw from
	// Ranges for every file.
	FixedRange string
	Fixed      simulation.SpecOptions
	Ranges     config.Ranges

	// ClearState resets the session before each file.
	ClearState bool

	// SaveType is 3d, jpeg or none.
	SaveType string

	// GIFFraction is the leading share of slices in each preview.
	GIFFraction float64

	// Seed makes a run reproducible; 0 picks a time-based seed.
	Seed uint64

	// Workers bounds how many files are processed concurrently.
	Workers int

	Logger *log.Logger
}

// ParamsFromConfig maps a validated configuration to run parameters.
func ParamsFromConfig(cfg *config.Config, logger *log.Logger) (*Params, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}
	kinds, err := cfg.Kinds()
	if err != nil {
		return nil, err
	}

	return &Params{
		Input:       cfg.Paths.Input,
		OutputDir:   cfg.Paths.Output,
		GIFDir:      cfg.Paths.GIFDir,
		JSONFile:    cfg.Paths.JSONFile,
		Mode:        mode,
		Kinds:       kinds,
		FixedRange:  cfg.Simulation.FixedRange,
		Fixed:       cfg.FixedOptions(),
		Ranges:      cfg.Ranges,
		ClearState:  cfg.Simulation.ClearState,
		SaveType:    cfg.Output.SaveType,
		GIFFraction: cfg.Output.GIFFraction,
		Seed:        cfg.Simulation.Seed,
		Workers:     cfg.Processing.Workers,
		Logger:      logger,
	}, nil
}

// Summary reports what a run produced.
type Summary struct {
	RunID string
	// Files lists the inputs that were processed successfully
	Files []string
	// Failed maps skipped inputs to the reason they were skipped
	Failed map[string]error
	// Records holds every record written, in input order
	Records  []results.Record
	JSONPath string
}

// Runner drives a simulation run.
type Runner struct {
	// params stores the run configuration
	params *Params
	logger *log.Logger
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(params *Params) *Runner {
	logger := params.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{params: params, logger: logger}
}

// Process runs the complete simulation pipeline.
//
// A file input must load and simulate cleanly or Process fails. In
// directory mode a file that fails is logged and skipped, and the run goes
// on with the rest.
func (r *Runner) Process(ctx context.Context) (*Summary, error) {
	files, batch, err := r.inputs()
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{r.params.OutputDir, r.params.GIFDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to create %s", dir)
		}
	}

	runID := uuid.NewString()
	seed := r.params.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	r.logger.Info("starting run", "run", runID, "files", len(files), "mode", r.params.Mode, "types", r.params.Kinds, "seed", seed)

	// every file gets its own seed up front so output does not depend on
	// worker scheduling
	master := rand.New(rand.NewSource(seed))
	seeds := make([]uint64, len(files))
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	perFile := make([][]results.Record, len(files))
	failed := make(map[string]error)
	var mu sync.Mutex

	workers := r.params.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := r.processFile(path, runID, seeds[i])
			if err != nil {
				if !batch {
					return err
				}
				r.logger.Error("skipping file", "file", path, "err", err)
				mu.Lock()
				failed[path] = err
				mu.Unlock()
				return nil
			}
			perFile[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{RunID: runID, Failed: failed}
	for i, recs := range perFile {
		if recs == nil {
			continue
		}
		summary.Files = append(summary.Files, files[i])
		summary.Records = append(summary.Records, recs...)
	}

	summary.JSONPath = r.jsonPath(files, batch)
	if err := results.Append(summary.JSONPath, summary.Records...); err != nil {
		return nil, err
	}
	r.logger.Info("analysis results saved", "path", summary.JSONPath, "records", len(summary.Records), "skipped", len(failed))

	return summary, nil
}

// inputs resolves the input path to a sorted file list and reports
// whether it is a directory run.
func (r *Runner) inputs() ([]string, bool, error) {
	info, err := os.Stat(r.params.Input)
	if err != nil {
		return nil, false, nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "input %s not found", r.params.Input)
	}

	if !info.IsDir() {
		if !nifti.IsNIfTI(r.params.Input) {
			return nil, false, nerrors.New(nerrors.ErrCodeInvalidParameter, "%s is not a valid NIfTI file", r.params.Input)
		}
		return []string{r.params.Input}, false, nil
	}

	entries, err := os.ReadDir(r.params.Input)
	if err != nil {
		return nil, true, nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to read %s", r.params.Input)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && nifti.IsNIfTI(e.Name()) {
			files = append(files, filepath.Join(r.params.Input, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, true, nerrors.New(nerrors.ErrCodeIOFailure, "no NIfTI files found in %s", r.params.Input)
	}
	sort.Strings(files)

	return files, true, nil
}

func (r *Runner) jsonPath(files []string, batch bool) string {
	if r.params.JSONFile != "" {
		return r.params.JSONFile
	}
	if batch {
		return filepath.Join(r.params.OutputDir, MultiResultsFile)
	}
	return filepath.Join(r.params.OutputDir, nifti.BaseName(files[0])+"_"+joinKinds(r.params.Kinds)+".json")
}

// processFile simulates one input and writes its previews and outputs.
func (r *Runner) processFile(path, runID string, seed uint64) ([]results.Record, error) {
	img, err := nifti.Load(path)
	if err != nil {
		return nil, err
	}
	base := nifti.BaseName(path)
	logger := r.logger.With("file", base)

	rng := rand.New(rand.NewSource(seed))
	opts, fixedRange, err := r.options(rng)
	if err != nil {
		return nil, err
	}
	specs, err := simulation.BuildSpecs(r.params.Kinds, opts)
	if err != nil {
		return nil, err
	}

	session, err := simulation.NewSession(img.Volume, rng, simulation.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if r.params.ClearState {
		session.Reset()
	}
	logger.Debug("processing", "mode", r.params.Mode, "types", r.params.Kinds, "shape", img.Volume.Dims, "descrip", img.Header.Description())

	res, err := session.Simulate(r.params.Mode, specs)
	if err != nil {
		return nil, err
	}

	records := make([]results.Record, 0, len(res))
	for i, out := range res {
		name := base + "_" + string(out.Kinds[0])
		if r.params.Mode == simulation.ModeChained {
			name = base + "_chained_" + joinKinds(out.Kinds)
		}

		rec := results.NewRecord(base, r.params.Mode)
		rec.RunID = runID
		rec.FixedRange = fixedRange
		rec.Targets = out.Labels
		rec.OutputShape = out.Volume.Dims
		rec.Intensity = intensity(out.Volume)
		if r.params.Mode == simulation.ModeChained {
			rec.SimulationTypes = out.Kinds
			rec.Parameters = specs
		} else {
			rec.SimulationType = out.Kinds[0]
			rec.Parameters = specs[i]
		}

		if r.params.GIFDir != "" {
			rec.GIFPath = filepath.Join(r.params.GIFDir, name+".gif")
			if err := visualization.SaveGIF(out.Volume, rec.GIFPath, opts.Axis, r.params.GIFFraction); err != nil {
				return nil, err
			}
		}

		rec.OutputPath, err = r.save(img.Header, out.Volume, opts.Axis, filepath.Join(r.params.OutputDir, name))
		if err != nil {
			return nil, err
		}

		logger.Info("processed", "types", out.Kinds, "shape", out.Volume.Dims, "gif", rec.GIFPath)
		records = append(records, rec)
	}

	return records, nil
}

// options returns the spec options for one file and the policy label
// recorded with it.
func (r *Runner) options(rng *rand.Rand) (simulation.SpecOptions, string, error) {
	if r.params.FixedRange != config.FixedRangeRange {
		return r.params.Fixed, config.FixedRangeFixed, nil
	}
	opts, err := r.params.Ranges.Sample(rng)
	if err != nil {
		return simulation.SpecOptions{}, "", err
	}
	return opts, config.FixedRangeRange, nil
}

// save writes vol according to the save type and returns where it went.
func (r *Runner) save(hdr nifti.Header, vol *models.Volume, axis models.Axis, base string) (string, error) {
	switch strings.ToLower(r.params.SaveType) {
	case config.Save3D:
		path := base + ".nii.gz"
		return path, nifti.Save(path, &nifti.Image{Header: hdr, Volume: vol})
	case config.SaveJPEG:
		return base, visualization.NewViewer(vol).SaveSliceSequence(axis, base)
	case "", config.SaveNone:
		return "", nil
	default:
		return "", nerrors.New(nerrors.ErrCodeInvalidParameter, "unknown save type %q", r.params.SaveType)
	}
}

func intensity(vol *models.Volume) *results.Intensity {
	if len(vol.Data) == 0 {
		return nil
	}
	mean, std := stat.PopMeanStdDev(vol.Data, nil)
	return &results.Intensity{
		Mean: mean,
		Std:  std,
		Min:  floats.Min(vol.Data),
		Max:  floats.Max(vol.Data),
	}
}

func joinKinds(kinds []simulation.Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, "_")
}

// String implements fmt.Stringer for log output.
func (s *Summary) String() string {
	return fmt.Sprintf("run %s: %d files, %d records, %d skipped", s.RunID, len(s.Files), len(s.Records), len(s.Failed))
}
