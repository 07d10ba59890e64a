// Package simulation corrupts volumes with slice-level artifacts and
// derives the labels that describe each corruption.
//
// Three primitives act along one axis: RemoveSlices drops slices,
// ReorderSlices shuffles them and SubstituteCrossAxis overwrites them with
// resampled slices taken along another axis. A Session composes them in
// single, independent or chained mode. In chained mode a Provenance maps
// every output slice back to its original index.
package simulation

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/rand"

	"neuroglitch/internal/models"
	nerrors "neuroglitch/pkg/errors"
)

// Mode selects how a list of transform specs is composed.
type Mode string

const (
	// ModeSingle applies exactly one spec to the original volume.
	ModeSingle Mode = "single"
	// ModeIndependent applies each spec separately to the original volume.
	ModeIndependent Mode = "independent"
	// ModeChained applies specs in order, each to the previous output.
	ModeChained Mode = "chained"
)

// ParseMode maps a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSingle, ModeIndependent, ModeChained:
		return m, nil
	default:
		return "", nerrors.New(nerrors.ErrCodeInvalidParameter,
			"unknown simulation mode %q (must be single, independent, or chained)", s)
	}
}

// Result pairs a simulated volume with its labels.
type Result struct {
	// Kinds lists the transforms that produced Volume, in application order
	Kinds []Kind
	// Axis is the axis the labels refer to
	Axis   models.Axis
	Volume *models.Volume
	Labels *Labels
}

// Session owns one original volume and the random source used to corrupt
// it. A Session is not safe for concurrent use; run one per volume.
type Session struct {
	original *models.Volume
	rng      *rand.Rand
	logger   *log.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for per-step debug output.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession copies original and prepares a session around it. A nil rng
// is replaced by a time-seeded source; pass a seeded one for reproducible
// output.
func NewSession(original *models.Volume, rng *rand.Rand, opts ...Option) (*Session, error) {
	if original == nil {
		return nil, nerrors.New(nerrors.ErrCodeInvalidParameter, "nil volume")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	s := &Session{
		original: original.Clone(),
		rng:      rng,
		logger:   log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Original returns a copy of the session's original volume.
func (s *Session) Original() *models.Volume {
	return s.original.Clone()
}

// Reset clears per-volume state between runs. The session keeps no state
// besides the immutable original, so this does nothing; batch callers
// invoke it before each file.
func (s *Session) Reset() {}

// Simulate runs specs in the given mode. Single and chained modes return
// one result; independent mode returns one per spec, in input order.
func (s *Session) Simulate(mode Mode, specs []TransformSpec) ([]Result, error) {
	switch mode {
	case ModeSingle:
		res, err := s.Single(specs)
		if err != nil {
			return nil, err
		}
		return []Result{res}, nil
	case ModeIndependent:
		return s.Independent(specs)
	case ModeChained:
		res, err := s.Chained(specs)
		if err != nil {
			return nil, err
		}
		return []Result{res}, nil
	default:
		_, err := ParseMode(string(mode))
		return nil, err
	}
}

// Single applies exactly one spec to the original volume.
func (s *Session) Single(specs []TransformSpec) (Result, error) {
	if len(specs) != 1 {
		return Result{}, nerrors.New(nerrors.ErrCodeInvalidSpecCount,
			"single mode requires exactly 1 simulation type, got %d", len(specs))
	}
	if err := checkSpecs(specs); err != nil {
		return Result{}, err
	}
	return s.applyToOriginal(specs[0])
}

// Independent applies every spec to the original volume, never to another
// spec's output. Specs run in input order against the session's random
// source, so the results match calling Single once per spec.
func (s *Session) Independent(specs []TransformSpec) ([]Result, error) {
	if len(specs) < 2 {
		return nil, nerrors.New(nerrors.ErrCodeInvalidSpecCount,
			"independent mode requires at least 2 simulation types, got %d", len(specs))
	}
	if err := checkSpecs(specs); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(specs))
	for _, spec := range specs {
		res, err := s.applyToOriginal(spec)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Chained applies specs in order, each to the previous output, and tracks
// slice provenance along the main axis of the first spec.
func (s *Session) Chained(specs []TransformSpec) (Result, error) {
	if len(specs) < 2 {
		return Result{}, nerrors.New(nerrors.ErrCodeInvalidSpecCount,
			"chained mode requires at least 2 simulation types, got %d", len(specs))
	}
	if err := checkSpecs(specs); err != nil {
		return Result{}, err
	}

	axis, err := trackedAxis(specs[0])
	if err != nil {
		return Result{}, err
	}
	prov := NewProvenance(axis, s.original.Len(axis))

	current := s.original
	kinds := make([]Kind, 0, len(specs))
	for i, spec := range specs {
		next, rec, err := s.apply(current, spec)
		if err != nil {
			return Result{}, err
		}
		tracked, err := prov.Apply(rec)
		if err != nil {
			return Result{}, err
		}
		if !tracked {
			s.logger.Debug("step acts on an untracked axis",
				"step", i, "type", rec.Kind, "axis", rec.Axis, "tracked", prov.Axis())
		}
		s.logger.Debug("applied step", "step", i, "type", rec.Kind, "shape", next.Dims, "slices", prov.Len())

		current = next
		kinds = append(kinds, rec.Kind)
	}

	return Result{
		Kinds:  kinds,
		Axis:   prov.Axis(),
		Volume: current,
		Labels: prov.Labels(),
	}, nil
}

func (s *Session) applyToOriginal(spec TransformSpec) (Result, error) {
	vol, rec, err := s.apply(s.original, spec)
	if err != nil {
		return Result{}, err
	}
	labels, err := LabelsFromRecord(rec)
	if err != nil {
		return Result{}, err
	}
	s.logger.Debug("applied transform", "type", rec.Kind, "axis", rec.Axis, "shape", vol.Dims)

	return Result{
		Kinds:  []Kind{rec.Kind},
		Axis:   rec.Axis,
		Volume: vol,
		Labels: labels,
	}, nil
}

// apply dispatches one spec to its primitive. Substitution always samples
// replacement content from the session's original volume.
func (s *Session) apply(vol *models.Volume, spec TransformSpec) (*models.Volume, *Record, error) {
	switch sp := deref(spec).(type) {
	case RemoveSpec:
		return RemoveSlices(vol, sp.Axis, sp.Param, s.rng)
	case ReorderSpec:
		return ReorderSlices(vol, sp.Axis, sp.Param, s.rng)
	case SubstituteSpec:
		return SubstituteCrossAxis(vol, s.original, sp.Axes, sp.Param, s.rng)
	default:
		return nil, nil, nerrors.New(nerrors.ErrCodeUnknownTransformType, "unknown simulation type %T", spec)
	}
}

// deref turns pointer specs into values so callers may pass either.
func deref(spec TransformSpec) TransformSpec {
	switch sp := spec.(type) {
	case *RemoveSpec:
		if sp != nil {
			return *sp
		}
	case *ReorderSpec:
		if sp != nil {
			return *sp
		}
	case *SubstituteSpec:
		if sp != nil {
			return *sp
		}
	default:
		return spec
	}
	return nil
}

func checkSpecs(specs []TransformSpec) error {
	for i, spec := range specs {
		switch deref(spec).(type) {
		case RemoveSpec, ReorderSpec, SubstituteSpec:
		default:
			return nerrors.New(nerrors.ErrCodeUnknownTransformType, "unknown simulation type at position %d: %T", i, spec)
		}
	}
	return nil
}

// trackedAxis returns the axis whose provenance a chain follows.
func trackedAxis(spec TransformSpec) (models.Axis, error) {
	switch sp := deref(spec).(type) {
	case SubstituteSpec:
		axes, err := normalizeAxes(sp.Axes)
		if err != nil {
			return 0, err
		}
		return axes[0], nil
	case RemoveSpec, ReorderSpec:
		axis := sp.MainAxis()
		return axis, validateAxis(axis)
	default:
		return 0, nerrors.New(nerrors.ErrCodeUnknownTransformType, "unknown simulation type %T", spec)
	}
}
