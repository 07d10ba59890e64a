package simulation

import (
	"strings"

	"neuroglitch/internal/models"
	nerrors "neuroglitch/pkg/errors"
)

// Kind is the persisted tag of a transform.
type Kind string

const (
	KindMissingSlides Kind = "missing_slides"
	KindWrongSequence Kind = "wrong_sequence"
	KindMixedAxis     Kind = "mixed_axis"
)

// Kinds lists every transform tag in canonical order.
var Kinds = []Kind{KindMissingSlides, KindWrongSequence, KindMixedAxis}

// ParseKind maps a tag to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.TrimSpace(s)); k {
	case KindMissingSlides, KindWrongSequence, KindMixedAxis:
		return k, nil
	default:
		return "", nerrors.New(nerrors.ErrCodeUnknownTransformType, "unknown simulation type: %q", s)
	}
}

// TransformSpec declares one artifact to inject. The set of implementations
// is closed: RemoveSpec, ReorderSpec and SubstituteSpec.
type TransformSpec interface {
	// Kind returns the persisted tag of the transform.
	Kind() Kind
	// MainAxis returns the axis along which slices are affected.
	MainAxis() models.Axis

	transformSpec()
}

// RemoveSpec drops a random set of slices along Axis.
type RemoveSpec struct {
	Param Param       `json:"remove_param" yaml:"removeParam"`
	Axis  models.Axis `json:"axis" yaml:"axis"`
}

// ReorderSpec shuffles slices along Axis. A nil Param shuffles every
// slice; otherwise only a random subset of that size is permuted.
type ReorderSpec struct {
	Param *Param      `json:"shuffle_param" yaml:"shuffleParam"`
	Axis  models.Axis `json:"axis" yaml:"axis"`
}

// SubstituteSpec replaces slices along Axes[0] with resampled slices
// taken along the remaining axes of the original volume.
type SubstituteSpec struct {
	Axes  []models.Axis `json:"axis_list" yaml:"axisList"`
	Param Param         `json:"weight_param" yaml:"weightParam"`
}

func (RemoveSpec) Kind() Kind     { return KindMissingSlides }
func (ReorderSpec) Kind() Kind    { return KindWrongSequence }
func (SubstituteSpec) Kind() Kind { return KindMixedAxis }

func (s RemoveSpec) MainAxis() models.Axis  { return s.Axis }
func (s ReorderSpec) MainAxis() models.Axis { return s.Axis }

// MainAxis returns the first entry of Axes, or AxisX when Axes is empty.
func (s SubstituteSpec) MainAxis() models.Axis {
	if len(s.Axes) == 0 {
		return models.AxisX
	}
	return s.Axes[0]
}

func (RemoveSpec) transformSpec()     {}
func (ReorderSpec) transformSpec()    {}
func (SubstituteSpec) transformSpec() {}

// normalizeAxes validates an axis list and removes repeated entries while
// keeping the first occurrence, so the main axis never moves.
func normalizeAxes(axes []models.Axis) ([]models.Axis, error) {
	if len(axes) < 1 || len(axes) > models.NumAxes {
		return nil, nerrors.New(nerrors.ErrCodeInvalidAxisList,
			"axis list must contain 1 to 3 axes, got %d", len(axes))
	}

	var seen [models.NumAxes]bool
	out := make([]models.Axis, 0, len(axes))
	for _, a := range axes {
		if !a.Valid() {
			return nil, nerrors.New(nerrors.ErrCodeInvalidAxisList,
				"axis list must contain only 0, 1, or 2, got %d", a)
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}

	return out, nil
}

func validateAxis(a models.Axis) error {
	if !a.Valid() {
		return nerrors.New(nerrors.ErrCodeInvalidParameter, "axis must be 0, 1, or 2, got %d", a)
	}
	return nil
}

// SpecOptions carries the parameters BuildSpecs assigns to each kind.
type SpecOptions struct {
	Axis models.Axis
	// RemoveParam is used by missing_slides
	RemoveParam Param
	// ShuffleParam is used by wrong_sequence; nil shuffles every slice
	ShuffleParam *Param
	// WeightParam and MixedAxes are used by mixed_axis
	WeightParam Param
	MixedAxes   []models.Axis
}

// BuildSpecs turns a list of kinds into specs, in the same order.
func BuildSpecs(kinds []Kind, opts SpecOptions) ([]TransformSpec, error) {
	specs := make([]TransformSpec, 0, len(kinds))
	for _, k := range kinds {
		switch k {
		case KindMissingSlides:
			specs = append(specs, RemoveSpec{Param: opts.RemoveParam, Axis: opts.Axis})
		case KindWrongSequence:
			specs = append(specs, ReorderSpec{Param: opts.ShuffleParam, Axis: opts.Axis})
		case KindMixedAxis:
			axes := append([]models.Axis{}, opts.MixedAxes...)
			specs = append(specs, SubstituteSpec{Axes: axes, Param: opts.WeightParam})
		default:
			return nil, nerrors.New(nerrors.ErrCodeUnknownTransformType, "unknown simulation type: %q", k)
		}
	}
	return specs, nil
}
