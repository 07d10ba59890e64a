package simulation

import (
	"fmt"
	"sort"

	"neuroglitch/internal/models"
)

// Provenance tracks, for every slice along one axis of a chained result,
// which original slice it holds and which axis its content came from.
type Provenance struct {
	axis   models.Axis
	length int

	finalToOriginal []int
	sourceAxis      []models.Axis
	applied         map[Kind]bool
}

// NewProvenance starts tracking an untouched axis of the given length.
func NewProvenance(axis models.Axis, length int) *Provenance {
	source := make([]models.Axis, length)
	for i := range source {
		source[i] = axis
	}
	return &Provenance{
		axis:            axis,
		length:          length,
		finalToOriginal: identity(length),
		sourceAxis:      source,
		applied:         make(map[Kind]bool),
	}
}

// Axis returns the tracked axis.
func (p *Provenance) Axis() models.Axis { return p.axis }

// Len returns the current number of slices along the tracked axis.
func (p *Provenance) Len() int { return len(p.finalToOriginal) }

// Apply folds one transform record into the mapping. Records for another
// axis do not change slice identity along the tracked axis; Apply ignores
// them and reports false.
func (p *Provenance) Apply(rec *Record) (bool, error) {
	if rec.Axis != p.axis {
		return false, nil
	}
	if rec.Length != len(p.finalToOriginal) {
		return false, fmt.Errorf("record covers %d slices, provenance tracks %d", rec.Length, len(p.finalToOriginal))
	}

	switch rec.Kind {
	case KindMissingSlides:
		gone := make([]bool, rec.Length)
		for _, i := range rec.Removed {
			gone[i] = true
		}
		kept := make([]int, 0, rec.Length-len(rec.Removed))
		source := make([]models.Axis, 0, rec.Length-len(rec.Removed))
		for i := range p.finalToOriginal {
			if gone[i] {
				continue
			}
			kept = append(kept, p.finalToOriginal[i])
			source = append(source, p.sourceAxis[i])
		}
		p.finalToOriginal, p.sourceAxis = kept, source

	case KindWrongSequence:
		if len(rec.Permutation) != rec.Length {
			return false, fmt.Errorf("permutation has %d entries, want %d", len(rec.Permutation), rec.Length)
		}
		mapped := make([]int, rec.Length)
		source := make([]models.Axis, rec.Length)
		for i, from := range rec.Permutation {
			mapped[i] = p.finalToOriginal[from]
			source[i] = p.sourceAxis[from]
		}
		p.finalToOriginal, p.sourceAxis = mapped, source

	case KindMixedAxis:
		for _, pos := range rec.Substituted {
			if a := rec.SourceAxis[pos]; a != rec.Axis {
				p.sourceAxis[pos] = a
			}
		}

	default:
		return false, fmt.Errorf("unknown record kind %q", rec.Kind)
	}

	p.applied[rec.Kind] = true
	return true, nil
}

// Labels derives the ground-truth targets from the current mapping.
func (p *Provenance) Labels() *Labels {
	present := make([]bool, p.length)
	for _, orig := range p.finalToOriginal {
		present[orig] = true
	}

	presence := make([]int, p.length)
	missing := []int{}
	for i, ok := range present {
		if ok {
			presence[i] = 1
		} else {
			missing = append(missing, i)
		}
	}

	sequence := identity(p.length)
	if len(p.finalToOriginal) > 0 {
		sequence = argsort(p.finalToOriginal)
	}

	mixed := []int{}
	if p.applied[KindMixedAxis] {
		for i, a := range p.sourceAxis {
			if a != p.axis {
				mixed = append(mixed, i)
			}
		}
	}

	return &Labels{
		FinalToOriginal:        append([]int{}, p.finalToOriginal...),
		SourceAxis:             append([]models.Axis{}, p.sourceAxis...),
		PresenceTarget:         presence,
		SequenceTarget:         sequence,
		MissingOriginalIndices: missing,
		MixedPositions:         mixed,
	}
}

// argsort returns the indices that sort values ascending.
func argsort(values []int) []int {
	idx := identity(len(values))
	sort.SliceStable(idx, func(i, j int) bool {
		return values[idx[i]] < values[idx[j]]
	})
	return idx
}
