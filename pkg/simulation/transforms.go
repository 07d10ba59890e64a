package simulation

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"

	"neuroglitch/internal/models"
	nerrors "neuroglitch/pkg/errors"
	"neuroglitch/pkg/interpolation"
)

// RemoveSlices deletes k distinct slices, drawn uniformly without
// replacement, along axis. Survivors keep their relative order.
func RemoveSlices(vol *models.Volume, axis models.Axis, p Param, rng *rand.Rand) (*models.Volume, *Record, error) {
	if err := checkInput(vol, axis); err != nil {
		return nil, nil, err
	}
	n := vol.Len(axis)
	k, err := p.Resolve(n, UseRemove)
	if err != nil {
		return nil, nil, err
	}

	removed := sample(rng, n, k)
	gone := make([]bool, n)
	for _, i := range removed {
		gone[i] = true
	}
	survivors := make([]int, 0, n-k)
	for i := 0; i < n; i++ {
		if !gone[i] {
			survivors = append(survivors, i)
		}
	}

	rec := &Record{
		Kind:    KindMissingSlides,
		Axis:    axis,
		Length:  n,
		Removed: removed,
	}
	return vol.Take(axis, survivors), rec, nil
}

// ReorderSlices permutes slices along axis. With a nil p every slice is
// shuffled. Otherwise m slices are drawn and permuted among themselves while
// all others stay in place.
func ReorderSlices(vol *models.Volume, axis models.Axis, p *Param, rng *rand.Rand) (*models.Volume, *Record, error) {
	if err := checkInput(vol, axis); err != nil {
		return nil, nil, err
	}
	n := vol.Len(axis)

	var perm []int
	if p == nil {
		perm = rng.Perm(n)
	} else {
		m, err := p.Resolve(n, UseReorder)
		if err != nil {
			return nil, nil, err
		}
		picks := sample(rng, n, m)
		shuffled := rng.Perm(m)

		perm = identity(n)
		for i, pos := range picks {
			perm[pos] = picks[shuffled[i]]
		}
	}

	rec := &Record{
		Kind:        KindWrongSequence,
		Axis:        axis,
		Length:      n,
		Permutation: perm,
	}
	return vol.Take(axis, perm), rec, nil
}

// SubstituteCrossAxis replaces k slices along axes[0] with slices taken
// along one of the remaining axes of original and resampled to fit. With a
// single axis the chosen positions keep their content.
//
// original supplies the substitute content; it is never written. When nil,
// vol is used.
func SubstituteCrossAxis(vol, original *models.Volume, axes []models.Axis, p Param, rng *rand.Rand) (*models.Volume, *Record, error) {
	axes, err := normalizeAxes(axes)
	if err != nil {
		return nil, nil, err
	}
	main, aux := axes[0], axes[1:]
	if err := checkInput(vol, main); err != nil {
		return nil, nil, err
	}
	if original == nil {
		original = vol
	}
	if err := checkInput(original, main); err != nil {
		return nil, nil, err
	}

	n := vol.Len(main)
	k, err := p.Resolve(n, UseSubstitute)
	if err != nil {
		return nil, nil, err
	}

	positions := sample(rng, n, k)
	out := vol.Clone()
	source := make([]models.Axis, n)
	for i := range source {
		source[i] = main
	}

	rows, cols := out.SliceShape(main)
	for _, pos := range positions {
		if len(aux) == 0 {
			continue
		}
		a := aux[rng.Intn(len(aux))]
		j := rng.Intn(original.Len(a))

		s, err := original.Slice(a, j)
		if err != nil {
			return nil, nil, err
		}
		resized, err := interpolation.Zoom(s, rows, cols)
		if err != nil {
			return nil, nil, err
		}
		if err := out.SetSlice(main, pos, resized); err != nil {
			return nil, nil, err
		}
		source[pos] = a
	}

	rec := &Record{
		Kind:        KindMixedAxis,
		Axis:        main,
		Length:      n,
		SourceAxis:  source,
		Substituted: positions,
	}
	return out, rec, nil
}

// sample draws k distinct integers from [0, n) in draw order.
func sample(rng *rand.Rand, n, k int) []int {
	idxs := make([]int, k)
	if k == 0 {
		return idxs
	}
	sampleuv.WithoutReplacement(idxs, n, rng)
	return idxs
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func checkInput(vol *models.Volume, axis models.Axis) error {
	if vol == nil {
		return nerrors.New(nerrors.ErrCodeInvalidParameter, "nil volume")
	}
	if err := validateAxis(axis); err != nil {
		return err
	}
	for a, d := range vol.Dims {
		if d <= 0 {
			return nerrors.New(nerrors.ErrCodeInvalidParameter, "volume has empty extent along axis %d", a)
		}
	}
	return nil
}
