package simulation

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroglitch/internal/models"
	nerrors "neuroglitch/pkg/errors"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Chained ")
	require.NoError(t, err)
	assert.Equal(t, ModeChained, m)

	_, err = ParseMode("parallel")
	assert.True(t, nerrors.Is(err, nerrors.ErrCodeInvalidParameter))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("mixed_axis")
	require.NoError(t, err)
	assert.Equal(t, KindMixedAxis, k)

	_, err = ParseKind("blur")
	assert.True(t, nerrors.Is(err, nerrors.ErrCodeUnknownTransformType))
}

func TestSpecCounts(t *testing.T) {
	s, err := NewSession(ramp(4, 4, 4), newRand(1))
	require.NoError(t, err)

	remove := RemoveSpec{Param: Count(1), Axis: models.AxisZ}
	reorder := ReorderSpec{Axis: models.AxisZ}

	tests := []struct {
		name  string
		mode  Mode
		specs []TransformSpec
	}{
		{"single with none", ModeSingle, nil},
		{"single with two", ModeSingle, []TransformSpec{remove, reorder}},
		{"independent with one", ModeIndependent, []TransformSpec{remove}},
		{"chained with one", ModeChained, []TransformSpec{reorder}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Simulate(tt.mode, tt.specs)
			assert.True(t, nerrors.Is(err, nerrors.ErrCodeInvalidSpecCount), "got %v", err)
		})
	}
}

func TestUnknownSpec(t *testing.T) {
	s, err := NewSession(ramp(3, 3, 3), newRand(1))
	require.NoError(t, err)

	var nilSpec *RemoveSpec
	_, err = s.Simulate(ModeSingle, []TransformSpec{nilSpec})
	assert.True(t, nerrors.Is(err, nerrors.ErrCodeUnknownTransformType), "got %v", err)

	_, err = s.Simulate(Mode("sideways"), []TransformSpec{RemoveSpec{}})
	assert.True(t, nerrors.Is(err, nerrors.ErrCodeInvalidParameter), "got %v", err)
}

func TestSingleAcceptsPointerSpecs(t *testing.T) {
	s, err := NewSession(ramp(3, 3, 5), newRand(1))
	require.NoError(t, err)

	res, err := s.Simulate(ModeSingle, []TransformSpec{&RemoveSpec{Param: Count(2), Axis: models.AxisZ}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 3, res[0].Volume.Len(models.AxisZ))
	assert.Equal(t, []Kind{KindMissingSlides}, res[0].Kinds)
}

func TestIndependentMatchesSingles(t *testing.T) {
	vol := ramp(5, 5, 6)
	p := Fraction(0.5)
	specs := []TransformSpec{
		RemoveSpec{Param: Count(2), Axis: models.AxisZ},
		ReorderSpec{Param: &p, Axis: models.AxisY},
		SubstituteSpec{Axes: []models.Axis{models.AxisX, models.AxisZ}, Param: Count(2)},
	}

	s, err := NewSession(vol, newRand(21))
	require.NoError(t, err)
	results, err := s.Independent(specs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	ref, err := NewSession(vol, newRand(21))
	require.NoError(t, err)
	for i, spec := range specs {
		want, err := ref.Single([]TransformSpec{spec})
		require.NoError(t, err)
		assert.True(t, want.Volume.Equal(results[i].Volume), "result %d", i)
		assert.Equal(t, want.Labels, results[i].Labels)
		assert.Equal(t, []Kind{spec.Kind()}, results[i].Kinds)
	}

	// every result starts from the untouched original
	assert.Equal(t, 4, results[0].Volume.Len(models.AxisZ))
	assert.Equal(t, 6, results[1].Volume.Len(models.AxisZ))
}

func TestChainedRemoveThenReorder(t *testing.T) {
	vol := ramp(3, 3, 10)
	s, err := NewSession(vol, newRand(99))
	require.NoError(t, err)

	res, err := s.Chained([]TransformSpec{
		RemoveSpec{Param: Count(2), Axis: models.AxisZ},
		ReorderSpec{Axis: models.AxisZ},
	})
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindMissingSlides, KindWrongSequence}, res.Kinds)
	assert.Equal(t, models.AxisZ, res.Axis)
	assert.Equal(t, 8, res.Volume.Len(models.AxisZ))

	l := res.Labels
	assert.Len(t, l.MissingOriginalIndices, 2)
	sum := 0
	for _, v := range l.PresenceTarget {
		sum += v
	}
	assert.Equal(t, 8, sum)
	assert.ElementsMatch(t, identity(8), l.SequenceTarget)
	assert.Equal(t, origins(res.Volume, models.AxisZ), l.FinalToOriginal)
	assert.Nil(t, l.IsMissing)
	assert.Empty(t, l.MixedPositions)

	// the sequence target puts the survivors back in original order
	restored := origins(res.Volume.Take(models.AxisZ, l.SequenceTarget), models.AxisZ)
	for i := 1; i < len(restored); i++ {
		assert.Less(t, restored[i-1], restored[i])
	}
}

func TestChainedSubstitutionThenRemoval(t *testing.T) {
	vol := ramp(6, 6, 6)
	s, err := NewSession(vol, newRand(5))
	require.NoError(t, err)

	res, err := s.Chained([]TransformSpec{
		SubstituteSpec{Axes: []models.Axis{models.AxisY, models.AxisX}, Param: Count(3)},
		RemoveSpec{Param: Count(1), Axis: models.AxisY},
	})
	require.NoError(t, err)

	l := res.Labels
	assert.Equal(t, models.AxisY, res.Axis)
	assert.Equal(t, 5, res.Volume.Len(models.AxisY))
	assert.Len(t, l.SourceAxis, 5)
	assert.GreaterOrEqual(t, len(l.MixedPositions), 2)
	assert.LessOrEqual(t, len(l.MixedPositions), 3)
	for _, pos := range l.MixedPositions {
		assert.Equal(t, models.AxisX, l.SourceAxis[pos])
	}
}

func TestChainedUntrackedAxis(t *testing.T) {
	vol := ramp(4, 5, 6)
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	s, err := NewSession(vol, newRand(3), WithLogger(logger))
	require.NoError(t, err)

	res, err := s.Chained([]TransformSpec{
		ReorderSpec{Axis: models.AxisZ},
		RemoveSpec{Param: Count(2), Axis: models.AxisX},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Volume.Len(models.AxisX))
	assert.Len(t, res.Labels.FinalToOriginal, 6)
	assert.Empty(t, res.Labels.MissingOriginalIndices)
	assert.Contains(t, buf.String(), "untracked axis")
	assert.Contains(t, buf.String(), "slices=6")
	assert.Equal(t, models.AxisZ, res.Axis)
}

func TestSimulateDoesNotMutateOriginal(t *testing.T) {
	vol := ramp(4, 4, 4)
	before := vol.Clone()

	s, err := NewSession(vol, newRand(12))
	require.NoError(t, err)
	_, err = s.Simulate(ModeChained, []TransformSpec{
		SubstituteSpec{Axes: []models.Axis{0, 1, 2}, Param: Count(4)},
		ReorderSpec{Axis: models.AxisX},
	})
	require.NoError(t, err)

	assert.True(t, vol.Equal(before))
	assert.True(t, s.Original().Equal(before))

	s.Reset()
	assert.True(t, s.Original().Equal(before))
}

func TestNewSessionNilVolume(t *testing.T) {
	_, err := NewSession(nil, nil)
	assert.True(t, nerrors.Is(err, nerrors.ErrCodeInvalidParameter))
}

func TestBuildSpecs(t *testing.T) {
	shuffle := Fraction(0.2)
	opts := SpecOptions{
		Axis:         models.AxisY,
		RemoveParam:  Count(3),
		ShuffleParam: &shuffle,
		WeightParam:  Fraction(0.1),
		MixedAxes:    []models.Axis{models.AxisY, models.AxisZ},
	}

	specs, err := BuildSpecs([]Kind{KindMixedAxis, KindMissingSlides, KindWrongSequence}, opts)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, SubstituteSpec{Axes: []models.Axis{1, 2}, Param: Fraction(0.1)}, specs[0])
	assert.Equal(t, RemoveSpec{Param: Count(3), Axis: models.AxisY}, specs[1])
	assert.Equal(t, ReorderSpec{Param: &shuffle, Axis: models.AxisY}, specs[2])

	_, err = BuildSpecs([]Kind{"blur"}, opts)
	assert.True(t, nerrors.Is(err, nerrors.ErrCodeUnknownTransformType))
}
