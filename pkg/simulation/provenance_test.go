package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuroglitch/internal/models"
)

func TestProvenanceRemoveThenReorder(t *testing.T) {
	p := NewProvenance(models.AxisZ, 6)
	assert.Equal(t, models.AxisZ, p.Axis())
	assert.Equal(t, 6, p.Len())

	ok, err := p.Apply(&Record{Kind: KindMissingSlides, Axis: models.AxisZ, Length: 6, Removed: []int{4, 1}})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, p.Len())

	// reverse the four survivors
	ok, err = p.Apply(&Record{Kind: KindWrongSequence, Axis: models.AxisZ, Length: 4, Permutation: []int{3, 2, 1, 0}})
	require.NoError(t, err)
	require.True(t, ok)

	l := p.Labels()
	assert.Equal(t, []int{5, 3, 2, 0}, l.FinalToOriginal)
	assert.Equal(t, []int{1, 0, 1, 1, 0, 1}, l.PresenceTarget)
	assert.Equal(t, []int{1, 4}, l.MissingOriginalIndices)
	assert.Equal(t, []int{3, 2, 1, 0}, l.SequenceTarget)
	assert.Empty(t, l.MixedPositions)
}

func TestProvenanceMixedFollowsSlices(t *testing.T) {
	p := NewProvenance(models.AxisX, 4)

	source := []models.Axis{models.AxisX, models.AxisZ, models.AxisX, models.AxisY}
	_, err := p.Apply(&Record{Kind: KindMixedAxis, Axis: models.AxisX, Length: 4, SourceAxis: source, Substituted: []int{1, 3, 2}})
	require.NoError(t, err)

	l := p.Labels()
	assert.Equal(t, []int{1, 3}, l.MixedPositions)

	// a later shuffle moves the substituted content with its slice
	_, err = p.Apply(&Record{Kind: KindWrongSequence, Axis: models.AxisX, Length: 4, Permutation: []int{3, 0, 1, 2}})
	require.NoError(t, err)

	l = p.Labels()
	assert.Equal(t, []int{0, 2}, l.MixedPositions)
	assert.Equal(t, []models.Axis{models.AxisY, models.AxisX, models.AxisZ, models.AxisX}, l.SourceAxis)

	// and a removal drops it
	_, err = p.Apply(&Record{Kind: KindMissingSlides, Axis: models.AxisX, Length: 4, Removed: []int{0}})
	require.NoError(t, err)

	l = p.Labels()
	assert.Equal(t, []int{1}, l.MixedPositions)
	assert.Equal(t, []int{0, 1, 2}, l.FinalToOriginal)
	assert.Equal(t, []int{3}, l.MissingOriginalIndices)
}

func TestProvenanceIgnoresOtherAxes(t *testing.T) {
	p := NewProvenance(models.AxisY, 3)

	ok, err := p.Apply(&Record{Kind: KindMissingSlides, Axis: models.AxisZ, Length: 10, Removed: []int{0}})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, p.Len())
}

func TestProvenanceLengthMismatch(t *testing.T) {
	p := NewProvenance(models.AxisY, 3)

	_, err := p.Apply(&Record{Kind: KindWrongSequence, Axis: models.AxisY, Length: 4, Permutation: []int{0, 1, 2, 3}})
	assert.Error(t, err)
}

func TestProvenanceUntouched(t *testing.T) {
	l := NewProvenance(models.AxisZ, 3).Labels()

	assert.Equal(t, []int{0, 1, 2}, l.FinalToOriginal)
	assert.Equal(t, []int{0, 1, 2}, l.SequenceTarget)
	assert.Equal(t, []int{1, 1, 1}, l.PresenceTarget)
	assert.Empty(t, l.MissingOriginalIndices)
	assert.Nil(t, l.IsMissing)
}
