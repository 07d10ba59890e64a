package simulation

import "neuroglitch/internal/models"

// Labels is the ground truth paired with a simulated volume.
//
// FinalToOriginal[i] is the original index of the slice now at position i
// along the tracked axis; SourceAxis[i] is the axis its content came from.
// SequenceTarget re-sorts the output into original order.
type Labels struct {
	FinalToOriginal        []int         `json:"final_to_original"`
	SourceAxis             []models.Axis `json:"source_axis"`
	PresenceTarget         []int         `json:"presence_target"`
	SequenceTarget         []int         `json:"sequence_target"`
	MissingOriginalIndices []int         `json:"missing_original_indices"`
	MixedPositions         []int         `json:"mixed_positions"`

	// Set for single and independent results only.
	MissingPositions []int `json:"missing_positions,omitempty"`
	IsMissing        *bool `json:"is_missing,omitempty"`
	IsMixed          *bool `json:"is_mixed,omitempty"`
}

// LabelsFromRecord derives the labels of a single transform applied to an
// untouched volume.
func LabelsFromRecord(rec *Record) (*Labels, error) {
	p := NewProvenance(rec.Axis, rec.Length)
	if _, err := p.Apply(rec); err != nil {
		return nil, err
	}
	l := p.Labels()

	switch rec.Kind {
	case KindMissingSlides:
		isMissing := len(rec.Removed) > 0
		l.IsMissing = &isMissing
		l.MissingPositions = append([]int{}, rec.Removed...)
	case KindWrongSequence:
		isMissing := false
		l.IsMissing = &isMissing
	case KindMixedAxis:
		isMixed := len(rec.Substituted) > 0
		l.IsMixed = &isMixed
		// every drawn position counts, including those left unchanged
		// because no auxiliary axis was available
		l.MixedPositions = append([]int{}, rec.Substituted...)
	}

	return l, nil
}
