package simulation

import "neuroglitch/internal/models"

// Record describes what one primitive did to its input.
type Record struct {
	Kind Kind
	// Axis is the axis the transform acted on (the main axis for substitution)
	Axis models.Axis
	// Length is the number of slices along Axis before the transform
	Length int

	// Removed holds the deleted input positions, in draw order
	Removed []int

	// Permutation maps output position i to input position Permutation[i]
	Permutation []int

	// SourceAxis holds, per position along Axis, the axis its content came from
	SourceAxis []models.Axis
	// Substituted holds the positions chosen for substitution, in draw order
	Substituted []int
}
