package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SliceShape returns the (rows, cols) shape of a slice taken along axis.
// The remaining two dimensions keep their order, so axis 0 gives (Y, Z),
// axis 1 gives (X, Z) and axis 2 gives (X, Y).
func (v *Volume) SliceShape(axis Axis) (rows, cols int) {
	switch axis {
	case AxisX:
		return v.Dims[1], v.Dims[2]
	case AxisY:
		return v.Dims[0], v.Dims[2]
	default:
		return v.Dims[0], v.Dims[1]
	}
}

// coords maps a slice element (r, c) at position pos along axis back to
// volume coordinates.
func coords(axis Axis, pos, r, c int) (x, y, z int) {
	switch axis {
	case AxisX:
		return pos, r, c
	case AxisY:
		return r, pos, c
	default:
		return r, c, pos
	}
}

// Slice extracts the 2D cross-section at position pos along axis.
// The returned matrix is a copy; writing to it does not alter v.
func (v *Volume) Slice(axis Axis, pos int) (*mat.Dense, error) {
	if !axis.Valid() {
		return nil, fmt.Errorf("invalid axis: %d (must be 0, 1, or 2)", axis)
	}
	if pos < 0 || pos >= v.Dims[axis] {
		return nil, fmt.Errorf("position %d out of range [0, %d) along axis %d", pos, v.Dims[axis], axis)
	}

	rows, cols := v.SliceShape(axis)
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("empty slice along axis %d", axis)
	}
	data := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y, z := coords(axis, pos, r, c)
			data[r*cols+c] = v.At(x, y, z)
		}
	}

	return mat.NewDense(rows, cols, data), nil
}

// SetSlice overwrites the cross-section at position pos along axis with s.
// The shape of s must equal SliceShape(axis).
func (v *Volume) SetSlice(axis Axis, pos int, s mat.Matrix) error {
	if !axis.Valid() {
		return fmt.Errorf("invalid axis: %d (must be 0, 1, or 2)", axis)
	}
	if pos < 0 || pos >= v.Dims[axis] {
		return fmt.Errorf("position %d out of range [0, %d) along axis %d", pos, v.Dims[axis], axis)
	}

	rows, cols := v.SliceShape(axis)
	if r, c := s.Dims(); r != rows || c != cols {
		return fmt.Errorf("slice shape %dx%d does not match %dx%d", r, c, rows, cols)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, y, z := coords(axis, pos, r, c)
			v.Set(x, y, z, s.At(r, c))
		}
	}

	return nil
}
