// Package interpolation resamples 2D slices to a new grid.
//
// Cross-axis substitution needs to fit a slice taken along one axis into
// the shape of a slice along another. Zoom performs order-1 (bilinear)
// resampling with corner-aligned grids, so the first and last samples of
// every row and column map exactly onto the first and last source samples.
package interpolation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Zoom resamples src to a rows x cols matrix using bilinear interpolation.
//
// Output index o along a dimension maps to source coordinate
// o*(in-1)/(out-1); a dimension of output length 1 samples source index 0.
func Zoom(src mat.Matrix, rows, cols int) (*mat.Dense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid target shape %dx%d", rows, cols)
	}
	inRows, inCols := src.Dims()

	rowCoords := gridCoords(inRows, rows)
	colCoords := gridCoords(inCols, cols)

	out := mat.NewDense(rows, cols, nil)
	for r, rc := range rowCoords {
		r0, r1, fr := bracket(rc, inRows)
		for c, cc := range colCoords {
			c0, c1, fc := bracket(cc, inCols)

			top := (1-fc)*src.At(r0, c0) + fc*src.At(r0, c1)
			bottom := (1-fc)*src.At(r1, c0) + fc*src.At(r1, c1)
			out.Set(r, c, (1-fr)*top+fr*bottom)
		}
	}

	return out, nil
}

// gridCoords returns the source coordinate of every output sample.
func gridCoords(in, out int) []float64 {
	coords := make([]float64, out)
	if out == 1 {
		return coords
	}
	scale := float64(in-1) / float64(out-1)
	for i := range coords {
		coords[i] = float64(i) * scale
	}
	return coords
}

// bracket returns the two neighbouring source indices around coordinate x
// and the weight of the upper one.
func bracket(x float64, n int) (lo, hi int, frac float64) {
	lo = int(math.Floor(x))
	if lo >= n-1 {
		return n - 1, n - 1, 0
	}
	if lo < 0 {
		return 0, 0, 0
	}
	return lo, lo + 1, x - float64(lo)
}
