package models

import (
	"fmt"
)

// Axis identifies one of the three spatial dimensions of a Volume.
// Axis 0 is X (width), 1 is Y (height) and 2 is Z (depth).
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// NumAxes is the number of spatial dimensions of a Volume.
const NumAxes = 3

// Valid reports whether a is one of 0, 1 or 2.
func (a Axis) Valid() bool {
	return a >= AxisX && a <= AxisZ
}

// Volume is a 3D scan held as a flat array.
//
// Data is stored x-fastest: the sample at (x, y, z) lives at
// x + X*(y + Y*z), which is also the on-disk order of NIfTI images.
type Volume struct {
	// Dims holds the extents (X, Y, Z) of the volume in voxels
	Dims [NumAxes]int

	// Data holds Dims[0]*Dims[1]*Dims[2] samples
	Data []float64
}

// NewVolume allocates a zero-filled volume with the given extents.
func NewVolume(x, y, z int) *Volume {
	if x < 0 || y < 0 || z < 0 {
		panic(fmt.Sprintf("models: negative volume extent (%d, %d, %d)", x, y, z))
	}
	return &Volume{
		Dims: [NumAxes]int{x, y, z},
		Data: make([]float64, x*y*z),
	}
}

// NewVolumeFromData wraps data as a volume with the given extents.
// It returns an error if the length of data does not match.
func NewVolumeFromData(dims [NumAxes]int, data []float64) (*Volume, error) {
	if dims[0] < 0 || dims[1] < 0 || dims[2] < 0 {
		return nil, fmt.Errorf("negative volume extent %v", dims)
	}
	if n := dims[0] * dims[1] * dims[2]; n != len(data) {
		return nil, fmt.Errorf("volume extent %v needs %d samples, got %d", dims, n, len(data))
	}
	return &Volume{Dims: dims, Data: data}, nil
}

// Len returns the number of slices along axis.
func (v *Volume) Len(axis Axis) int {
	return v.Dims[axis]
}

// Index returns the flat offset of (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return x + v.Dims[0]*(y+v.Dims[1]*z)
}

// At returns the sample at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores val at (x, y, z).
func (v *Volume) Set(x, y, z int, val float64) {
	v.Data[v.Index(x, y, z)] = val
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	data := make([]float64, len(v.Data))
	copy(data, v.Data)
	return &Volume{Dims: v.Dims, Data: data}
}

// Equal reports whether both volumes have the same extents and samples.
func (v *Volume) Equal(o *Volume) bool {
	if v.Dims != o.Dims || len(v.Data) != len(o.Data) {
		return false
	}
	for i := range v.Data {
		if v.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// Take builds a new volume whose i-th slice along axis is slice indices[i]
// of v. Indices may repeat or be omitted; v is not modified.
func (v *Volume) Take(axis Axis, indices []int) *Volume {
	dims := v.Dims
	dims[axis] = len(indices)
	out := NewVolume(dims[0], dims[1], dims[2])

	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				src := [NumAxes]int{x, y, z}
				src[axis] = indices[src[axis]]
				out.Data[out.Index(x, y, z)] = v.At(src[0], src[1], src[2])
			}
		}
	}

	return out
}
