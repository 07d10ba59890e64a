package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// ramp builds a volume where every sample encodes its own coordinates.
func ramp(x, y, z int) *Volume {
	v := NewVolume(x, y, z)
	for k := 0; k < z; k++ {
		for j := 0; j < y; j++ {
			for i := 0; i < x; i++ {
				v.Set(i, j, k, float64(100*i+10*j+k))
			}
		}
	}
	return v
}

func TestNewVolumeFromData(t *testing.T) {
	_, err := NewVolumeFromData([NumAxes]int{2, 2, 2}, make([]float64, 7))
	assert.Error(t, err)

	v, err := NewVolumeFromData([NumAxes]int{2, 1, 3}, make([]float64, 6))
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len(AxisZ))
}

func TestSliceShapes(t *testing.T) {
	v := ramp(4, 5, 6)

	tests := []struct {
		axis       Axis
		rows, cols int
	}{
		{AxisX, 5, 6},
		{AxisY, 4, 6},
		{AxisZ, 4, 5},
	}

	for _, tt := range tests {
		s, err := v.Slice(tt.axis, 1)
		require.NoError(t, err)
		r, c := s.Dims()
		assert.Equal(t, tt.rows, r, "rows for axis %d", tt.axis)
		assert.Equal(t, tt.cols, c, "cols for axis %d", tt.axis)
	}
}

func TestSliceContents(t *testing.T) {
	v := ramp(3, 4, 5)

	s, err := v.Slice(AxisY, 2)
	require.NoError(t, err)
	// rows run over x, cols over z
	assert.Equal(t, float64(100*1+10*2+3), s.At(1, 3))

	s, err = v.Slice(AxisX, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(10*3+4), s.At(3, 4))
}

func TestSliceOutOfRange(t *testing.T) {
	v := ramp(2, 2, 2)

	_, err := v.Slice(AxisZ, 2)
	assert.Error(t, err)
	_, err = v.Slice(Axis(3), 0)
	assert.Error(t, err)
}

func TestSetSlice(t *testing.T) {
	v := ramp(3, 3, 3)
	orig := v.Clone()

	patch := mat.NewDense(3, 3, []float64{-1, -1, -1, -1, -1, -1, -1, -1, -1})
	require.NoError(t, v.SetSlice(AxisZ, 1, patch))

	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, -1.0, v.At(x, y, 1))
			assert.Equal(t, orig.At(x, y, 0), v.At(x, y, 0))
		}
	}

	err := v.SetSlice(AxisZ, 0, mat.NewDense(2, 3, nil))
	assert.Error(t, err)
}

func TestTake(t *testing.T) {
	v := ramp(3, 4, 2)

	out := v.Take(AxisY, []int{3, 0})
	assert.Equal(t, [NumAxes]int{3, 2, 2}, out.Dims)
	assert.Equal(t, v.At(2, 3, 1), out.At(2, 0, 1))
	assert.Equal(t, v.At(1, 0, 0), out.At(1, 1, 0))

	identity := v.Take(AxisX, []int{0, 1, 2})
	assert.True(t, identity.Equal(v))
}

func TestCloneIsIndependent(t *testing.T) {
	v := ramp(2, 2, 2)
	c := v.Clone()
	c.Set(0, 0, 0, 42)

	assert.NotEqual(t, v.At(0, 0, 0), c.At(0, 0, 0))
	assert.False(t, v.Equal(c))
}
