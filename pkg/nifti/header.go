// Package nifti reads and writes single-file NIfTI-1 images (.nii and
// .nii.gz) holding one 3D volume.
package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// HeaderSize is the fixed size of a NIfTI-1 header in bytes.
	HeaderSize = 348
	// voxOffset is where voxel data starts in files written by Save: the
	// header plus a 4-byte empty extension block.
	voxOffset = 352
)

var (
	magicSingle = [4]byte{'n', '+', '1', 0}
	magicPair   = [4]byte{'n', 'i', '1', 0}
)

// Datatype is the NIfTI code for the on-disk voxel type.
type Datatype int16

const (
	DTUint8   Datatype = 2
	DTInt16   Datatype = 4
	DTInt32   Datatype = 8
	DTFloat32 Datatype = 16
	DTFloat64 Datatype = 64
	DTInt8    Datatype = 256
	DTUint16  Datatype = 512
	DTUint32  Datatype = 768
)

var datatypeNames = map[Datatype]string{
	DTUint8:   "uint8",
	DTInt16:   "int16",
	DTInt32:   "int32",
	DTFloat32: "float32",
	DTFloat64: "float64",
	DTInt8:    "int8",
	DTUint16:  "uint16",
	DTUint32:  "uint32",
}

// Size returns the number of bytes one voxel occupies, or 0 for an
// unsupported datatype.
func (d Datatype) Size() int {
	switch d {
	case DTUint8, DTInt8:
		return 1
	case DTInt16, DTUint16:
		return 2
	case DTInt32, DTUint32, DTFloat32:
		return 4
	case DTFloat64:
		return 8
	default:
		return 0
	}
}

func (d Datatype) String() string {
	if name, ok := datatypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("datatype(%d)", int16(d))
}

// Header mirrors the on-disk NIfTI-1 header field for field.
type Header struct {
	SizeofHdr    int32
	DataType     [10]byte
	DbName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte

	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      Datatype
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XyztUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	Toffset       float32
	Glmax         int32
	Glmin         int32

	Descrip   [80]byte
	AuxFile   [24]byte
	QformCode int16
	SformCode int16
	QuaternB  float32
	QuaternC  float32
	QuaternD  float32
	QoffsetX  float32
	QoffsetY  float32
	QoffsetZ  float32
	SrowX     [4]float32
	SrowY     [4]float32
	SrowZ     [4]float32

	IntentName [16]byte
	Magic      [4]byte
}

// NewHeader returns a float32 header for a volume with the given extents
// and unit voxel spacing. Extents must fit in an int16; Write rejects
// volumes that do not.
func NewHeader(dims [3]int) Header {
	h := Header{
		SizeofHdr: HeaderSize,
		Regular:   'r',
		Pixdim:    [8]float32{1, 1, 1, 1, 1, 1, 1, 1},
		SclSlope:  1,
		Magic:     magicSingle,
	}
	h.setDims(dims)
	h.setFloat32()
	return h
}

// Dims returns the three spatial extents.
func (h *Header) Dims() [3]int {
	var out [3]int
	for i := range out {
		out[i] = 1
		if int(h.Dim[0]) > i && h.Dim[i+1] > 0 {
			out[i] = int(h.Dim[i+1])
		}
	}
	return out
}

// Description returns the descrip field as a string.
func (h *Header) Description() string {
	return strings.TrimRight(string(h.Descrip[:]), "\x00")
}

func (h *Header) setDims(dims [3]int) {
	h.Dim = [8]int16{3, int16(dims[0]), int16(dims[1]), int16(dims[2]), 1, 1, 1, 1}
}

func (h *Header) setFloat32() {
	h.Datatype = DTFloat32
	h.Bitpix = 32
}

// byteOrder detects the endianness of a raw header from its size field.
func byteOrder(raw []byte) (binary.ByteOrder, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("header is %d bytes, want %d", len(raw), HeaderSize)
	}
	switch {
	case binary.LittleEndian.Uint32(raw) == HeaderSize:
		return binary.LittleEndian, nil
	case binary.BigEndian.Uint32(raw) == HeaderSize:
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("not a NIfTI-1 header: sizeof_hdr is %d", binary.LittleEndian.Uint32(raw))
	}
}

func decodeHeader(raw []byte) (Header, binary.ByteOrder, error) {
	var h Header
	order, err := byteOrder(raw)
	if err != nil {
		return h, nil, err
	}
	if err := binary.Read(bytes.NewReader(raw[:HeaderSize]), order, &h); err != nil {
		return h, nil, err
	}

	switch h.Magic {
	case magicSingle:
	case magicPair:
		return h, nil, fmt.Errorf("two-file NIfTI images (.hdr/.img) are not supported")
	default:
		return h, nil, fmt.Errorf("bad NIfTI-1 magic %q", h.Magic[:])
	}

	if h.Dim[0] < 1 || h.Dim[0] > 7 {
		return h, nil, fmt.Errorf("invalid dimension count %d", h.Dim[0])
	}
	for i := 4; i <= int(h.Dim[0]); i++ {
		if h.Dim[i] > 1 {
			return h, nil, fmt.Errorf("only 3D images are supported, got %d dimensions", h.Dim[0])
		}
	}
	for i := 1; i <= int(h.Dim[0]) && i <= 3; i++ {
		if h.Dim[i] < 1 {
			return h, nil, fmt.Errorf("invalid extent %d along dimension %d", h.Dim[i], i)
		}
	}
	if h.Datatype.Size() == 0 {
		return h, nil, fmt.Errorf("unsupported datatype %s", h.Datatype)
	}
	if h.VoxOffset < HeaderSize {
		h.VoxOffset = HeaderSize
	}

	return h, order, nil
}
