package nifti

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"neuroglitch/internal/models"
	nerrors "neuroglitch/pkg/errors"
)

// Image is a decoded NIfTI volume together with the header it came with.
type Image struct {
	Header Header
	Volume *models.Volume
}

// IsNIfTI reports whether path has a .nii or .nii.gz extension.
func IsNIfTI(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".nii") || strings.HasSuffix(lower, ".nii.gz")
}

// BaseName returns the file name of path without its NIfTI extension.
func BaseName(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".nii.gz"):
		return name[:len(name)-len(".nii.gz")]
	case strings.HasSuffix(lower, ".nii"):
		return name[:len(name)-len(".nii")]
	default:
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// Load reads the image at path. Files ending in .gz are decompressed.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to open %s", path)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if isGzip(path) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to decompress %s", path)
		}
		defer zr.Close()
		r = zr
	}

	img, err := Read(r)
	if err != nil {
		return nil, nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to read %s", path)
	}
	return img, nil
}

// Read decodes an uncompressed single-file NIfTI-1 stream. Voxel values are
// converted to float64 and scaled by scl_slope and scl_inter when set.
func Read(r io.Reader) (*Image, error) {
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, err
	}
	h, order, err := decodeHeader(raw)
	if err != nil {
		return nil, err
	}

	// skip extensions
	if skip := int64(h.VoxOffset) - HeaderSize; skip > 0 {
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, err
		}
	}

	dims := h.Dims()
	n := dims[0] * dims[1] * dims[2]
	size := h.Datatype.Size()

	// the buffer grows with the bytes actually read, so a header claiming
	// more voxels than the stream holds fails before anything large is
	// allocated
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)*int64(size)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("voxel data for extents %v: %w", dims, err)
	}

	data := make([]float64, n)
	decode(h.Datatype, order, buf.Bytes(), data)

	if slope := float64(h.SclSlope); slope != 0 && !math.IsNaN(slope) {
		inter := float64(h.SclInter)
		if slope != 1 || inter != 0 {
			for i := range data {
				data[i] = data[i]*slope + inter
			}
		}
	}

	vol, err := models.NewVolumeFromData(dims, data)
	if err != nil {
		return nil, err
	}
	return &Image{Header: h, Volume: vol}, nil
}

func decode(dt Datatype, order binary.ByteOrder, buf []byte, out []float64) {
	size := dt.Size()
	for i := range out {
		b := buf[i*size : (i+1)*size]
		switch dt {
		case DTUint8:
			out[i] = float64(b[0])
		case DTInt8:
			out[i] = float64(int8(b[0]))
		case DTInt16:
			out[i] = float64(int16(order.Uint16(b)))
		case DTUint16:
			out[i] = float64(order.Uint16(b))
		case DTInt32:
			out[i] = float64(int32(order.Uint32(b)))
		case DTUint32:
			out[i] = float64(order.Uint32(b))
		case DTFloat32:
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case DTFloat64:
			out[i] = math.Float64frombits(order.Uint64(b))
		}
	}
}

// Save writes img to path as float32 little-endian NIfTI-1, gzip-compressed
// when path ends in .gz. Geometry fields of the header are kept; extents,
// datatype and scaling are rewritten to match the volume.
func Save(path string, img *Image) error {
	if img == nil || img.Volume == nil {
		return nerrors.New(nerrors.ErrCodeInvalidParameter, "nil image")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to create %s", dir)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to create %s", path)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var w io.Writer = bw
	var zw *gzip.Writer
	if isGzip(path) {
		zw = gzip.NewWriter(bw)
		w = zw
	}

	if err := Write(w, img); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to write %s", path)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to compress %s", path)
		}
	}
	if err := bw.Flush(); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to write %s", path)
	}
	if err := f.Close(); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to close %s", path)
	}
	return nil
}

// Write encodes img as an uncompressed single-file NIfTI-1 stream.
func Write(w io.Writer, img *Image) error {
	for i, d := range img.Volume.Dims {
		if d < 1 || d > math.MaxInt16 {
			return nerrors.New(nerrors.ErrCodeInvalidParameter,
				"extent %d along axis %d does not fit a NIfTI-1 header (1 to %d)", d, i, math.MaxInt16)
		}
	}

	h := img.Header
	if h.SizeofHdr == 0 {
		h = NewHeader(img.Volume.Dims)
	}
	h.SizeofHdr = HeaderSize
	h.Magic = magicSingle
	h.VoxOffset = voxOffset
	h.SclSlope = 1
	h.SclInter = 0
	h.setDims(img.Volume.Dims)
	h.setFloat32()

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := w.Write(make([]byte, voxOffset-HeaderSize)); err != nil {
		return err
	}

	buf := make([]byte, 4*len(img.Volume.Data))
	for i, v := range img.Volume.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(v)))
	}
	_, err := w.Write(buf)
	return err
}
