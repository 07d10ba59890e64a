package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"

	"neuroglitch/internal/models"
	nerrors "neuroglitch/pkg/errors"
)

const (
	// DefaultGIFFraction is the leading share of slices shown in a preview.
	DefaultGIFFraction = 0.3
	// DefaultGIFDelay is the per-frame delay in hundredths of a second.
	DefaultGIFDelay = 10

	jpegQuality = 90

	sheetRows = 2
	sheetCols = 6
	sheetGap  = 2
)

// Viewer renders slices of a volume as 8-bit grayscale images.
type Viewer struct {
	// volume holds the scan being rendered
	volume *models.Volume
}

// NewViewer creates a viewer over vol. The volume is read, never modified.
func NewViewer(vol *models.Volume) *Viewer {
	return &Viewer{volume: vol}
}

// ExtractSlice renders slice pos along axis. Intensities are min-max
// normalised to 0-255 per slice and the image is rotated 90 degrees
// counter-clockwise so the first matrix row ends up on the left edge.
func (v *Viewer) ExtractSlice(axis models.Axis, pos int) (image.Image, error) {
	s, err := v.volume.Slice(axis, pos)
	if err != nil {
		return nil, err
	}
	rows, cols := s.Dims()

	raw := s.RawMatrix()
	lo, hi := floats.Min(raw.Data), floats.Max(raw.Data)
	scale := 255 / (hi - lo + 1e-10)

	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			val := (s.At(r, c) - lo) * scale
			img.SetGray(c, r, color.Gray{Y: uint8(val)})
		}
	}

	return imaging.Rotate90(img), nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	if err := imaging.Save(img, filename, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to save %s", filename)
	}
	return nil
}

// SaveSliceSequence writes every slice along axis to outputDir as
// slice_000.jpg, slice_001.jpg, ... plus snippet.jpg, a contact sheet of
// the first twelve slices.
func (v *Viewer) SaveSliceSequence(axis models.Axis, outputDir string) error {
	if !axis.Valid() {
		return nerrors.New(nerrors.ErrCodeInvalidParameter, "invalid axis: %d (must be 0, 1, or 2)", axis)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to create %s", outputDir)
	}

	n := v.volume.Len(axis)
	tiles := make([]image.Image, 0, sheetRows*sheetCols)
	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%03d.jpg", pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
		if len(tiles) < cap(tiles) {
			tiles = append(tiles, img)
		}
	}

	if len(tiles) == 0 {
		return nil
	}
	return v.SaveSlice(contactSheet(tiles), filepath.Join(outputDir, "snippet.jpg"))
}

// contactSheet lays tiles out row by row on a 2 x 6 black grid.
func contactSheet(tiles []image.Image) image.Image {
	b := tiles[0].Bounds()
	w, h := b.Dx(), b.Dy()

	sheet := imaging.New(sheetCols*(w+sheetGap)-sheetGap, sheetRows*(h+sheetGap)-sheetGap, color.Black)
	for i, tile := range tiles {
		row, col := i/sheetCols, i%sheetCols
		sheet = imaging.Paste(sheet, tile, image.Pt(col*(w+sheetGap), row*(h+sheetGap)))
	}
	return sheet
}

// SaveGIF writes an animated preview of the leading fraction of slices
// along axis, one frame per slice. At least one frame is written.
func (v *Viewer) SaveGIF(axis models.Axis, path string, fraction float64, delay int) error {
	if !axis.Valid() {
		return nerrors.New(nerrors.ErrCodeInvalidParameter, "invalid axis: %d (must be 0, 1, or 2)", axis)
	}
	if fraction <= 0 || fraction > 1 {
		return nerrors.New(nerrors.ErrCodeInvalidParameter, "gif fraction %v must be in (0, 1]", fraction)
	}

	n := v.volume.Len(axis)
	frames := int(float64(n) * fraction)
	if frames < 1 {
		frames = 1
	}
	if frames > n {
		frames = n
	}

	anim := &gif.GIF{}
	for pos := 0; pos < frames; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}
		anim.Image = append(anim.Image, paletted(img))
		anim.Delay = append(anim.Delay, delay)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to create %s", path)
	}
	defer f.Close()

	if err := gif.EncodeAll(f, anim); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to encode %s", path)
	}
	if err := f.Close(); err != nil {
		return nerrors.Wrap(nerrors.ErrCodeIOFailure, err, "failed to close %s", path)
	}
	return nil
}

// SaveGIF writes a preview of vol with the default frame delay.
func SaveGIF(vol *models.Volume, path string, axis models.Axis, fraction float64) error {
	return NewViewer(vol).SaveGIF(axis, path, fraction, DefaultGIFDelay)
}

var grayPalette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}
	return p
}()

func paletted(img image.Image) *image.Paletted {
	b := img.Bounds()
	out := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), grayPalette)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
