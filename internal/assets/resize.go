package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable is returned when image bytes cannot be decoded, or decode
// to more pixels than allowed.
var ErrUndecodable = errors.New("image could not be decoded")

// DefaultMaxPixels bounds width*height of images that get decoded.
const DefaultMaxPixels = 50_000_000

// CheckDimensions reads only the image header and fails with ErrUndecodable
// if the format is unknown or the image exceeds maxPixels.
func CheckDimensions(data []byte, maxPixels int) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrUndecodable, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUndecodable, cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// Resizer produces a copy of an image that fits in maxW x maxH.
type Resizer interface {
	Resize(data []byte, maxW, maxH int) ([]byte, error)
}

// DrawResizer scales with Catmull-Rom interpolation. PNG and GIF input is
// written as PNG, everything else as JPEG.
type DrawResizer struct {
	JPEGQuality int
	MaxPixels   int
}

// NewResizer returns a DrawResizer with default quality and pixel cap.
func NewResizer() *DrawResizer {
	return &DrawResizer{JPEGQuality: 85, MaxPixels: DefaultMaxPixels}
}

// Resize implements Resizer. Images already within bounds are re-encoded
// without scaling.
func (r *DrawResizer) Resize(data []byte, maxW, maxH int) ([]byte, error) {
	maxPixels := r.MaxPixels
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if err := CheckDimensions(data, maxPixels); err != nil {
		return nil, err
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), maxW, maxH)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png", "gif":
		err = png.Encode(&buf, dst)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: r.JPEGQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales w x h down to fit maxW x maxH, keeping the aspect ratio.
// It never scales up and never returns a zero dimension.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return max(w, 1), max(h, 1)
	}
	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	return max(int(float64(w)*scale+0.5), 1), max(int(float64(h)*scale+0.5), 1)
}
