// Package imaging bounds the size of captured bitmaps before they are
// embedded into a PDF: wide images are scaled down and everything is
// re-encoded as JPEG.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	// Decoders for captured screenshots.
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrCompression is matched by every error returned from [Compress].
var ErrCompression = errors.New("imaging: compression failed")

// CompressionError reports which stage of normalization failed.
type CompressionError struct {
	Op  string // "decode", "surface" or "encode"
	Err error
}

func (e *CompressionError) Error() string {
	if e.Err == nil {
		return "imaging: " + e.Op + " failed"
	}
	return fmt.Sprintf("imaging: %s: %v", e.Op, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }

// Is reports ErrCompression as a match.
func (e *CompressionError) Is(target error) bool { return target == ErrCompression }

// Defaults used when Options fields are zero.
const (
	DefaultQuality  = 0.85
	DefaultMaxWidth = 1920
)

// Options controls [Compress].
type Options struct {
	// Quality is the JPEG quality in (0, 1]. Defaults to 0.85.
	Quality float64
	// MaxWidth is the widest output allowed, in pixels. Defaults to 1920.
	MaxWidth int
}

func (o Options) resolved() Options {
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = DefaultQuality
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	return o
}

// Image is a normalized, JPEG-encoded bitmap.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

// Compress decodes raw (PNG or JPEG), scales it down to opts.MaxWidth
// when it is wider, and re-encodes it as JPEG at opts.Quality.
// Transparent pixels are flattened onto white.
func Compress(raw []byte, opts Options) (*Image, error) {
	opts = opts.resolved()

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &CompressionError{Op: "decode", Err: err}
	}

	w, h := TargetSize(src.Bounds().Dx(), src.Bounds().Dy(), opts.MaxWidth)
	if w <= 0 || h <= 0 {
		return nil, &CompressionError{
			Op:  "surface",
			Err: fmt.Errorf("cannot create %dx%d surface", w, h),
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == src.Bounds().Dx() && h == src.Bounds().Dy() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}

	var buf bytes.Buffer
	q := int(math.Round(opts.Quality * 100))
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: q}); err != nil {
		return nil, &CompressionError{Op: "encode", Err: err}
	}
	if buf.Len() == 0 {
		return nil, &CompressionError{Op: "encode", Err: errors.New("empty output")}
	}
	return &Image{Data: buf.Bytes(), Width: w, Height: h}, nil
}

// TargetSize returns the output dimensions for a width x height source.
// Sources no wider than maxWidth keep their size; wider ones are scaled to
// maxWidth with the height rounded to the nearest pixel.
func TargetSize(width, height, maxWidth int) (int, int) {
	if maxWidth <= 0 || width <= maxWidth {
		return width, height
	}
	h := int(math.Round(float64(height) * float64(maxWidth) / float64(width)))
	if h < 1 && height > 0 {
		h = 1
	}
	return maxWidth, h
}
