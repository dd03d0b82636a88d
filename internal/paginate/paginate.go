// Package paginate splits one tall captured bitmap across fixed-size PDF
// pages.
//
// The bitmap is scaled to the page width; page k shows the vertical band
// [k*P, min((k+1)*P, H)) of the scaled height H by drawing the whole
// image shifted up by k*P. Bands are contiguous and never overlap.
package paginate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-pdf/fpdf"
)

// Slice is one page's band of the source, in the units of the heights
// passed to [Slices].
type Slice struct {
	Index  int
	Offset float64
	Height float64
}

// End returns the offset just past the slice.
func (s Slice) End() float64 { return s.Offset + s.Height }

// slack absorbs float error so that an exact multiple of the page height
// does not produce an empty trailing page.
const slack = 1e-9

// Slices cuts total into ceil(total/page) bands of height page; the last
// band holds the remainder. It returns nil when either height is not
// positive.
func Slices(total, page float64) []Slice {
	if total <= 0 || page <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return nil
	}
	n := int(math.Ceil(total/page - slack))
	if n < 1 {
		n = 1
	}
	out := make([]Slice, n)
	for i := range out {
		off := float64(i) * page
		h := page
		if i == n-1 {
			h = total - off
		}
		out[i] = Slice{Index: i, Offset: off, Height: h}
	}
	return out
}

// Geometry is the fixed target page in millimetres.
type Geometry struct {
	Width  float64
	Height float64
}

// A4 portrait.
var A4 = Geometry{Width: 210, Height: 297}

// Landscape swaps width and height.
func (g Geometry) Landscape() Geometry {
	return Geometry{Width: g.Height, Height: g.Width}
}

// ScaledHeight returns the height in millimetres of a px-sized bitmap
// drawn at the full page width.
func (g Geometry) ScaledHeight(widthPx, heightPx int) float64 {
	if widthPx <= 0 {
		return 0
	}
	return float64(heightPx) * g.Width / float64(widthPx)
}

// Bitmap is an encoded image ready for embedding.
type Bitmap struct {
	Data   []byte
	Format string // "JPG" or "PNG"
	Width  int    // px
	Height int    // px
}

// ErrEmptyBitmap is returned by [Assemble] for zero-sized input.
var ErrEmptyBitmap = errors.New("paginate: empty bitmap")

// Layout is what [Assemble] produced.
type Layout struct {
	Pages        int
	ScaledHeight float64 // mm
	Slices       []Slice
}

// Assemble writes a PDF to w with one page per slice of img.
func Assemble(w io.Writer, img Bitmap, geo Geometry) (*Layout, error) {
	if img.Width <= 0 || img.Height <= 0 || len(img.Data) == 0 {
		return nil, ErrEmptyBitmap
	}
	if geo.Width <= 0 || geo.Height <= 0 {
		geo = A4
	}
	format := img.Format
	if format == "" {
		format = "JPG"
	}

	scaled := geo.ScaledHeight(img.Width, img.Height)
	slices := Slices(scaled, geo.Height)

	// Always "P": fpdf swaps the given size for "L".
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: geo.Width, Ht: geo.Height},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreator("briefexport", true)

	opts := fpdf.ImageOptions{ImageType: format, AllowNegativePosition: true}
	const name = "capture"
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("paginate: registering image: %w", err)
	}

	for _, s := range slices {
		doc.AddPage()
		doc.ImageOptions(name, 0, -s.Offset, geo.Width, scaled, false, opts, 0, "")
	}

	if err := doc.Output(w); err != nil {
		return nil, fmt.Errorf("paginate: writing pdf: %w", err)
	}
	return &Layout{Pages: doc.PageCount(), ScaledHeight: scaled, Slices: slices}, nil
}
