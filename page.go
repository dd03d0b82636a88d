package briefexport

import (
	"fmt"
	"math"
	"strings"

	"github.com/chromedp/cdproto/page"

	"github.com/porticus-lab/go-brief-export/internal/paginate"
)

// PageSize represents paper dimensions in centimeters.
type PageSize struct {
	Width  float64 // Width in centimeters.
	Height float64 // Height in centimeters.
}

// Standard paper sizes.
var (
	A3     = PageSize{Width: 29.7, Height: 42.0}
	A4     = PageSize{Width: 21.0, Height: 29.7}
	A5     = PageSize{Width: 14.8, Height: 21.0}
	Letter = PageSize{Width: 21.59, Height: 27.94}
	Legal  = PageSize{Width: 21.59, Height: 35.56}
)

var pageSizes = map[string]PageSize{
	"a3":     A3,
	"a4":     A4,
	"a5":     A5,
	"letter": Letter,
	"legal":  Legal,
}

// LookupPageSize returns the standard paper size called name, ignoring case.
func LookupPageSize(name string) (PageSize, bool) {
	s, ok := pageSizes[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Orientation represents the page orientation.
type Orientation int

const (
	// Portrait is the default vertical orientation.
	Portrait Orientation = iota
	// Landscape rotates the page to horizontal orientation.
	Landscape
)

// Margin represents page margins in centimeters.
type Margin struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// UniformMargin returns a Margin with the same value on all sides.
func UniformMargin(cm float64) Margin {
	return Margin{Top: cm, Right: cm, Bottom: cm, Left: cm}
}

// PageConfig controls the pages of exported PDFs.
//
// Zero-value fields use the defaults: A4 paper, portrait, no margins,
// background graphics on. Raster exports always fill the whole page and
// ignore Margin.
type PageConfig struct {
	// Size specifies the paper size. Defaults to A4.
	Size PageSize

	// Orientation specifies portrait or landscape. Defaults to Portrait.
	Orientation Orientation

	// Margin specifies page margins in centimeters for print and vector
	// exports.
	Margin Margin

	// PrintBackground enables printing of background colors and images.
	// Defaults to true.
	PrintBackground bool
}

// DefaultPageConfig returns the A4 portrait, full-bleed configuration.
func DefaultPageConfig() PageConfig {
	return PageConfig{
		Size:            A4,
		Orientation:     Portrait,
		PrintBackground: true,
	}
}

// resolved returns a PageConfig with an unset size replaced by A4.
func (p *PageConfig) resolved() PageConfig {
	d := DefaultPageConfig()
	if p == nil {
		return d
	}
	r := *p
	if r.Size.Width <= 0 || r.Size.Height <= 0 {
		r.Size = d.Size
	}
	return r
}

// cmToInches converts centimeters to inches.
func cmToInches(cm float64) float64 {
	return cm / 2.54
}

// paperDimensions returns the paper width and height in inches,
// accounting for orientation.
func (p *PageConfig) paperDimensions() (width, height float64) {
	r := p.resolved()
	w := cmToInches(r.Size.Width)
	h := cmToInches(r.Size.Height)
	if r.Orientation == Landscape {
		return h, w
	}
	return w, h
}

// marginInches returns margins converted to inches.
func (p *PageConfig) marginInches() (top, right, bottom, left float64) {
	r := p.resolved()
	return cmToInches(r.Margin.Top),
		cmToInches(r.Margin.Right),
		cmToInches(r.Margin.Bottom),
		cmToInches(r.Margin.Left)
}

// geometry returns the page in millimetres for raster assembly.
func (p *PageConfig) geometry() paginate.Geometry {
	r := p.resolved()
	g := paginate.Geometry{Width: r.Size.Width * 10, Height: r.Size.Height * 10}
	if r.Orientation == Landscape {
		return g.Landscape()
	}
	return g
}

// printableWidthPx is the width between the side margins in CSS pixels.
func (p *PageConfig) printableWidthPx() float64 {
	w, _ := p.paperDimensions()
	_, right, _, left := p.marginInches()
	return (w - left - right) * 96
}

// cssPageSize renders the @page size descriptor.
func (p *PageConfig) cssPageSize() string {
	r := p.resolved()
	orient := "portrait"
	if r.Orientation == Landscape {
		orient = "landscape"
	}
	switch r.Size {
	case A3:
		return "A3 " + orient
	case A4:
		return "A4 " + orient
	case A5:
		return "A5 " + orient
	case Letter:
		return "letter " + orient
	case Legal:
		return "legal " + orient
	}
	w, h := p.paperDimensions()
	return fmt.Sprintf("%.2fin %.2fin", w, h)
}

// cssMargin renders the @page margin descriptor in centimeters.
func (p *PageConfig) cssMargin() string {
	m := p.resolved().Margin
	if m == (Margin{}) {
		return "0"
	}
	return fmt.Sprintf("%gcm %gcm %gcm %gcm", m.Top, m.Right, m.Bottom, m.Left)
}

// Chrome rejects print scales outside this range.
const (
	minPrintScale = 0.1
	maxPrintScale = 2.0
)

func clampScale(s float64) float64 {
	if math.IsNaN(s) || s <= 0 {
		return 1
	}
	return math.Min(maxPrintScale, math.Max(minPrintScale, s))
}

// printParams builds Page.printToPDF parameters for the configuration.
func (p *PageConfig) printParams(scale float64, preferCSSPageSize bool) *page.PrintToPDFParams {
	r := p.resolved()
	width, height := p.paperDimensions()
	top, right, bottom, left := p.marginInches()
	return page.PrintToPDF().
		WithPaperWidth(width).
		WithPaperHeight(height).
		WithMarginTop(top).
		WithMarginRight(right).
		WithMarginBottom(bottom).
		WithMarginLeft(left).
		WithScale(clampScale(scale)).
		WithPrintBackground(r.PrintBackground).
		WithPreferCSSPageSize(preferCSSPageSize)
}
