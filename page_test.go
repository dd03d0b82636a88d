package briefexport

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestCmToInches(t *testing.T) {
	tests := []struct {
		cm   float64
		want float64
	}{
		{2.54, 1.0},
		{0, 0},
		{21.0, 8.2677},
		{29.7, 11.6929},
	}
	for _, tt := range tests {
		got := cmToInches(tt.cm)
		if !almostEqual(got, tt.want, 0.001) {
			t.Errorf("cmToInches(%v) = %v, want ~%v", tt.cm, got, tt.want)
		}
	}
}

func TestDefaultPageConfig(t *testing.T) {
	d := DefaultPageConfig()
	if d.Size != A4 {
		t.Errorf("default size = %v, want A4", d.Size)
	}
	if d.Orientation != Portrait {
		t.Errorf("default orientation = %v, want Portrait", d.Orientation)
	}
	if !d.PrintBackground {
		t.Error("default PrintBackground = false, want true")
	}
	if d.Margin != (Margin{}) {
		t.Errorf("default margin = %v, want none", d.Margin)
	}
}

func TestPageConfigResolved(t *testing.T) {
	var nilPC *PageConfig
	if r := nilPC.resolved(); r != DefaultPageConfig() {
		t.Errorf("nil resolved = %+v", r)
	}
	r := (&PageConfig{Size: PageSize{Width: 10}}).resolved()
	if r.Size != A4 {
		t.Errorf("half-set size resolved to %v, want A4", r.Size)
	}
	r = (&PageConfig{Size: Letter, Orientation: Landscape, Margin: UniformMargin(1)}).resolved()
	if r.Size != Letter || r.Orientation != Landscape || r.Margin != UniformMargin(1) {
		t.Errorf("explicit values not kept: %+v", r)
	}
}

func TestPaperDimensions(t *testing.T) {
	pc := &PageConfig{Size: A4}
	w, h := pc.paperDimensions()
	if !almostEqual(w, 8.267, 0.01) || !almostEqual(h, 11.693, 0.01) {
		t.Errorf("portrait = %v x %v, want ~8.267 x 11.693", w, h)
	}
	pc.Orientation = Landscape
	w, h = pc.paperDimensions()
	if !almostEqual(w, 11.693, 0.01) || !almostEqual(h, 8.267, 0.01) {
		t.Errorf("landscape = %v x %v, want ~11.693 x 8.267", w, h)
	}
}

func TestGeometry(t *testing.T) {
	g := (&PageConfig{}).geometry()
	if !almostEqual(g.Width, 210, 1e-9) || !almostEqual(g.Height, 297, 1e-9) {
		t.Errorf("A4 geometry = %+v", g)
	}
	g = (&PageConfig{Size: A4, Orientation: Landscape}).geometry()
	if !almostEqual(g.Width, 297, 1e-9) || !almostEqual(g.Height, 210, 1e-9) {
		t.Errorf("landscape geometry = %+v", g)
	}
}

func TestPrintableWidthPx(t *testing.T) {
	// A4 at 96 dpi is ~793.7 px wide.
	if got := (&PageConfig{}).printableWidthPx(); !almostEqual(got, 793.7, 0.1) {
		t.Errorf("full-bleed width = %v", got)
	}
	pc := &PageConfig{Size: A4, Margin: Margin{Left: 2.54, Right: 2.54}}
	if got := pc.printableWidthPx(); !almostEqual(got, 793.7-192, 0.1) {
		t.Errorf("width with 1in margins = %v", got)
	}
}

func TestCSSPageSize(t *testing.T) {
	tests := []struct {
		pc   PageConfig
		want string
	}{
		{PageConfig{}, "A4 portrait"},
		{PageConfig{Size: Letter, Orientation: Landscape}, "letter landscape"},
		{PageConfig{Size: PageSize{Width: 25.4, Height: 50.8}}, "10.00in 20.00in"},
	}
	for _, tt := range tests {
		if got := tt.pc.cssPageSize(); got != tt.want {
			t.Errorf("cssPageSize(%+v) = %q, want %q", tt.pc, got, tt.want)
		}
	}
}

func TestClampScale(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{1, 1},
		{0.05, 0.1},
		{3, 2},
		{0, 1},
		{-1, 1},
		{math.NaN(), 1},
		{0.5, 0.5},
	}
	for _, tt := range tests {
		if got := clampScale(tt.in); got != tt.want {
			t.Errorf("clampScale(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLookupPageSize(t *testing.T) {
	for name, want := range map[string]PageSize{"A4": A4, " letter ": Letter, "a3": A3, "Legal": Legal, "a5": A5} {
		if got, ok := LookupPageSize(name); !ok || got != want {
			t.Errorf("LookupPageSize(%q) = %v, %v", name, got, ok)
		}
	}
	if _, ok := LookupPageSize("tabloid"); ok {
		t.Error("LookupPageSize(tabloid) found a size")
	}
}

func TestPrintCSS_Margins(t *testing.T) {
	s := &printStrategy{page: DefaultPageConfig(), nonPrintable: ".no-print"}
	if css := s.css(); !strings.Contains(css, "@page { size: A4 portrait; margin: 0; }") {
		t.Errorf("default css = %s", css)
	}

	s.page = PageConfig{
		Size:        Letter,
		Orientation: Landscape,
		Margin:      Margin{Top: 2, Right: 1.5, Bottom: 2, Left: 1.5},
	}
	css := s.css()
	if !strings.Contains(css, "@page { size: letter landscape; margin: 2cm 1.5cm 2cm 1.5cm; }") {
		t.Errorf("css does not carry the configured margins:\n%s", css)
	}
	if !strings.Contains(css, ".no-print { display: none !important; }") {
		t.Errorf("css does not hide non-printable nodes:\n%s", css)
	}
}
