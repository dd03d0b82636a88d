package briefexport

import (
	"fmt"
	"strings"
)

// Mode selects which export strategy runs.
type Mode int

const (
	// ModeAuto tries print, vector and raster in that order, then print
	// once more as a last resort.
	ModeAuto Mode = iota
	// ModePrint prints the live document with non-printable UI hidden.
	ModePrint
	// ModeVector prints a standalone snapshot of the element, keeping text
	// selectable.
	ModeVector
	// ModeRaster screenshots the element and paginates the bitmap.
	ModeRaster
)

var modeNames = [...]string{
	ModeAuto:   "auto",
	ModePrint:  "print",
	ModeVector: "vector",
	ModeRaster: "raster",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode converts a strategy name to a Mode. Matching ignores case and
// surrounding space; an empty name is ModeAuto. The names "html2canvas"
// and "jspdf-html" are accepted for raster and vector.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "print":
		return ModePrint, nil
	case "vector", "jspdf-html":
		return ModeVector, nil
	case "raster", "html2canvas":
		return ModeRaster, nil
	}
	return ModeAuto, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// MarshalText implements [encoding.TextMarshaler].
func (m Mode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(modeNames) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler] using [ParseMode].
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
