package briefexport

import (
	"strings"
	"time"
	"unicode"
)

// Defaults applied to empty [Request] fields.
const (
	DefaultElementID = "policy-brief-content"
	DefaultFilename  = "policy-brief"
)

// Request describes one export.
type Request struct {
	// ElementID is the id of the element to export.
	// Defaults to [DefaultElementID].
	ElementID string

	// Filename is the output name without extension. A trailing ".pdf" is
	// dropped and unsafe characters are removed. Defaults to
	// [DefaultFilename].
	Filename string

	// Mode selects the strategy. The zero value is [ModeAuto].
	Mode Mode
}

func (r Request) resolved() Request {
	r.ElementID = strings.TrimSpace(r.ElementID)
	if r.ElementID == "" {
		r.ElementID = DefaultElementID
	}
	r.Filename = sanitizeFilename(r.Filename)
	return r
}

const maxFilenameLen = 100

// sanitizeFilename keeps letters, digits, '-', '_' and '.', turning
// spaces into hyphens.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 4 && strings.EqualFold(name[len(name)-4:], ".pdf") {
		name = name[:len(name)-4]
	}

	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == maxFilenameLen {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		default:
			continue
		}
		n++
	}

	out := strings.Trim(b.String(), ".")
	if out == "" {
		return DefaultFilename
	}
	return out
}

// Outcome is the result of one strategy attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	// OutcomeSkipped marks strategies not run because the export was
	// cancelled first.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	}
	return "unknown"
}

// Attempt is one entry of the attempt log.
type Attempt struct {
	Mode     Mode
	Outcome  Outcome
	Err      error
	Duration time.Duration
	// LastResort is set on the final print attempt of an auto export.
	LastResort bool
}
