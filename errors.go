package briefexport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/porticus-lab/go-brief-export/internal/imaging"
)

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed [Exporter].
	ErrClosed = errors.New("briefexport: exporter is closed")

	// ErrDocumentClosed is returned when exporting from a closed [Document].
	ErrDocumentClosed = errors.New("briefexport: document is closed")

	// ErrElementNotFound is matched by every [*ElementNotFoundError].
	ErrElementNotFound = errors.New("briefexport: element not found")

	// ErrAllStrategiesExhausted is matched by [*ExhaustedError].
	ErrAllStrategiesExhausted = errors.New("briefexport: all export strategies failed")

	// ErrExportInProgress is returned when Export is called while another
	// export on the same Exporter has not finished.
	ErrExportInProgress = errors.New("briefexport: an export is already in progress")

	// ErrInvalidMode is returned for unknown strategy names.
	ErrInvalidMode = errors.New("briefexport: invalid export mode")

	// ErrCompression is matched by image normalization failures.
	ErrCompression = imaging.ErrCompression
)

// ElementNotFoundError reports that the live document has no element with
// the requested id. It is terminal: no strategy is attempted.
type ElementNotFoundError struct {
	ID string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("briefexport: element with id %q not found", e.ID)
}

// Is reports ErrElementNotFound as a match.
func (e *ElementNotFoundError) Is(target error) bool { return target == ErrElementNotFound }

// StrategyError is a failure of one export strategy.
type StrategyError struct {
	Mode Mode
	Err  error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("briefexport: %s strategy: %v", e.Mode, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// ExhaustedError is returned in [ModeAuto] when every strategy, including
// the last-resort print, failed. Attempts holds the full attempt log.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	b.WriteString(ErrAllStrategiesExhausted.Error())
	sep := ": "
	for _, a := range e.Attempts {
		if a.Err == nil {
			continue
		}
		b.WriteString(sep)
		fmt.Fprintf(&b, "%s: %v", a.Mode, a.Err)
		sep = "; "
	}
	return b.String()
}

// Is reports ErrAllStrategiesExhausted as a match.
func (e *ExhaustedError) Is(target error) bool { return target == ErrAllStrategiesExhausted }

// Unwrap exposes the individual attempt errors to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	var errs []error
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// Message is a short explanation suitable for showing to an end user.
func (e *ExhaustedError) Message() string {
	return "PDF export failed. You can use your browser's print function " +
		"(Ctrl+P / Cmd+P) and select \"Save as PDF\" as an alternative."
}
