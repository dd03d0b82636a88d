package briefexport

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"slices"

	"github.com/porticus-lab/go-brief-export/internal/pdfinfo"
)

// Result holds an exported PDF together with the name it should be saved
// under and how it was produced.
//
// It is safe to call its methods multiple times; the underlying data is
// never modified.
type Result struct {
	data     []byte
	filename string
	mode     Mode
	attempts []Attempt
}

// Bytes returns the raw PDF content.
func (r *Result) Bytes() []byte {
	return r.data
}

// Filename returns the download name, "{filename}.pdf".
func (r *Result) Filename() string {
	return r.filename + ".pdf"
}

// Mode returns the strategy that produced the PDF.
func (r *Result) Mode() Mode {
	return r.mode
}

// Attempts returns the attempt log in the order strategies ran.
func (r *Result) Attempts() []Attempt {
	return slices.Clone(r.attempts)
}

// Base64 returns the PDF encoded as a standard base64 string (RFC 4648).
func (r *Result) Base64() string {
	return base64.StdEncoding.EncodeToString(r.data)
}

// Reader returns an [*bytes.Reader] over the PDF content.
func (r *Result) Reader() *bytes.Reader {
	return bytes.NewReader(r.data)
}

// WriteTo writes the full PDF content to w. It implements [io.WriterTo].
func (r *Result) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.data)
	return int64(n), err
}

// WriteToFile writes the PDF to the file at path, creating it if needed.
func (r *Result) WriteToFile(path string, perm os.FileMode) error {
	return os.WriteFile(path, r.data, perm)
}

// Len returns the size of the PDF in bytes.
func (r *Result) Len() int {
	return len(r.data)
}

// PageInfo is the size of one page in PDF points (1/72 inch).
type PageInfo struct {
	Width    float64
	Height   float64
	Rotation int
}

// Pages parses the PDF and returns the size of every page.
func (r *Result) Pages() ([]PageInfo, error) {
	info, err := pdfinfo.Inspect(r.data)
	if err != nil {
		return nil, err
	}
	out := make([]PageInfo, len(info.Pages))
	for i, p := range info.Pages {
		out[i] = PageInfo(p)
	}
	return out, nil
}
