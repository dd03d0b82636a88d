package capture

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/chromedp/chromedp"
)

// DefaultPlaceholder labels the box drawn where an iframe used to be.
const DefaultPlaceholder = "Chart loaded from Streamlit"

// Options controls what [Build] copies out of the live document.
type Options struct {
	// CanvasScale is the factor canvases are rasterized at. Defaults to 1.
	CanvasScale float64
	// NonPrintable is a selector for nodes dropped from the snapshot.
	NonPrintable string
	// Placeholder is the label for replaced iframes.
	Placeholder string
}

// Snapshot is a detached copy of one element and the styles it needs to
// render on its own.
type Snapshot struct {
	ID        string   `json:"-"`
	HTML      string   `json:"html"`
	Styles    []string `json:"styles"`
	Links     []string `json:"links"`
	BaseURL   string   `json:"baseURL"`
	Title     string   `json:"title"`
	HTMLClass string   `json:"htmlClass"`
	BodyClass string   `json:"bodyClass"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
}

// Build clones the element in the tab bound to ctx. The live document is
// not modified.
func Build(ctx context.Context, id string, opts Options) (*Snapshot, error) {
	if opts.CanvasScale <= 0 {
		opts.CanvasScale = 1
	}
	if opts.Placeholder == "" {
		opts.Placeholder = DefaultPlaceholder
	}
	args := map[string]any{
		"canvasScale":  opts.CanvasScale,
		"nonPrintable": opts.NonPrintable,
		"placeholder":  opts.Placeholder,
	}

	var res struct {
		Found bool `json:"found"`
		Snapshot
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(call(snapshotJS, id, args), &res)); err != nil {
		return nil, fmt.Errorf("capture: building snapshot: %w", err)
	}
	if !res.Found {
		return nil, ErrNoElement
	}
	snap := res.Snapshot
	snap.ID = id
	if snap.Width < 1 {
		snap.Width = 1
	}
	if snap.Height < 1 {
		snap.Height = 1
	}
	return &snap, nil
}

// Document renders the snapshot as a standalone HTML page.
func (s *Snapshot) Document() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html")
	writeClass(&b, s.HTMLClass)
	b.WriteString("><head><meta charset=\"utf-8\">")
	if s.BaseURL != "" && !strings.HasPrefix(s.BaseURL, "about:") {
		fmt.Fprintf(&b, `<base href="%s">`, html.EscapeString(s.BaseURL))
	}
	fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(s.Title))
	for _, href := range s.Links {
		fmt.Fprintf(&b, `<link rel="stylesheet" href="%s">`, html.EscapeString(href))
	}
	for _, css := range s.Styles {
		b.WriteString("<style>")
		b.WriteString(escapeStyle(css))
		b.WriteString("</style>")
	}
	b.WriteString(`<style id="briefexport-overrides">`)
	b.WriteString(escapeStyle(s.overrides()))
	b.WriteString("</style></head><body")
	writeClass(&b, s.BodyClass)
	b.WriteString(">")
	b.WriteString(s.HTML)
	b.WriteString("</body></html>")
	return b.String()
}

// overrides freezes motion and unclips the element so its full height
// lays out. Ancestor wrappers keep their class styling but add no box.
func (s *Snapshot) overrides() string {
	sel := idSelector(s.ID)
	return "html, body { margin: 0 !important; padding: 0 !important; background: #ffffff; }\n" +
		sel + ", " + sel + " * { transition: none !important; animation: none !important; }\n" +
		sel + " { transform: none !important; overflow: visible !important;" +
		" height: auto !important; max-height: none !important; margin: 0 !important; }\n" +
		".briefexport-ancestor { display: block !important; position: static !important;" +
		" margin: 0 !important; padding: 0 !important; border: 0 !important;" +
		" width: auto !important; min-width: 0 !important; max-width: none !important;" +
		" height: auto !important; min-height: 0 !important; max-height: none !important;" +
		" overflow: visible !important; transform: none !important; }\n" +
		".briefexport-placeholder { display: flex; align-items: center; justify-content: center;" +
		" background-color: #f3f4f6; border: 1px solid #d1d5db; box-sizing: border-box; }\n" +
		".briefexport-placeholder p { color: #6b7280; font-size: 14px; margin: 0; }\n"
}

func idSelector(id string) string {
	if id == "" {
		return "body > :first-child"
	}
	return "[id=" + strconv.Quote(id) + "]"
}

func writeClass(b *strings.Builder, class string) {
	if class = strings.TrimSpace(class); class != "" {
		fmt.Fprintf(b, ` class="%s"`, html.EscapeString(class))
	}
}

// escapeStyle keeps CSS text from closing its <style> element early.
func escapeStyle(css string) string {
	return strings.ReplaceAll(css, "</", `<\/`)
}
