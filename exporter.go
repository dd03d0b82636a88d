package briefexport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/porticus-lab/go-brief-export/internal/capture"
)

// Exporter turns elements of loaded documents into PDF files.
//
// An Exporter manages a headless browser instance that is reused across
// exports. Its methods are safe for concurrent use, but only one export
// runs at a time: a second Export while one is in flight fails with
// [ErrExportInProgress]. Observe [Exporter.State] to tell.
//
// Call [Exporter.Close] when the Exporter is no longer needed to release
// browser resources.
type Exporter struct {
	cfg           exporterConfig
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	state  *State
	runner *runner

	mu     sync.Mutex
	closed bool
}

// NewExporter creates an Exporter with the given options.
//
// It starts a headless browser in the background. The caller must call
// [Exporter.Close] when finished.
func NewExporter(opts ...Option) (*Exporter, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	allocOpts, err := allocatorOptions(cfg)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(cfg.logger.Sugar().Debugf),
		chromedp.WithErrorf(cfg.logger.Sugar().Debugf),
	)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("briefexport: starting browser: %w", err)
	}

	state := &State{}
	e := &Exporter{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		state:         state,
	}
	pr, vec, ras := newStrategies(cfg)
	e.runner = newRunner(state, cfg.logger, pr, vec, ras)
	return e, nil
}

func newStrategies(cfg exporterConfig) (pr, vec, ras strategy) {
	policy := cfg.readiness.policy()
	pr = &printStrategy{
		page:         cfg.page,
		grace:        cfg.printGrace,
		nonPrintable: cfg.nonPrintable,
	}
	vec = &vectorStrategy{
		page:         cfg.page,
		chartScale:   cfg.chartScale,
		nonPrintable: cfg.nonPrintable,
		placeholder:  cfg.placeholder,
		imageTimeout: policy.ImageTimeout,
	}
	ras = &rasterStrategy{
		page:         cfg.page,
		policy:       policy,
		image:        cfg.image,
		nonPrintable: cfg.nonPrintable,
		placeholder:  cfg.placeholder,
	}
	return pr, vec, ras
}

// State returns the export state of this Exporter.
func (e *Exporter) State() *State {
	return e.state
}

// Close releases all resources held by the Exporter, including the
// browser process and every open [Document]. Close is idempotent.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.browserCancel()
	e.allocCancel()
	return nil
}

func (e *Exporter) checkClosed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

func (e *Exporter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.timeout)
	}
	return context.WithCancel(ctx)
}

// Document is a page loaded in its own browser tab: the live document
// exports read from. Close it when done.
type Document struct {
	ex     *Exporter
	url    string
	tabCtx context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// OpenURL loads the web page at rawURL.
func (e *Exporter) OpenURL(ctx context.Context, rawURL string) (*Document, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("briefexport: invalid URL %q: %w", rawURL, err)
	}
	return e.open(ctx, rawURL, chromedp.Navigate(rawURL))
}

// OpenFile loads a local HTML file.
func (e *Exporter) OpenFile(ctx context.Context, path string) (*Document, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("briefexport: resolving path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("briefexport: %w", err)
	}
	u := "file://" + filepath.ToSlash(abs)
	return e.open(ctx, u, chromedp.Navigate(u))
}

// OpenHTML loads an HTML string into a blank tab. Relative URLs in it do
// not resolve unless it carries a <base> element.
func (e *Exporter) OpenHTML(ctx context.Context, html string) (*Document, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	return e.open(ctx, "about:blank", chromedp.Tasks{
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
	})
}

func (e *Exporter) open(ctx context.Context, target string, load chromedp.Action) (*Document, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	tabCtx, tabCancel := chromedp.NewContext(e.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("briefexport: opening tab: %w", err)
	}

	execCtx, stop := capture.Link(ctx, tabCtx)
	defer stop()
	if err := chromedp.Run(execCtx, load, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		tabCancel()
		return nil, fmt.Errorf("briefexport: loading %s: %w", target, err)
	}

	e.cfg.logger.Debug("document opened", zap.String("url", target))
	return &Document{ex: e, url: target, tabCtx: tabCtx, cancel: tabCancel}, nil
}

// URL returns the address the document was loaded from.
func (d *Document) URL() string {
	return d.url
}

// Close closes the document's tab. Close is idempotent.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		d.cancel()
	}
	return nil
}

func (d *Document) checkClosed() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.tabCtx.Err() != nil {
		return ErrDocumentClosed
	}
	return nil
}

func (d *Document) hasElement(ctx context.Context, id string) (bool, error) {
	tab, stop := capture.Link(ctx, d.tabCtx)
	defer stop()
	return capture.Exists(tab, id)
}

func (d *Document) tab() context.Context { return d.tabCtx }

func (d *Document) browser() context.Context { return d.ex.browserCtx }

// Export exports the element req.ElementID of doc as a PDF.
//
// With a specific req.Mode only that strategy runs and its error is
// returned as is. With [ModeAuto] the print, vector and raster strategies
// are tried in order and print is retried once more before giving up with
// an [*ExhaustedError]. A missing element fails with an
// [*ElementNotFoundError] before any strategy runs. Cancelling ctx stops
// the export.
func (e *Exporter) Export(ctx context.Context, doc *Document, req Request) (*Result, error) {
	if err := e.checkClosed(); err != nil {
		return nil, err
	}
	if doc == nil || doc.ex != e {
		return nil, errors.New("briefexport: document does not belong to this exporter")
	}
	if err := doc.checkClosed(); err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	return e.runner.run(ctx, doc, req)
}

// ExportURL opens rawURL, exports req from it and closes it again. It
// fails with [ErrExportInProgress] before loading anything while another
// export runs.
func (e *Exporter) ExportURL(ctx context.Context, rawURL string, req Request) (*Result, error) {
	if e.state.IsExporting() {
		return nil, ErrExportInProgress
	}
	doc, err := e.OpenURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return e.Export(ctx, doc, req)
}

// ExportHTML loads html, exports req from it and closes it again.
func (e *Exporter) ExportHTML(ctx context.Context, html string, req Request) (*Result, error) {
	if e.state.IsExporting() {
		return nil, ErrExportInProgress
	}
	doc, err := e.OpenHTML(ctx, html)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return e.Export(ctx, doc, req)
}

// ExportFile loads the HTML file at path, exports req from it and closes
// it again.
func (e *Exporter) ExportFile(ctx context.Context, path string, req Request) (*Result, error) {
	if e.state.IsExporting() {
		return nil, ErrExportInProgress
	}
	doc, err := e.OpenFile(ctx, path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return e.Export(ctx, doc, req)
}

// --- Package-level convenience functions ---

// ExportURL exports from a web page using a temporary [Exporter].
// For repeated use, create an [Exporter] with [NewExporter] to reuse the
// browser instance.
func ExportURL(ctx context.Context, rawURL string, req Request, opts ...Option) (*Result, error) {
	e, err := NewExporter(opts...)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.ExportURL(ctx, rawURL, req)
}

// ExportHTML exports from an HTML string using a temporary [Exporter].
func ExportHTML(ctx context.Context, html string, req Request, opts ...Option) (*Result, error) {
	e, err := NewExporter(opts...)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.ExportHTML(ctx, html, req)
}

// ExportFile exports from a local HTML file using a temporary [Exporter].
func ExportFile(ctx context.Context, path string, req Request, opts ...Option) (*Result, error) {
	e, err := NewExporter(opts...)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.ExportFile(ctx, path, req)
}
