package capture

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Render loads snap into a new tab of the browser behind browserCtx, with
// the viewport sized to the snapshot, waits up to imageTimeout per image,
// then calls fn with the tab's context. The tab is closed when Render
// returns. Cancelling ctx aborts the work.
func Render(ctx, browserCtx context.Context, snap *Snapshot, imageTimeout time.Duration, fn func(ctx context.Context) error) error {
	tabCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()

	// Allocate the tab on its own context; the first Run binds the tab's
	// lifetime to the context it is given.
	if err := chromedp.Run(tabCtx); err != nil {
		return fmt.Errorf("capture: opening tab: %w", err)
	}
	execCtx, stop := Link(ctx, tabCtx)
	defer stop()

	doc := snap.Document()
	err := chromedp.Run(execCtx,
		emulation.SetDeviceMetricsOverride(int64(snap.Width), int64(snap.Height), 1, false),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := WaitImages(ctx, snap.ID, imageTimeout)
			return err
		}),
	)
	if err != nil {
		return fmt.Errorf("capture: loading snapshot: %w", err)
	}
	return fn(execCtx)
}

// Link returns a child of tabCtx that is also cancelled when ctx is done,
// so chromedp work bound to a tab honours the caller's deadline.
func Link(ctx, tabCtx context.Context) (context.Context, context.CancelFunc) {
	execCtx, cancel := context.WithCancelCause(tabCtx)
	go func() {
		select {
		case <-ctx.Done():
			cancel(context.Cause(ctx))
		case <-execCtx.Done():
		}
	}()
	return execCtx, func() { cancel(context.Canceled) }
}

// Bounds is an element's box in CSS pixels relative to the document.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Measure returns the document-relative box of the element, using its
// scroll size so clipped content is included.
func Measure(ctx context.Context, id string) (Bounds, error) {
	var res struct {
		Found bool `json:"found"`
		Bounds
	}
	if err := chromedp.Run(ctx, chromedp.Evaluate(call(boundsJS, id), &res)); err != nil {
		return Bounds{}, fmt.Errorf("capture: measuring #%s: %w", id, err)
	}
	if !res.Found {
		return Bounds{}, ErrNoElement
	}
	return res.Bounds, nil
}

// Screenshot captures the element at its full height as PNG, including
// any part below the viewport.
func Screenshot(ctx context.Context, id string) ([]byte, error) {
	b, err := Measure(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Width < 1 || b.Height < 1 {
		return nil, fmt.Errorf("capture: #%s has an empty box (%.0fx%.0f)", id, b.Width, b.Height)
	}

	var buf []byte
	err = chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			WithFromSurface(true).
			WithClip(&page.Viewport{
				X:      b.X,
				Y:      b.Y,
				Width:  math.Ceil(b.Width),
				Height: math.Ceil(b.Height),
				Scale:  1,
			}).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("capture: screenshot: %w", err)
	}
	return buf, nil
}
