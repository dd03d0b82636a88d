package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ErrNoElement is returned when the element disappears between steps.
var ErrNoElement = errors.New("capture: element not found")

// Exists reports whether the document in the tab bound to ctx has an
// element with the given id.
func Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(call(existsJS, id), &ok)); err != nil {
		return false, fmt.Errorf("capture: probing #%s: %w", id, err)
	}
	return ok, nil
}

// ResetScroll scrolls the window and the element back to the origin.
func ResetScroll(ctx context.Context, id string) error {
	var ok bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(call(resetScrollJS, id), &ok)); err != nil {
		return fmt.Errorf("capture: resetting scroll: %w", err)
	}
	if !ok {
		return ErrNoElement
	}
	return nil
}

// WaitImages blocks until every image under the element is loaded or
// failed, giving each pending image at most timeout. A timed-out image
// counts as ready. It returns how many images were still pending.
func WaitImages(ctx context.Context, id string, timeout time.Duration) (int, error) {
	if timeout < 0 {
		timeout = 0
	}
	var pending int
	err := chromedp.Run(ctx, chromedp.Evaluate(
		call(waitImagesJS, id, timeout.Milliseconds()),
		&pending,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		},
	))
	if err != nil {
		return 0, fmt.Errorf("capture: waiting for images: %w", err)
	}
	return pending, nil
}

// Count returns how many nodes under the element match selector.
func Count(ctx context.Context, id, selector string) (int, error) {
	var n int
	if err := chromedp.Run(ctx, chromedp.Evaluate(call(countJS, id, selector), &n)); err != nil {
		return 0, fmt.Errorf("capture: counting %q: %w", selector, err)
	}
	return n, nil
}

// WaitCharts gives chart libraries time to finish drawing when the
// element contains any node matching p.ChartSelector. With p.ChartReady
// set the expression is polled until truthy or p.ChartSettle elapses;
// otherwise it sleeps for p.ChartSettle. Running out of time is not an
// error. It reports whether charts were found.
func WaitCharts(ctx context.Context, id string, p Policy) (bool, error) {
	p = p.Resolved()
	n, err := Count(ctx, id, p.ChartSelector)
	if err != nil {
		return false, err
	}
	if n == 0 || p.ChartSettle < 0 {
		return n > 0, nil
	}
	if p.ChartReady == "" {
		return true, sleep(ctx, p.ChartSettle)
	}

	deadline := time.Now().Add(p.ChartSettle)
	for {
		var ready bool
		if err := chromedp.Run(ctx, chromedp.Evaluate(call(predicateJS, p.ChartReady), &ready)); err != nil {
			return true, fmt.Errorf("capture: polling chart readiness: %w", err)
		}
		if ready {
			return true, nil
		}
		left := time.Until(deadline)
		if left <= 0 {
			return true, nil
		}
		if err := sleep(ctx, min(p.PollInterval, left)); err != nil {
			return true, err
		}
	}
}

// ForceLayout reads the element's offsetHeight so pending style changes
// are applied before capture.
func ForceLayout(ctx context.Context, id string) error {
	var h float64
	if err := chromedp.Run(ctx, chromedp.Evaluate(call(forceLayoutJS, id), &h)); err != nil {
		return fmt.Errorf("capture: forcing layout: %w", err)
	}
	return nil
}

// Prepare runs the readiness sequence in order: scroll reset, layout
// settle, image wait, chart wait and a forced layout.
func Prepare(ctx context.Context, id string, p Policy) error {
	p = p.Resolved()
	if err := ResetScroll(ctx, id); err != nil {
		return err
	}
	if p.LayoutSettle > 0 {
		if err := sleep(ctx, p.LayoutSettle); err != nil {
			return err
		}
	}
	if _, err := WaitImages(ctx, id, p.ImageTimeout); err != nil {
		return err
	}
	if _, err := WaitCharts(ctx, id, p); err != nil {
		return err
	}
	return ForceLayout(ctx, id)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
