package briefexport

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/porticus-lab/go-brief-export/internal/capture"
)

// vectorStrategy prints a detached snapshot of the element in its own
// tab, scaled so the element's width fills the printable page width.
// Text stays selectable; canvases become images at chartScale.
type vectorStrategy struct {
	page         PageConfig
	chartScale   float64
	nonPrintable string
	placeholder  string
	imageTimeout time.Duration
}

func (s *vectorStrategy) mode() Mode { return ModeVector }

func (s *vectorStrategy) capture(ctx context.Context, j job) ([]byte, error) {
	tab, stop := capture.Link(ctx, j.host.tab())
	defer stop()

	snap, err := capture.Build(tab, j.req.ElementID, capture.Options{
		CanvasScale:  s.chartScale,
		NonPrintable: s.nonPrintable,
		Placeholder:  s.placeholder,
	})
	if err != nil {
		return nil, &StrategyError{Mode: ModeVector, Err: err}
	}

	scale := s.fitScale(snap.Width)
	j.log.Debug("vector snapshot built",
		zap.Int("width", snap.Width),
		zap.Int("height", snap.Height),
		zap.Float64("scale", scale),
	)

	var buf []byte
	err = capture.Render(ctx, j.host.browser(), snap, s.imageTimeout, func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = s.page.printParams(scale, false).Do(ctx)
			return err
		}))
	})
	if err != nil {
		return nil, &StrategyError{Mode: ModeVector, Err: fmt.Errorf("printing snapshot: %w", err)}
	}
	return buf, nil
}

// fitScale maps a content width in CSS pixels onto the printable width.
func (s *vectorStrategy) fitScale(contentWidth int) float64 {
	if contentWidth <= 0 {
		return 1
	}
	return clampScale(s.page.printableWidthPx() / float64(contentWidth))
}
