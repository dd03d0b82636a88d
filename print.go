package briefexport

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/porticus-lab/go-brief-export/internal/capture"
)

// printStyleID is the id of the <style> injected for printing.
const printStyleID = "briefexport-print"

// styleCleanupTimeout bounds removal of the print style.
const styleCleanupTimeout = 5 * time.Second

// printStrategy prints the live document with non-printable UI hidden.
type printStrategy struct {
	page         PageConfig
	grace        time.Duration
	nonPrintable string
}

func (s *printStrategy) mode() Mode { return ModePrint }

func (s *printStrategy) css() string {
	return fmt.Sprintf(`@media print {
  @page { size: %s; margin: %s; }
  body { margin: 0; padding: 0; }
  %s { display: none !important; }
}`, s.page.cssPageSize(), s.page.cssMargin(), s.nonPrintable)
}

func (s *printStrategy) capture(ctx context.Context, j job) ([]byte, error) {
	tab, stop := capture.Link(ctx, j.host.tab())
	defer stop()

	if err := capture.InjectStyle(tab, printStyleID, s.css()); err != nil {
		return nil, &StrategyError{Mode: ModePrint, Err: err}
	}
	defer s.cleanup(ctx, j)

	var buf []byte
	err := chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, _, err = s.page.printParams(1, true).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, &StrategyError{Mode: ModePrint, Err: fmt.Errorf("printing: %w", err)}
	}
	return buf, nil
}

// cleanup waits out the grace delay, cut short if ctx ends, then removes
// the print style. Removal runs on the tab's own context so it happens
// even when the export was cancelled.
func (s *printStrategy) cleanup(ctx context.Context, j job) {
	if s.grace > 0 {
		t := time.NewTimer(s.grace)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	rmCtx, cancel := context.WithTimeout(j.host.tab(), styleCleanupTimeout)
	defer cancel()
	if _, err := capture.RemoveStyle(rmCtx, printStyleID); err != nil {
		j.log.Warn("removing print style failed", zap.Error(err))
	}
}
