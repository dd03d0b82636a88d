package briefexport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"

	"go.uber.org/zap"

	"github.com/porticus-lab/go-brief-export/internal/capture"
	"github.com/porticus-lab/go-brief-export/internal/imaging"
	"github.com/porticus-lab/go-brief-export/internal/paginate"
)

// rasterStrategy waits for the live element to settle, screenshots a
// snapshot of it at full height, and slices the bitmap across pages.
type rasterStrategy struct {
	page         PageConfig
	policy       capture.Policy
	image        imaging.Options
	nonPrintable string
	placeholder  string
}

func (s *rasterStrategy) mode() Mode { return ModeRaster }

func (s *rasterStrategy) capture(ctx context.Context, j job) ([]byte, error) {
	id := j.req.ElementID
	tab, stop := capture.Link(ctx, j.host.tab())
	defer stop()

	if err := capture.Prepare(tab, id, s.policy); err != nil {
		return nil, s.fail("waiting for content", err)
	}
	snap, err := capture.Build(tab, id, capture.Options{
		CanvasScale:  1,
		NonPrintable: s.nonPrintable,
		Placeholder:  s.placeholder,
	})
	if err != nil {
		return nil, s.fail("building snapshot", err)
	}

	var shot []byte
	err = capture.Render(ctx, j.host.browser(), snap, s.policy.ImageTimeout, func(ctx context.Context) error {
		var err error
		shot, err = capture.Screenshot(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.fail("capturing", err)
	}

	bmp, err := s.normalize(shot, j.log)
	if err != nil {
		return nil, s.fail("reading capture", err)
	}

	var buf bytes.Buffer
	layout, err := paginate.Assemble(&buf, bmp, s.page.geometry())
	if err != nil {
		return nil, s.fail("assembling pages", err)
	}
	j.log.Debug("raster pages assembled",
		zap.Int("bitmap_width", bmp.Width),
		zap.Int("bitmap_height", bmp.Height),
		zap.Int("pages", layout.Pages),
	)
	return buf.Bytes(), nil
}

// normalize compresses the screenshot. When compression fails the raw
// PNG is embedded instead.
func (s *rasterStrategy) normalize(png []byte, log *zap.Logger) (paginate.Bitmap, error) {
	img, err := imaging.Compress(png, s.image)
	if err == nil {
		return paginate.Bitmap{Data: img.Data, Format: "JPG", Width: img.Width, Height: img.Height}, nil
	}
	if !errors.Is(err, imaging.ErrCompression) {
		return paginate.Bitmap{}, err
	}
	log.Warn("image compression failed, embedding the raw capture", zap.Error(err))

	cfg, _, cerr := image.DecodeConfig(bytes.NewReader(png))
	if cerr != nil {
		return paginate.Bitmap{}, fmt.Errorf("%w (raw capture unreadable: %v)", err, cerr)
	}
	return paginate.Bitmap{Data: png, Format: "PNG", Width: cfg.Width, Height: cfg.Height}, nil
}

func (s *rasterStrategy) fail(step string, err error) error {
	return &StrategyError{Mode: ModeRaster, Err: fmt.Errorf("%s: %w", step, err)}
}
