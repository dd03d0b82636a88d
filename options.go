package briefexport

import (
	"time"

	"go.uber.org/zap"

	"github.com/porticus-lab/go-brief-export/internal/capture"
	"github.com/porticus-lab/go-brief-export/internal/imaging"
)

// DefaultNonPrintable selects UI that never appears in exports.
const DefaultNonPrintable = `.no-print, button, .fixed, [data-tour="export-button"]`

// Defaults for the remaining options.
const (
	DefaultTimeout     = 2 * time.Minute
	DefaultPrintGrace  = time.Second
	DefaultChartScale  = 0.5
	DefaultPlaceholder = capture.DefaultPlaceholder
)

// ReadinessPolicy bounds how long the live document is given to finish
// rendering before a raster capture.
type ReadinessPolicy struct {
	// LayoutSettle is the pause after scrolling to the origin.
	LayoutSettle time.Duration
	// ImageTimeout bounds the wait for each unloaded image. An image that
	// times out is treated as ready.
	ImageTimeout time.Duration
	// ChartSelector matches nodes that may still be drawing.
	ChartSelector string
	// ChartSettle is the wait applied when chart nodes are present.
	ChartSettle time.Duration
	// ChartReady is an optional JavaScript expression polled until truthy,
	// at most ChartSettle, instead of the fixed wait.
	ChartReady string
	// PollInterval is the ChartReady polling period.
	PollInterval time.Duration
}

// DefaultReadinessPolicy returns 500ms layout settle, 3s per image, and a
// 3s chart wait when "svg, canvas" nodes are present.
func DefaultReadinessPolicy() ReadinessPolicy {
	return ReadinessPolicy(capture.DefaultPolicy())
}

func (p ReadinessPolicy) policy() capture.Policy {
	return capture.Policy(p).Resolved()
}

// exporterConfig holds internal configuration for an Exporter.
type exporterConfig struct {
	chromePath   string
	timeout      time.Duration
	noSandbox    bool
	headless     string
	autoDownload bool

	logger       *zap.Logger
	page         PageConfig
	readiness    ReadinessPolicy
	image        imaging.Options
	printGrace   time.Duration
	nonPrintable string
	placeholder  string
	chartScale   float64
}

func defaultConfig() exporterConfig {
	return exporterConfig{
		timeout:      DefaultTimeout,
		headless:     "new",
		logger:       zap.NewNop(),
		page:         DefaultPageConfig(),
		readiness:    DefaultReadinessPolicy(),
		image:        imaging.Options{Quality: imaging.DefaultQuality, MaxWidth: imaging.DefaultMaxWidth},
		printGrace:   DefaultPrintGrace,
		nonPrintable: DefaultNonPrintable,
		placeholder:  DefaultPlaceholder,
		chartScale:   DefaultChartScale,
	}
}

// Option configures an [Exporter].
type Option func(*exporterConfig)

// WithChromePath sets the path to the Chrome or Chromium executable.
// By default the library searches standard locations automatically.
func WithChromePath(path string) Option {
	return func(c *exporterConfig) {
		c.chromePath = path
	}
}

// WithTimeout bounds each Open and Export call. Defaults to 2 minutes.
// A zero or negative value disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *exporterConfig) {
		c.timeout = d
	}
}

// WithNoSandbox disables the Chrome sandbox. This is required when
// running as root, for example inside Docker containers.
func WithNoSandbox() Option {
	return func(c *exporterConfig) {
		c.noSandbox = true
	}
}

// WithAutoDownload fetches a Chromium build into the local cache when no
// Chrome path is given.
func WithAutoDownload() Option {
	return func(c *exporterConfig) {
		c.autoDownload = true
	}
}

// WithLogger sets the logger. Exports log each strategy attempt.
func WithLogger(l *zap.Logger) Option {
	return func(c *exporterConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPageConfig sets the output page size, orientation and margins.
func WithPageConfig(pc PageConfig) Option {
	return func(c *exporterConfig) {
		c.page = pc.resolved()
	}
}

// WithReadiness replaces the raster readiness waits. Zero fields keep
// their defaults; negative durations disable a wait.
func WithReadiness(p ReadinessPolicy) Option {
	return func(c *exporterConfig) {
		c.readiness = p
	}
}

// WithImageOptions sets the JPEG quality in (0, 1] and the maximum width
// in pixels of raster captures.
func WithImageOptions(quality float64, maxWidth int) Option {
	return func(c *exporterConfig) {
		c.image = imaging.Options{Quality: quality, MaxWidth: maxWidth}
	}
}

// WithPrintGrace sets how long the print style stays in the live
// document after printing. Defaults to 1 second.
func WithPrintGrace(d time.Duration) Option {
	return func(c *exporterConfig) {
		c.printGrace = d
	}
}

// WithNonPrintable sets the selector of elements hidden from every
// export. Defaults to [DefaultNonPrintable].
func WithNonPrintable(selector string) Option {
	return func(c *exporterConfig) {
		if selector != "" {
			c.nonPrintable = selector
		}
	}
}

// WithPlaceholder sets the label drawn in place of iframes, which cannot
// be captured.
func WithPlaceholder(label string) Option {
	return func(c *exporterConfig) {
		if label != "" {
			c.placeholder = label
		}
	}
}

// WithChartScale sets the factor canvases are rasterized at in vector
// exports. Defaults to 0.5.
func WithChartScale(scale float64) Option {
	return func(c *exporterConfig) {
		if scale > 0 {
			c.chartScale = scale
		}
	}
}
