// Package config loads the YAML configuration of the briefexport command.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	briefexport "github.com/porticus-lab/go-brief-export"
)

// MaxFileSize limits configuration files read by [Load].
const MaxFileSize = 1 << 20

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrInvalidConfig  = errors.New("invalid config")
)

// Duration is a time.Duration written as "500ms" or "2m" in YAML.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats d as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config holds all configuration of the briefexport command.
type Config struct {
	Browser   BrowserConfig   `yaml:"browser"`
	Readiness ReadinessConfig `yaml:"readiness"`
	Image     ImageConfig     `yaml:"image"`
	Page      PageConfig      `yaml:"page"`
	Print     PrintConfig     `yaml:"print"`
	Server    ServerConfig    `yaml:"server"`
}

// BrowserConfig defines how Chrome is started.
type BrowserConfig struct {
	ChromePath   string   `yaml:"chromePath"` // Empty = search standard locations
	NoSandbox    bool     `yaml:"noSandbox"`
	AutoDownload bool     `yaml:"autoDownload"`
	Timeout      Duration `yaml:"timeout"` // Per open and per export
}

// ReadinessConfig defines the waits before a raster capture.
type ReadinessConfig struct {
	LayoutSettle  Duration `yaml:"layoutSettle"`
	ImageTimeout  Duration `yaml:"imageTimeout"`
	ChartSelector string   `yaml:"chartSelector"`
	ChartSettle   Duration `yaml:"chartSettle"`
	ChartReady    string   `yaml:"chartReady"` // JS expression; empty = fixed settle delay
}

// ImageConfig defines raster compression.
type ImageConfig struct {
	Quality  float64 `yaml:"quality"` // JPEG quality in (0, 1]
	MaxWidth int     `yaml:"maxWidth"`
}

// PageConfig defines the output paper.
type PageConfig struct {
	Size        string `yaml:"size"`        // "A3", "A4", "A5", "letter" or "legal"
	Orientation string `yaml:"orientation"` // "portrait" or "landscape"
}

// PrintConfig defines the print strategy.
type PrintConfig struct {
	GraceDelay   Duration `yaml:"graceDelay"`
	NonPrintable string   `yaml:"nonPrintable"`
}

// ServerConfig defines the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	r := briefexport.DefaultReadinessPolicy()
	return &Config{
		Browser: BrowserConfig{Timeout: Duration(briefexport.DefaultTimeout)},
		Readiness: ReadinessConfig{
			LayoutSettle:  Duration(r.LayoutSettle),
			ImageTimeout:  Duration(r.ImageTimeout),
			ChartSelector: r.ChartSelector,
			ChartSettle:   Duration(r.ChartSettle),
		},
		Image:  ImageConfig{Quality: 0.85, MaxWidth: 1920},
		Page:   PageConfig{Size: "A4", Orientation: "portrait"},
		Print:  PrintConfig{GraceDelay: Duration(briefexport.DefaultPrintGrace), NonPrintable: briefexport.DefaultNonPrintable},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads the YAML file at path over the defaults. Unknown keys are
// rejected. The result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrConfigParse, len(data), MaxFileSize)
	}
	cfg := Default()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid value.
func (c *Config) Validate() error {
	if c.Browser.Timeout < 0 {
		return fmt.Errorf("%w: browser.timeout must not be negative", ErrInvalidConfig)
	}
	if c.Image.Quality <= 0 || c.Image.Quality > 1 {
		return fmt.Errorf("%w: image.quality %v is outside (0, 1]", ErrInvalidConfig, c.Image.Quality)
	}
	if c.Image.MaxWidth <= 0 {
		return fmt.Errorf("%w: image.maxWidth must be positive", ErrInvalidConfig)
	}
	if _, ok := briefexport.LookupPageSize(c.Page.Size); !ok {
		return fmt.Errorf("%w: unknown page.size %q", ErrInvalidConfig, c.Page.Size)
	}
	if _, err := orientation(c.Page.Orientation); err != nil {
		return err
	}
	if c.Print.GraceDelay < 0 {
		return fmt.Errorf("%w: print.graceDelay must not be negative", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Print.NonPrintable) == "" {
		return fmt.Errorf("%w: print.nonPrintable is empty", ErrInvalidConfig)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalidConfig)
	}
	return nil
}

func orientation(s string) (briefexport.Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "portrait":
		return briefexport.Portrait, nil
	case "landscape":
		return briefexport.Landscape, nil
	}
	return 0, fmt.Errorf("%w: unknown page.orientation %q", ErrInvalidConfig, s)
}

// ExporterOptions translates c into exporter options. c must be valid.
func (c *Config) ExporterOptions(logger *zap.Logger) []briefexport.Option {
	size, _ := briefexport.LookupPageSize(c.Page.Size)
	orient, _ := orientation(c.Page.Orientation)

	opts := []briefexport.Option{
		briefexport.WithLogger(logger),
		briefexport.WithTimeout(time.Duration(c.Browser.Timeout)),
		briefexport.WithPageConfig(briefexport.PageConfig{
			Size:            size,
			Orientation:     orient,
			PrintBackground: true,
		}),
		briefexport.WithReadiness(briefexport.ReadinessPolicy{
			LayoutSettle:  time.Duration(c.Readiness.LayoutSettle),
			ImageTimeout:  time.Duration(c.Readiness.ImageTimeout),
			ChartSelector: c.Readiness.ChartSelector,
			ChartSettle:   time.Duration(c.Readiness.ChartSettle),
			ChartReady:    c.Readiness.ChartReady,
		}),
		briefexport.WithImageOptions(c.Image.Quality, c.Image.MaxWidth),
		briefexport.WithPrintGrace(time.Duration(c.Print.GraceDelay)),
		briefexport.WithNonPrintable(c.Print.NonPrintable),
	}
	if c.Browser.ChromePath != "" {
		opts = append(opts, briefexport.WithChromePath(c.Browser.ChromePath))
	}
	if c.Browser.NoSandbox {
		opts = append(opts, briefexport.WithNoSandbox())
	}
	if c.Browser.AutoDownload {
		opts = append(opts, briefexport.WithAutoDownload())
	}
	return opts
}
