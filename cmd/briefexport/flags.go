package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/porticus-lab/go-brief-export/internal/config"
)

// errHelp is returned after a command printed its own usage.
var errHelp = errors.New("help requested")

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	verbose bool
}

// browserFlags override the browser section of the config file.
type browserFlags struct {
	chromePath string
	noSandbox  bool
	timeout    time.Duration
}

// pageFlags override the page section of the config file.
type pageFlags struct {
	size        string
	orientation string
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "YAML config file")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log debug output to stderr")
}

func addBrowserFlags(fs *flag.FlagSet, f *browserFlags) {
	fs.StringVar(&f.chromePath, "chrome", "", "path to the Chrome or Chromium executable")
	fs.BoolVar(&f.noSandbox, "no-sandbox", false, "disable the Chrome sandbox (needed as root)")
	fs.DurationVar(&f.timeout, "timeout", 0, "bound on loading and on exporting")
}

func addPageFlags(fs *flag.FlagSet, f *pageFlags) {
	fs.StringVarP(&f.size, "page-size", "p", "", "page size: A3, A4, A5, letter, legal")
	fs.StringVar(&f.orientation, "orientation", "", "page orientation: portrait, landscape")
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name, usage string, w io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(w)
	fs.Usage = func() {
		fmt.Fprintf(w, "Usage: briefexport %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and maps --help to errHelp.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

// loadConfig loads the config file, if any, and applies the flags that
// were set on the command line over it.
func loadConfig(fs *flag.FlagSet, common commonFlags, b *browserFlags, p *pageFlags) (*config.Config, error) {
	cfg := config.Default()
	if common.config != "" {
		var err error
		if cfg, err = config.Load(common.config); err != nil {
			return nil, err
		}
	}

	if b != nil {
		if fs.Changed("chrome") {
			cfg.Browser.ChromePath = b.chromePath
		}
		if fs.Changed("no-sandbox") {
			cfg.Browser.NoSandbox = b.noSandbox
		}
		if fs.Changed("timeout") {
			cfg.Browser.Timeout = config.Duration(b.timeout)
		}
	}
	if p != nil {
		if fs.Changed("page-size") {
			cfg.Page.Size = p.size
		}
		if fs.Changed("orientation") {
			cfg.Page.Orientation = p.orientation
		}
	}
	return cfg, cfg.Validate()
}
