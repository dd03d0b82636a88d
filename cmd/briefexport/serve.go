package main

import (
	"context"
	"errors"
	"io"

	flag "github.com/spf13/pflag"

	briefexport "github.com/porticus-lab/go-brief-export"
	"github.com/porticus-lab/go-brief-export/internal/server"
)

type serveFlags struct {
	commonFlags
	browserFlags
	pageFlags

	addr string
}

// runServe implements the "serve" command.
func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	var f serveFlags
	fs := newFlagSet("serve", "serve [options]", stderr)
	addCommonFlags(fs, &f.commonFlags)
	addBrowserFlags(fs, &f.browserFlags)
	addPageFlags(fs, &f.pageFlags)
	fs.StringVar(&f.addr, "addr", "", "listen address (default from config, :8080)")
	if err := parse(fs, args); err != nil {
		if errors.Is(err, errHelp) {
			return nil
		}
		return err
	}

	cfg, err := loadConfig(fs, f.commonFlags, &f.browserFlags, &f.pageFlags)
	if err != nil {
		return err
	}
	applyAddr(fs, &cfg.Server.Addr, f.addr)

	log, err := newLogger(f.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	setMaxProcs(log)

	e, err := briefexport.NewExporter(cfg.ExporterOptions(log)...)
	if err != nil {
		return err
	}
	defer e.Close()

	return server.New(server.FromExporter(e), log).Run(ctx, cfg.Server.Addr)
}

func applyAddr(fs *flag.FlagSet, dst *string, addr string) {
	if fs.Changed("addr") && addr != "" {
		*dst = addr
	}
}
