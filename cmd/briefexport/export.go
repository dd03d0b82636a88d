package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	briefexport "github.com/porticus-lab/go-brief-export"
)

type exportFlags struct {
	commonFlags
	browserFlags
	pageFlags

	output   string
	element  string
	filename string
	mode     string
}

// runExport implements the "export" command.
func runExport(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f exportFlags
	fs := newFlagSet("export", "export [options] <url|file.html>", stderr)
	addCommonFlags(fs, &f.commonFlags)
	addBrowserFlags(fs, &f.browserFlags)
	addPageFlags(fs, &f.pageFlags)
	fs.StringVarP(&f.output, "output", "o", "", "output path (default: <filename>.pdf in the current directory)")
	fs.StringVarP(&f.element, "element", "e", briefexport.DefaultElementID, "id of the element to export")
	fs.StringVarP(&f.filename, "filename", "f", briefexport.DefaultFilename, "download name, without .pdf")
	fs.StringVarP(&f.mode, "mode", "m", "auto", "strategy: auto, print, vector, raster")

	if err := parse(fs, args); err != nil {
		if errors.Is(err, errHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected one url or file, got %d arguments", fs.NArg())
	}
	target := fs.Arg(0)

	mode, err := briefexport.ParseMode(f.mode)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(fs, f.commonFlags, &f.browserFlags, &f.pageFlags)
	if err != nil {
		return err
	}
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

	req := briefexport.Request{ElementID: f.element, Filename: f.filename, Mode: mode}
	var res *briefexport.Result
	if isURL(target) {
		res, err = e.ExportURL(ctx, target, req)
	} else {
		res, err = e.ExportFile(ctx, target, req)
	}
	if err != nil {
		return err
	}

	out := f.output
	if out == "" {
		out = res.Filename()
	}
	if err := res.WriteToFile(out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	log.Debug("pdf written", zap.String("path", out), zap.Int("bytes", res.Len()))
	fmt.Fprintf(stdout, "%s (%s, %d bytes)\n", out, res.Mode(), res.Len())
	return nil
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "file://")
}
