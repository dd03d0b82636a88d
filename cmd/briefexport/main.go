// briefexport exports an element of a web page to PDF.
//
// Usage:
//
//	briefexport export [options] <url|file.html>
//	briefexport info [--json] <file.pdf>
//	briefexport serve [options]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	briefexport "github.com/porticus-lab/go-brief-export"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches a command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	var err error
	switch args[0] {
	case "export":
		err = runExport(ctx, args[1:], stdout, stderr)
	case "info":
		err = runInfo(args[1:], stdout)
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "version":
		fmt.Fprintln(stdout, "briefexport", Version)
	case "help", "-h", "--help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 1
	}
	if err != nil {
		var exhausted *briefexport.ExhaustedError
		if errors.As(err, &exhausted) {
			fmt.Fprintln(stderr, exhausted.Message())
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `briefexport - export a policy brief from a web page to PDF

Usage:
  briefexport export [options] <url|file.html>
  briefexport info [--json] <file.pdf>
  briefexport serve [options]
  briefexport version

Commands:
  export    Export one element of a page to a PDF file
  info      Display page count and page dimensions of a PDF file
  serve     Serve the export API over HTTP
  version   Print the version

Run "briefexport <command> --help" for the options of a command.

Examples:
  briefexport export http://localhost:8501/
  briefexport export -m raster -f "Q3 brief" -o /tmp/brief.pdf report.html
  briefexport info /tmp/brief.pdf
  briefexport serve -c briefexport.yaml --addr :8080
`)
}

// newLogger builds a production JSON logger, or a development console
// logger when verbose is set.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// setMaxProcs matches GOMAXPROCS to the container CPU quota.
func setMaxProcs(log *zap.Logger) {
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply.
	_, _ = maxprocs.Set(maxprocs.Logger(log.Sugar().Debugf))
}
