package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/porticus-lab/go-brief-export/internal/pdfinfo"
)

// runInfo implements the "info" command.
func runInfo(args []string, stdout io.Writer) error {
	var asJSON bool
	fs := newFlagSet("info", "info [--json] <file.pdf>", stdout)
	fs.BoolVar(&asJSON, "json", false, "print the page list as JSON")
	if err := parse(fs, args); err != nil {
		if errors.Is(err, errHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no input file specified")
	}
	inputFile := fs.Arg(0)

	info, err := pdfinfo.Open(inputFile)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputFile, err)
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(info); err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		return nil
	}

	fmt.Fprintf(stdout, "File:    %s\n", inputFile)
	fmt.Fprintf(stdout, "Version: PDF-%s\n", info.Version)
	fmt.Fprintf(stdout, "Pages:   %d\n", info.PageCount())
	for i, p := range info.Pages {
		fmt.Fprintf(stdout, "  Page %d: %.2f x %.2f pt (%.0f x %.0f mm)", i+1,
			p.Width, p.Height, p.Width*25.4/72, p.Height*25.4/72)
		if p.Rotation != 0 {
			fmt.Fprintf(stdout, " rotated %d", p.Rotation)
		}
		fmt.Fprintln(stdout)
	}
	return nil
}
