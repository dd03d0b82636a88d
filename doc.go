// Package briefexport exports one element of a loaded web page, usually a
// policy brief, to a downloadable PDF via headless Chrome (Chrome DevTools
// Protocol).
//
// # Strategies
//
// Three capture strategies are available, selected with [Mode]:
//
//   - [ModePrint] prints the live document with a temporary print
//     stylesheet that hides non-printable UI. Text stays selectable.
//   - [ModeVector] clones the element into a clean tab, rasterizes its
//     canvases, and prints the clone scaled to the page width.
//   - [ModeRaster] waits for images and charts to settle, screenshots the
//     clone, compresses it to JPEG and slices it onto pages.
//
// [ModeAuto] tries print, vector and raster in that order and retries print
// once more before failing with an [*ExhaustedError]. A specific mode runs
// only that strategy.
//
// # Exporting
//
// For one-off exports use the package-level helpers:
//
//	res, err := briefexport.ExportURL(ctx, "https://example.com/brief", briefexport.Request{})
//
// For repeated exports create an [Exporter], which reuses the browser
// process, and keep a [Document] open to export from it several times:
//
//	e, err := briefexport.NewExporter(briefexport.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//
//	doc, err := e.OpenURL(ctx, "https://example.com/brief")
//	res, err := e.Export(ctx, doc, briefexport.Request{
//	    ElementID: "policy-brief-content",
//	    Filename:  "Q3 brief",
//	    Mode:      briefexport.ModeVector,
//	})
//
// Only one export runs at a time per Exporter. [Exporter.State] reports
// whether one is in flight and notifies subscribers when that changes.
//
// A [Result] gives access to the generated PDF:
//
//	res.Filename()                          // "Q3-brief.pdf"
//	res.Mode()                              // strategy that produced it
//	res.Attempts()                          // every strategy tried
//	res.Pages()                             // page sizes in points
//	res.WriteToFile(res.Filename(), 0o644)  // write to disk
//
// Chrome or Chromium must be available in PATH, or use [WithAutoDownload].
package briefexport
