package capture

import (
	"bytes"
	"context"
	"image/png"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/go-cmp/cmp"
)

func TestCall(t *testing.T) {
	got := call("function(a, b) {}", "brief", map[string]any{"n": 2})
	want := `(function(a, b) {})("brief", {"n":2})`
	if got != want {
		t.Errorf("call = %s, want %s", got, want)
	}
	if got := call("f", `"); alert(1); ("`); !strings.Contains(got, `\"); alert(1); (\"`) {
		t.Errorf("argument not escaped: %s", got)
	}
}

func TestPolicyResolved(t *testing.T) {
	got := Policy{ChartReady: "window.ready", ChartSettle: -1}.Resolved()
	want := Policy{
		LayoutSettle:  500 * time.Millisecond,
		ImageTimeout:  3 * time.Second,
		ChartSelector: "svg, canvas",
		ChartSettle:   -1,
		ChartReady:    "window.ready",
		PollInterval:  100 * time.Millisecond,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolved mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(DefaultPolicy(), Policy{}.Resolved()); diff != "" {
		t.Errorf("zero policy should resolve to defaults:\n%s", diff)
	}
}

func TestSnapshotDocument(t *testing.T) {
	snap := &Snapshot{
		ID:        "policy-brief-content",
		HTML:      `<div id="policy-brief-content"><p>Brief</p></div>`,
		Styles:    []string{"p { color: red; }", "a::after { content: '</style>'; }"},
		Links:     []string{"https://cdn.example.com/site.css"},
		BaseURL:   "https://example.com/briefs/42",
		Title:     `Q3 "brief"`,
		BodyClass: "theme-light",
		Width:     794,
		Height:    2970,
	}
	doc := snap.Document()

	for _, want := range []string{
		`<base href="https://example.com/briefs/42">`,
		`<link rel="stylesheet" href="https://cdn.example.com/site.css">`,
		`<title>Q3 &#34;brief&#34;</title>`,
		`<body class="theme-light">`,
		`p { color: red; }`,
		`content: '<\/style>'`,
		`[id="policy-brief-content"] { transform: none !important; overflow: visible !important;`,
		`height: auto !important; max-height: none !important;`,
		`animation: none !important`,
		`.briefexport-ancestor { display: block !important;`,
		`<div id="policy-brief-content"><p>Brief</p></div></body></html>`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q\n%s", want, doc)
		}
	}
	if strings.Count(doc, "</style>") != len(snap.Styles)+1 {
		t.Errorf("style elements not closed exactly once each:\n%s", doc)
	}
}

func TestSnapshotDocument_NoBaseForBlank(t *testing.T) {
	doc := (&Snapshot{ID: "x", BaseURL: "about:blank"}).Document()
	if strings.Contains(doc, "<base") {
		t.Errorf("about:blank should not become a base URL:\n%s", doc)
	}
}

func skipIfNoChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"chromium-browser", "chromium", "google-chrome",
		"google-chrome-stable", "chrome",
	} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("skipping: Chrome/Chromium not found in PATH")
}

func newBrowser(t *testing.T) context.Context {
	t.Helper()
	skipIfNoChrome(t)
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("no-sandbox", true))
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		t.Fatalf("starting browser: %v", err)
	}
	t.Cleanup(func() {
		browserCancel()
		allocCancel()
	})
	return browserCtx
}

func openHTML(t *testing.T, browserCtx context.Context, html string) context.Context {
	t.Helper()
	tabCtx, cancel := chromedp.NewContext(browserCtx)
	t.Cleanup(cancel)
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		t.Fatalf("loading page: %v", err)
	}
	return tabCtx
}

const livePage = `<!DOCTYPE html>
<html><head><style>.card { padding: 10px; }</style></head>
<body>
<div id="brief" style="height: 200px; overflow: auto; transform: scale(0.9)">
  <div class="card" style="height: 1200px">Body text</div>
  <button>Export</button>
  <div class="no-print">hidden</div>
  <iframe style="width: 300px; height: 150px"></iframe>
  <canvas id="chart" width="200" height="100"></canvas>
  <img src="http://127.0.0.1:1/never.png">
</div>
<script>
  const c = document.getElementById('chart').getContext('2d');
  c.fillStyle = '#0000ff';
  c.fillRect(0, 0, 200, 100);
</script>
</body></html>`

func TestBuild_LiveDocumentUntouched(t *testing.T) {
	browserCtx := newBrowser(t)
	tab := openHTML(t, browserCtx, livePage)

	var before, after string
	if err := chromedp.Run(tab, chromedp.OuterHTML("html", &before, chromedp.ByQuery)); err != nil {
		t.Fatal(err)
	}
	snap, err := Build(tab, "brief", Options{CanvasScale: 0.5, NonPrintable: ".no-print, button"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := chromedp.Run(tab, chromedp.OuterHTML("html", &after, chromedp.ByQuery)); err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Error("Build modified the live document")
	}

	for _, bad := range []string{"<button", "no-print", "<iframe", "<canvas"} {
		if strings.Contains(snap.HTML, bad) {
			t.Errorf("snapshot still contains %q", bad)
		}
	}
	for _, want := range []string{DefaultPlaceholder, "data:image/png;base64,", "Body text"} {
		if !strings.Contains(snap.HTML, want) {
			t.Errorf("snapshot missing %q", want)
		}
	}
	if snap.Height < 1200 {
		t.Errorf("snapshot height %d, want the full scroll height", snap.Height)
	}
	if len(snap.Styles) == 0 || !strings.Contains(strings.Join(snap.Styles, "\n"), ".card") {
		t.Errorf("page styles not collected: %v", snap.Styles)
	}
}

func TestBuild_MissingElement(t *testing.T) {
	browserCtx := newBrowser(t)
	tab := openHTML(t, browserCtx, "<p>nothing here</p>")
	if _, err := Build(tab, "brief", Options{}); err != ErrNoElement {
		t.Errorf("Build = %v, want ErrNoElement", err)
	}
	ok, err := Exists(tab, "brief")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v; want false, nil", ok, err)
	}
}

func TestPrepare_NeverLoadingImage(t *testing.T) {
	browserCtx := newBrowser(t)
	tab := openHTML(t, browserCtx, livePage)

	p := Policy{
		LayoutSettle: time.Millisecond,
		ImageTimeout: 200 * time.Millisecond,
		ChartSettle:  50 * time.Millisecond,
	}
	start := time.Now()
	if err := Prepare(tab, "brief", p); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Errorf("Prepare took %v; the image timeout should bound it", d)
	}
}

func TestWaitCharts_Predicate(t *testing.T) {
	browserCtx := newBrowser(t)
	tab := openHTML(t, browserCtx, `<div id="brief"><svg width="10" height="10"></svg></div>
<script>setTimeout(() => { window.chartsDone = true; }, 100);</script>`)

	found, err := WaitCharts(tab, "brief", Policy{ChartReady: "window.chartsDone", ChartSettle: 5 * time.Second})
	if err != nil || !found {
		t.Fatalf("WaitCharts = %v, %v", found, err)
	}
	var done bool
	if err := chromedp.Run(tab, chromedp.Evaluate(`window.chartsDone === true`, &done)); err != nil || !done {
		t.Errorf("returned before the predicate held (done=%v, err=%v)", done, err)
	}
}

func TestRenderScreenshot_FullHeight(t *testing.T) {
	browserCtx := newBrowser(t)
	tab := openHTML(t, browserCtx, `<div id="brief" style="width: 400px; height: 300px; overflow: hidden">
<div style="height: 1500px; background: linear-gradient(#f00, #00f)"></div></div>`)

	snap, err := Build(tab, "brief", Options{})
	if err != nil {
		t.Fatal(err)
	}
	var shot []byte
	err = Render(context.Background(), browserCtx, snap, time.Second, func(ctx context.Context) error {
		var err error
		shot, err = Screenshot(ctx, "brief")
		return err
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		t.Fatalf("screenshot is not a PNG: %v", err)
	}
	if h := img.Bounds().Dy(); h < 1500 {
		t.Errorf("screenshot height %d, want at least 1500", h)
	}
}

func TestBuild_KeepsAncestorStyles(t *testing.T) {
	browserCtx := newBrowser(t)
	tab := openHTML(t, browserCtx, `<!DOCTYPE html>
<html><head><style>
  .policy-brief h2 { color: rgb(200, 0, 0); }
  .theme { font-family: monospace; padding: 40px; }
</style></head>
<body>
<main class="theme" style="height: 50px; overflow: hidden">
  <div class="policy-brief bg-white" id="outer">
    <div id="brief"><h2>Findings</h2></div>
  </div>
</main>
</body></html>`)

	snap, err := Build(tab, "brief", Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, want := range []string{
		`<main class="theme briefexport-ancestor">`,
		`<div id="outer" class="policy-brief bg-white briefexport-ancestor">`,
	} {
		if !strings.Contains(snap.HTML, want) {
			t.Errorf("snapshot missing %q:\n%s", want, snap.HTML)
		}
	}
	if strings.Contains(snap.HTML, "overflow: hidden") {
		t.Error("ancestor inline styles were copied")
	}

	var color, font string
	var left float64
	err = Render(context.Background(), browserCtx, snap, time.Second, func(ctx context.Context) error {
		return chromedp.Run(ctx,
			chromedp.Evaluate(`getComputedStyle(document.querySelector('#brief h2')).color`, &color),
			chromedp.Evaluate(`getComputedStyle(document.getElementById('brief')).fontFamily`, &font),
			chromedp.Evaluate(`document.getElementById('brief').getBoundingClientRect().left`, &left),
		)
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if color != "rgb(200, 0, 0)" {
		t.Errorf("h2 color = %q, want the ancestor-scoped rule", color)
	}
	if !strings.Contains(font, "monospace") {
		t.Errorf("font-family = %q, want it inherited from the wrapper", font)
	}
	if left != 0 {
		t.Errorf("element offset %v, want wrappers to add no padding", left)
	}
}
