package briefexport

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/porticus-lab/go-brief-export/internal/paginate"
)

type fakeHost struct {
	missing bool
	err     error
}

func (h *fakeHost) hasElement(context.Context, string) (bool, error) {
	return !h.missing, h.err
}
func (h *fakeHost) tab() context.Context     { return context.Background() }
func (h *fakeHost) browser() context.Context { return context.Background() }

type fakeStrategy struct {
	m     Mode
	fn    func(ctx context.Context, j job) ([]byte, error)
	mu    sync.Mutex
	calls int
	reqs  []Request
}

func (s *fakeStrategy) mode() Mode { return s.m }

func (s *fakeStrategy) capture(ctx context.Context, j job) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.reqs = append(s.reqs, j.req)
	s.mu.Unlock()
	return s.fn(ctx, j)
}

func (s *fakeStrategy) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var fakePDF = []byte("%PDF-1.4 fake")

func succeed(context.Context, job) ([]byte, error) { return fakePDF, nil }

func failWith(err error) func(context.Context, job) ([]byte, error) {
	return func(context.Context, job) ([]byte, error) { return nil, err }
}

type fixture struct {
	r                     *runner
	state                 *State
	print, vector, raster *fakeStrategy
	logs                  *observer.ObservedLogs
}

func newFixture(print, vector, raster func(context.Context, job) ([]byte, error)) *fixture {
	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{
		state:  &State{},
		print:  &fakeStrategy{m: ModePrint, fn: print},
		vector: &fakeStrategy{m: ModeVector, fn: vector},
		raster: &fakeStrategy{m: ModeRaster, fn: raster},
		logs:   logs,
	}
	f.r = newRunner(f.state, zap.New(core), f.print, f.vector, f.raster)
	return f
}

func outcomes(as []Attempt) []string {
	var out []string
	for _, a := range as {
		s := a.Mode.String() + ":" + a.Outcome.String()
		if a.LastResort {
			s += ":last"
		}
		out = append(out, s)
	}
	return out
}

func TestRun_AutoPrintFirst(t *testing.T) {
	f := newFixture(succeed, succeed, succeed)
	res, err := f.r.run(context.Background(), &fakeHost{}, Request{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Mode() != ModePrint {
		t.Errorf("Mode = %v, want print", res.Mode())
	}
	if f.vector.count() != 0 || f.raster.count() != 0 {
		t.Error("later strategies ran after print succeeded")
	}
	if res.Filename() != "policy-brief.pdf" {
		t.Errorf("Filename = %q", res.Filename())
	}
	if got := f.print.reqs[0].ElementID; got != DefaultElementID {
		t.Errorf("strategy saw element %q, want default", got)
	}
	if f.state.IsExporting() {
		t.Error("state still exporting")
	}
}

// rasterFake paginates a 794x2970 bitmap, the size of a long brief
// rendered at A4 width.
func rasterFake(t *testing.T) func(context.Context, job) ([]byte, error) {
	return func(context.Context, job) ([]byte, error) {
		img := image.NewRGBA(image.Rect(0, 0, 794, 2970))
		for y := 0; y < 2970; y++ {
			for x := 0; x < 794; x++ {
				img.Set(x, y, color.RGBA{R: uint8(y / 12), G: 120, B: 200, A: 255})
			}
		}
		var enc bytes.Buffer
		if err := jpeg.Encode(&enc, img, nil); err != nil {
			t.Error(err)
			return nil, err
		}
		var out bytes.Buffer
		bmp := paginate.Bitmap{Data: enc.Bytes(), Format: "JPG", Width: 794, Height: 2970}
		if _, err := paginate.Assemble(&out, bmp, paginate.A4); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}
}

func TestRun_VectorFailsRasterSucceeds(t *testing.T) {
	f := newFixture(
		failWith(errors.New("print unavailable")),
		func(context.Context, job) ([]byte, error) { panic("layout engine crashed") },
		rasterFake(t),
	)
	res, err := f.r.run(context.Background(), &fakeHost{}, Request{Filename: "brief"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Mode() != ModeRaster {
		t.Errorf("Mode = %v, want raster", res.Mode())
	}
	want := []string{"print:failed", "vector:failed", "raster:success"}
	if diff := cmp.Diff(want, outcomes(res.Attempts())); diff != "" {
		t.Errorf("attempts (-want +got):\n%s", diff)
	}
	var se *StrategyError
	if a := res.Attempts()[1]; !errors.As(a.Err, &se) || se.Mode != ModeVector || !strings.Contains(se.Error(), "panic") {
		t.Errorf("vector attempt error = %v, want recovered panic", a.Err)
	}

	pages, err := res.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 3 {
		t.Errorf("got %d pages, want 3", len(pages))
	}
	if f.state.IsExporting() {
		t.Error("state still exporting")
	}
}

func TestRun_LastResortPrint(t *testing.T) {
	printErr := errors.New("print blocked")
	calls := 0
	f := newFixture(
		func(context.Context, job) ([]byte, error) {
			calls++
			if calls == 1 {
				return nil, printErr
			}
			return fakePDF, nil
		},
		failWith(errors.New("vector broke")),
		failWith(errors.New("raster broke")),
	)
	res, err := f.r.run(context.Background(), &fakeHost{}, Request{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"print:failed", "vector:failed", "raster:failed", "print:success:last"}
	if diff := cmp.Diff(want, outcomes(res.Attempts())); diff != "" {
		t.Errorf("attempts (-want +got):\n%s", diff)
	}
	if f.print.count() != 2 {
		t.Errorf("print ran %d times, want 2", f.print.count())
	}
}

func TestRun_Exhausted(t *testing.T) {
	vectorErr := errors.New("vector broke")
	f := newFixture(
		failWith(errors.New("print blocked")),
		failWith(vectorErr),
		failWith(&StrategyError{Mode: ModeRaster, Err: ErrCompression}),
	)
	var transitions []bool
	f.state.Subscribe(func(v bool) { transitions = append(transitions, v) })

	_, err := f.r.run(context.Background(), &fakeHost{}, Request{})
	if !errors.Is(err, ErrAllStrategiesExhausted) {
		t.Fatalf("err = %v, want ErrAllStrategiesExhausted", err)
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err is %T, want *ExhaustedError", err)
	}
	if len(ex.Attempts) != 4 || !ex.Attempts[3].LastResort {
		t.Errorf("attempts = %v", outcomes(ex.Attempts))
	}
	if !errors.Is(err, vectorErr) || !errors.Is(err, ErrCompression) {
		t.Error("attempt errors not reachable through the exhausted error")
	}
	if !strings.Contains(ex.Message(), "Save as PDF") {
		t.Errorf("Message = %q", ex.Message())
	}
	if diff := cmp.Diff([]bool{true, false}, transitions); diff != "" {
		t.Errorf("state transitions (-want +got):\n%s", diff)
	}
	if f.logs.FilterMessage("all export strategies failed").Len() != 1 {
		t.Error("exhaustion not logged")
	}
	if f.logs.FilterMessage("strategy failed").Len() != 4 {
		t.Errorf("logged %d strategy failures, want 4", f.logs.FilterMessage("strategy failed").Len())
	}
}

func TestRun_ElementNotFound(t *testing.T) {
	for _, mode := range []Mode{ModePrint, ModeAuto, ModeRaster} {
		f := newFixture(succeed, succeed, succeed)
		_, err := f.r.run(context.Background(), &fakeHost{missing: true}, Request{ElementID: "brief", Mode: mode})
		var nf *ElementNotFoundError
		if !errors.As(err, &nf) || nf.ID != "brief" || !errors.Is(err, ErrElementNotFound) {
			t.Errorf("%v: err = %v, want ElementNotFoundError for brief", mode, err)
		}
		if n := f.print.count() + f.vector.count() + f.raster.count(); n != 0 {
			t.Errorf("%v: %d strategies ran for a missing element", mode, n)
		}
		if f.state.IsExporting() {
			t.Errorf("%v: state still exporting", mode)
		}
	}
}

func TestRun_HostError(t *testing.T) {
	hostErr := errors.New("tab crashed")
	f := newFixture(succeed, succeed, succeed)
	_, err := f.r.run(context.Background(), &fakeHost{err: hostErr}, Request{})
	if !errors.Is(err, hostErr) {
		t.Errorf("err = %v, want wrapped host error", err)
	}
}

func TestRun_SingleModePropagatesError(t *testing.T) {
	vectorErr := &StrategyError{Mode: ModeVector, Err: errors.New("no layout")}
	f := newFixture(succeed, failWith(vectorErr), succeed)
	_, err := f.r.run(context.Background(), &fakeHost{}, Request{Mode: ModeVector})
	if err != vectorErr {
		t.Errorf("err = %v, want the strategy's own error", err)
	}
	if f.print.count() != 0 || f.raster.count() != 0 {
		t.Error("single mode fell back to other strategies")
	}
}

func TestRun_SingleModeSuccess(t *testing.T) {
	f := newFixture(succeed, succeed, succeed)
	res, err := f.r.run(context.Background(), &fakeHost{}, Request{Mode: ModeRaster, Filename: "Q3 report.pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode() != ModeRaster || len(res.Attempts()) != 1 {
		t.Errorf("Mode = %v, attempts = %v", res.Mode(), outcomes(res.Attempts()))
	}
	if res.Filename() != "Q3-report.pdf" {
		t.Errorf("Filename = %q", res.Filename())
	}
}

func TestRun_InvalidMode(t *testing.T) {
	f := newFixture(succeed, succeed, succeed)
	_, err := f.r.run(context.Background(), &fakeHost{}, Request{Mode: Mode(42)})
	if !errors.Is(err, ErrInvalidMode) {
		t.Errorf("err = %v, want ErrInvalidMode", err)
	}
}

func TestRun_EmptyOutputFails(t *testing.T) {
	empty := func(context.Context, job) ([]byte, error) { return nil, nil }
	f := newFixture(empty, succeed, succeed)
	res, err := f.r.run(context.Background(), &fakeHost{}, Request{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Mode() != ModeVector {
		t.Errorf("Mode = %v, want vector after empty print output", res.Mode())
	}
	if !errors.Is(res.Attempts()[0].Err, errEmptyOutput) {
		t.Errorf("print attempt error = %v", res.Attempts()[0].Err)
	}
}

func TestRun_CancelStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(
		func(context.Context, job) ([]byte, error) {
			cancel()
			return nil, context.Canceled
		},
		succeed,
		succeed,
	)
	_, err := f.r.run(ctx, &fakeHost{}, Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if f.vector.count() != 0 || f.raster.count() != 0 || f.print.count() != 1 {
		t.Errorf("calls after cancel: print=%d vector=%d raster=%d",
			f.print.count(), f.vector.count(), f.raster.count())
	}
	if f.state.IsExporting() {
		t.Error("state still exporting")
	}
}

func TestRun_RejectsConcurrentExport(t *testing.T) {
	entered := make(chan struct{})
	unblock := make(chan struct{})
	f := newFixture(
		func(context.Context, job) ([]byte, error) {
			close(entered)
			<-unblock
			return fakePDF, nil
		},
		succeed,
		succeed,
	)

	done := make(chan error, 1)
	go func() {
		_, err := f.r.run(context.Background(), &fakeHost{}, Request{})
		done <- err
	}()
	<-entered

	if !f.state.IsExporting() {
		t.Error("state not exporting during export")
	}
	if _, err := f.r.run(context.Background(), &fakeHost{}, Request{}); !errors.Is(err, ErrExportInProgress) {
		t.Errorf("second run err = %v, want ErrExportInProgress", err)
	}
	close(unblock)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if f.state.IsExporting() {
		t.Error("state still exporting")
	}
}

func TestRun_RepeatedAutoExportsMatch(t *testing.T) {
	f := newFixture(failWith(errors.New("no print")), failWith(errors.New("no vector")), rasterFake(t))
	var got [][]PageInfo
	for i := 0; i < 2; i++ {
		res, err := f.r.run(context.Background(), &fakeHost{}, Request{})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		pages, err := res.Pages()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, pages)
	}
	if diff := cmp.Diff(got[0], got[1]); diff != "" {
		t.Errorf("page layout differs between runs:\n%s", diff)
	}
}

func TestExportHelpers_BusyFailsBeforeLoading(t *testing.T) {
	// No browser: a helper that tried to open a tab would panic.
	e := &Exporter{cfg: defaultConfig(), state: &State{}}
	release, err := e.state.acquire()
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx := context.Background()
	calls := map[string]func() (*Result, error){
		"ExportURL":  func() (*Result, error) { return e.ExportURL(ctx, "http://localhost:8501/", Request{}) },
		"ExportHTML": func() (*Result, error) { return e.ExportHTML(ctx, "<p>brief</p>", Request{}) },
		"ExportFile": func() (*Result, error) { return e.ExportFile(ctx, "brief.html", Request{}) },
	}
	for name, call := range calls {
		if _, err := call(); !errors.Is(err, ErrExportInProgress) {
			t.Errorf("%s err = %v, want ErrExportInProgress", name, err)
		}
	}
}
