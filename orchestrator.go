package briefexport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// host is the live document an export reads from.
type host interface {
	// hasElement reports whether the document has an element with id.
	hasElement(ctx context.Context, id string) (bool, error)
	// tab is the chromedp context of the live document's tab.
	tab() context.Context
	// browser is the chromedp context disposable tabs are opened under.
	browser() context.Context
}

// job is what a strategy gets for one attempt.
type job struct {
	host host
	req  Request
	log  *zap.Logger
}

// strategy turns the requested element into PDF bytes.
type strategy interface {
	mode() Mode
	capture(ctx context.Context, j job) ([]byte, error)
}

var errEmptyOutput = errors.New("strategy produced no output")

// runner folds an export request over the strategy chain.
type runner struct {
	state  *State
	log    *zap.Logger
	chain  []strategy // auto order
	byMode map[Mode]strategy
	// lastResort runs once when the whole chain failed.
	lastResort strategy
}

func newRunner(state *State, log *zap.Logger, pr, vec, ras strategy) *runner {
	return &runner{
		state: state,
		log:   log,
		chain: []strategy{pr, vec, ras},
		byMode: map[Mode]strategy{
			ModePrint:  pr,
			ModeVector: vec,
			ModeRaster: ras,
		},
		lastResort: pr,
	}
}

func (r *runner) run(ctx context.Context, h host, req Request) (*Result, error) {
	release, err := r.state.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	req = req.resolved()
	log := r.log.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("element_id", req.ElementID),
		zap.Stringer("mode", req.Mode),
	)
	start := time.Now()
	log.Info("export started", zap.String("filename", req.Filename))

	ok, err := h.hasElement(ctx, req.ElementID)
	if err != nil {
		log.Error("resolving element failed", zap.Error(err))
		return nil, fmt.Errorf("briefexport: resolving element: %w", err)
	}
	if !ok {
		log.Warn("element not found")
		return nil, &ElementNotFoundError{ID: req.ElementID}
	}

	j := job{host: h, req: req, log: log}
	if req.Mode != ModeAuto {
		s, ok := r.byMode[req.Mode]
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMode, req.Mode)
		}
		data, a := r.attempt(ctx, s, j, false)
		if a.Err != nil {
			log.Warn("export failed", zap.Error(a.Err), zap.Duration("duration", a.Duration))
			return nil, a.Err
		}
		log.Info("export finished", zap.Int("bytes", len(data)), zap.Duration("duration", time.Since(start)))
		return &Result{data: data, filename: req.Filename, mode: s.mode(), attempts: []Attempt{a}}, nil
	}

	var attempts []Attempt
	steps := append(r.chain[:len(r.chain):len(r.chain)], r.lastResort)
	for i, s := range steps {
		last := i == len(steps)-1
		if err := ctx.Err(); err != nil {
			for k := i; k < len(steps); k++ {
				attempts = append(attempts, Attempt{
					Mode:       steps[k].mode(),
					Outcome:    OutcomeSkipped,
					LastResort: k == len(steps)-1,
				})
			}
			log.Warn("export cancelled", zap.Error(err), zap.Int("attempts", len(attempts)))
			return nil, err
		}

		data, a := r.attempt(ctx, s, j, last)
		attempts = append(attempts, a)
		if a.Err == nil {
			log.Info("export finished",
				zap.Stringer("strategy", a.Mode),
				zap.Bool("last_resort", last),
				zap.Int("bytes", len(data)),
				zap.Duration("duration", time.Since(start)),
			)
			return &Result{data: data, filename: req.Filename, mode: a.Mode, attempts: attempts}, nil
		}
	}

	ex := &ExhaustedError{Attempts: attempts}
	log.Error("all export strategies failed", zap.Error(ex), zap.Duration("duration", time.Since(start)))
	return nil, ex
}

// attempt runs one strategy, turning panics and empty output into errors.
func (r *runner) attempt(ctx context.Context, s strategy, j job, lastResort bool) (data []byte, a Attempt) {
	a = Attempt{Mode: s.mode(), LastResort: lastResort}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			data = nil
			a.Err = &StrategyError{Mode: a.Mode, Err: fmt.Errorf("panic: %v", p)}
		}
		a.Duration = time.Since(start)
		a.Outcome = OutcomeSuccess
		if a.Err != nil {
			a.Outcome = OutcomeFailed
			j.log.Warn("strategy failed",
				zap.Stringer("strategy", a.Mode),
				zap.Bool("last_resort", lastResort),
				zap.Duration("duration", a.Duration),
				zap.Error(a.Err),
			)
		} else {
			j.log.Debug("strategy succeeded",
				zap.Stringer("strategy", a.Mode),
				zap.Duration("duration", a.Duration),
			)
		}
	}()

	data, a.Err = s.capture(ctx, j)
	if a.Err == nil && len(data) == 0 {
		a.Err = &StrategyError{Mode: a.Mode, Err: errEmptyOutput}
	}
	return data, a
}
