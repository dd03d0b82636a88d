package briefexport

import "sync"

// State tracks whether an export is running. It is owned by an
// [Exporter]; callers observe it to disable export triggers while one is
// in flight.
type State struct {
	mu        sync.Mutex
	exporting bool
	listeners map[int]func(exporting bool)
	nextID    int
}

// IsExporting reports whether an export is in progress.
func (s *State) IsExporting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exporting
}

// Subscribe registers fn to be called on every start and end of an
// export. Calls happen synchronously on the exporting goroutine, outside
// any lock. The returned function removes the listener.
func (s *State) Subscribe(fn func(exporting bool)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listeners == nil {
		s.listeners = make(map[int]func(bool))
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// acquire marks an export as started. The returned release is safe to
// call more than once; only the first call has an effect.
func (s *State) acquire() (release func(), err error) {
	s.mu.Lock()
	if s.exporting {
		s.mu.Unlock()
		return nil, ErrExportInProgress
	}
	s.exporting = true
	fns := s.snapshot()
	s.mu.Unlock()
	notify(fns, true)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.exporting = false
			fns := s.snapshot()
			s.mu.Unlock()
			notify(fns, false)
		})
	}, nil
}

func (s *State) snapshot() []func(bool) {
	fns := make([]func(bool), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(bool), v bool) {
	for _, fn := range fns {
		fn(v)
	}
}
