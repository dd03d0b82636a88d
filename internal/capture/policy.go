package capture

import "time"

// Policy bounds how long the live document is given to settle before it
// is captured.
type Policy struct {
	LayoutSettle  time.Duration
	ImageTimeout  time.Duration
	ChartSelector string
	ChartSettle   time.Duration
	// ChartReady is an optional JavaScript expression; when set it is
	// polled until truthy instead of sleeping for ChartSettle.
	ChartReady   string
	PollInterval time.Duration
}

// DefaultPolicy returns the waits used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		LayoutSettle:  500 * time.Millisecond,
		ImageTimeout:  3 * time.Second,
		ChartSelector: "svg, canvas",
		ChartSettle:   3 * time.Second,
		PollInterval:  100 * time.Millisecond,
	}
}

// Resolved fills unset durations and the selector from DefaultPolicy.
// Negative durations mean "no wait".
func (p Policy) Resolved() Policy {
	d := DefaultPolicy()
	if p.LayoutSettle == 0 {
		p.LayoutSettle = d.LayoutSettle
	}
	if p.ImageTimeout == 0 {
		p.ImageTimeout = d.ImageTimeout
	}
	if p.ChartSelector == "" {
		p.ChartSelector = d.ChartSelector
	}
	if p.ChartSettle == 0 {
		p.ChartSettle = d.ChartSettle
	}
	if p.PollInterval <= 0 {
		p.PollInterval = d.PollInterval
	}
	return p
}
