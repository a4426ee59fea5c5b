package clock

import "time"

// Clock supplies the current UTC instant. It is injected everywhere the
// engine needs "now" so that time-dependent rules stay testable.
type Clock interface {
	Now() time.Time
}

type utcClock struct{}

func (utcClock) Now() time.Time {
	return time.Now().UTC()
}

// NewUTC returns a Clock backed by the system clock, normalized to UTC.
func NewUTC() Clock {
	return utcClock{}
}

// Fixed is a settable Clock for tests.
type Fixed struct {
	Current time.Time
}

func NewFixed(t time.Time) *Fixed {
	return &Fixed{Current: t.UTC()}
}

func (f *Fixed) Now() time.Time {
	return f.Current
}

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) {
	f.Current = f.Current.Add(d)
}
