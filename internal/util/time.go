package util

import "time"

// Clock abstracts wall time so timing loops and step caches can be driven by tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// FormatClock formats t in the local zone, or "n/a" for the zero time.
func FormatClock(t time.Time, layout string) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Local().Format(layout)
}
