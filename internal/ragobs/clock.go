package ragobs

import "time"

// Clock abstracts the current time so the time extractor and tests can
// inject a fixed instant instead of depending on a startup-captured
// constant (resolves SPEC_FULL.md §9 Open Question 3).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock is a test Clock that always returns the same instant.
type FixedClock struct{ At time.Time }

func (f FixedClock) Now() time.Time { return f.At }
