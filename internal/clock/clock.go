// Package clock provides the time source used to measure analyses.
package clock

import "time"

var nowFunc = time.Now

// Now returns the current time from the configured clock function.
func Now() time.Time {
	return nowFunc()
}

// Since returns the time elapsed since t according to the configured clock.
func Since(t time.Time) time.Duration {
	return nowFunc().Sub(t)
}

// SetNowForTest overrides the clock source and returns a restore function.
// Tests using it must not run in parallel with other tests that measure time.
func SetNowForTest(fn func() time.Time) func() {
	previous := nowFunc
	nowFunc = fn
	return func() {
		nowFunc = previous
	}
}

// Stepper returns a clock function that starts at start and advances by step
// on every call.
func Stepper(start time.Time, step time.Duration) func() time.Time {
	current := start.Add(-step)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}
