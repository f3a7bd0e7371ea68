package clock

import (
	"testing"
	"time"
)

func TestSetNowForTest(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	restore := SetNowForTest(func() time.Time { return fixed })

	if got := Now(); !got.Equal(fixed) {
		t.Fatalf("Now() = %v, want %v", got, fixed)
	}
	if got := Since(fixed.Add(-time.Second)); got != time.Second {
		t.Fatalf("Since() = %v, want 1s", got)
	}

	restore()
	if got := Now(); got.Equal(fixed) {
		t.Fatalf("Now() after restore = %v, want real time", got)
	}
}

func TestStepper(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	next := Stepper(start, 250*time.Microsecond)

	if got := next(); !got.Equal(start) {
		t.Fatalf("first call = %v, want %v", got, start)
	}
	if got := next().Sub(start); got != 250*time.Microsecond {
		t.Fatalf("second call offset = %v, want 250µs", got)
	}
}
