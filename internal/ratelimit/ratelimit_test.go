package ratelimit

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		bytesPerSecond  float64
		expectUnlimited bool
		expectBurst     int
	}{
		{
			name:            "unlimited_zero",
			bytesPerSecond:  0,
			expectUnlimited: true,
		},
		{
			name:            "unlimited_negative",
			bytesPerSecond:  -1,
			expectUnlimited: true,
		},
		{
			name:           "slow_rate_gets_minimum_burst",
			bytesPerSecond: 100,
			expectBurst:    MinBurst,
		},
		{
			name:           "burst_is_one_second",
			bytesPerSecond: 1 << 20,
			expectBurst:    1 << 20,
		},
		{
			name:           "fractional_rounds_up",
			bytesPerSecond: 10000.5,
			expectBurst:    10001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.bytesPerSecond)
			if limiter == nil {
				t.Fatal("New() returned nil")
			}

			limit := limiter.Limit()
			if tt.expectUnlimited {
				if limit != 0 {
					t.Errorf("Expected unlimited (0), got %f", limit)
				}
				return
			}
			if limit != tt.bytesPerSecond {
				t.Errorf("Expected limit %f, got %f", tt.bytesPerSecond, limit)
			}
			if got := limiter.Burst(); got != tt.expectBurst {
				t.Errorf("Expected burst %d, got %d", tt.expectBurst, got)
			}
		})
	}
}

func TestLimiter_Wait(t *testing.T) {
	t.Run("unlimited_returns_immediately", func(t *testing.T) {
		limiter := New(0)

		start := time.Now()
		if err := limiter.Wait(context.Background(), 1<<30); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
			t.Errorf("Unlimited wait took %v", elapsed)
		}
	})

	t.Run("splits_requests_larger_than_burst", func(t *testing.T) {
		limiter := New(1 << 20)

		start := time.Now()
		if err := limiter.Wait(context.Background(), limiter.Burst()+1024); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("Wait took %v", elapsed)
		}
	})

	t.Run("cancelled_context", func(t *testing.T) {
		limiter := New(100)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := limiter.Wait(ctx, MinBurst); err == nil {
			t.Error("Expected error with cancelled context")
		}
	})

	t.Run("nil_limiter", func(t *testing.T) {
		var limiter *Limiter
		if err := limiter.Wait(context.Background(), 10); err != nil {
			t.Errorf("nil limiter Wait() error = %v", err)
		}
	})
}

func TestLimiter_Reader(t *testing.T) {
	payload := strings.Repeat("x", 3*MinBurst)

	t.Run("unlimited_passthrough", func(t *testing.T) {
		src := strings.NewReader(payload)
		if r := New(0).Reader(context.Background(), src); r != io.Reader(src) {
			t.Error("Unlimited limiter should return the source reader")
		}
	})

	t.Run("reads_capped_to_burst", func(t *testing.T) {
		limiter := New(100)
		r := limiter.Reader(context.Background(), strings.NewReader(payload))

		buf := make([]byte, len(payload))
		n, err := r.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if n != MinBurst {
			t.Errorf("Expected %d bytes, got %d", MinBurst, n)
		}
	})

	t.Run("copies_everything", func(t *testing.T) {
		limiter := New(1 << 20)
		var out bytes.Buffer
		if _, err := io.Copy(&out, limiter.Reader(context.Background(), strings.NewReader(payload))); err != nil {
			t.Fatalf("Copy() error = %v", err)
		}
		if out.String() != payload {
			t.Error("Reader altered the payload")
		}
	})

	t.Run("cancelled_context_fails_read", func(t *testing.T) {
		limiter := New(100)
		ctx, cancel := context.WithCancel(context.Background())
		r := limiter.Reader(ctx, strings.NewReader(payload))

		buf := make([]byte, MinBurst)
		if _, err := r.Read(buf); err != nil {
			t.Fatalf("First read error = %v", err)
		}
		cancel()
		if _, err := r.Read(buf); err == nil {
			t.Error("Expected error after cancellation")
		}
	})
}
