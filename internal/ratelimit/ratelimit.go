// Package ratelimit throttles document reads to a byte rate.
package ratelimit

import (
	"context"
	"io"
	"math"

	"golang.org/x/time/rate"
)

// MinBurst is the smallest burst a limited Limiter allows, so that slow rates
// still make progress with reasonably sized reads.
const MinBurst = 4 * 1024

type Limiter struct {
	limiter *rate.Limiter
}

// New uses 0 or negative limit for no rate limiting.
func New(bytesPerSecond float64) *Limiter {
	if bytesPerSecond <= 0 {
		return &Limiter{
			limiter: rate.NewLimiter(rate.Inf, 0),
		}
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burstFor(bytesPerSecond)),
	}
}

// burstFor allows up to one second worth of bytes at once.
func burstFor(bytesPerSecond float64) int {
	burst := math.Ceil(bytesPerSecond)
	if burst < MinBurst {
		return MinBurst
	}
	if burst > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(burst)
}

// Wait blocks until n bytes may be consumed. Requests larger than the burst
// are split.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil || l.limiter.Limit() == rate.Inf {
		return ctx.Err()
	}

	burst := l.limiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := l.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Limit returns the configured bytes per second, 0 when unlimited.
func (l *Limiter) Limit() float64 {
	limit := l.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	return float64(limit)
}

// Burst returns the largest single read the limiter admits at once.
func (l *Limiter) Burst() int {
	return l.limiter.Burst()
}

// Reader wraps r so that every read waits for its bytes. A nil or unlimited
// limiter returns r unchanged. Reads are capped to the burst size.
func (l *Limiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if l == nil || l.Limit() == 0 {
		return r
	}
	return &reader{ctx: ctx, r: r, l: l}
}

type reader struct {
	ctx context.Context
	r   io.Reader
	l   *Limiter
}

func (r *reader) Read(p []byte) (int, error) {
	if burst := r.l.Burst(); len(p) > burst {
		p = p[:burst]
	}
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.l.Wait(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
