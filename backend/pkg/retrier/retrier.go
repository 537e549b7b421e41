// Package retrier runs an operation with exponential backoff.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

// Retrier retries an operation up to maxRetries times, doubling the wait each time.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int
	jitter          float64
}

// Option configures a Retrier.
type Option func(*Retrier)

func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) { r.initialInterval = d }
}

func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) { r.maxInterval = d }
}

func WithMaxRetries(n int) Option {
	return func(r *Retrier) { r.maxRetries = n }
}

// WithJitter sets the jitter factor, 0 disables it.
func WithJitter(j float64) Option {
	return func(r *Retrier) { r.jitter = j }
}

// New creates a Retrier: 3 retries starting at 200ms, capped at 5s.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: 200 * time.Millisecond,
		maxInterval:     5 * time.Second,
		multiplier:      2,
		maxRetries:      3,
		jitter:          0.1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do calls fn until it succeeds, retries run out, or ctx is done.
// It returns the last error from fn, or ctx.Err() if cancelled while waiting.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	interval := r.initialInterval

	err := fn(ctx)
	for attempt := 1; err != nil && attempt <= r.maxRetries; attempt++ {
		wait := interval
		if r.jitter > 0 {
			wait += time.Duration((rand.Float64()*2 - 1) * r.jitter * float64(interval))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * r.multiplier)
		if interval > r.maxInterval {
			interval = r.maxInterval
		}
		err = fn(ctx)
	}
	return err
}
