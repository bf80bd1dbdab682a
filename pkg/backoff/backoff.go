// Package backoff implements exponential backoff with jitter.
//
// It is shared by the HTTP transport retry policy and the follower loop.
// Unlike a plain sleep, Wait returns early when the context is canceled.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Default backoff configuration values.
const (
	DefaultInitial = 500 * time.Millisecond
	DefaultMax     = 10 * time.Second
)

// Backoff implements exponential backoff with jitter.
// A Backoff is not safe for concurrent use.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// New creates a new backoff with the given initial and max durations.
// Non-positive values fall back to the defaults.
func New(initial, max time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitial
	}
	if max < initial {
		max = initial
		if max < DefaultMax {
			max = DefaultMax
		}
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Next returns the jittered duration to wait now and doubles the base for
// the following call, capped at max.
func (b *Backoff) Next() time.Duration {
	// Add jitter: ±20%
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Wait sleeps for the next backoff duration or until ctx is done.
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reset resets the backoff to the initial duration.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the current base duration, before jitter.
func (b *Backoff) Current() time.Duration {
	return b.current
}
