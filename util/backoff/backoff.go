// Package backoff retries flaky operations, such as connecting to a
// database that is still starting, with exponentially growing pauses.
package backoff

import (
	"context"
	"fmt"
	"time"
)

// Backoff is an exponential delay sequence capped at a maximum.
type Backoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	currentDelay time.Duration
}

// New creates a Backoff that first waits initialDelay and multiplies the
// delay by multiplier after every wait, never exceeding maxDelay.
func New(initialDelay, maxDelay time.Duration, multiplier float64) *Backoff {
	return &Backoff{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		multiplier:   multiplier,
		currentDelay: initialDelay,
	}
}

// Wait sleeps for the current delay and then grows it. It returns ctx.Err()
// if ctx is done first; the delay is left unchanged in that case.
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.currentDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		b.currentDelay = time.Duration(float64(b.currentDelay) * b.multiplier)
		if b.currentDelay > b.maxDelay {
			b.currentDelay = b.maxDelay
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset restarts the sequence at the initial delay.
func (b *Backoff) Reset() {
	b.currentDelay = b.initialDelay
}

// CurrentDelay returns the delay the next Wait will use.
func (b *Backoff) CurrentDelay() time.Duration {
	return b.currentDelay
}

// Retry calls fn until it succeeds, waiting on b between failures. fn gets
// the 1-based attempt number. After attempts failures Retry returns the last
// error; attempts <= 0 means a single try.
func Retry(ctx context.Context, b *Backoff, attempts int, fn func(attempt int) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if waitErr := b.Wait(ctx); waitErr != nil {
			return fmt.Errorf("retry aborted after %d attempt(s): %w", attempt, waitErr)
		}
	}
	return fmt.Errorf("giving up after %d attempt(s): %w", attempts, err)
}
