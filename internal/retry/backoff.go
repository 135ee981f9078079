// Package retry computes jittered exponential backoff delays.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff returns base*2^(attempt-1) with +/-10% jitter, capped at ceiling.
// attempt starts at 1. A non-positive ceiling disables the cap.
func Backoff(base, ceiling time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(base) * math.Pow(2, float64(attempt-1))
	if ceiling > 0 && delay > float64(ceiling) {
		delay = float64(ceiling)
	}
	jitter := delay * 0.1
	delay += jitter * (rand.Float64()*2 - 1)
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in that case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
