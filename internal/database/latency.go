package database

import (
	"context"
	"math/rand"
	"time"
)

// Latency delays content lookups by a random duration in [Min, Max].
// The zero value adds no delay.
type Latency struct {
	Min time.Duration
	Max time.Duration
}

func (l Latency) wait(ctx context.Context) error {
	if l.Max <= 0 {
		return ctx.Err()
	}
	d := l.Min
	if spread := l.Max - l.Min; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread) + 1))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
