package scraper

import (
	"context"
	"math/rand/v2"
	"time"
)

// Delay is a randomized pause used to stay under third-party rate limits.
// The zero value does not wait.
type Delay struct {
	Min, Max time.Duration
}

func (d Delay) pick() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + rand.N(d.Max-d.Min+1)
}

func (d Delay) Wait(ctx context.Context) error {
	dur := d.pick()
	if dur <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
