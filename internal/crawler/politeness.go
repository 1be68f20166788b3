package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// Jitter is a delay drawn uniformly from [Min, Max].
type Jitter struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// Around builds a jitter of base scaled by [lo, hi].
func Around(base time.Duration, lo, hi float64) Jitter {
	return Jitter{
		Min: time.Duration(float64(base) * lo),
		Max: time.Duration(float64(base) * hi),
	}
}

// Draw picks a delay.
func (j Jitter) Draw() time.Duration {
	if j.Max <= j.Min {
		return max(j.Min, 0)
	}
	return j.Min + rand.N(j.Max-j.Min+1)
}

// Mean is the expected delay.
func (j Jitter) Mean() time.Duration {
	if j.Max <= j.Min {
		return max(j.Min, 0)
	}
	return j.Min + (j.Max-j.Min)/2
}

// SequentialRate is the request rate of a single worker that pauses j
// between requests. Zero means j imposes no bound.
func SequentialRate(j Jitter) float64 {
	mean := j.Mean()
	if mean <= 0 {
		return 0
	}
	return float64(time.Second) / float64(mean)
}

// TimerPauser sleeps on a timer and wakes early when the context ends.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
