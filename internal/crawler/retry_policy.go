package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// Retry defaults mirror the upstream's tolerance: five attempts, waiting
// 2^n seconds plus up to two seconds of jitter after failed attempt n.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	DefaultMaxJitter   = 2 * time.Second
)

// ExponentialRetryPolicy bounds page-request attempts with jittered
// exponential backoff.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
}

// NewExponentialRetryPolicy builds a policy, substituting defaults for
// non-positive values.
func NewExponentialRetryPolicy(maxAttempts int, baseDelay, maxJitter time.Duration) *ExponentialRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxJitter < 0 {
		maxJitter = 0
	}
	return &ExponentialRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxJitter:   maxJitter,
	}
}

// MaxAttempts is the total number of attempts allowed per request.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry decides whether another attempt follows a failure. attempts is
// the number of attempts already made.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempts int) bool {
	if err == nil {
		return false
	}
	if attempts >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Backoff returns the wait after the failed attempt with zero-based index
// attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := time.Duration(float64(p.baseDelay) * math.Pow(2, float64(attempt)))
	return delay + p.randomJitter(p.maxJitter)
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
