package ratelimit

import (
	"context"
	"math/rand"
	"time"

	"github.com/vtcode/agent/pkg/models"
)

// AdaptiveConfig configures the priority-aware limiter. Defaults (10.0
// capacity, 2.0 tokens/sec refill) match the reference implementation's
// adaptive rate limiter.
type AdaptiveConfig struct {
	Capacity   float64
	RefillRate float64
}

// DefaultAdaptiveConfig returns the limiter's default capacity and refill
// rate.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{Capacity: 10.0, RefillRate: 2.0}
}

// AdaptiveLimiter weights acquisition cost and wait time by
// models.Priority: Critical calls are cheap and skip most of the queue,
// Low calls pay double and wait the longest.
type AdaptiveLimiter struct {
	bucket *Bucket
	config AdaptiveConfig
}

// NewAdaptiveLimiter creates a limiter over a single token bucket sized by
// config.
func NewAdaptiveLimiter(config AdaptiveConfig) *AdaptiveLimiter {
	if config.Capacity <= 0 {
		config.Capacity = 10.0
	}
	if config.RefillRate <= 0 {
		config.RefillRate = 2.0
	}
	return &AdaptiveLimiter{
		bucket: NewBucket(Config{
			RequestsPerSecond: config.RefillRate,
			BurstSize:         int(config.Capacity),
			Enabled:           true,
		}),
		config: config,
	}
}

// TryAcquire consumes priority.Weight() tokens if available. If not
// enough tokens remain, it returns the wait duration the caller must
// honor before retrying, scaled by priority: Critical waits half as long
// as the base estimate, High 80%, Normal gets a flat 1.1x plus jitter,
// Low gets 1.5x plus jitter. A zero wait means the request was admitted.
func (l *AdaptiveLimiter) TryAcquire(priority models.Priority) (ok bool, wait time.Duration) {
	cost := priority.Weight()

	l.bucket.mu.Lock()
	defer l.bucket.mu.Unlock()

	l.bucket.refill()

	if l.bucket.tokens >= cost {
		l.bucket.tokens -= cost
		return true, 0
	}

	needed := cost - l.bucket.tokens
	baseWaitSecs := needed / l.config.RefillRate

	var scaled float64
	switch priority {
	case models.PriorityCritical:
		scaled = baseWaitSecs * 0.5
	case models.PriorityHigh:
		scaled = baseWaitSecs * 0.8
	case models.PriorityLow:
		scaled = baseWaitSecs * 1.5 * jitter()
	default:
		scaled = baseWaitSecs * 1.1 * jitter()
	}

	return false, time.Duration(scaled * float64(time.Second))
}

// jitter returns a randomization factor in [1.0, 1.1) to avoid a
// thundering herd of callers retrying at the exact same instant.
func jitter() float64 {
	return 1.0 + rand.Float64()*0.1 // #nosec G404 -- jitter does not require cryptographic randomness
}

// Acquire blocks, retrying TryAcquire, until tokens are available or ctx
// is cancelled.
func (l *AdaptiveLimiter) Acquire(ctx context.Context, priority models.Priority) error {
	for {
		ok, wait := l.TryAcquire(priority)
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
