package upstream

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Breaker states.
const (
	breakerClosed = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker trips after a run of consecutive retry-exhausted upstream failures
// and blocks requests until a cooldown passes; the first request after the
// cooldown probes half-open.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	state    int
	failures int
	openedAt time.Time
}

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	Threshold int           // consecutive failures to open
	Cooldown  time.Duration // open duration before a half-open probe
	Logger    *zap.Logger
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(cfg *BreakerConfig) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	b := &Breaker{
		threshold: cfg.Threshold,
		cooldown:  cfg.Cooldown,
		logger:    cfg.Logger,
	}
	BreakerState.Set(0)
	return b, nil
}

// Allow reports whether a request may proceed. An open breaker past its
// cooldown transitions to half-open and admits a single probe.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return true
	case breakerHalfOpen:
		// One probe is already in flight.
		return false
	default:
		if now.Sub(b.openedAt) < b.cooldown {
			BreakerRejections.Inc()
			return false
		}
		b.state = breakerHalfOpen
		BreakerState.Set(1)
		b.logger.Info("upstream-breaker-half-open")
		return true
	}
}

// RecordSuccess closes the breaker and resets the failure run.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != breakerClosed {
		b.logger.Info("upstream-breaker-closed")
	}
	b.state = breakerClosed
	b.failures = 0
	BreakerState.Set(0)
}

// RecordFailure counts one retry-exhausted failure. A half-open probe failure
// reopens immediately.
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		if b.state != breakerOpen {
			b.logger.Warn("upstream-breaker-open",
				zap.Int("consecutive-failures", b.failures),
				zap.Duration("cooldown", b.cooldown))
		}
		b.state = breakerOpen
		b.openedAt = now
		BreakerState.Set(2)
	}
}
