package cache

import (
	"fmt"
	"sync"
	"time"
)

type CircuitBreakerConfig struct {
	MaxFailures int
	ResetAfter  time.Duration
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 5,
		ResetAfter:  30 * time.Second,
	}
}

// CircuitBreaker keeps a flaky Redis from stalling every request: after
// MaxFailures consecutive errors it opens and calls fail fast until
// ResetAfter has elapsed, then one half-open probe decides.
type CircuitBreaker struct {
	cfg         CircuitBreakerConfig
	failures    int
	lastFailure time.Time
	state       string // closed, open, half-open
	mu          sync.RWMutex
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:   cfg,
		state: "closed",
	}
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.RLock()
	state := cb.state
	lastFailure := cb.lastFailure
	cb.mu.RUnlock()

	if state == "open" {
		if time.Since(lastFailure) <= cb.cfg.ResetAfter {
			return fmt.Errorf("circuit breaker is open")
		}
		cb.mu.Lock()
		cb.state = "half-open"
		cb.failures = 0
		cb.mu.Unlock()
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.cfg.MaxFailures {
			cb.state = "open"
		}
		return err
	}

	cb.failures = 0
	cb.state = "closed"
	return nil
}

func (cb *CircuitBreaker) State() string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return map[string]interface{}{
		"state":        cb.state,
		"failures":     cb.failures,
		"max_failures": cb.cfg.MaxFailures,
	}
}
