package services

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the protected function while
// the breaker is cooling down
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a failing dependency after maxFailures
// consecutive errors and lets one trial call through after cooldown
type CircuitBreaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	isOpen      bool
	trialActive bool
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Call executes fn unless the breaker is open. The lock is not held while fn
// runs, so slow calls do not serialize each other.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.isOpen {
		return nil
	}
	if cb.now().Sub(cb.lastFailure) <= cb.cooldown || cb.trialActive {
		return fmt.Errorf("%w: %s (cooldown until %v)",
			ErrCircuitOpen, cb.name, cb.lastFailure.Add(cb.cooldown).Format(time.RFC3339))
	}
	cb.trialActive = true
	log.Printf("[CircuitBreaker:%s] Attempting half-open state", cb.name)
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasTrial := cb.trialActive
	cb.trialActive = false

	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()
		if wasTrial || cb.failures >= cb.maxFailures {
			if !cb.isOpen || wasTrial {
				log.Printf("🔴 [CircuitBreaker:%s] OPENED after %d failures (cooldown: %v)",
					cb.name, cb.failures, cb.cooldown)
			}
			cb.isOpen = true
		}
		return
	}

	if cb.failures > 0 {
		log.Printf("✅ [CircuitBreaker:%s] Closed (recovered after %d failures)", cb.name, cb.failures)
	}
	cb.failures = 0
	cb.isOpen = false
}

// IsOpen returns true if the circuit breaker is currently open
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.isOpen
}

// State is "closed", "open" or "half-open". Half-open means the cooldown has
// passed and the next call will be let through as a trial.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch {
	case !cb.isOpen:
		return "closed"
	case cb.trialActive || cb.now().Sub(cb.lastFailure) > cb.cooldown:
		return "half-open"
	}
	return "open"
}

// Reset manually resets the circuit breaker
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.isOpen = false
	cb.trialActive = false
	log.Printf("[CircuitBreaker:%s] Manually reset", cb.name)
}
