package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrCircuitOpen is returned by Breaker.Allow when the circuit is tripped.
var ErrCircuitOpen = errors.New("resilience: circuit breaker open")

// Breaker is a two-state circuit breaker: closed (calls pass through) and
// open (calls rejected until recovery_timeout elapses). Unlike the
// teacher's three-state breaker, there is no half-open probing window: the
// first call after the timeout is simply allowed through like any other,
// and either closes the circuit on success or re-arms the open timer on
// failure. This matches the original implementation's CircuitBreaker
// exactly, which the distilled spec carries forward deliberately.
type Breaker struct {
	mu               sync.Mutex
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	failureCount     int
	lastFailureAt    time.Time
	open             bool
}

// NewBreaker creates a breaker for a named external dependency.
func NewBreaker(name string, failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
	}
}

// checkRecoveryLocked closes the circuit once the recovery timeout has
// elapsed since the last failure. The failure count is kept, so a failure
// on the first call admitted afterwards re-opens the circuit at once,
// while a success resets the count.
func (b *Breaker) checkRecoveryLocked() {
	if b.open && time.Since(b.lastFailureAt) > b.recoveryTimeout {
		b.open = false
	}
}

// IsOpen reports whether calls are currently rejected.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkRecoveryLocked()
	return b.open
}

// Allow returns ErrCircuitOpen if the circuit is tripped, nil otherwise.
// Callers invoke Allow, perform their own call, then report the outcome via
// RecordSuccess/RecordFailure.
func (b *Breaker) Allow() error {
	if b.IsOpen() {
		return ErrCircuitOpen
	}
	return nil
}

// RecordSuccess resets the failure count and closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.open = false
}

// RecordFailure increments the failure count and opens the circuit once the
// threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailureAt = time.Now()
	if b.failureCount >= b.failureThreshold {
		wasOpen := b.open
		b.open = true
		if !wasOpen {
			log.Warn().
				Str("component", "resilience").
				Str("breaker", b.name).
				Int("failure_count", b.failureCount).
				Dur("recovery_timeout", b.recoveryTimeout).
				Msg("circuit breaker opened")
		}
	}
}

// Execute runs fn guarded by the breaker: rejects immediately if open,
// otherwise runs fn and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

// BreakerRegistry is a lazily-populated, name-keyed set of breakers, one per
// external service.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewBreakerRegistry creates an empty registry. Every service gets the same
// default config (5 consecutive failures, 5 minute recovery); there is no
// per-service override.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*Breaker)}
}

// Get returns the named breaker, creating it with the default
// threshold/timeout on first use.
func (reg *BreakerRegistry) Get(service string) *Breaker {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if b, ok := reg.breakers[service]; ok {
		return b
	}
	b := NewBreaker(service, 5, 5*time.Minute)
	reg.breakers[service] = b
	return b
}
