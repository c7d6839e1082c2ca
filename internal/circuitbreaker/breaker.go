package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call without running it
var ErrOpen = errors.New("circuit breaker is open")

// State represents the breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Breaker trips after a run of consecutive failures and rejects calls until
// the cooldown elapses. The first call after cooldown probes the downstream;
// its outcome decides whether the breaker closes again.
type Breaker struct {
	threshold int
	cooldown  time.Duration

	mu        sync.Mutex
	state     State
	failures  int
	probing   bool
	openedAt  time.Time
	lastError error
}

// New creates a breaker that opens after threshold consecutive failures
func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
	}
}

// Do runs fn under breaker protection
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probing = false
		fallthrough

	case StateHalfOpen:
		if b.probing {
			// One probe at a time
			return ErrOpen
		}
		b.probing = true
		return nil
	}

	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastError = err

		switch b.state {
		case StateClosed:
			if b.failures >= b.threshold {
				b.trip()
			}
		case StateHalfOpen:
			b.trip()
		}
		return
	}

	// Success resets everything regardless of state
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = time.Now()
	b.probing = false
}

// State returns the current breaker state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && time.Since(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// LastError returns the most recent downstream error
func (b *Breaker) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}

// Reset closes the breaker and clears counters
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.probing = false
	b.lastError = nil
}
