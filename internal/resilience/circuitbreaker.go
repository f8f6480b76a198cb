package resilience

import (
	"errors"
	"log"
	"sync"
	"time"
)

// State represents the breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, reject calls
	StateHalfOpen              // Testing if the upstream recovered
)

// ErrCircuitOpen is returned when the breaker is open and calls are rejected.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker guards an external dependency (the generative-text API) so that a
// dead endpoint fails a whole batch fast instead of burning a full
// retry-with-backoff cycle on every item.
//
// Transitions: Closed → Open after failThreshold consecutive failures,
// Open → HalfOpen once openTimeout has elapsed, HalfOpen → Closed on the
// next success or back to Open on the next failure.
type Breaker struct {
	name          string
	failThreshold int
	openTimeout   time.Duration

	mu        sync.Mutex
	state     State
	failCount int
	openedAt  time.Time
}

// NewBreaker creates a breaker with the given thresholds. The name appears
// in log lines when the breaker trips.
func NewBreaker(name string, failThreshold int, openTimeout time.Duration) *Breaker {
	return &Breaker{
		name:          name,
		failThreshold: failThreshold,
		openTimeout:   openTimeout,
		state:         StateClosed,
	}
}

// Execute runs fn unless the breaker is open. Returns ErrCircuitOpen while
// the open timeout has not elapsed.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.openedAt) <= b.openTimeout {
			return false
		}
		b.state = StateHalfOpen
	}
	return true
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failCount = 0
		b.state = StateClosed
		return
	}

	b.failCount++
	if b.state == StateHalfOpen || b.failCount >= b.failThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
		log.Printf("[Breaker] %s opened after %d consecutive failures", b.name, b.failCount)
	}
}

// CurrentState returns the current breaker state.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
