// Package resilience guards outbound calls to the model endpoint and the
// web search API with a circuit breaker, so a dead upstream fails fast
// instead of tying up request handlers.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is rejecting calls because
// the upstream failed too many times in a row.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker trips after a run of consecutive failures and rejects calls
// until a cooldown passes. The first call admitted after the cooldown is
// a probe whose outcome decides whether the circuit closes or re-trips.
type Breaker struct {
	mu       sync.Mutex
	limit    int
	cooldown time.Duration
	fails    int
	until    time.Time // zero while the circuit is closed
	probing  bool
	clock    func() time.Time
}

// NewBreaker returns a closed breaker that trips after maxFailures
// consecutive failures and cools down for timeout before probing again.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{limit: maxFailures, cooldown: timeout, clock: time.Now}
}

// Execute runs fn unless the circuit is open, in which case it returns
// ErrCircuitOpen without invoking fn. Errors from fn are passed through.
func (b *Breaker) Execute(fn func() error) error {
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

	if b.until.IsZero() {
		return nil
	}
	if b.clock().Before(b.until) {
		return ErrCircuitOpen
	}
	b.probing = true
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.fails = 0
		b.until = time.Time{}
		b.probing = false
		return
	}

	b.fails++
	if b.probing || b.fails >= b.limit {
		b.until = b.clock().Add(b.cooldown)
		b.probing = false
	}
}
