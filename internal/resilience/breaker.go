// Package resilience provides a circuit breaker for calls to flaky
// downstream services, with per-call timeouts and a keyed registry.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

// State is the circuit state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config tunes one breaker. Zero values fall back to the defaults.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Default 5.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before a probe
	// call is allowed. Default 60s.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of consecutive half-open successes
	// that closes the circuit. Default 2.
	SuccessThreshold int
	// CallTimeout bounds each wrapped call. A timed-out call counts as a
	// failure. Default 30s.
	CallTimeout time.Duration
	// OnStateChange, when set, is invoked after every state transition.
	OnStateChange func(name string, state State)
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	return c
}

// OpenError is returned when a call is rejected because the circuit is open.
type OpenError struct {
	Name        string
	LastFailure time.Time
	RetryAfter  time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("resilience: circuit %q open, retry after %s", e.Name, e.RetryAfter.Round(time.Second))
}

// Stats is a point-in-time snapshot of one breaker.
type Stats struct {
	Name                string    `json:"name"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	TotalCalls          uint64    `json:"total_calls"`
	TotalSuccesses      uint64    `json:"total_successes"`
	TotalFailures       uint64    `json:"total_failures"`
	TotalTimeouts       uint64    `json:"total_timeouts"`
	TotalRejected       uint64    `json:"total_rejected"`
	SuccessRate         float64   `json:"success_rate"`
	StateAgeSeconds     float64   `json:"state_age_seconds"`
	LastFailureAt       time.Time `json:"last_failure_at,omitzero"`
	LastStateChange     time.Time `json:"last_state_change"`
}

// Breaker is a three-state circuit breaker. The OPEN to HALF_OPEN transition
// happens lazily on the next call after the recovery timeout elapses.
type Breaker struct {
	name   string
	cfg    Config
	logger *logging.Logger
	now    func() time.Time

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	halfOpenSuccesses   int
	lastFailure         time.Time
	openedAt            time.Time
	lastStateChange     time.Time

	totalCalls     uint64
	totalSuccesses uint64
	totalFailures  uint64
	totalTimeouts  uint64
	totalRejected  uint64
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg Config, logger *logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Breaker{
		name:            name,
		cfg:             cfg.withDefaults(),
		logger:          logger.With("circuit", name),
		now:             time.Now,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Name returns the breaker's registry key.
func (b *Breaker) Name() string { return b.name }

// Call runs fn under the breaker with the configured call timeout. An open
// circuit rejects immediately with *OpenError without invoking fn. A result
// arriving after the timeout is discarded.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if err := b.allow(); err != nil {
		return zero, err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	// Buffered so a late fn return never leaks a goroutine.
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			b.onFailure(false)
			return zero, res.err
		}
		b.onSuccess()
		return res.value, nil

	case <-callCtx.Done():
		b.onFailure(true)
		return zero, fmt.Errorf("resilience: circuit %q call timed out after %s: %w",
			b.name, b.cfg.CallTimeout, callCtx.Err())
	}
}

// Do is Call for functions with no result.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := Call(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// allow decides whether the next call may proceed, moving OPEN to HALF_OPEN
// once the recovery timeout has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
			b.transition(StateHalfOpen)
		} else {
			b.totalRejected++
			return &OpenError{
				Name:        b.name,
				LastFailure: b.lastFailure,
				RetryAfter:  b.cfg.RecoveryTimeout - b.now().Sub(b.openedAt),
			}
		}
	}

	b.totalCalls++
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSuccesses++
	b.consecutiveFailures = 0

	if b.state == StateHalfOpen {
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) onFailure(timeout bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++
	if timeout {
		b.totalTimeouts++
	}
	b.consecutiveFailures++
	b.lastFailure = b.now()

	switch b.state {
	case StateHalfOpen:
		// A single probe failure reopens the circuit.
		b.transition(StateOpen)
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

// transition changes state. Callers hold b.mu.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.lastStateChange = b.now()

	switch to {
	case StateOpen:
		b.openedAt = b.now()
		b.halfOpenSuccesses = 0
	case StateHalfOpen:
		b.halfOpenSuccesses = 0
	case StateClosed:
		b.consecutiveFailures = 0
		b.halfOpenSuccesses = 0
	}

	b.logger.Warn("circuit state change", "from", from, "to", to)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, to)
	}
}

// State returns the current state without triggering transitions.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats snapshots the breaker counters. The success rate is over allowed
// calls; rejected calls never reach the downstream and are excluded.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rate float64
	if b.totalCalls > 0 {
		rate = float64(b.totalSuccesses) / float64(b.totalCalls)
	}
	return Stats{
		Name:                b.name,
		State:               b.state,
		ConsecutiveFailures: b.consecutiveFailures,
		TotalCalls:          b.totalCalls,
		TotalSuccesses:      b.totalSuccesses,
		TotalFailures:       b.totalFailures,
		TotalTimeouts:       b.totalTimeouts,
		TotalRejected:       b.totalRejected,
		SuccessRate:         rate,
		StateAgeSeconds:     b.now().Sub(b.lastStateChange).Seconds(),
		LastFailureAt:       b.lastFailure,
		LastStateChange:     b.lastStateChange,
	}
}

// Reset force-closes the circuit and clears the failure window. Counters are
// kept.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.consecutiveFailures = 0
	b.halfOpenSuccesses = 0
}
