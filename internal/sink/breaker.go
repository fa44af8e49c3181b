// ABOUTME: Circuit breaker decorator around a tracking backend
// ABOUTME: Sheds dispatches when the backend fails repeatedly, with half-open probes

package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/percept-io/percept/internal/analytics"
)

// Default breaker configuration values.
const (
	DefaultMaxFailures      = 5
	DefaultResetTimeout     = 30 * time.Second
	DefaultHalfOpenMaxCalls = 3
)

// ErrCircuitOpen is returned while the breaker is shedding calls.
var ErrCircuitOpen = errors.New("tracking backend circuit is open")

// Breaker states.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the delivery circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure threshold that opens the
	// circuit. Zero uses DefaultMaxFailures.
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing
	// the backend again. Zero uses DefaultResetTimeout.
	ResetTimeout time.Duration

	// HalfOpenMaxCalls is the number of probe calls allowed while
	// half-open. Zero uses DefaultHalfOpenMaxCalls.
	HalfOpenMaxCalls int
}

// Breaker wraps a tracking backend so that a failing backend sheds
// dispatches instead of slowing down every request being served.
// A shed call fails fast with ErrCircuitOpen, which the middleware
// logs and swallows like any other dispatch error.
type Breaker struct {
	client analytics.Client
	config BreakerConfig

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	lastFailure         time.Time
	halfOpenCalls       int
}

// NewBreaker wraps client with a circuit breaker.
func NewBreaker(client analytics.Client, cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.HalfOpenMaxCalls == 0 {
		cfg.HalfOpenMaxCalls = DefaultHalfOpenMaxCalls
	}
	return &Breaker{client: client, config: cfg, state: stateClosed}
}

// TrackEvent dispatches through the breaker.
func (b *Breaker) TrackEvent(ctx context.Context, name string, props analytics.Properties, opts analytics.Options) error {
	return b.execute(func() error {
		return b.client.TrackEvent(ctx, name, props, opts)
	})
}

// SetProfile dispatches through the breaker.
func (b *Breaker) SetProfile(ctx context.Context, distinctID any, props analytics.Properties, opts analytics.Options) error {
	return b.execute(func() error {
		return b.client.SetProfile(ctx, distinctID, props, opts)
	})
}

// State returns the breaker state as a string for the stats endpoint.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state.String()
}

func (b *Breaker) execute(fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeHalfOpenLocked()

	switch b.state {
	case stateClosed:
		return true
	case stateHalfOpen:
		if b.halfOpenCalls < b.config.HalfOpenMaxCalls {
			b.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// maybeHalfOpenLocked transitions open to half-open once the reset
// timeout elapsed. Caller holds b.mu.
func (b *Breaker) maybeHalfOpenLocked() {
	if b.state == stateOpen && time.Since(b.lastFailure) >= b.config.ResetTimeout {
		b.state = stateHalfOpen
		b.halfOpenCalls = 0
	}
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		b.consecutiveFailures = 0
		if b.state == stateHalfOpen {
			b.state = stateClosed
			b.halfOpenCalls = 0
		}
		return
	}

	b.consecutiveFailures++
	b.lastFailure = time.Now()

	switch b.state {
	case stateClosed:
		if b.consecutiveFailures >= b.config.MaxFailures {
			b.state = stateOpen
		}
	case stateHalfOpen:
		// Any probe failure reopens the circuit.
		b.state = stateOpen
		b.halfOpenCalls = 0
	}
}
