// Package circuitbreaker gates best-effort remote traffic, mainly the
// fire-and-forget ledger sync. When the remote store keeps failing the
// breaker opens and callers skip the network round-trip entirely, so a
// dead backend cannot stall check-ins or flood the log with timeouts.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned while the breaker is rejecting calls.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker's position.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // rejecting calls
	StateHalfOpen              // probing whether the remote recovered
)

// Breaker is a three-state circuit breaker. Zero Config gives defaults
// sized for the remote ledger: a streak of consecutive failures opens
// it, and one cooldown later a few probe calls must succeed before
// full traffic resumes.
type Breaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	probeHits     int
	maxFailures   int
	probeQuota    int
	cooldown      time.Duration
	lastFailureAt time.Time
	onStateChange func(from, to State)
	now           func() time.Time
}

// Config configures a Breaker.
type Config struct {
	MaxFailures   int           // consecutive failures before opening (default 5)
	ProbeQuota    int           // half-open successes required to close (default 2)
	Cooldown      time.Duration // open duration before probing (default 30s)
	OnStateChange func(from, to State)

	// Now overrides the clock in tests.
	Now func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		state:         StateClosed,
		maxFailures:   cfg.MaxFailures,
		probeQuota:    cfg.ProbeQuota,
		cooldown:      cfg.Cooldown,
		onStateChange: cfg.OnStateChange,
		now:           now,
	}
}

// Do runs fn under the breaker: ErrOpen without invoking fn when the
// breaker is rejecting, otherwise fn's own error after its outcome has
// been recorded.
func (b *Breaker) Do(fn func() error) error {
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

// Allow reports whether a call may proceed, moving an expired open
// breaker to half-open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen {
		if b.now().Sub(b.lastFailureAt) <= b.cooldown {
			return ErrOpen
		}
		b.setState(StateHalfOpen)
	}
	return nil
}

// RecordSuccess resets the failure streak; in half-open it counts
// toward the probe quota and closes the breaker once it is met.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state == StateHalfOpen {
		b.probeHits++
		if b.probeHits >= b.probeQuota {
			b.setState(StateClosed)
		}
	}
}

// RecordFailure extends the failure streak. A failed probe reopens the
// breaker immediately; in closed state the streak must reach
// MaxFailures first.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.probeHits = 0
	b.lastFailureAt = b.now()
	if b.state == StateHalfOpen {
		b.setState(StateOpen)
	} else if b.state == StateClosed && b.failures >= b.maxFailures {
		b.setState(StateOpen)
	}
}

// Current returns the breaker's position, moving an expired open
// breaker to half-open.
func (b *Breaker) Current() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.lastFailureAt) > b.cooldown {
		b.setState(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.probeHits = 0
	if to == StateClosed {
		b.failures = 0
	}
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
