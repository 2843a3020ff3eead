// Package resilience keeps a dead or refusing service from stalling every
// session start. [GuardDialer] wraps an [s2s.Dialer] with a [Breaker] that
// stops dialing after consecutive failures and lets a single probe through
// once a cooldown has passed. Retrying is left to the user.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ErrCircuitOpen is returned while the breaker refuses dials.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker position.
type State int

const (
	// StateClosed forwards every dial.
	StateClosed State = iota
	// StateOpen refuses dials until the cooldown has passed.
	StateOpen
	// StateProbing has one dial in flight deciding whether to close again.
	StateProbing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateProbing:
		return "probing"
	}
	return "unknown"
}

// BreakerConfig tunes a [Breaker].
type BreakerConfig struct {
	// MaxFailures consecutive counted failures open the breaker. Default 5.
	MaxFailures int

	// Cooldown is how long an open breaker refuses dials. Default 30s.
	Cooldown time.Duration

	// Counts reports whether an error is a health signal. Nil counts all.
	Counts func(error) bool

	Clock  clock.PassiveClock
	Logger *slog.Logger
}

// Snapshot is a point-in-time view of a [Breaker].
type Snapshot struct {
	State    State
	Failures int
	// RetryAt is when an open breaker admits its probe. Zero otherwise.
	RetryAt time.Time
	// LastErr is the message of the most recent counted failure.
	LastErr string
	// CoolingDown is set while an open breaker still refuses dials.
	CoolingDown bool
}

// Breaker counts consecutive dial failures. Safe for concurrent use.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	lastErr  string
}

// NewBreaker returns a closed [Breaker]. Zero config fields take defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Counts == nil {
		cfg.Counts = func(error) bool { return true }
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Breaker{cfg: cfg}
}

// Acquire asks to dial. On success the caller must call done with the dial
// outcome exactly once.
func (b *Breaker) Acquire() (done func(error), err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	probe := false
	switch b.state {
	case StateProbing:
		return nil, ErrCircuitOpen
	case StateOpen:
		if b.cfg.Clock.Since(b.openedAt) < b.cfg.Cooldown {
			return nil, ErrCircuitOpen
		}
		b.state = StateProbing
		probe = true
		b.cfg.Logger.Info("transport breaker probing", "failures", b.failures)
	}

	var once sync.Once
	return func(err error) {
		once.Do(func() { b.settle(probe, err) })
	}, nil
}

func (b *Breaker) settle(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case err == nil:
		if b.state != StateClosed {
			b.cfg.Logger.Info("transport breaker closed")
		}
		b.state = StateClosed
		b.failures = 0
		b.lastErr = ""
	case !b.cfg.Counts(err):
		if probe {
			// Undecided; the next dial probes again.
			b.state = StateOpen
		}
	default:
		b.failures++
		b.lastErr = err.Error()
		if probe || b.failures >= b.cfg.MaxFailures {
			b.state = StateOpen
			b.openedAt = b.cfg.Clock.Now()
			b.cfg.Logger.Warn("transport breaker opened",
				"failures", b.failures,
				"cooldown", b.cfg.Cooldown,
				"err", err)
		}
	}
}

// Snapshot returns the current breaker view.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{State: b.state, Failures: b.failures, LastErr: b.lastErr}
	if b.state == StateOpen {
		s.RetryAt = b.openedAt.Add(b.cfg.Cooldown)
		s.CoolingDown = b.cfg.Clock.Now().Before(s.RetryAt)
	}
	return s
}
