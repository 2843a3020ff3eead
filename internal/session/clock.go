package session

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Clock times one session. In [ModePractice] it reports elapsed time; in
// [ModeTest] it counts down from its limit and fires the expiry callback when
// the limit is reached.
//
// All methods are safe for concurrent use.
type Clock struct {
	clk   clock.WithTickerAndDelayedExecution
	mode  Mode
	limit time.Duration

	mu      sync.Mutex
	started time.Time
	running bool
	frozen  time.Duration // elapsed at Stop
	timer   clock.Timer
}

// NewClock returns a stopped clock. limit is only used in [ModeTest]; a
// non-positive limit falls back to [DefaultTestDuration]. A nil clk uses the
// real clock.
func NewClock(clk clock.WithTickerAndDelayedExecution, mode Mode, limit time.Duration) *Clock {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if limit <= 0 {
		limit = DefaultTestDuration
	}
	return &Clock{clk: clk, mode: mode, limit: limit}
}

// Start starts the clock. In test mode onExpire runs once, on its own
// goroutine, when the limit is reached; it may call back into the clock.
// Starting a running clock is a no-op.
func (c *Clock) Start(onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}
	c.running = true
	c.started = c.clk.Now()
	c.frozen = 0
	if c.mode == ModeTest && onExpire != nil {
		c.timer = c.clk.AfterFunc(c.limit, func() { go onExpire() })
	}
}

// Stop freezes the clock and cancels a pending expiry. Stop is idempotent.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.frozen = c.clk.Since(c.started)
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Mode returns the clock's mode.
func (c *Clock) Mode() Mode { return c.mode }

// Limit returns the test-mode duration.
func (c *Clock) Limit() time.Duration { return c.limit }

// Elapsed returns the time since Start, frozen once stopped.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return c.frozen
	}
	return c.clk.Since(c.started)
}

// Remaining returns the time left in test mode, never negative. In practice
// mode it returns zero.
func (c *Clock) Remaining() time.Duration {
	if c.mode != ModeTest {
		return 0
	}
	return max(c.limit-c.Elapsed(), 0)
}

// Display renders the clock as MM:SS: elapsed time in practice mode and time
// remaining in test mode.
func (c *Clock) Display() string {
	if c.mode == ModeTest {
		return FormatClock(c.Remaining())
	}
	return FormatClock(c.Elapsed())
}

// Ticker returns a ticker on the clock's time source, used to refresh the
// display. The caller must stop it.
func (c *Clock) Ticker(d time.Duration) clock.Ticker {
	return c.clk.NewTicker(d)
}

// FormatClock renders d as MM:SS, truncating to whole seconds. Negative
// durations render as 00:00. Minutes are not capped at 59.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
