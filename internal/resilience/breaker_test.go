package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

var errRefused = errors.New("connection refused")

func testBreaker(maxFailures int) (*Breaker, *testingclock.FakePassiveClock) {
	clk := testingclock.NewFakePassiveClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return NewBreaker(BreakerConfig{
		MaxFailures: maxFailures,
		Cooldown:    10 * time.Second,
		Counts:      CountsDialFailure,
		Clock:       clk,
	}), clk
}

// dial runs one guarded attempt with the given outcome.
func dial(b *Breaker, outcome error) error {
	done, err := b.Acquire()
	if err != nil {
		return err
	}
	done(outcome)
	return nil
}

func TestNewBreaker_Defaults(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{})
	if b.cfg.MaxFailures != 5 || b.cfg.Cooldown != 30*time.Second {
		t.Errorf("defaults = %d, %v; want 5, 30s", b.cfg.MaxFailures, b.cfg.Cooldown)
	}
	if s := b.Snapshot(); s.State != StateClosed || s.CoolingDown {
		t.Errorf("initial snapshot = %+v", s)
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b, clk := testBreaker(3)
	for range 2 {
		_ = dial(b, errRefused)
	}
	_ = dial(b, nil)
	for range 2 {
		_ = dial(b, errRefused)
	}
	if s := b.Snapshot(); s.State != StateClosed || s.Failures != 2 {
		t.Fatalf("after success in between: %+v, want closed with 2 failures", s)
	}

	_ = dial(b, errRefused)
	s := b.Snapshot()
	if s.State != StateOpen || !s.CoolingDown {
		t.Fatalf("snapshot = %+v, want open and cooling down", s)
	}
	if want := clk.Now().Add(10 * time.Second); !s.RetryAt.Equal(want) {
		t.Errorf("RetryAt = %v, want %v", s.RetryAt, want)
	}
	if s.LastErr != errRefused.Error() {
		t.Errorf("LastErr = %q", s.LastErr)
	}
	if err := dial(b, nil); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("dial while open: %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_Probe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		outcome   error
		wantState State
	}{
		{"success closes", nil, StateClosed},
		{"failure reopens", errRefused, StateOpen},
		{"cancellation leaves it undecided", fmt.Errorf("dial: %w", context.Canceled), StateOpen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, clk := testBreaker(1)
			_ = dial(b, errRefused)

			clk.SetTime(clk.Now().Add(9 * time.Second))
			if _, err := b.Acquire(); !errors.Is(err, ErrCircuitOpen) {
				t.Fatalf("Acquire before cooldown: %v", err)
			}
			clk.SetTime(clk.Now().Add(time.Second))
			if s := b.Snapshot(); s.CoolingDown {
				t.Fatalf("still cooling down at RetryAt: %+v", s)
			}

			done, err := b.Acquire()
			if err != nil {
				t.Fatalf("probe Acquire: %v", err)
			}
			if b.Snapshot().State != StateProbing {
				t.Fatalf("state = %v, want probing", b.Snapshot().State)
			}
			if _, err := b.Acquire(); !errors.Is(err, ErrCircuitOpen) {
				t.Errorf("second Acquire during probe: %v, want ErrCircuitOpen", err)
			}
			done(tt.outcome)

			if got := b.Snapshot().State; got != tt.wantState {
				t.Errorf("state = %v, want %v", got, tt.wantState)
			}
		})
	}
}

func TestBreaker_CancelledProbeRetriesImmediately(t *testing.T) {
	t.Parallel()

	b, clk := testBreaker(1)
	_ = dial(b, errRefused)
	clk.SetTime(clk.Now().Add(10 * time.Second))

	_ = dial(b, context.Canceled)
	if s := b.Snapshot(); s.CoolingDown || s.Failures != 1 {
		t.Fatalf("snapshot = %+v, want no new cooldown and 1 failure", s)
	}
	if err := dial(b, nil); err != nil {
		t.Fatalf("next probe: %v", err)
	}
	if s := b.Snapshot(); s.State != StateClosed || s.Failures != 0 || s.LastErr != "" {
		t.Errorf("snapshot = %+v, want cleared", s)
	}
}

func TestBreaker_DoneIsIdempotent(t *testing.T) {
	t.Parallel()

	b, _ := testBreaker(2)
	done, err := b.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	done(errRefused)
	done(errRefused)
	if s := b.Snapshot(); s.Failures != 1 || s.State != StateClosed {
		t.Errorf("snapshot = %+v, want one failure", s)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{
		StateClosed:  "closed",
		StateOpen:    "open",
		StateProbing: "probing",
		State(7):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d) = %q, want %q", s, got, want)
		}
	}
}
