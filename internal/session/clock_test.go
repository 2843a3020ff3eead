package session

import (
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

func TestFormatClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "00:00"},
		{in: 999 * time.Millisecond, want: "00:00"},
		{in: 59 * time.Second, want: "00:59"},
		{in: 240 * time.Second, want: "04:00"},
		{in: 3*time.Minute + 7*time.Second + 500*time.Millisecond, want: "03:07"},
		{in: 75 * time.Minute, want: "75:00"},
		{in: -time.Second, want: "00:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.in); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClock_PracticeCountsUp(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(time.Unix(1_700_000_000, 0))
	c := NewClock(fc, ModePractice, 0)
	c.Start(func() { t.Error("practice clock must not expire") })

	fc.Step(65 * time.Second)
	if got := c.Display(); got != "01:05" {
		t.Errorf("Display() = %q, want 01:05", got)
	}
	if c.Remaining() != 0 {
		t.Errorf("Remaining() = %v in practice mode", c.Remaining())
	}
	if fc.HasWaiters() {
		t.Error("practice clock registered a timer")
	}

	c.Stop()
	fc.Step(time.Hour)
	if got := c.Elapsed(); got != 65*time.Second {
		t.Errorf("Elapsed() after Stop = %v, want 65s", got)
	}
}

func TestClock_TestModeCountsDownAndExpires(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(time.Unix(1_700_000_000, 0))
	c := NewClock(fc, ModeTest, DefaultTestDuration)

	expired := make(chan struct{})
	c.Start(func() { close(expired) })

	if got := c.Display(); got != "04:00" {
		t.Errorf("Display() at start = %q, want 04:00", got)
	}

	fc.Step(239 * time.Second)
	if got := c.Display(); got != "00:01" {
		t.Errorf("Display() = %q, want 00:01", got)
	}
	select {
	case <-expired:
		t.Fatal("expired early")
	default:
	}

	fc.Step(time.Second)
	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("clock did not expire at the limit")
	}
	if c.Remaining() != 0 || c.Display() != "00:00" {
		t.Errorf("Remaining() = %v, Display() = %q at expiry", c.Remaining(), c.Display())
	}
}

func TestClock_StopCancelsExpiry(t *testing.T) {
	t.Parallel()

	fc := testingclock.NewFakeClock(time.Unix(1_700_000_000, 0))
	c := NewClock(fc, ModeTest, 10*time.Second)
	fired := make(chan struct{}, 1)
	c.Start(func() { fired <- struct{}{} })

	c.Stop()
	c.Stop()
	if fc.HasWaiters() {
		t.Fatal("timer still registered after Stop")
	}
	fc.Step(time.Minute)
	select {
	case <-fired:
		t.Error("expiry fired after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}
