package session

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how a conversation is timed.
type Mode string

const (
	// ModePractice is open-ended; the clock counts up from zero.
	ModePractice Mode = "practice"

	// ModeTest is a timed exam; the clock counts down and the session stops
	// when it reaches zero.
	ModeTest Mode = "test"
)

// DefaultTestDuration is the length of a test-mode session.
const DefaultTestDuration = 240 * time.Second

// ParseMode converts s (case-insensitive) to a [Mode]. The empty string
// yields [ModePractice].
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModePractice:
		return ModePractice, nil
	case ModeTest:
		return ModeTest, nil
	default:
		return "", fmt.Errorf("session: unknown mode %q (want %q or %q)", s, ModePractice, ModeTest)
	}
}

// String implements [fmt.Stringer].
func (m Mode) String() string { return string(m) }
