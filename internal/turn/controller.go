// Package turn implements the half-duplex turn-taking policy between the
// local speaker and assistant playback.
//
// The human always wins: speech while the assistant is playing suspends
// playback at once (barge-in), and playback resumes only after a silent
// frame. The [Controller] keeps no state of its own and re-derives its
// decision on every frame.
package turn

import (
	"log/slog"

	"github.com/MrWong99/parley/pkg/audio/playback"
	"github.com/MrWong99/parley/pkg/provider/vad"
)

// Playback is the part of [playback.Scheduler] the controller drives.
type Playback interface {
	State() playback.State
	Pending() int
	Suspend()
	ResumeIfPending() bool
}

var _ Playback = (*playback.Scheduler)(nil)

// Decision is the action taken for one frame.
type Decision int

const (
	// DecisionNone means playback was left alone.
	DecisionNone Decision = iota

	// DecisionSuspend means playback was suspended for a barge-in.
	DecisionSuspend

	// DecisionResume means suspended playback was resumed.
	DecisionResume
)

// String returns the human-readable name of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionSuspend:
		return "suspend"
	case DecisionResume:
		return "resume"
	default:
		return "unknown"
	}
}

// Controller applies the turn-taking policy to a [Playback].
//
// Evaluate may be called redundantly and from any goroutine.
type Controller struct {
	playback Playback
	logger   *slog.Logger
}

// New returns a controller driving p. A nil logger uses [slog.Default].
func New(p Playback, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{playback: p, logger: logger}
}

// Evaluate applies the policy for one frame's activity and returns what it
// did.
//
//   - Speaking while playing: suspend.
//   - Silent while suspended with queued audio: resume.
//   - Anything else: nothing.
func (c *Controller) Evaluate(a vad.Activity) Decision {
	state := c.playback.State()
	switch {
	case a == vad.Speaking && state == playback.Playing:
		c.playback.Suspend()
		c.logger.Debug("turn: barge-in, suspending playback")
		return DecisionSuspend
	case a == vad.Silent && state == playback.Suspended && c.playback.Pending() > 0:
		if c.playback.ResumeIfPending() {
			c.logger.Debug("turn: user silent, resuming playback")
			return DecisionResume
		}
	}
	return DecisionNone
}
