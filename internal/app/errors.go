package app

import (
	"errors"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/s2s"
)

var (
	// ErrAuth is returned by Start when no credential is available. Nothing
	// has been opened when it is returned.
	ErrAuth = errors.New("app: no credential")

	// ErrStartAborted is returned by Start when Stop ran while the session
	// was still starting. Everything Start had opened is released.
	ErrStartAborted = errors.New("app: start aborted")
)

// UserMessage maps a Start error to a short, actionable message for the
// learner. Mid-session errors never reach the user and need no mapping.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuth):
		return "You are not signed in. Sign in and try again."
	case errors.Is(err, audio.ErrDevice):
		return "Could not access your microphone or speaker. Check microphone permissions and that an audio device is connected."
	case errors.Is(err, s2s.ErrConnection):
		return "Could not reach the practice service. Check your network connection and try again."
	case errors.Is(err, ErrStartAborted):
		return "The session was stopped before it started."
	default:
		return "Something went wrong while starting the session. Please try again."
	}
}

// startStatus labels a Start outcome for metrics.
func startStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, audio.ErrDevice):
		return "device"
	case errors.Is(err, s2s.ErrConnection):
		return "connection"
	case errors.Is(err, ErrStartAborted):
		return "cancelled"
	default:
		return "error"
	}
}
