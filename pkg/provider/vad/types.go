package vad

// Activity is the per-frame speech state of the local user. It is derived
// fresh for every frame and never persisted.
type Activity int

const (
	// Silent indicates no speech in the frame.
	Silent Activity = iota

	// Speaking indicates the local user is talking.
	Speaking
)

// String returns the human-readable name of the activity.
func (a Activity) String() string {
	switch a {
	case Silent:
		return "silent"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}
