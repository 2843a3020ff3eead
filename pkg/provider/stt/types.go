package stt

import "time"

// Caption is a recognition result for the local user's speech. Both partial
// (interim) and final captions use this type.
type Caption struct {
	// Text is the recognized speech.
	Text string

	// IsFinal marks an authoritative result. Partials may be revised.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero if the
	// provider does not report it.
	Confidence float64

	// Start is the utterance offset relative to stream start.
	Start time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}
