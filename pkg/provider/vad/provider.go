// Package vad defines the Detector interface for voice activity detection.
//
// A Detector classifies one captured frame at a time as speech or silence.
// It runs on the frame hot path once per frame, so implementations must be
// cheap, must not block and must not allocate per call.
//
// The turn-taking controller consumes the result to decide whether assistant
// playback may continue.
package vad

import (
	"errors"
	"fmt"
)

// DefaultThreshold is the reference mean absolute amplitude above which a
// frame counts as speech.
const DefaultThreshold = 0.01

// Config holds the parameters for a detector.
type Config struct {
	// Threshold is the mean absolute amplitude (samples normalized to
	// [-1, 1]) above which a frame is classified as speech. Must be in [0, 1).
	Threshold float64

	// FrameSize is the expected number of samples per frame. Detectors accept
	// other sizes; it is recorded for diagnostics and validated here.
	FrameSize int

	// SampleRate is the capture rate in Hz of the frames passed to Detect.
	SampleRate int
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	var errs []error
	if c.Threshold < 0 || c.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("vad: threshold %v out of range [0, 1)", c.Threshold))
	}
	if c.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("vad: frame size must be positive, got %d", c.FrameSize))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("vad: sample rate must be positive, got %d", c.SampleRate))
	}
	return errors.Join(errs...)
}

// Detector classifies audio frames.
//
// Implementations must be safe for concurrent use.
type Detector interface {
	// Detect returns the activity of a single frame of normalized mono
	// samples. An empty frame is [Silent].
	Detect(frame []float32) Activity
}
