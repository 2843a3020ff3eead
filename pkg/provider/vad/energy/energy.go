// Package energy implements an amplitude-threshold voice activity detector.
//
// A frame is speech when the mean absolute amplitude of its samples exceeds
// the configured threshold. There is no smoothing or calibration; each frame
// is judged on its own.
package energy

import (
	"math"
	"sync/atomic"

	"github.com/MrWong99/parley/pkg/provider/vad"
)

var _ vad.Detector = (*Detector)(nil)

// Detector is an energy-threshold [vad.Detector]. The threshold can be
// changed at runtime with [Detector.SetThreshold]; Detect reads it without
// locking.
type Detector struct {
	threshold atomic.Uint64 // math.Float64bits
}

// New returns a detector with the given configuration.
func New(cfg vad.Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{}
	d.SetThreshold(cfg.Threshold)
	return d, nil
}

// Threshold returns the active threshold.
func (d *Detector) Threshold() float64 {
	return math.Float64frombits(d.threshold.Load())
}

// SetThreshold replaces the threshold. Safe to call while Detect runs.
func (d *Detector) SetThreshold(t float64) {
	d.threshold.Store(math.Float64bits(t))
}

// Detect implements [vad.Detector].
func (d *Detector) Detect(frame []float32) vad.Activity {
	if MeanAbs(frame) > d.Threshold() {
		return vad.Speaking
	}
	return vad.Silent
}

// MeanAbs returns the mean absolute amplitude of samples, or 0 for an empty
// slice.
func MeanAbs(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		if s < 0 {
			sum -= float64(s)
		} else {
			sum += float64(s)
		}
	}
	return sum / float64(len(samples))
}
