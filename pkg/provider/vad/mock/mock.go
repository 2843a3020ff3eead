// Package mock provides a test double for [vad.Detector].
//
// Detector returns scripted activities in order and records every frame it
// was asked to classify.
//
// Example:
//
//	det := &mock.Detector{Script: []vad.Activity{vad.Speaking, vad.Silent}}
//	det.Detect(frame) // Speaking
//	det.Detect(frame) // Silent
//	det.Detect(frame) // Silent (Default)
package mock

import (
	"sync"

	"github.com/MrWong99/parley/pkg/provider/vad"
)

var _ vad.Detector = (*Detector)(nil)

// DetectCall records a single invocation of Detector.Detect.
type DetectCall struct {
	// Frame is a copy of the samples passed to Detect.
	Frame []float32
}

// Detector is a mock implementation of [vad.Detector].
type Detector struct {
	mu sync.Mutex

	// Script is consumed front to back, one entry per Detect call.
	Script []vad.Activity

	// Default is returned once Script is exhausted.
	Default vad.Activity

	// DetectCalls records every call to Detect in order.
	DetectCalls []DetectCall
}

// Detect records the call and returns the next scripted activity.
func (d *Detector) Detect(frame []float32) vad.Activity {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]float32, len(frame))
	copy(cp, frame)
	d.DetectCalls = append(d.DetectCalls, DetectCall{Frame: cp})
	if len(d.Script) == 0 {
		return d.Default
	}
	a := d.Script[0]
	d.Script = d.Script[1:]
	return a
}

// SetDefault replaces Default. Thread-safe.
func (d *Detector) SetDefault(a vad.Activity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Default = a
}

// CallCount returns the number of Detect calls so far. Thread-safe.
func (d *Detector) CallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.DetectCalls)
}
