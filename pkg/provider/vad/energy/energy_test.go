package energy_test

import (
	"testing"

	"github.com/MrWong99/parley/pkg/provider/vad"
	"github.com/MrWong99/parley/pkg/provider/vad/energy"
)

func constant(v float32, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func newDetector(t *testing.T) *energy.Detector {
	t.Helper()
	d, err := energy.New(vad.Config{Threshold: vad.DefaultThreshold, FrameSize: 4096, SampleRate: 16000})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestDetect(t *testing.T) {
	t.Parallel()

	d := newDetector(t)

	alternating := make([]float32, 4096)
	for i := range alternating {
		if i%2 == 0 {
			alternating[i] = 0.2
		} else {
			alternating[i] = -0.2
		}
	}

	tests := []struct {
		name  string
		frame []float32
		want  vad.Activity
	}{
		{name: "silence", frame: constant(0, 4096), want: vad.Silent},
		{name: "below threshold", frame: constant(0.005, 4096), want: vad.Silent},
		{name: "exactly threshold", frame: constant(0.01, 4), want: vad.Silent},
		{name: "above threshold", frame: constant(0.05, 4096), want: vad.Speaking},
		{name: "negative energy counts", frame: constant(-0.05, 4096), want: vad.Speaking},
		{name: "zero-mean loud signal", frame: alternating, want: vad.Speaking},
		{name: "empty frame", frame: nil, want: vad.Silent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := d.Detect(tt.frame); got != tt.want {
				t.Errorf("Detect() = %v, want %v (mean abs %v)", got, tt.want, energy.MeanAbs(tt.frame))
			}
		})
	}
}

func TestSetThreshold(t *testing.T) {
	t.Parallel()

	d := newDetector(t)
	frame := constant(0.05, 128)
	if d.Detect(frame) != vad.Speaking {
		t.Fatal("expected speaking at default threshold")
	}
	d.SetThreshold(0.1)
	if d.Threshold() != 0.1 {
		t.Errorf("Threshold() = %v, want 0.1", d.Threshold())
	}
	if d.Detect(frame) != vad.Silent {
		t.Error("expected silent after raising threshold")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := energy.New(vad.Config{Threshold: 2, FrameSize: 0, SampleRate: 16000}); err == nil {
		t.Fatal("expected error for invalid config")
	}
}
