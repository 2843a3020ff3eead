package malgo

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/parley/pkg/audio/pcm"
)

const testRate = 1000 // one sample per millisecond

func buf(n int, v float32) pcm.Buffer {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return pcm.Buffer{Samples: s, SampleRate: testRate}
}

func TestTimeline_ClockAdvancesWithRender(t *testing.T) {
	t.Parallel()

	tl := newTimeline(testRate)
	if got := tl.now(); got != 0 {
		t.Fatalf("now = %v, want 0", got)
	}
	tl.render(make([]float32, 20))
	if got := tl.now(); got != 20*time.Millisecond {
		t.Errorf("now = %v, want 20ms", got)
	}
}

func TestTimeline_GaplessBackToBack(t *testing.T) {
	t.Parallel()

	tl := newTimeline(testRate)
	var ended []string
	if _, err := tl.schedule(buf(10, 0.25), 0, func() { ended = append(ended, "a") }); err != nil {
		t.Fatalf("schedule a: %v", err)
	}
	if _, err := tl.schedule(buf(10, 0.5), 10*time.Millisecond, func() { ended = append(ended, "b") }); err != nil {
		t.Fatalf("schedule b: %v", err)
	}

	out := make([]float32, 20)
	for _, fn := range tl.render(out) {
		fn()
	}
	for i, s := range out {
		want := float32(0.25)
		if i >= 10 {
			want = 0.5
		}
		if s != want {
			t.Fatalf("sample %d = %v, want %v", i, s, want)
		}
	}
	if len(ended) != 2 {
		t.Errorf("ended = %v, want both voices", ended)
	}
	if tl.active() != 0 {
		t.Errorf("active = %d, want 0", tl.active())
	}
}

func TestTimeline_PastStartPlaysNow(t *testing.T) {
	t.Parallel()

	tl := newTimeline(testRate)
	tl.render(make([]float32, 50))

	if _, err := tl.schedule(buf(5, 0.1), 10*time.Millisecond, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	out := make([]float32, 5)
	tl.render(out)
	if out[0] != 0.1 {
		t.Errorf("first sample = %v, want 0.1", out[0])
	}
}

func TestTimeline_SpansRenderBlocks(t *testing.T) {
	t.Parallel()

	tl := newTimeline(testRate)
	calls := 0
	tl.schedule(buf(15, 0.3), 5*time.Millisecond, func() { calls++ })

	first := make([]float32, 10)
	if ended := tl.render(first); len(ended) != 0 {
		t.Fatal("voice ended in the first block")
	}
	if first[4] != 0 || first[5] != 0.3 {
		t.Errorf("first block = %v", first)
	}
	second := make([]float32, 10)
	for _, fn := range tl.render(second) {
		fn()
	}
	if second[9] != 0.3 || calls != 1 {
		t.Errorf("second block = %v, calls = %d", second, calls)
	}
}

func TestTimeline_StopSilencesWithoutCallback(t *testing.T) {
	t.Parallel()

	tl := newTimeline(testRate)
	called := false
	v, _ := tl.schedule(buf(10, 0.4), 0, func() { called = true })
	v.Stop()
	v.Stop()

	out := make([]float32, 10)
	if ended := tl.render(out); len(ended) != 0 {
		t.Errorf("ended callbacks = %d, want 0", len(ended))
	}
	if out[0] != 0 || called {
		t.Errorf("stopped voice still played: out[0]=%v called=%v", out[0], called)
	}
}

func TestTimeline_MixClamps(t *testing.T) {
	t.Parallel()

	tl := newTimeline(testRate)
	tl.schedule(buf(4, 0.8), 0, nil)
	tl.schedule(buf(4, 0.8), 0, nil)

	out := make([]float32, 4)
	tl.render(out)
	if out[0] != 1 {
		t.Errorf("mixed sample = %v, want clamped 1", out[0])
	}
}

func TestTimeline_ScheduleAfterClose(t *testing.T) {
	t.Parallel()

	tl := newTimeline(testRate)
	tl.schedule(buf(4, 0.2), 0, nil)
	tl.close()

	if _, err := tl.schedule(buf(4, 0.2), 0, nil); !errors.Is(err, errSinkClosed) {
		t.Errorf("schedule after close error = %v, want errSinkClosed", err)
	}
	if tl.active() != 0 {
		t.Errorf("active = %d after close, want 0", tl.active())
	}
}

func TestF32RoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0, 0.5, -0.25, 1, -1, float32(math.SmallestNonzeroFloat32)}
	b := make([]byte, len(in)*4)
	encodeF32(b, in)
	out := decodeF32(b)
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d = %v, want %v", i, out[i], in[i])
		}
	}
}
