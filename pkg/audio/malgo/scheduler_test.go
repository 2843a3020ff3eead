package malgo

import (
	"testing"

	"github.com/MrWong99/parley/pkg/audio/pcm"
	"github.com/MrWong99/parley/pkg/audio/playback"
)

// Items whose length is not a multiple of the device block must still play
// sample-contiguously through the device timeline.
func TestSink_SchedulerPlaysGapless(t *testing.T) {
	t.Parallel()

	const (
		rate  = 24000
		block = 480 // 20 ms device period
		n     = 1000
	)
	sink := &Sink{tl: newTimeline(rate)}
	sched := playback.New(sink)

	levels := []float32{0.25, 0.5, 0.75}
	for _, lv := range levels {
		s := make([]float32, n)
		for i := range s {
			s[i] = lv
		}
		sched.Enqueue(pcm.Buffer{Samples: s, SampleRate: rate})
	}

	var played []float32
	out := make([]byte, block*4)
	for range 8 {
		sink.onData(out, nil, block)
		played = append(played, decodeF32(out)...)
	}

	for i, got := range played {
		want := float32(0)
		if k := i / n; k < len(levels) {
			want = levels[k]
		}
		if got != want {
			t.Fatalf("sample %d = %v, want %v (gap or overlap at an item boundary)", i, got, want)
		}
	}
	if sched.State() != playback.Idle {
		t.Errorf("State() = %v after all items played, want idle", sched.State())
	}
	sink.tl.close()
}
