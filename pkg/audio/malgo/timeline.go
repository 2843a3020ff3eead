package malgo

import (
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/pcm"
)

// timeline is the software mixer behind a playback [Sink]. Its clock is the
// number of samples rendered so far; voices are placed at absolute sample
// positions and summed into each render block.
type timeline struct {
	rate int

	mu       sync.Mutex
	rendered int64
	voices   map[*voice]struct{}
	closed   bool
}

func newTimeline(rate int) *timeline {
	return &timeline{rate: rate, voices: make(map[*voice]struct{})}
}

// now returns the playback clock.
func (t *timeline) now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return audio.SamplesDuration(int(t.rendered), t.rate)
}

// schedule places buf at clock time at, or at the current position when at
// is in the past.
func (t *timeline) schedule(buf pcm.Buffer, at time.Duration, onEnded func()) (*voice, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errSinkClosed
	}
	// Round to the nearest sample: chained start times are sums of truncated
	// buffer durations.
	pos := (int64(at)*int64(t.rate) + int64(time.Second)/2) / int64(time.Second)
	start := max(pos, t.rendered)
	v := &voice{tl: t, samples: buf.Samples, start: start, onEnded: onEnded}
	t.voices[v] = struct{}{}
	return v, nil
}

// render mixes the next len(out) samples into out, advances the clock and
// returns the end callbacks of voices that finished inside the block. The
// callbacks must be run after render returns, outside the timeline lock.
func (t *timeline) render(out []float32) []func() {
	clear(out)

	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.rendered
	to := from + int64(len(out))
	var ended []func()
	for v := range t.voices {
		end := v.start + int64(len(v.samples))
		lo, hi := max(v.start, from), min(end, to)
		for s := lo; s < hi; s++ {
			out[s-from] += v.samples[s-v.start]
		}
		if end <= to {
			delete(t.voices, v)
			if v.onEnded != nil {
				ended = append(ended, v.onEnded)
			}
		}
	}
	for i, s := range out {
		out[i] = min(max(s, -1), 1)
	}
	t.rendered = to
	return ended
}

// active returns the number of scheduled voices.
func (t *timeline) active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.voices)
}

// close drops every voice without running its callback.
func (t *timeline) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	clear(t.voices)
}

// voice is one buffer on a timeline.
type voice struct {
	tl      *timeline
	samples []float32
	start   int64
	onEnded func()
}

var _ audio.Voice = (*voice)(nil)

// Stop removes the voice. Its end callback never runs afterwards.
func (v *voice) Stop() {
	v.tl.mu.Lock()
	defer v.tl.mu.Unlock()
	delete(v.tl.voices, v)
}
