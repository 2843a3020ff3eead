package audio

import "context"

// FrameProcessor accumulates a continuous mono sample stream into fixed-size
// frames. The concatenation of all emitted frames equals the input prefix,
// sample for sample; the remainder stays buffered until more input arrives.
//
// A FrameProcessor is owned by a single goroutine and is not safe for
// concurrent use. [Frames] wraps one in a dedicated goroutine.
type FrameProcessor struct {
	size   int
	rate   int
	buf    []float32
	n      int
	seq    uint64
	offset int64 // samples emitted so far
}

// NewFrameProcessor returns a processor emitting frames of size samples at
// sampleRate Hz. A non-positive size falls back to [FrameSize].
func NewFrameProcessor(size, sampleRate int) *FrameProcessor {
	if size <= 0 {
		size = FrameSize
	}
	return &FrameProcessor{
		size: size,
		rate: sampleRate,
		buf:  make([]float32, size),
	}
}

// Process appends samples and calls emit once for every completed frame, in
// order. emit receives a freshly allocated frame it may retain.
func (p *FrameProcessor) Process(samples []float32, emit func(AudioFrame)) {
	for len(samples) > 0 {
		c := copy(p.buf[p.n:], samples)
		p.n += c
		samples = samples[c:]
		if p.n < p.size {
			return
		}

		out := make([]float32, p.size)
		copy(out, p.buf)
		frame := AudioFrame{
			Samples:    out,
			SampleRate: p.rate,
			Seq:        p.seq,
			Timestamp:  SamplesDuration(int(p.offset), p.rate),
		}
		p.seq++
		p.offset += int64(p.size)
		p.n = 0
		emit(frame)
	}
}

// Buffered returns the number of samples waiting for the next frame.
func (p *FrameProcessor) Buffered() int {
	return p.n
}

// Size returns the configured frame size in samples.
func (p *FrameProcessor) Size() int {
	return p.size
}

// Frames runs a [FrameProcessor] over in on its own goroutine and returns the
// channel of completed frames. The handoff is one-way: the goroutine never
// calls back into the producer.
//
// The returned channel is closed when in is closed or ctx is cancelled. A
// trailing partial frame is discarded.
func Frames(ctx context.Context, in <-chan []float32, size, sampleRate int) <-chan AudioFrame {
	out := make(chan AudioFrame, 4)
	go func() {
		defer close(out)
		p := NewFrameProcessor(size, sampleRate)
		emit := func(f AudioFrame) {
			select {
			case out <- f:
			case <-ctx.Done():
			}
		}
		for {
			select {
			case <-ctx.Done():
				return
			case samples, ok := <-in:
				if !ok {
					return
				}
				p.Process(samples, emit)
			}
		}
	}()
	return out
}
