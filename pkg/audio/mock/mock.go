// Package mock provides in-memory implementations of the [audio.Microphone],
// [audio.CaptureStream], [audio.Speaker] and [audio.Sink] interfaces for use
// in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// The [Sink] runs on a manual clock: nothing plays until the test calls
// [Sink.Advance], which fires voice end callbacks in timeline order.
//
// Typical usage:
//
//	sink := mock.NewSink()
//	sched := playback.New(sink)
//	sched.Enqueue(buf)
//	sink.Advance(time.Second)
//	starts := sink.Starts()
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/pcm"
)

// ─── Microphone ───────────────────────────────────────────────────────────────

// OpenCall records a single invocation of an Open method.
type OpenCall struct {
	SampleRate int
}

// Microphone is a mock implementation of [audio.Microphone].
type Microphone struct {
	mu sync.Mutex

	// Stream is returned by Open. If nil or already released, Open stores
	// and returns a new [CaptureStream].
	Stream *CaptureStream

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// Block, if non-nil, makes Open wait until it is closed or ctx is done.
	// Use it to simulate a pending permission prompt.
	Block chan struct{}

	// OpenCalls records every call to Open in order.
	OpenCalls []OpenCall
}

// Open implements [audio.Microphone].
func (m *Microphone) Open(ctx context.Context, sampleRate int) (audio.CaptureStream, error) {
	m.mu.Lock()
	m.OpenCalls = append(m.OpenCalls, OpenCall{SampleRate: sampleRate})
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.Stream == nil || m.Stream.Released() {
		m.Stream = NewCaptureStream()
	}
	return m.Stream, nil
}

// Current returns the stream most recently handed out. Thread-safe.
func (m *Microphone) Current() *CaptureStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Stream
}

// OpenCount returns the number of Open calls. Thread-safe.
func (m *Microphone) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.OpenCalls)
}

var _ audio.Microphone = (*Microphone)(nil)

// CaptureStream is a mock implementation of [audio.CaptureStream]. Tests
// feed samples with [CaptureStream.Push].
type CaptureStream struct {
	mu     sync.Mutex
	ch     chan []float32
	closed bool

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewCaptureStream returns an open stream with a generous buffer.
func NewCaptureStream() *CaptureStream {
	return &CaptureStream{ch: make(chan []float32, 256)}
}

// Samples implements [audio.CaptureStream].
func (s *CaptureStream) Samples() <-chan []float32 { return s.ch }

// Push delivers samples as if captured by the device. It reports false once
// the stream is closed.
func (s *CaptureStream) Push(samples []float32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.ch <- samples
	return true
}

// Close implements [audio.CaptureStream].
func (s *CaptureStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return s.CloseErr
}

// Released reports whether Close has been called.
func (s *CaptureStream) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ audio.CaptureStream = (*CaptureStream)(nil)

// ─── Speaker ──────────────────────────────────────────────────────────────────

// Speaker is a mock implementation of [audio.Speaker].
type Speaker struct {
	mu sync.Mutex

	// Sink is returned by Open. If nil or already closed, Open stores and
	// returns a new [Sink].
	Sink *Sink

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// OpenCalls records every call to Open in order.
	OpenCalls []OpenCall
}

// Open implements [audio.Speaker].
func (s *Speaker) Open(_ context.Context, sampleRate int) (audio.Sink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OpenCalls = append(s.OpenCalls, OpenCall{SampleRate: sampleRate})
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	if s.Sink == nil || s.Sink.Closed() {
		s.Sink = NewSink()
	}
	return s.Sink, nil
}

// Current returns the sink most recently handed out. Thread-safe.
func (s *Speaker) Current() *Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Sink
}

// OpenCount returns the number of Open calls. Thread-safe.
func (s *Speaker) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.OpenCalls)
}

var _ audio.Speaker = (*Speaker)(nil)

// ─── Sink ─────────────────────────────────────────────────────────────────────

// ScheduleCall records a single invocation of Sink.Schedule.
type ScheduleCall struct {
	// Buffer is the buffer passed to Schedule.
	Buffer pcm.Buffer

	// At is the requested start time.
	At time.Duration

	// Start is the effective start time: max(At, clock at call time).
	Start time.Duration

	// Err is the error returned to the caller, if any.
	Err error
}

// Sink is a mock implementation of [audio.Sink] driven by a manual clock.
type Sink struct {
	mu     sync.Mutex
	now    time.Duration
	active []*Voice

	// ScheduleErr, if non-nil, is consulted on every Schedule call with the
	// zero-based call index. A non-nil result fails that call.
	ScheduleErr func(call int) error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// Quantum, if positive, models a device rendering in blocks: a voice's
	// end is reported at the first multiple of Quantum at or after it.
	Quantum time.Duration

	// ScheduleCalls records every call to Schedule in order.
	ScheduleCalls []ScheduleCall

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewSink returns a sink whose clock reads zero.
func NewSink() *Sink {
	return &Sink{}
}

// Now implements [audio.Sink].
func (s *Sink) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule implements [audio.Sink].
func (s *Sink) Schedule(buf pcm.Buffer, at time.Duration, onEnded func()) (audio.Voice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call := ScheduleCall{Buffer: buf, At: at, Start: max(at, s.now)}
	if s.ScheduleErr != nil {
		call.Err = s.ScheduleErr(len(s.ScheduleCalls))
	}
	s.ScheduleCalls = append(s.ScheduleCalls, call)
	if call.Err != nil {
		return nil, call.Err
	}

	v := &Voice{
		sink:    s,
		Start:   call.Start,
		End:     call.Start + buf.Duration(),
		onEnded: onEnded,
	}
	s.active = append(s.active, v)
	return v, nil
}

// Advance moves the clock forward by d. Voices ending within the interval
// are retired in end-time order; each onEnded runs with the clock set to that
// voice's end (or the end of its block, see Quantum) and without the sink
// lock held, so callbacks may schedule more voices that themselves end within
// the interval.
func (s *Sink) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		idx := -1
		for i, v := range s.active {
			if s.reportedAt(v) <= target && (idx < 0 || v.End < s.active[idx].End) {
				idx = i
			}
		}
		if idx < 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		v := s.active[idx]
		s.active = append(s.active[:idx], s.active[idx+1:]...)
		s.now = max(s.now, s.reportedAt(v))
		cb := v.onEnded
		s.mu.Unlock()

		if cb != nil {
			cb()
		}
	}
}

// reportedAt is when the end of v is reported. Must hold s.mu.
func (s *Sink) reportedAt(v *Voice) time.Duration {
	if s.Quantum <= 0 {
		return v.End
	}
	return (v.End + s.Quantum - 1) / s.Quantum * s.Quantum
}

// Starts returns the effective start time of every successfully scheduled
// voice, in scheduling order.
func (s *Sink) Starts() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, c := range s.ScheduleCalls {
		if c.Err == nil {
			out = append(out, c.Start)
		}
	}
	return out
}

// Active returns the number of voices scheduled and not yet ended or stopped.
func (s *Sink) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Close implements [audio.Sink]. Active voices are dropped without firing
// their callbacks.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.active = nil
	return s.CloseErr
}

// Closed reports whether Close has been called.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountClose > 0
}

var _ audio.Sink = (*Sink)(nil)

// Voice is the mock [audio.Voice] returned by [Sink.Schedule].
type Voice struct {
	sink    *Sink
	onEnded func()
	stopped bool

	// Start and End bound the voice on the sink's timeline.
	Start, End time.Duration
}

// Stop implements [audio.Voice].
func (v *Voice) Stop() {
	s := v.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	v.stopped = true
	for i, a := range s.active {
		if a == v {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return
		}
	}
}

// Stopped reports whether Stop was called.
func (v *Voice) Stopped() bool {
	v.sink.mu.Lock()
	defer v.sink.mu.Unlock()
	return v.stopped
}

var _ audio.Voice = (*Voice)(nil)
