package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/pcm"
)

// ErrSchedule reports a buffer the sink refused to schedule. The item is
// dropped and playback continues with the next one.
var ErrSchedule = errors.New("playback: schedule failed")

// State is the scheduler's playback state.
type State int

const (
	// Idle means nothing is playing. The queue may be non-empty only
	// transiently inside a call.
	Idle State = iota

	// Playing means the head item is on the sink, possibly followed by
	// the next item already placed at its chained start time.
	Playing

	// Suspended means playback was preempted; queued items are kept until
	// [Scheduler.ResumeIfPending] or [Scheduler.Reset].
	Suspended
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Option configures a [Scheduler] during construction.
type Option func(*Scheduler)

// WithLogger sets the logger used for schedule failures. Defaults to
// [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnStateChange registers fn to observe state transitions. fn is called
// with the scheduler lock held and must not call back into the scheduler.
func WithOnStateChange(fn func(from, to State)) Option {
	return func(s *Scheduler) {
		s.onState = fn
	}
}

// WithOnStart registers fn to observe every item as it is placed on the
// sink, together with its computed start time. Same locking rules as
// [WithOnStateChange].
func WithOnStart(fn func(it Item, start time.Duration)) Option {
	return func(s *Scheduler) {
		s.onStart = fn
	}
}

// WithOnScheduleError registers fn to observe dropped items. The error wraps
// [ErrSchedule]. Same locking rules as [WithOnStateChange].
func WithOnScheduleError(fn func(err error)) Option {
	return func(s *Scheduler) {
		s.onError = fn
	}
}

// lookahead is the number of items kept on the sink at once. Sinks report a
// voice's end only after the render block it ended in, so the following item
// must already be placed for playback to stay sample-contiguous.
const lookahead = 2

// Scheduler plays decoded buffers on an [audio.Sink] in arrival order with
// no gap between consecutive buffers.
//
// Each buffer starts at max(now, nextStart), after which nextStart advances by
// the buffer's duration. While one item plays, the next is already placed on
// the sink; a new one is placed each time the sink reports an end, so timing
// never depends on polling.
//
// All exported methods are safe for concurrent use.
type Scheduler struct {
	sink    audio.Sink
	logger  *slog.Logger
	onState func(from, to State)
	onStart func(Item, time.Duration)
	onError func(error)

	mu        sync.Mutex
	queue     fifo
	state     State
	placed    []placement   // items on the sink in start order; the head is audible
	token     uint64        // identifies placements for their end callbacks
	nextStart time.Duration // playback-clock time at which the next item may start
	seq       uint64
	closed    bool
}

// placement is a queue item handed to the sink.
type placement struct {
	item  Item
	voice audio.Voice
	start time.Duration
	token uint64
	ended bool
}

// New creates a [Scheduler] that plays through sink. The scheduler takes
// ownership of sink and closes it in [Scheduler.Close].
func New(sink audio.Sink, opts ...Option) *Scheduler {
	s := &Scheduler{
		sink:   sink,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.nextStart = sink.Now()
	return s
}

// Enqueue appends buf to the queue. If the scheduler is idle, playback of the
// queue head begins immediately. While suspended the buffer only queues.
// Empty buffers and calls after Close are ignored.
func (s *Scheduler) Enqueue(buf pcm.Buffer) {
	if len(buf.Samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.seq++
	s.queue.Push(Item{Buffer: buf, Arrived: s.sink.Now(), Seq: s.seq})

	if s.state != Suspended {
		s.fillLocked()
	}
}

// Suspend stops the current item immediately without clearing the queue.
// The stopped item is discarded. An item placed ahead that has not started
// yet goes back to the queue head. Suspend is a no-op unless the scheduler
// is playing.
func (s *Scheduler) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Playing {
		return
	}
	now := s.sink.Now()
	var unplayed []Item
	for _, p := range s.placed {
		if p.start > now {
			unplayed = append(unplayed, p.item)
		}
	}
	s.abandonLocked()
	s.queue.PushFront(unplayed...)
	s.nextStart = now
	s.setStateLocked(Suspended)
}

// ResumeIfPending restarts chaining from the queue head after a
// [Scheduler.Suspend]. It reports whether an item is now playing. With an
// empty queue a suspended scheduler becomes idle.
func (s *Scheduler) ResumeIfPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Suspended {
		return false
	}
	s.fillLocked()
	return s.state == Playing
}

// Reset stops playback, empties the queue and moves the start cursor to the
// sink's current time. It is meant for session teardown; ordinary
// turn-taking uses [Scheduler.Suspend].
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
}

// State returns the current playback state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the number of queued items not yet placed on the sink.
// While playing, the item after the current one is usually already placed.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Close resets the scheduler and closes the sink. Close is idempotent;
// subsequent calls are no-ops and return nil.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.resetLocked()
	s.closed = true
	s.mu.Unlock()

	if err := s.sink.Close(); err != nil {
		return fmt.Errorf("playback: close sink: %w", err)
	}
	return nil
}

// ended is the onEnded callback of the placement identified by token.
func (s *Scheduler) ended(token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != Playing {
		return
	}
	found := false
	for i := range s.placed {
		if s.placed[i].token == token {
			s.placed[i].ended = true
			found = true
		}
	}
	if !found {
		return // stale: stopped by Suspend or Reset
	}
	// A sink may report ends of one render block in any order.
	for len(s.placed) > 0 && s.placed[0].ended {
		s.placed = s.placed[1:]
	}
	s.fillLocked()
}

// fillLocked places queue items on the sink until lookahead items are
// placed. Items the sink refuses are dropped and the next one is tried. With
// nothing placed the scheduler becomes idle. Must be called with s.mu held.
func (s *Scheduler) fillLocked() {
	for len(s.placed) < lookahead && s.queue.Len() > 0 {
		it := s.queue.Pop()

		start := max(s.sink.Now(), s.nextStart)
		s.token++
		token := s.token
		v, err := s.sink.Schedule(it.Buffer, start, func() { s.ended(token) })
		if err != nil {
			err = fmt.Errorf("%w: item %d: %w", ErrSchedule, it.Seq, err)
			s.logger.Warn("playback: dropping item", "seq", it.Seq, "err", err)
			if s.onError != nil {
				s.onError(err)
			}
			continue
		}

		s.placed = append(s.placed, placement{item: it, voice: v, start: start, token: token})
		s.nextStart = start + it.Buffer.Duration()
		if s.onStart != nil {
			s.onStart(it, start)
		}
	}

	if len(s.placed) > 0 {
		s.setStateLocked(Playing)
	} else {
		s.setStateLocked(Idle)
	}
}

// abandonLocked stops every placed voice. Their callbacks become stale.
func (s *Scheduler) abandonLocked() {
	for _, p := range s.placed {
		p.voice.Stop()
	}
	s.placed = nil
}

func (s *Scheduler) resetLocked() {
	s.abandonLocked()
	if n := s.queue.Clear(); n > 0 {
		s.logger.Debug("playback: discarded queued items", "count", n)
	}
	s.nextStart = s.sink.Now()
	s.setStateLocked(Idle)
}

func (s *Scheduler) setStateLocked(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	if s.onState != nil {
		s.onState(from, to)
	}
}
