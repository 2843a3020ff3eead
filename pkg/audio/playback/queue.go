// Package playback schedules decoded assistant audio on a playback clock so
// consecutive buffers play back to back with no gap and no overlap.
//
// Buffers arrive at irregular intervals from the network. The [Scheduler]
// keeps them in a strict FIFO queue and chains each start time to the end of
// the previous buffer. The turn-taking controller can suspend and resume
// playback without losing queued audio.
package playback

import (
	"time"

	"github.com/MrWong99/parley/pkg/audio/pcm"
)

// Item is a queued buffer with its arrival metadata.
type Item struct {
	// Buffer is the decoded audio.
	Buffer pcm.Buffer

	// Arrived is the playback-clock time at which the buffer was enqueued.
	Arrived time.Duration

	// Seq is the monotonic enqueue index.
	Seq uint64
}

// fifo is a strict first-in first-out queue of items. Items are never
// reordered.
type fifo struct {
	items []Item
	head  int
}

func (q *fifo) Len() int { return len(q.items) - q.head }

func (q *fifo) Push(it Item) {
	q.items = append(q.items, it)
}

// PushFront puts items back at the head, keeping their order.
func (q *fifo) PushFront(items ...Item) {
	if len(items) == 0 {
		return
	}
	rest := q.items[q.head:]
	q.items = append(append(make([]Item, 0, len(items)+len(rest)), items...), rest...)
	q.head = 0
}

// Pop removes and returns the head. It panics on an empty queue; callers
// check Len first.
func (q *fifo) Pop() Item {
	it := q.items[q.head]
	q.items[q.head] = Item{}
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return it
}

func (q *fifo) Clear() int {
	n := q.Len()
	clear(q.items)
	q.items = q.items[:0]
	q.head = 0
	return n
}
