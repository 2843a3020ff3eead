package control

import (
	"log/slog"
	"sync"

	"github.com/MrWong99/parley/internal/app"
)

// subscriberBuffer is the per-subscriber event backlog. A subscriber that
// falls further behind misses events.
const subscriberBuffer = 64

// Hub fans session events out to websocket subscribers. Publish never
// blocks, so it can be passed to [app.WithEventHandler] directly.
type Hub struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan app.Event]struct{}
}

// NewHub returns an empty hub. A nil logger uses [slog.Default].
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, subs: make(map[chan app.Event]struct{})}
}

// Publish delivers e to every subscriber with room in its buffer.
func (h *Hub) Publish(e app.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.logger.Debug("control: dropping event for slow subscriber", "kind", e.Kind)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// subscribe registers a new subscriber. The returned cancel func removes it
// and is safe to call more than once.
func (h *Hub) subscribe() (<-chan app.Event, func()) {
	ch := make(chan app.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
		})
	}
}
