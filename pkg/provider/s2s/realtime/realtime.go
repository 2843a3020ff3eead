// Package realtime implements [s2s.Dialer] over a WebSocket carrying JSON
// text frames.
//
// Every frame is an object with a "type" discriminator. The client sends
// "session-start" and "audio-chunk"; the service answers with
// "session-ready", "assistant-audio-chunk", "assistant-transcript-delta" and
// "error". Audio is base64 little-endian PCM16.
//
// The bearer credential is sent in the Authorization header of the upgrade
// request only.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/parley/pkg/audio/pcm"
	"github.com/MrWong99/parley/pkg/provider/s2s"
)

var (
	_ s2s.Dialer = (*Dialer)(nil)
	_ s2s.Conn   = (*conn)(nil)
)

const (
	defaultSendQueue = 64
	defaultReadLimit = 8 << 20
	eventBuffer      = 64
)

// ── Options ────────────────────────────────────────────────────────────────────

// Option is a functional option for configuring a [Dialer].
type Option func(*Dialer)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(d *Dialer) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithHTTPClient sets the HTTP client used for the upgrade request.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dialer) { d.httpClient = c }
}

// WithSendQueue sets how many outbound chunks may wait for the writer before
// new chunks are dropped.
func WithSendQueue(n int) Option {
	return func(d *Dialer) {
		if n > 0 {
			d.sendQueue = n
		}
	}
}

// ── Dialer ─────────────────────────────────────────────────────────────────────

// Dialer connects to a realtime conversation endpoint.
type Dialer struct {
	url        string
	logger     *slog.Logger
	httpClient *http.Client
	sendQueue  int
}

// New returns a Dialer for the ws:// or wss:// endpoint rawURL.
func New(rawURL string, opts ...Option) *Dialer {
	d := &Dialer{
		url:       rawURL,
		logger:    slog.Default(),
		sendQueue: defaultSendQueue,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dial implements [s2s.Dialer]. It fails without retrying; errors wrap
// [s2s.ErrConnection].
func (d *Dialer) Dial(ctx context.Context, credential string) (s2s.Conn, error) {
	header := http.Header{}
	if credential != "" {
		header.Set("Authorization", "Bearer "+credential)
	}

	ws, resp, err := websocket.Dial(ctx, d.url, &websocket.DialOptions{
		HTTPClient: d.httpClient,
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial %s: status %d: %w", s2s.ErrConnection, redact(d.url), resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %w", s2s.ErrConnection, redact(d.url), err)
	}
	ws.SetReadLimit(defaultReadLimit)

	connCtx, cancel := context.WithCancel(context.Background())
	c := &conn{
		ws:      ws,
		logger:  d.logger.With("endpoint", redact(d.url)),
		events:  make(chan s2s.Event, eventBuffer),
		out:     make(chan outbound, d.sendQueue),
		closing: make(chan struct{}),
		ctx:     connCtx,
		cancel:  cancel,
	}
	go c.readLoop()
	go c.writeLoop()

	c.logger.Info("realtime: connected")
	return c, nil
}

// redact strips credentials and query parameters from a URL for logging.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// ── Wire messages ─────────────────────────────────────────────────────────────

type sessionStartMessage struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	Mode      string `json:"mode"`
	Context   string `json:"context,omitempty"`
}

type audioChunkMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Audio     string `json:"audio"`
}

type serverEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Audio     string          `json:"audio"`
	Timestamp json.RawMessage `json:"timestamp"`
	Text      string          `json:"text"`
	Message   string          `json:"message"`
}

// parseTimestamp accepts Unix milliseconds or an RFC 3339 string. Anything
// else yields the zero time.
func parseTimestamp(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
		return time.Time{}
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms))
}

// ── conn ───────────────────────────────────────────────────────────────────────

type outbound struct {
	msg  any
	done chan error // nil for fire-and-forget
}

type conn struct {
	ws     *websocket.Conn
	logger *slog.Logger
	events chan s2s.Event
	out    chan outbound

	mu      sync.Mutex
	closed  bool
	closing chan struct{} // closed by Close before the close handshake

	ctx    context.Context
	cancel context.CancelFunc
}

// StartSession implements [s2s.Conn].
func (c *conn) StartSession(ctx context.Context, p s2s.StartParams) error {
	done := make(chan error, 1)
	msg := sessionStartMessage{
		Type:      "session-start",
		UserID:    p.UserID,
		SessionID: p.SessionID,
		Mode:      p.Mode,
		Context:   p.Context,
	}
	if !c.enqueue(outbound{msg: msg, done: done}, true) {
		return fmt.Errorf("realtime: start session: %w", s2s.ErrSendSuppressed)
	}
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("realtime: start session: %w", err)
		}
		c.logger.Info("realtime: session start sent", "client_session_id", p.SessionID, "mode", p.Mode)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("realtime: start session: %w", ctx.Err())
	case <-c.ctx.Done():
		return fmt.Errorf("realtime: start session: %w", s2s.ErrSendSuppressed)
	}
}

// SendAudioChunk implements [s2s.Conn].
func (c *conn) SendAudioChunk(sessionID string, chunk pcm.WireChunk) bool {
	if sessionID == "" {
		c.logger.Debug("realtime: no active session, audio chunk suppressed", "err", s2s.ErrSendSuppressed)
		return false
	}
	return c.enqueue(outbound{msg: audioChunkMessage{
		Type:      "audio-chunk",
		SessionID: sessionID,
		Audio:     string(chunk),
	}}, false)
}

// enqueue hands ob to the writer. With wait unset it never blocks and drops
// ob when the queue is full.
func (c *conn) enqueue(ob outbound, wait bool) bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.logger.Debug("realtime: connection closed, send suppressed", "err", s2s.ErrSendSuppressed)
		return false
	}

	if wait {
		select {
		case c.out <- ob:
			return true
		case <-c.ctx.Done():
			return false
		}
	}
	select {
	case c.out <- ob:
		return true
	default:
		c.logger.Warn("realtime: send queue full, dropping audio chunk", "queue", cap(c.out))
		return false
	}
}

// Events implements [s2s.Conn].
func (c *conn) Events() <-chan s2s.Event { return c.events }

// writeLoop is the single writer; it preserves enqueue order.
func (c *conn) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ob := <-c.out:
			err := wsjson.Write(c.ctx, c.ws, ob.msg)
			if ob.done != nil {
				ob.done <- err
			}
			if err != nil && c.ctx.Err() == nil {
				c.logger.Warn("realtime: write failed", "err", err)
			}
		}
	}
}

// readLoop decodes inbound frames. It owns the events channel and closes it
// on exit.
func (c *conn) readLoop() {
	defer close(c.events)

	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			if c.isClosed() {
				return
			}
			c.logger.Warn("realtime: connection lost", "err", err)
			c.deliver(s2s.Disconnected{Err: err})
			c.markClosed()
			return
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			c.logger.Warn("realtime: ignoring malformed event", "err", err)
			continue
		}

		switch evt.Type {
		case "session-ready":
			c.deliver(s2s.SessionReady{SessionID: evt.SessionID})
		case "assistant-audio-chunk":
			c.deliver(s2s.AudioChunk{
				SessionID: evt.SessionID,
				Audio:     pcm.WireChunk(evt.Audio),
				Timestamp: parseTimestamp(evt.Timestamp),
			})
		case "assistant-transcript-delta":
			c.deliver(s2s.TranscriptDelta{Text: evt.Text})
		case "error":
			c.deliver(s2s.ServiceError{Message: evt.Message})
		default:
			c.logger.Debug("realtime: ignoring event", "type", evt.Type)
		}
	}
}

func (c *conn) deliver(e s2s.Event) {
	select {
	case c.events <- e:
	case <-c.closing:
	case <-c.ctx.Done():
	}
}

func (c *conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// markClosed flags the connection as ended by the peer and stops the writer.
func (c *conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

// Close implements [s2s.Conn].
func (c *conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.cancel()
		return nil
	}
	c.closed = true
	close(c.closing)
	c.mu.Unlock()

	if err := c.ws.Close(websocket.StatusNormalClosure, "session ended"); err != nil {
		c.logger.Debug("realtime: close handshake incomplete", "err", err)
	}
	c.cancel()
	c.logger.Info("realtime: disconnected")
	return nil
}
