// Package mock provides test doubles for the s2s package interfaces.
//
// Use Dialer to verify Dial calls and hand out a controlled Conn. Use Conn to
// inject inbound events and inspect what the pipeline sent.
//
// Example:
//
//	conn := mock.NewConn()
//	d := &mock.Dialer{Conn: conn}
//	c, _ := d.Dial(ctx, "token")
//	conn.Emit(s2s.SessionReady{SessionID: "srv-1"})
//	sent := conn.Sent()
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/parley/pkg/audio/pcm"
	"github.com/MrWong99/parley/pkg/provider/s2s"
)

// DialCall records a single invocation of Dialer.Dial.
type DialCall struct {
	// Credential is the credential passed to Dial.
	Credential string
}

// Dialer is a mock implementation of [s2s.Dialer].
type Dialer struct {
	mu sync.Mutex

	// Conn is returned by Dial. If nil or already closed, Dial stores and
	// returns a new [Conn].
	Conn *Conn

	// Configure, if non-nil, is called on every Conn that Dial creates, for
	// example to install an OnStart hook.
	Configure func(c *Conn)

	// DialErr, if non-nil, is returned as the error from Dial.
	DialErr error

	// DialCalls records every call to Dial in order.
	DialCalls []DialCall
}

// Dial records the call and returns Conn, DialErr.
func (d *Dialer) Dial(_ context.Context, credential string) (s2s.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DialCalls = append(d.DialCalls, DialCall{Credential: credential})
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	if d.Conn == nil || d.Conn.Closed() {
		d.Conn = NewConn()
		if d.Configure != nil {
			d.Configure(d.Conn)
		}
	}
	return d.Conn, nil
}

// LastConn returns the Conn most recently handed out. Thread-safe.
func (d *Dialer) LastConn() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Conn
}

// DialCount returns the number of Dial calls. Thread-safe.
func (d *Dialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.DialCalls)
}

var _ s2s.Dialer = (*Dialer)(nil)

// SentChunk records one accepted SendAudioChunk call.
type SentChunk struct {
	SessionID string
	Chunk     pcm.WireChunk
}

// Conn is a mock implementation of [s2s.Conn].
type Conn struct {
	mu     sync.Mutex
	events chan s2s.Event
	closed bool

	// StartErr, if non-nil, is returned by StartSession.
	StartErr error

	// OnStart, if non-nil, is called after a successful StartSession, for
	// example to emit a SessionReady.
	OnStart func(p s2s.StartParams)

	// StartCalls records every StartSession call in order.
	StartCalls []s2s.StartParams

	// SentChunks records every accepted SendAudioChunk call in order.
	SentChunks []SentChunk

	// SuppressedCount is the number of SendAudioChunk calls that were dropped.
	SuppressedCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewConn returns an open connection with a buffered events channel.
func NewConn() *Conn {
	return &Conn{events: make(chan s2s.Event, 64)}
}

// StartSession records the call and returns StartErr.
func (c *Conn) StartSession(_ context.Context, p s2s.StartParams) error {
	c.mu.Lock()
	c.StartCalls = append(c.StartCalls, p)
	err := c.StartErr
	if c.closed && err == nil {
		err = s2s.ErrSendSuppressed
	}
	onStart := c.OnStart
	c.mu.Unlock()

	if err == nil && onStart != nil {
		onStart(p)
	}
	return err
}

// SendAudioChunk records the chunk unless the connection is closed or
// sessionID is empty.
func (c *Conn) SendAudioChunk(sessionID string, chunk pcm.WireChunk) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || sessionID == "" {
		c.SuppressedCount++
		return false
	}
	c.SentChunks = append(c.SentChunks, SentChunk{SessionID: sessionID, Chunk: chunk})
	return true
}

// Events implements [s2s.Conn].
func (c *Conn) Events() <-chan s2s.Event { return c.events }

// Emit delivers e as if received from the service. It reports false if the
// connection is closed.
func (c *Conn) Emit(e s2s.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events <- e
	return true
}

// Drop simulates the service dropping the connection: a Disconnected event
// is delivered and the events channel closed.
func (c *Conn) Drop(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.events <- s2s.Disconnected{Err: err}
	close(c.events)
}

// Close records the call and closes the events channel once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCallCount++
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// Sent returns a copy of the accepted chunks. Thread-safe.
func (c *Conn) Sent() []SentChunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentChunk, len(c.SentChunks))
	copy(out, c.SentChunks)
	return out
}

// Suppressed returns SuppressedCount. Thread-safe.
func (c *Conn) Suppressed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.SuppressedCount
}

// Closed reports whether Close or Drop has been called. Thread-safe.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Starts returns a copy of StartCalls. Thread-safe.
func (c *Conn) Starts() []s2s.StartParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]s2s.StartParams, len(c.StartCalls))
	copy(out, c.StartCalls)
	return out
}

var _ s2s.Conn = (*Conn)(nil)
