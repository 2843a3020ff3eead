// Package s2s defines the transport contract between the local speech
// pipeline and a remote conversational speech-to-speech service.
//
// A [Dialer] opens one persistent, bidirectional, event-typed [Conn]. Over it
// the client starts a session, streams microphone audio as base64 PCM16
// chunks, and receives the assistant's synthesized audio and incremental
// transcript as typed [Event] values.
//
// The bearer credential is presented once, at connect time, in the
// connection's authorization payload. It never appears in URLs or logs.
//
// Implementations must be safe for concurrent use.
package s2s

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/parley/pkg/audio/pcm"
)

var (
	// ErrConnection reports that the service could not be reached or the
	// connection was refused. Dialers never retry on their own.
	ErrConnection = errors.New("s2s: cannot connect to service")

	// ErrSendSuppressed marks an outbound event dropped because the
	// connection is closed or no session is active. It is expected during
	// start-up and teardown and is logged, not returned, by
	// [Conn.SendAudioChunk].
	ErrSendSuppressed = errors.New("s2s: send suppressed")
)

// StartParams is the payload of the session-start event.
type StartParams struct {
	// UserID identifies the learner to the service.
	UserID string

	// SessionID is the client-generated identifier. The service may replace
	// it with its own in [SessionReady].
	SessionID string

	// Mode is "practice" or "test".
	Mode string

	// Context is optional free-form scenario text for the conversation.
	Context string
}

// Conn is an open connection to the service.
type Conn interface {
	// StartSession sends the session-start event. The service answers
	// asynchronously with a [SessionReady] event.
	StartSession(ctx context.Context, p StartParams) error

	// SendAudioChunk queues one encoded frame for sending. Chunks are sent in
	// call order. It never blocks on the network and never fails: when the
	// connection is closed or sessionID is empty the chunk is dropped with a
	// diagnostic log and false is returned.
	SendAudioChunk(sessionID string, chunk pcm.WireChunk) bool

	// Events returns the channel of inbound events. The channel is closed
	// when the connection ends; if it ended for any reason other than Close,
	// a final [Disconnected] event is delivered first. Returns the same
	// channel on every call.
	Events() <-chan Event

	// Close disconnects. It is safe to call Close more than once or on a
	// connection the service already dropped; subsequent calls return nil.
	Close() error
}

// Dialer opens connections to the service.
type Dialer interface {
	// Dial connects and authenticates with credential. Errors wrap
	// [ErrConnection].
	Dial(ctx context.Context, credential string) (Conn, error)
}

// Event is an inbound message from the service. The concrete types are
// [SessionReady], [AudioChunk], [TranscriptDelta], [ServiceError] and
// [Disconnected].
type Event interface {
	// Kind returns the wire name of the event.
	Kind() string
}

// SessionReady confirms the session. SessionID is authoritative and
// supersedes any client-generated identifier for subsequent sends.
type SessionReady struct {
	SessionID string
}

// AudioChunk carries one fragment of synthesized assistant speech.
type AudioChunk struct {
	SessionID string
	Audio     pcm.WireChunk

	// Timestamp is the source timestamp assigned by the service. Playback
	// order follows arrival, not this value.
	Timestamp time.Time
}

// TranscriptDelta is an incremental piece of the assistant's reply text.
type TranscriptDelta struct {
	Text string
}

// ServiceError is an error reported in-band by the service. The connection
// stays open.
type ServiceError struct {
	Message string
}

// Disconnected is the last event on a connection that ended without Close.
type Disconnected struct {
	Err error
}

// Kind implements [Event].
func (SessionReady) Kind() string { return "session-ready" }

// Kind implements [Event].
func (AudioChunk) Kind() string { return "assistant-audio-chunk" }

// Kind implements [Event].
func (TranscriptDelta) Kind() string { return "assistant-transcript-delta" }

// Kind implements [Event].
func (ServiceError) Kind() string { return "error" }

// Kind implements [Event].
func (Disconnected) Kind() string { return "disconnect" }
