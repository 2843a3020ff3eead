// Package mock provides test doubles for the stt package interfaces.
//
// Use Captioner to verify that streams are started with the expected
// StreamConfig. Use Stream to feed controlled captions and inspect which
// audio chunks were delivered.
//
// Example:
//
//	s := mock.NewStream()
//	c := &mock.Captioner{Stream: s}
//	st, _ := c.StartStream(ctx, cfg)
//	s.Emit(stt.Caption{Text: "hello", IsFinal: true})
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/parley/pkg/provider/stt"
)

// StartStreamCall records a single invocation of Captioner.StartStream.
type StartStreamCall struct {
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Captioner is a mock implementation of [stt.Captioner].
type Captioner struct {
	mu sync.Mutex

	// Stream is returned by StartStream. If nil, a new [Stream] is created.
	Stream *Stream

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream in order.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns Stream, StartStreamErr.
func (c *Captioner) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartStreamCalls = append(c.StartStreamCalls, StartStreamCall{Cfg: cfg})
	if c.StartStreamErr != nil {
		return nil, c.StartStreamErr
	}
	if c.Stream == nil {
		c.Stream = NewStream()
	}
	return c.Stream, nil
}

var _ stt.Captioner = (*Captioner)(nil)

// Stream is a mock implementation of [stt.Stream].
type Stream struct {
	mu       sync.Mutex
	captions chan stt.Caption
	closed   bool

	// SendAudioErr, if non-nil, is returned by SendAudio.
	SendAudioErr error

	// AudioChunks records every chunk passed to SendAudio.
	AudioChunks [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewStream returns an open stream.
func NewStream() *Stream {
	return &Stream{captions: make(chan stt.Caption, 16)}
}

// SendAudio records a copy of chunk.
func (s *Stream) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock stt: stream closed")
	}
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.AudioChunks = append(s.AudioChunks, cp)
	return s.SendAudioErr
}

// Captions implements [stt.Stream].
func (s *Stream) Captions() <-chan stt.Caption { return s.captions }

// Emit delivers c on the caption channel. It reports false after Close.
func (s *Stream) Emit(c stt.Caption) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.captions <- c
	return true
}

// Close records the call and closes the caption channel once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if !s.closed {
		s.closed = true
		close(s.captions)
	}
	return nil
}

// ChunkCount returns the number of chunks received. Thread-safe.
func (s *Stream) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.AudioChunks)
}

// Closed reports whether Close was called. Thread-safe.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ stt.Stream = (*Stream)(nil)
