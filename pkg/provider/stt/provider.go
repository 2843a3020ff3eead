// Package stt defines live captioning of the local user's speech as an
// optional capability.
//
// A [Captioner] opens a streaming [Stream] that accepts raw PCM16 audio and
// emits [Caption] values. Not every deployment has a captioning backend; the
// [Unsupported] variant stands in for "no captions" so callers branch on
// [Supported] instead of probing the environment.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by [Unsupported] and by providers for features
// they lack.
var ErrNotSupported = errors.New("stt: not supported")

// StreamConfig describes the audio format and recognition hints for a new
// caption stream.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz of the PCM passed to SendAudio.
	SampleRate int

	// Channels is the number of audio channels. Always 1 in this pipeline.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string uses the provider default.
	Language string
}

// Stream is an open caption stream.
//
// Callers must call Close when done. All methods must be safe for concurrent
// use.
type Stream interface {
	// SendAudio delivers little-endian PCM16 mono audio. It must not block
	// the caller for long; providers buffer internally. Calling SendAudio
	// after Close returns an error.
	SendAudio(chunk []byte) error

	// Captions returns the channel of partial and final captions. It is
	// closed when the stream ends.
	Captions() <-chan Caption

	// Close flushes pending audio and releases resources. Calling Close more
	// than once is safe and returns nil.
	Close() error
}

// Captioner opens caption streams.
type Captioner interface {
	// StartStream opens a stream ready to accept audio immediately.
	StartStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// Unsupported is the [Captioner] used when no captioning backend is
// configured. StartStream always fails with [ErrNotSupported].
type Unsupported struct{}

// StartStream implements [Captioner].
func (Unsupported) StartStream(context.Context, StreamConfig) (Stream, error) {
	return nil, ErrNotSupported
}

var _ Captioner = Unsupported{}

// Supported reports whether c can produce captions.
func Supported(c Captioner) bool {
	if c == nil {
		return false
	}
	_, unsupported := c.(Unsupported)
	return !unsupported
}
