// Package audio defines the device boundary and frame types of the parley
// speech-practice pipeline.
//
// The primary abstractions are:
//
//   - [Microphone] opens a [CaptureStream] delivering raw mono float32 samples.
//   - [FrameProcessor] slices that stream into fixed-size [AudioFrame] values.
//   - [Speaker] opens a [Sink], the playback clock that the scheduler in
//     package playback places decoded buffers on.
//
// Implementations of the device interfaces are provided by adapter packages
// (audio/malgo for real hardware, audio/mock for tests). The interfaces are
// intentionally narrow so the lifecycle manager stays decoupled from device
// details.
package audio

import (
	"context"
	"errors"
	"time"

	"github.com/MrWong99/parley/pkg/audio/pcm"
)

// ErrDevice reports that an audio device was denied, missing or failed to
// start. Adapters wrap it so callers can match with [errors.Is].
var ErrDevice = errors.New("audio device unavailable")

// CaptureStream is an open microphone.
//
// Samples delivers blocks of mono float32 samples in capture order. Block
// sizes are arbitrary; use a [FrameProcessor] to obtain fixed-size frames.
// The channel is closed when the stream is closed or the device stops.
//
// Implementations must be safe for concurrent use.
type CaptureStream interface {
	// Samples returns the receive-only sample channel. It returns the same
	// channel on every call.
	Samples() <-chan []float32

	// Close stops the device and releases it. It is safe to call Close more
	// than once; subsequent calls are no-ops and return nil.
	Close() error
}

// Microphone acquires exclusive access to a capture device.
type Microphone interface {
	// Open starts capturing at sampleRate Hz mono. It fails if the device is
	// denied or unavailable. ctx governs the acquisition only; the returned
	// stream lives until closed.
	Open(ctx context.Context, sampleRate int) (CaptureStream, error)
}

// Voice is a buffer placed on a [Sink]'s timeline.
type Voice interface {
	// Stop silences the voice immediately. After Stop returns the voice's
	// onEnded callback is never invoked. Stop is idempotent.
	Stop()
}

// Sink is a playback device with a monotonically advancing clock.
//
// Implementations must be safe for concurrent use. onEnded callbacks may be
// invoked from the device's render goroutine and must not block.
type Sink interface {
	// Now reports the current position of the playback clock.
	Now() time.Duration

	// Schedule places buf on the timeline so that its first sample plays at
	// clock time at. If at lies in the past, playback starts immediately.
	// onEnded is invoked once after the last sample has been rendered.
	Schedule(buf pcm.Buffer, at time.Duration, onEnded func()) (Voice, error)

	// Close stops all voices and releases the device. Close is idempotent.
	Close() error
}

// Speaker acquires exclusive access to a playback device.
type Speaker interface {
	// Open starts a playback device at sampleRate Hz mono.
	Open(ctx context.Context, sampleRate int) (Sink, error)
}
