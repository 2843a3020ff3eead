package audio

import "time"

// Reference rates and sizes for the practice pipeline. Capture and playback
// rates are independent: the microphone is sampled at [CaptureRate] while the
// assistant's speech arrives at [PlaybackRate].
const (
	// CaptureRate is the microphone sample rate in Hz.
	CaptureRate = 16000

	// PlaybackRate is the sample rate in Hz of decoded assistant audio.
	PlaybackRate = 24000

	// FrameSize is the number of samples per captured frame (256 ms at 16 kHz).
	FrameSize = 4096
)

// AudioFrame is a fixed-length block of normalized mono samples produced by a
// [FrameProcessor]. Samples are in [-1.0, 1.0].
//
// A frame is immutable once emitted. Each emitted frame owns its Samples slice;
// it never aliases the processor's accumulation buffer.
type AudioFrame struct {
	// Samples holds exactly one frame's worth of mono float32 samples.
	Samples []float32

	// SampleRate in Hz of the capture stream that produced the frame.
	SampleRate int

	// Seq is the zero-based index of the frame within its stream.
	Seq uint64

	// Timestamp is the stream offset of the first sample in the frame.
	Timestamp time.Duration
}

// Duration returns the playback length of the frame.
func (f AudioFrame) Duration() time.Duration {
	return SamplesDuration(len(f.Samples), f.SampleRate)
}

// SamplesDuration converts a sample count at rate Hz into a duration. It
// returns zero for a non-positive rate.
func SamplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}
