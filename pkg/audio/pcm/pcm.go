// Package pcm converts between normalized float32 samples and the 16-bit
// little-endian PCM wire format, base64-encoded for transport.
//
// All functions are pure and safe for concurrent use.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrDecode reports an inbound chunk that could not be turned into samples.
var ErrDecode = errors.New("pcm: malformed audio chunk")

// WireChunk is base64 (standard alphabet, padded) of little-endian signed
// 16-bit mono PCM.
type WireChunk string

// Buffer is a decoded mono audio buffer.
type Buffer struct {
	// Samples are normalized to [-1.0, 1.0].
	Samples []float32

	// SampleRate of Samples in Hz.
	SampleRate int
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(b.Samples)) * int64(time.Second) / int64(b.SampleRate))
}

// Encode quantizes samples to PCM16 and returns the base64 wire form.
//
// Each sample is clamped to [-1, 1] and scaled by 32768 when negative and
// 32767 otherwise, so -1.0 maps to -32768 and +1.0 to 32767.
func Encode(samples []float32) WireChunk {
	return WireChunk(base64.StdEncoding.EncodeToString(Bytes(samples)))
}

// Bytes quantizes samples to little-endian PCM16 bytes using the same scaling
// as [Encode].
func Bytes(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(quantize(s)))
	}
	return out
}

// Decode turns a wire chunk into a mono [Buffer] at sampleRate Hz. sampleRate
// is the playback rate of the stream the chunk belongs to and is used as-is.
//
// An odd byte count is tolerated: the trailing byte is dropped with a warning.
// Decode fails only when chunk is not valid base64; the error wraps
// [ErrDecode].
func Decode(chunk WireChunk, sampleRate int) (Buffer, error) {
	raw, err := base64.StdEncoding.DecodeString(string(chunk))
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if len(raw)%2 != 0 {
		slog.Warn("pcm: odd byte count in audio chunk, truncating last byte", "bytes", len(raw))
		raw = raw[:len(raw)-1]
	}
	return Buffer{Samples: Samples(raw), SampleRate: sampleRate}, nil
}

// DecodeOrSkip is [Decode] for the hot receive path: on failure it logs the
// error and returns ok=false instead of propagating, so one malformed chunk
// never interrupts playback.
func DecodeOrSkip(chunk WireChunk, sampleRate int, logger *slog.Logger) (Buffer, bool) {
	buf, err := Decode(chunk, sampleRate)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("pcm: dropping undecodable audio chunk", "err", err, "len", len(chunk))
		return Buffer{}, false
	}
	return buf, true
}

// Samples converts little-endian PCM16 bytes to normalized float32 samples.
// A trailing odd byte is ignored.
func Samples(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		v := float32(int16(binary.LittleEndian.Uint16(b[i*2:]))) / 32768
		out[i] = clamp(v)
	}
	return out
}

func quantize(s float32) int16 {
	s = clamp(s)
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}

func clamp(s float32) float32 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	case s != s: // NaN
		return 0
	}
	return s
}
