package pcm_test

import (
	"encoding/base64"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/MrWong99/parley/pkg/audio/pcm"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	in := make([]float32, 0, 2001)
	for i := -1000; i <= 1000; i++ {
		in = append(in, float32(i)/1000)
	}

	buf, err := pcm.Decode(pcm.Encode(in), 24000)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(buf.Samples) != len(in) {
		t.Fatalf("got %d samples, want %d", len(buf.Samples), len(in))
	}

	// Positive samples are scaled by 32767 and normalized by 32768, which
	// costs at most one extra step near +1.
	const step = 1.0 / 32768
	for i, want := range in {
		got := buf.Samples[i]
		tol := step
		if want > 0 {
			tol = 2 * step
		}
		if diff := math.Abs(float64(got - want)); diff > tol+1e-9 {
			t.Errorf("sample %d: got %v, want %v (diff %v)", i, got, want, diff)
		}
	}
}

func TestEncode_AsymmetricScaling(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   float32
		want int16
	}{
		{name: "negative full scale", in: -1, want: -32768},
		{name: "positive full scale", in: 1, want: 32767},
		{name: "clamped above", in: 3.5, want: 32767},
		{name: "clamped below", in: -2, want: -32768},
		{name: "half negative", in: -0.5, want: -16384},
		{name: "half positive", in: 0.5, want: 16383},
		{name: "zero", in: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw, err := base64.StdEncoding.DecodeString(string(pcm.Encode([]float32{tt.in})))
			if err != nil {
				t.Fatalf("invalid base64: %v", err)
			}
			if len(raw) != 2 {
				t.Fatalf("got %d bytes, want 2", len(raw))
			}
			got := int16(uint16(raw[0]) | uint16(raw[1])<<8)
			if got != tt.want {
				t.Errorf("Encode(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecode_OddLength(t *testing.T) {
	t.Parallel()

	// Two samples (0x4000 = 16384, 0xC000 = -16384) plus a dangling byte.
	raw := []byte{0x00, 0x40, 0x00, 0xC0, 0x7F}
	chunk := pcm.WireChunk(base64.StdEncoding.EncodeToString(raw))

	buf, err := pcm.Decode(chunk, 24000)
	if err != nil {
		t.Fatalf("Decode returned error for odd-length chunk: %v", err)
	}
	if len(buf.Samples) != len(raw)/2 {
		t.Fatalf("got %d samples, want %d", len(buf.Samples), len(raw)/2)
	}
	if buf.Samples[0] != 0.5 || buf.Samples[1] != -0.5 {
		t.Errorf("samples = %v, want [0.5 -0.5]", buf.Samples)
	}
}

func TestDecode_UsesGivenRate(t *testing.T) {
	t.Parallel()

	chunk := pcm.Encode(make([]float32, 24000))
	buf, err := pcm.Decode(chunk, 24000)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.SampleRate != 24000 {
		t.Errorf("SampleRate = %d, want 24000", buf.SampleRate)
	}
	if buf.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", buf.Duration())
	}
}

func TestDecode_InvalidBase64(t *testing.T) {
	t.Parallel()

	_, err := pcm.Decode("not base64!!", 24000)
	if !errors.Is(err, pcm.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}

func TestDecodeOrSkip(t *testing.T) {
	t.Parallel()

	if _, ok := pcm.DecodeOrSkip("%%%", 24000, nil); ok {
		t.Error("DecodeOrSkip accepted invalid input")
	}
	buf, ok := pcm.DecodeOrSkip(pcm.Encode([]float32{0, 0}), 24000, nil)
	if !ok || len(buf.Samples) != 2 {
		t.Errorf("DecodeOrSkip = (%v, %v), want 2 samples", buf, ok)
	}
}

func TestDecode_Empty(t *testing.T) {
	t.Parallel()

	buf, err := pcm.Decode("", 24000)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(buf.Samples) != 0 || buf.Duration() != 0 {
		t.Errorf("got %d samples, duration %v", len(buf.Samples), buf.Duration())
	}
}
