// Package malgo implements the audio device boundary on top of miniaudio via
// github.com/gen2brain/malgo.
//
// A [Backend] owns one miniaudio context. Its [Microphone] opens a mono
// float32 capture device and its [Speaker] opens a mono float32 playback
// device whose render callback mixes scheduled buffers on a sample-accurate
// timeline. Opening fails with [audio.ErrDevice] when the device is missing
// or access is denied.
package malgo

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/audio/pcm"
)

// captureBuffer is the number of sample blocks the capture channel holds
// before the device callback starts dropping.
const captureBuffer = 64

// periodMillis is the device period requested from miniaudio.
const periodMillis = 20

var errSinkClosed = errors.New("malgo: sink closed")

// Backend owns a miniaudio context shared by its devices.
type Backend struct {
	ctx    *malgo.AllocatedContext
	logger *slog.Logger

	closeOnce sync.Once
}

// Option configures a [Backend].
type Option func(*Backend)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// New initialises a miniaudio context.
func New(opts ...Option) (*Backend, error) {
	b := &Backend{logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		b.logger.Debug("malgo: " + msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: init audio context: %w", audio.ErrDevice, err)
	}
	b.ctx = ctx
	return b, nil
}

// Microphone returns the default capture device.
func (b *Backend) Microphone() *Microphone { return &Microphone{b: b} }

// Speaker returns the default playback device.
func (b *Backend) Speaker() *Speaker { return &Speaker{b: b} }

// Close releases the context. Devices must be closed first. Close is
// idempotent.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.ctx.Uninit()
		b.ctx.Free()
	})
	return err
}

// startDevice initialises and starts a device. Opening can block on slow
// drivers, so it returns as soon as ctx ends and a device that comes up
// later is stopped and released in the background.
func (b *Backend) startDevice(ctx context.Context, kind string, cfg malgo.DeviceConfig, onData malgo.DataProc) (*malgo.Device, error) {
	return awaitOpen(ctx, func() (*malgo.Device, error) {
		dev, err := malgo.InitDevice(b.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
		if err != nil {
			return nil, fmt.Errorf("%w: init %s device: %w", audio.ErrDevice, kind, err)
		}
		if err := dev.Start(); err != nil {
			dev.Uninit()
			return nil, fmt.Errorf("%w: start %s device: %w", audio.ErrDevice, kind, err)
		}
		return dev, nil
	}, func(dev *malgo.Device) {
		_ = dev.Stop()
		dev.Uninit()
		b.logger.Info("released device opened after cancellation", "device", kind)
	})
}

// ─── Capture ─────────────────────────────────────────────────────────────────

// Microphone implements [audio.Microphone].
type Microphone struct {
	b *Backend
}

var _ audio.Microphone = (*Microphone)(nil)

// Open implements [audio.Microphone].
func (m *Microphone) Open(ctx context.Context, sampleRate int) (audio.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInMilliseconds = periodMillis
	cfg.Alsa.NoMMap = 1

	s := &captureStream{
		ch:     make(chan []float32, captureBuffer),
		logger: m.b.logger,
	}
	dev, err := m.b.startDevice(ctx, "capture", cfg, s.onData)
	if err != nil {
		return nil, err
	}
	s.dev = dev
	m.b.logger.Info("microphone opened", "sample_rate", sampleRate)
	return s, nil
}

type captureStream struct {
	dev    *malgo.Device
	logger *slog.Logger

	mu      sync.Mutex
	ch      chan []float32
	closed  bool
	dropped int
}

var _ audio.CaptureStream = (*captureStream)(nil)

func (s *captureStream) onData(_, in []byte, _ uint32) {
	samples := decodeF32(in)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- samples:
	default:
		s.dropped++
		if s.dropped == 1 || s.dropped%100 == 0 {
			s.logger.Warn("malgo: capture consumer too slow, dropping audio", "dropped", s.dropped)
		}
	}
}

func (s *captureStream) Samples() <-chan []float32 { return s.ch }

func (s *captureStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	err := s.dev.Stop()
	s.dev.Uninit()
	if err != nil {
		return fmt.Errorf("malgo: stop capture device: %w", err)
	}
	return nil
}

// ─── Playback ────────────────────────────────────────────────────────────────

// Speaker implements [audio.Speaker].
type Speaker struct {
	b *Backend
}

var _ audio.Speaker = (*Speaker)(nil)

// Open implements [audio.Speaker].
func (sp *Speaker) Open(ctx context.Context, sampleRate int) (audio.Sink, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(sampleRate)
	cfg.PeriodSizeInMilliseconds = periodMillis
	cfg.Alsa.NoMMap = 1

	s := &Sink{tl: newTimeline(sampleRate)}
	dev, err := sp.b.startDevice(ctx, "playback", cfg, s.onData)
	if err != nil {
		return nil, err
	}
	s.dev = dev
	sp.b.logger.Info("speaker opened", "sample_rate", sampleRate)
	return s, nil
}

// Sink is a playback device. Its clock advances as the device renders.
type Sink struct {
	dev *malgo.Device
	tl  *timeline

	scratch []float32

	closeOnce sync.Once
}

var _ audio.Sink = (*Sink)(nil)

func (s *Sink) onData(out, _ []byte, frames uint32) {
	if cap(s.scratch) < int(frames) {
		s.scratch = make([]float32, frames)
	}
	block := s.scratch[:frames]
	ended := s.tl.render(block)
	encodeF32(out, block)
	for _, fn := range ended {
		fn()
	}
}

// Now implements [audio.Sink].
func (s *Sink) Now() time.Duration { return s.tl.now() }

// Schedule implements [audio.Sink].
func (s *Sink) Schedule(buf pcm.Buffer, at time.Duration, onEnded func()) (audio.Voice, error) {
	return s.tl.schedule(buf, at, onEnded)
}

// Close implements [audio.Sink].
func (s *Sink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.tl.close()
		if stopErr := s.dev.Stop(); stopErr != nil {
			err = fmt.Errorf("malgo: stop playback device: %w", stopErr)
		}
		s.dev.Uninit()
	})
	return err
}

// ─── Sample conversion ───────────────────────────────────────────────────────

// decodeF32 converts little-endian float32 device bytes to samples.
func decodeF32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// encodeF32 writes samples as little-endian float32 into b.
func encodeF32(b []byte, samples []float32) {
	for i, s := range samples {
		if (i+1)*4 > len(b) {
			return
		}
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(s))
	}
}
