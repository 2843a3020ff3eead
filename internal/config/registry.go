package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/s2s"
	"github.com/MrWong99/parley/pkg/provider/stt"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// AudioBackend pairs the capture and playback devices of one audio backend.
type AudioBackend struct {
	Microphone audio.Microphone
	Speaker    audio.Speaker
}

// Registry maps backend names to their constructors for each pluggable
// component. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	transport map[string]func(*Config) (s2s.Dialer, error)
	captions  map[string]func(*Config) (stt.Captioner, error)
	audio     map[string]func(*Config) (AudioBackend, error)
}

// NewRegistry returns a registry with the "none" captioner pre-registered.
func NewRegistry() *Registry {
	r := &Registry{
		transport: make(map[string]func(*Config) (s2s.Dialer, error)),
		captions:  make(map[string]func(*Config) (stt.Captioner, error)),
		audio:     make(map[string]func(*Config) (AudioBackend, error)),
	}
	r.captions[CaptionsNone] = func(*Config) (stt.Captioner, error) { return stt.Unsupported{}, nil }
	return r
}

// RegisterTransport registers a dialer factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterTransport(name string, factory func(*Config) (s2s.Dialer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transport[name] = factory
}

// RegisterCaptions registers a captioner factory under name.
func (r *Registry) RegisterCaptions(name string, factory func(*Config) (stt.Captioner, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captions[name] = factory
}

// RegisterAudio registers an audio backend factory under name.
func (r *Registry) RegisterAudio(name string, factory func(*Config) (AudioBackend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[name] = factory
}

// CreateTransport instantiates the dialer named by cfg.Service.Transport.
// Returns [ErrBackendNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateTransport(cfg *Config) (s2s.Dialer, error) {
	r.mu.RLock()
	factory, ok := r.transport[cfg.Service.Transport]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: transport/%q", ErrBackendNotRegistered, cfg.Service.Transport)
	}
	return factory(cfg)
}

// CreateCaptions instantiates the captioner named by cfg.Captions.Provider.
// An empty name resolves to "none".
func (r *Registry) CreateCaptions(cfg *Config) (stt.Captioner, error) {
	name := cfg.Captions.Provider
	if name == "" {
		name = CaptionsNone
	}
	r.mu.RLock()
	factory, ok := r.captions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: captions/%q", ErrBackendNotRegistered, name)
	}
	return factory(cfg)
}

// CreateAudio instantiates the audio backend named by cfg.Audio.Backend.
func (r *Registry) CreateAudio(cfg *Config) (AudioBackend, error) {
	r.mu.RLock()
	factory, ok := r.audio[cfg.Audio.Backend]
	r.mu.RUnlock()
	if !ok {
		return AudioBackend{}, fmt.Errorf("%w: audio/%q", ErrBackendNotRegistered, cfg.Audio.Backend)
	}
	return factory(cfg)
}
