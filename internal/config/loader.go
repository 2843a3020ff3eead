package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/parley/internal/session"
)

// ValidBackendNames lists known backend names per kind.
// Used by [Validate] to warn about unrecognised names.
var ValidBackendNames = map[string][]string{
	"transport": {"realtime", "mock"},
	"audio":     {"malgo", "mock"},
	"captions":  {CaptionsNone, "deepgram", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Unknown keys are rejected. An empty document yields the
// defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Service
	if cfg.Service.URL == "" {
		errs = append(errs, errors.New("service.url is required"))
	} else if u, err := url.Parse(cfg.Service.URL); err != nil {
		errs = append(errs, fmt.Errorf("service.url: %w", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("service.url scheme %q is invalid; valid values: ws, wss", u.Scheme))
	}
	if cfg.Service.UserID == "" {
		slog.Warn("service.user_id is empty; sessions will be started anonymously")
	}

	// Audio
	if cfg.Audio.CaptureRate < 0 {
		errs = append(errs, fmt.Errorf("audio.capture_rate %d must be positive", cfg.Audio.CaptureRate))
	}
	if cfg.Audio.PlaybackRate < 0 {
		errs = append(errs, fmt.Errorf("audio.playback_rate %d must be positive", cfg.Audio.PlaybackRate))
	}
	if cfg.Audio.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}

	// VAD
	if cfg.VAD.Threshold < 0 || cfg.VAD.Threshold > 1 {
		errs = append(errs, fmt.Errorf("vad.threshold %.4f is out of range [0, 1]", cfg.VAD.Threshold))
	}

	// Session
	if _, err := session.ParseMode(cfg.Session.Mode); err != nil {
		errs = append(errs, fmt.Errorf("session.mode: %w", err))
	}
	if cfg.Session.TestDuration < 0 {
		errs = append(errs, fmt.Errorf("session.test_duration %s must be positive", cfg.Session.TestDuration))
	}

	// Captions
	if cfg.Captions.Provider != "" && cfg.Captions.Provider != CaptionsNone &&
		cfg.Captions.Provider != "mock" && cfg.Captions.APIKey == "" {
		errs = append(errs, fmt.Errorf("captions.api_key is required for provider %q", cfg.Captions.Provider))
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures %d must be positive", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("resilience.reset_timeout %s must be positive", cfg.Resilience.ResetTimeout))
	}

	validateBackendName("transport", cfg.Service.Transport)
	validateBackendName("audio", cfg.Audio.Backend)
	validateBackendName("captions", cfg.Captions.Provider)

	if cfg.History.PostgresDSN == "" && cfg.History.FilePath == "" {
		slog.Debug("history.postgres_dsn is empty; session history is kept in memory")
	}

	return errors.Join(errs...)
}

// validateBackendName logs a warning if name is non-empty and not found in
// the [ValidBackendNames] list for the given kind.
func validateBackendName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidBackendNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown backend name; may be a typo or a custom registration",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
