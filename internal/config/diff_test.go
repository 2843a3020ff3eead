package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/parley/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		VAD:    config.VADConfig{Threshold: 0.01},
	}
	d := config.Diff(cfg, cfg)
	if d.Changed() {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		VAD:    config.VADConfig{Threshold: 0.01},
	}
	new := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogDebug},
		VAD:    config.VADConfig{Threshold: 0.05},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %v/%q", d.LogLevelChanged, d.NewLogLevel)
	}
	if !d.VADThresholdChanged || d.NewVADThreshold != 0.05 {
		t.Errorf("threshold diff = %v/%v", d.VADThresholdChanged, d.NewVADThreshold)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	new := &config.Config{
		Server:  config.ServerConfig{ListenAddr: ":1"},
		Service: config.ServiceConfig{URL: "ws://other"},
		Audio:   config.AudioConfig{FrameSize: 1024},
		History: config.HistoryConfig{PostgresDSN: "postgres://x"},
	}

	d := config.Diff(old, new)
	if !d.Changed() {
		t.Fatal("expected changes")
	}
	for _, key := range []string{"server.listen_addr", "service", "audio", "history"} {
		if !slices.Contains(d.RestartRequired, key) {
			t.Errorf("RestartRequired %v missing %q", d.RestartRequired, key)
		}
	}
	if slices.Contains(d.RestartRequired, "captions") {
		t.Errorf("captions unchanged but reported: %v", d.RestartRequired)
	}
}
