package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// stamp identifies one version of the config file on disk.
type stamp struct {
	mtime time.Time
	size  int64
	sum   [sha256.Size]byte
}

// Watcher keeps the latest valid config of a file. [Watcher.Run] polls the
// file and [Watcher.Reload] forces a read; both hand changes to the callback
// as a [ConfigDiff].
type Watcher struct {
	path     string
	interval time.Duration
	clock    clock.WithTicker
	logger   *slog.Logger
	onChange func(cfg *Config, d ConfigDiff)

	// reloadMu serializes reads so callbacks arrive in file order.
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	last    stamp
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithClock sets the clock driving the poll ticker.
func WithClock(c clock.WithTicker) WatcherOption {
	return func(w *Watcher) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithWatcherLogger sets the logger. Defaults to [slog.Default].
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher loads path once and returns a watcher holding it. onChange
// receives every later config that differs from the previous one.
func NewWatcher(path string, onChange func(cfg *Config, d ConfigDiff), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		clock:    clock.RealClock{},
		logger:   slog.Default(),
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, st, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.last = cfg, st
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls the file until ctx is done. A file whose mtime and size are
// unchanged is not read. Run always returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
		}

		info, err := os.Stat(w.path)
		if err != nil {
			w.logger.Warn("config file unreadable", "path", w.path, "err", err)
			continue
		}
		w.mu.Lock()
		same := info.ModTime().Equal(w.last.mtime) && info.Size() == w.last.size
		w.mu.Unlock()
		if same {
			continue
		}
		if _, err := w.Reload(); err != nil {
			w.logger.Warn("config reload rejected, keeping previous", "path", w.path, "err", err)
			// Wait for the next edit instead of re-reading every tick.
			w.mu.Lock()
			w.last.mtime, w.last.size = info.ModTime(), info.Size()
			w.mu.Unlock()
		}
	}
}

// Reload reads the file now. An invalid file returns an error and the
// current config stays. Content identical to the last read, or a config
// that parses to the same values, yields an empty diff and no callback.
func (w *Watcher) Reload() (ConfigDiff, error) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	cfg, st, err := w.read()
	if err != nil {
		return ConfigDiff{}, err
	}

	w.mu.Lock()
	old := w.current
	unchanged := st.sum == w.last.sum
	w.last = st
	if unchanged {
		w.mu.Unlock()
		return ConfigDiff{}, nil
	}
	w.current = cfg
	w.mu.Unlock()

	d := Diff(old, cfg)
	if !d.Changed() {
		return d, nil
	}
	w.logger.Info("config reloaded",
		"path", w.path,
		"log_level_changed", d.LogLevelChanged,
		"vad_threshold_changed", d.VADThresholdChanged,
	)
	if len(d.RestartRequired) > 0 {
		w.logger.Warn("config changes take effect after restart", "keys", d.RestartRequired)
	}
	if w.onChange != nil {
		w.onChange(cfg, d)
	}
	return d, nil
}

func (w *Watcher) read() (*Config, stamp, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, stamp{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, stamp{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, stamp{}, err
	}
	return cfg, stamp{mtime: info.ModTime(), size: info.Size(), sum: sha256.Sum256(data)}, nil
}
