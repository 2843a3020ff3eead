package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/MrWong99/parley/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
service:
  url: ws://localhost:9000/ws
vad:
  threshold: 0.01
`

const watcherUpdatedYAML = `
server:
  log_level: debug
service:
  url: ws://localhost:9000/ws
vad:
  threshold: 0.03
`

// Same values as watcherValidYAML with a comment added.
const watcherCommentedYAML = `
# tuned for the lab microphone
server:
  log_level: info
service:
  url: ws://localhost:9000/ws
vad:
  threshold: 0.01
`

const watcherRestartYAML = `
server:
  log_level: info
  listen_addr: ":9090"
service:
  url: ws://localhost:9000/ws
vad:
  threshold: 0.01
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

// bumpMtime moves the file's mtime forward so a poll sees an edit even on
// filesystems with coarse timestamps.
func bumpMtime(t *testing.T, path string, by time.Duration) {
	t.Helper()
	ts := time.Now().Add(by)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("touch %q: %v", path, err)
	}
}

type change struct {
	cfg  *config.Config
	diff config.ConfigDiff
}

type recorder struct {
	mu      sync.Mutex
	changes []change
	ch      chan struct{}
}

func newRecorder() *recorder { return &recorder{ch: make(chan struct{}, 8)} }

func (r *recorder) onChange(cfg *config.Config, d config.ConfigDiff) {
	r.mu.Lock()
	r.changes = append(r.changes, change{cfg, d})
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func newWatcher(t *testing.T, content string, onChange func(*config.Config, config.ConfigDiff)) (*config.Watcher, string) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, content)

	w, err := config.NewWatcher(cfgPath, onChange)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	return w, cfgPath
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _ := newWatcher(t, watcherValidYAML, nil)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo || cfg.VAD.Threshold != 0.01 {
		t.Errorf("initial config = %+v", cfg)
	}
}

func TestWatcher_RunReloadsOnTick(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)
	clk := testingclock.NewFakeClock(time.Now())
	w, err := config.NewWatcher(cfgPath, rec.onChange, config.WithInterval(time.Second), config.WithClock(clk))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, cfgPath, watcherUpdatedYAML)
	bumpMtime(t, cfgPath, time.Second)

	for !clk.HasWaiters() {
		time.Sleep(time.Millisecond)
	}
	clk.Step(time.Second)

	select {
	case <-rec.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	rec.mu.Lock()
	got := rec.changes[0]
	rec.mu.Unlock()
	if !got.diff.LogLevelChanged || got.diff.NewLogLevel != config.LogDebug {
		t.Errorf("diff log level = %+v", got.diff)
	}
	if !got.diff.VADThresholdChanged || got.diff.NewVADThreshold != 0.03 {
		t.Errorf("diff threshold = %+v", got.diff)
	}
	if len(got.diff.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", got.diff.RestartRequired)
	}
	if cur := w.Current(); cur != got.cfg {
		t.Error("Current() is not the config handed to the callback")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_ReloadRejectsInvalidFile(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	w, cfgPath := newWatcher(t, watcherValidYAML, rec.onChange)

	writeFile(t, cfgPath, watcherInvalidYAML)
	if _, err := w.Reload(); err == nil {
		t.Fatal("Reload accepted an invalid log level")
	}
	if n := rec.count(); n != 0 {
		t.Errorf("callback fired %d times for an invalid file", n)
	}
	if cur := w.Current(); cur.Server.LogLevel != config.LogInfo {
		t.Errorf("Current() log_level = %q, want the previous info", cur.Server.LogLevel)
	}
}

func TestWatcher_ReloadWithoutEffectiveChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		edit func(t *testing.T, path string)
	}{
		{"touch only", func(t *testing.T, path string) { bumpMtime(t, path, time.Second) }},
		{"comment only", func(t *testing.T, path string) { writeFile(t, path, watcherCommentedYAML) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := newRecorder()
			w, cfgPath := newWatcher(t, watcherValidYAML, rec.onChange)

			tt.edit(t, cfgPath)
			d, err := w.Reload()
			if err != nil {
				t.Fatalf("Reload: %v", err)
			}
			if d.Changed() {
				t.Errorf("diff = %+v, want no change", d)
			}
			if n := rec.count(); n != 0 {
				t.Errorf("callback fired %d times", n)
			}
		})
	}
}

func TestWatcher_ReloadReportsRestartKeys(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	w, cfgPath := newWatcher(t, watcherValidYAML, rec.onChange)

	writeFile(t, cfgPath, watcherRestartYAML)
	d, err := w.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(d.RestartRequired) != 1 || d.RestartRequired[0] != "server.listen_addr" {
		t.Errorf("RestartRequired = %v, want [server.listen_addr]", d.RestartRequired)
	}
	if d.LogLevelChanged || d.VADThresholdChanged {
		t.Errorf("hot-reload flags set: %+v", d)
	}
	if rec.count() != 1 {
		t.Errorf("callback count = %d, want 1", rec.count())
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("NewWatcher succeeded for a missing file")
	}
}
