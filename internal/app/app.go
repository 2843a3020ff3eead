// Package app wires the parley subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates the history store, the
// guarded transport and the [SessionManager]; ApplyConfig pushes hot-reloaded
// settings into them; Shutdown stops the live session and tears everything
// down in order.
//
// For testing, inject doubles via functional options (WithHistoryStore,
// WithCredentials, WithClock, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"k8s.io/utils/clock"

	"github.com/MrWong99/parley/internal/auth"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/health"
	"github.com/MrWong99/parley/internal/history"
	"github.com/MrWong99/parley/internal/history/postgres"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/resilience"
	"github.com/MrWong99/parley/internal/session"
	"github.com/MrWong99/parley/pkg/provider/s2s"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/vad/energy"
)

// Providers holds the backends built from the config registry. Transport and
// Audio are required; a nil Captions means no captions.
type Providers struct {
	Transport s2s.Dialer
	Captions  stt.Captioner
	Audio     config.AudioBackend
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	logger      *slog.Logger
	clock       clock.WithTickerAndDelayedExecution
	metrics     *observe.Metrics
	credentials auth.Source
	onEvent     func(Event)

	// Subsystems, initialised in New and torn down in Shutdown.
	history  history.Store
	dialer   *resilience.GuardedDialer
	detector *energy.Detector
	sessions *SessionManager

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithHistoryStore injects a history store instead of creating one from
// config.
func WithHistoryStore(s history.Store) Option {
	return func(a *App) { a.history = s }
}

// WithCredentials injects the credential source. The default reads the
// environment variable named by service.credential_env.
func WithCredentials(s auth.Source) Option {
	return func(a *App) { a.credentials = s }
}

// WithClock injects the time source for session clocks and the breaker.
func WithClock(c clock.WithTickerAndDelayedExecution) Option {
	return func(a *App) { a.clock = c }
}

// WithMetrics injects the metrics instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithEventHandler registers a receiver for session events.
func WithEventHandler(fn func(Event)) Option {
	return func(a *App) { a.onEvent = fn }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Transport == nil {
		return nil, errors.New("app: a transport provider is required")
	}
	if providers.Audio.Microphone == nil || providers.Audio.Speaker == nil {
		return nil, errors.New("app: an audio backend is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.clock == nil {
		a.clock = clock.RealClock{}
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.credentials == nil {
		a.credentials = auth.Env{Var: cfg.Service.CredentialEnv}
	}

	// ── 1. History store ─────────────────────────────────────────────────
	if err := a.initHistory(ctx); err != nil {
		return nil, fmt.Errorf("app: init history: %w", err)
	}

	// ── 2. Guarded transport ─────────────────────────────────────────────
	a.dialer = resilience.GuardDialer(providers.Transport, resilience.NewBreaker(resilience.BreakerConfig{
		MaxFailures: cfg.Resilience.MaxFailures,
		Cooldown:    cfg.Resilience.ResetTimeout,
		Counts:      resilience.CountsDialFailure,
		Clock:       a.clock,
		Logger:      a.logger.With("component", "transport"),
	}))

	// ── 3. Voice activity ────────────────────────────────────────────────
	a.detector = newEnergyDetector(cfg.VAD.Threshold, cfg.Audio.FrameSize, cfg.Audio.CaptureRate)

	// ── 4. Session manager ───────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Dialer:       a.dialer,
		Credentials:  a.credentials,
		Microphone:   providers.Audio.Microphone,
		Speaker:      providers.Audio.Speaker,
		Captioner:    providers.Captions,
		Detector:     a.detector,
		History:      a.history,
		Clock:        a.clock,
		Metrics:      a.metrics,
		Logger:       a.logger,
		OnEvent:      a.onEvent,
		CaptureRate:  cfg.Audio.CaptureRate,
		PlaybackRate: cfg.Audio.PlaybackRate,
		FrameSize:    cfg.Audio.FrameSize,
		TestDuration: cfg.Session.TestDuration,
		UserID:       cfg.Service.UserID,
		Context:      cfg.Service.Context,
	})

	a.logger.Info("app initialised",
		"transport", cfg.Service.Transport,
		"audio", cfg.Audio.Backend,
		"captions", stt.Supported(providers.Captions),
		"vad_threshold", a.detector.Threshold(),
	)
	return a, nil
}

// initHistory sets up the PostgreSQL history store, a JSON-lines file store,
// an in-memory store when neither is configured, or the injected store.
func (a *App) initHistory(ctx context.Context) error {
	if a.history != nil {
		return nil
	}

	dsn := a.cfg.History.PostgresDSN
	switch {
	case dsn == "" && a.cfg.History.FilePath != "":
		a.logger.Info("keeping session history in a local file", "path", a.cfg.History.FilePath)
		a.history = history.NewFileStore(a.cfg.History.FilePath)
		return nil
	case dsn == "":
		a.logger.Info("history.postgres_dsn not set, keeping session history in memory")
		a.history = history.NewMemStore()
		return nil
	}

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.history = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// History returns the history store.
func (a *App) History() history.Store { return a.history }

// VADThreshold returns the active speech threshold.
func (a *App) VADThreshold() float64 { return a.detector.Threshold() }

// DefaultMode returns the configured start mode.
func (a *App) DefaultMode() session.Mode {
	m, err := session.ParseMode(a.cfg.Session.Mode)
	if err != nil {
		return session.ModePractice
	}
	return m
}

// Readiness returns the checks for the readiness endpoint. An open transport
// breaker fails readiness; an unreachable history store only degrades it,
// since sessions run without history.
func (a *App) Readiness() []health.Checker {
	hist := health.PingChecker("history", a.history)
	hist.Optional = true
	return []health.Checker{
		health.BreakerChecker("transport", a.dialer.Breaker()),
		hist,
	}
}

// ApplyConfig pushes the hot-reloadable settings of diff into the running
// subsystems. Settings that need a restart are logged.
func (a *App) ApplyConfig(diff config.ConfigDiff) {
	if diff.VADThresholdChanged {
		a.detector.SetThreshold(diff.NewVADThreshold)
		a.logger.Info("vad threshold updated", "threshold", diff.NewVADThreshold)
	}
	if len(diff.RestartRequired) > 0 {
		a.logger.Warn("config changes require a restart", "keys", diff.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the live session and tears down all subsystems. It respects
// the context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		done := make(chan struct{})
		go func() {
			a.sessions.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.logger.Warn("shutdown deadline exceeded while stopping session")
			shutdownErr = ctx.Err()
			return
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
