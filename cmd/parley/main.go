// Command parley is the speech-practice voice client. It captures the
// microphone, streams it to the conversational service, plays the
// assistant's replies and exposes a local HTTP control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/parley/internal/app"
	"github.com/MrWong99/parley/internal/config"
	"github.com/MrWong99/parley/internal/control"
	"github.com/MrWong99/parley/internal/health"
	"github.com/MrWong99/parley/internal/observe"
	"github.com/MrWong99/parley/internal/session"
	audiomalgo "github.com/MrWong99/parley/pkg/audio/malgo"
	audiomock "github.com/MrWong99/parley/pkg/audio/mock"
	"github.com/MrWong99/parley/pkg/provider/s2s"
	s2smock "github.com/MrWong99/parley/pkg/provider/s2s/mock"
	"github.com/MrWong99/parley/pkg/provider/s2s/realtime"
	"github.com/MrWong99/parley/pkg/provider/stt"
	"github.com/MrWong99/parley/pkg/provider/stt/deepgram"
	sttmock "github.com/MrWong99/parley/pkg/provider/stt/mock"
)

// shutdownTimeout bounds the graceful shutdown after a signal.
const shutdownTimeout = 15 * time.Second

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	modeFlag := flag.String("mode", "", "session mode for -autostart: practice or test (default from config)")
	autostart := flag.Bool("autostart", false, "start a session immediately")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "parley: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "parley: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("parley starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "parley",
		ServiceVersion: version,
		Transport:      cfg.Service.Transport,
		AudioBackend:   cfg.Audio.Backend,
		CaptureRate:    cfg.Audio.CaptureRate,
		PlaybackRate:   cfg.Audio.PlaybackRate,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(tctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	closeBackends := registerBuiltinBackends(reg)
	defer closeBackends()

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build backends", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	hub := control.NewHub(logger)
	application, err := app.New(ctx, cfg, providers,
		app.WithLogger(logger),
		app.WithEventHandler(hub.Publish),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Hot reload ────────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(_ *config.Config, diff config.ConfigDiff) {
		if diff.LogLevelChanged {
			level.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated", "level", diff.NewLogLevel)
		}
		application.ApplyConfig(diff)
	}, config.WithWatcherLogger(logger))
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	health.New(application.Readiness()...).Register(mux)
	control.New(application.Sessions(),
		control.WithHistory(application.History()),
		control.WithHub(hub),
		control.WithDefaultMode(application.DefaultMode()),
		control.WithLogger(logger),
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(observe.DefaultMetrics(),
			observe.WithQuietPaths("/healthz", "/readyz", "/metrics", "/session"),
			observe.WithRequestLogger(logger),
		)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("control API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
		g.Go(func() error {
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hup:
					if _, err := watcher.Reload(); err != nil {
						slog.Warn("config reload on SIGHUP rejected", "err", err)
					}
				}
			}
		})
	}

	if *autostart {
		g.Go(func() error {
			mode := application.DefaultMode()
			if *modeFlag != "" {
				m, err := session.ParseMode(*modeFlag)
				if err != nil {
					return err
				}
				mode = m
			}
			if err := application.Sessions().Start(gctx, app.StartOptions{Mode: mode}); err != nil {
				slog.Error("autostart failed", "err", err)
				fmt.Fprintln(os.Stderr, app.UserMessage(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := application.Shutdown(sctx); err != nil {
			slog.Error("shutdown error", "err", err)
		}
		return srv.Shutdown(sctx)
	})

	slog.Info("client ready, press Ctrl+C to shut down")
	if err := g.Wait(); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ────────────────────────────────────────────────────────────

// registerBuiltinBackends wires all built-in backend factories into reg. The
// returned func releases process-wide resources the factories allocated.
func registerBuiltinBackends(reg *config.Registry) (closeAll func()) {
	var closers []func() error

	// ── Transport ─────────────────────────────────────────────────────────────

	reg.RegisterTransport("realtime", func(cfg *config.Config) (s2s.Dialer, error) {
		return realtime.New(cfg.Service.URL, realtime.WithLogger(slog.Default())), nil
	})

	reg.RegisterTransport("mock", func(*config.Config) (s2s.Dialer, error) {
		return &s2smock.Dialer{
			Configure: func(c *s2smock.Conn) {
				c.OnStart = func(p s2s.StartParams) {
					c.Emit(s2s.SessionReady{SessionID: p.SessionID})
				}
			},
		}, nil
	})

	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterAudio("malgo", func(*config.Config) (config.AudioBackend, error) {
		b, err := audiomalgo.New(audiomalgo.WithLogger(slog.Default()))
		if err != nil {
			return config.AudioBackend{}, err
		}
		closers = append(closers, b.Close)
		return config.AudioBackend{Microphone: b.Microphone(), Speaker: b.Speaker()}, nil
	})

	reg.RegisterAudio("mock", func(*config.Config) (config.AudioBackend, error) {
		return config.AudioBackend{Microphone: &audiomock.Microphone{}, Speaker: &audiomock.Speaker{}}, nil
	})

	// ── Captions ──────────────────────────────────────────────────────────────

	reg.RegisterCaptions("deepgram", func(cfg *config.Config) (stt.Captioner, error) {
		opts := []deepgram.Option{deepgram.WithLogger(slog.Default())}
		if cfg.Captions.Model != "" {
			opts = append(opts, deepgram.WithModel(cfg.Captions.Model))
		}
		if cfg.Captions.Language != "" {
			opts = append(opts, deepgram.WithLanguage(cfg.Captions.Language))
		}
		if cfg.Captions.Endpoint != "" {
			opts = append(opts, deepgram.WithEndpoint(cfg.Captions.Endpoint))
		}
		return deepgram.New(cfg.Captions.APIKey, opts...)
	})

	reg.RegisterCaptions("mock", func(*config.Config) (stt.Captioner, error) {
		return &sttmock.Captioner{}, nil
	})

	for kind, names := range config.ValidBackendNames {
		for _, name := range names {
			slog.Debug("registered backend", "kind", kind, "name", name)
		}
	}

	return func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("backend close error", "err", err)
			}
		}
	}
}

// buildProviders instantiates the backends named in cfg.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	d, err := reg.CreateTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("create transport %q: %w", cfg.Service.Transport, err)
	}
	ps.Transport = d
	slog.Info("backend created", "kind", "transport", "name", cfg.Service.Transport)

	a, err := reg.CreateAudio(cfg)
	if err != nil {
		return nil, fmt.Errorf("create audio backend %q: %w", cfg.Audio.Backend, err)
	}
	ps.Audio = a
	slog.Info("backend created", "kind", "audio", "name", cfg.Audio.Backend)

	var c stt.Captioner = stt.Unsupported{}
	if cfg.Captions.Provider != config.CaptionsNone {
		c, err = reg.CreateCaptions(cfg)
	}
	if errors.Is(err, config.ErrBackendNotRegistered) {
		slog.Warn("captions provider not available, continuing without captions", "name", cfg.Captions.Provider)
		c = stt.Unsupported{}
	} else if err != nil {
		return nil, fmt.Errorf("create captions provider %q: %w", cfg.Captions.Provider, err)
	}
	ps.Captions = c
	slog.Info("backend created", "kind", "captions", "name", cfg.Captions.Provider, "supported", stt.Supported(c))

	return ps, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
