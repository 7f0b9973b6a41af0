// Package app wires all Accentor subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithAttemptStore, WithBlobStore, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/accentor-app/accentor/internal/assess"
	"github.com/accentor-app/accentor/internal/attempt"
	attemptpg "github.com/accentor-app/accentor/internal/attempt/postgres"
	"github.com/accentor-app/accentor/internal/audiostore"
	"github.com/accentor-app/accentor/internal/coaching"
	"github.com/accentor-app/accentor/internal/config"
	"github.com/accentor-app/accentor/internal/drill"
	"github.com/accentor-app/accentor/internal/health"
	"github.com/accentor-app/accentor/internal/httpapi"
	"github.com/accentor-app/accentor/internal/langpack"
	"github.com/accentor-app/accentor/internal/observe"
	"github.com/accentor-app/accentor/pkg/provider/coach"
	"github.com/accentor-app/accentor/pkg/provider/embeddings"
	"github.com/accentor-app/accentor/pkg/provider/g2p"
	"github.com/accentor-app/accentor/pkg/provider/stt"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
// STT is the only mandatory slot; the service degrades gracefully without
// the others.
type Providers struct {
	STT        stt.Recognizer
	G2P        g2p.Transliterator
	Coach      coach.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes and serves the assessment API.
type App struct {
	cfg       *config.Config
	providers *Providers
	logger    *slog.Logger

	// Subsystems — initialised in New, torn down in Shutdown.
	packs   *langpack.Registry
	store   attempt.Store
	drills  *drill.Library
	audio   assess.BlobStore
	service *assess.Service
	server  *http.Server

	// checks are evaluated by the /readyz probe.
	checks []health.Checker

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithAttemptStore injects an attempt store instead of connecting to Postgres.
func WithAttemptStore(s attempt.Store) Option {
	return func(a *App) { a.store = s }
}

// WithBlobStore injects a recording store instead of creating a file store.
func WithBlobStore(b assess.BlobStore) Option {
	return func(a *App) { a.audio = b }
}

// WithDrillLibrary injects a drill library instead of creating one from config.
func WithDrillLibrary(l *drill.Library) Option {
	return func(a *App) { a.drills = l }
}

// WithLanguagePacks injects a pack registry instead of loading the packs dir.
func WithLanguagePacks(r *langpack.Registry) Option {
	return func(a *App) { a.packs = r }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: language pack loading,
// attempt store connection and migration, drill library setup, and service
// construction.
func New(ctx context.Context, cfg *config.Config, providers *Providers, logger *slog.Logger, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil {
		return nil, errors.New("app: a speech recognizer provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
		logger:    logger,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Language packs ────────────────────────────────────────────────
	if err := a.initPacks(); err != nil {
		return nil, fmt.Errorf("app: init language packs: %w", err)
	}

	// ── 2. Attempt store ─────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init attempt store: %w", err)
	}

	// ── 3. Drill library ─────────────────────────────────────────────────
	if err := a.initDrills(ctx); err != nil {
		return nil, fmt.Errorf("app: init drill library: %w", err)
	}

	// ── 4. Recording store ───────────────────────────────────────────────
	if err := a.initAudio(); err != nil {
		return nil, fmt.Errorf("app: init recording store: %w", err)
	}

	// ── 5. Assessment service ────────────────────────────────────────────
	if err := a.initService(); err != nil {
		return nil, fmt.Errorf("app: init service: %w", err)
	}

	// ── 6. HTTP server ───────────────────────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initPacks loads the language pack directory, or starts with an empty
// registry when none is configured.
func (a *App) initPacks() error {
	if a.packs != nil {
		return nil
	}
	if a.cfg.Languages.PacksDir == "" {
		a.logger.Info("no language packs dir configured, using generic prompts")
		a.packs = langpack.NewRegistry()
		return nil
	}
	packs, err := langpack.LoadDir(a.cfg.Languages.PacksDir, a.logger)
	if err != nil {
		return err
	}
	a.packs = packs
	a.logger.Info("loaded language packs", "dir", a.cfg.Languages.PacksDir, "languages", packs.Languages())
	return nil
}

// initStore connects the PostgreSQL attempt store and runs migrations, or
// uses an injected store.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Database.PostgresDSN
	if dsn == "" {
		return errors.New("database.postgres_dsn is required when no store is injected")
	}

	store, err := attemptpg.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	a.checks = append(a.checks, health.Checker{
		Name: "database",
		Check: func(ctx context.Context) error {
			return store.Pool().Ping(ctx)
		},
	})
	return nil
}

// initDrills sets up the pgvector drill library when an embeddings provider
// is configured. Without one the drill endpoints report unavailable.
func (a *App) initDrills(ctx context.Context) error {
	if a.drills != nil || a.providers.Embeddings == nil {
		return nil
	}

	lib, err := drill.NewLibrary(ctx, a.cfg.Database.PostgresDSN, a.providers.Embeddings)
	if err != nil {
		return err
	}
	a.drills = lib
	a.closers = append(a.closers, func() error {
		lib.Close()
		return nil
	})
	return nil
}

// initAudio creates the on-disk recording store when a directory is
// configured. Without one recordings are not persisted and coaching falls
// back to transcript-only analysis.
func (a *App) initAudio() error {
	if a.audio != nil {
		return nil
	}
	if a.cfg.Assessment.AudioDir == "" {
		a.logger.Info("no audio dir configured, recordings will not be persisted")
		return nil
	}
	fs, err := audiostore.NewFileStore(a.cfg.Assessment.AudioDir)
	if err != nil {
		return err
	}
	a.audio = fs
	return nil
}

// initService builds the assessment service from the wired collaborators.
func (a *App) initService() error {
	var analyzer *coaching.Analyzer
	if a.providers.Coach != nil {
		analyzer = coaching.NewAnalyzer(a.providers.Coach, a.packs, a.logger)
	} else {
		a.logger.Warn("no coach provider configured, coaching requests will be rejected")
	}

	svc, err := assess.New(assess.Config{
		Recognizer:      a.providers.STT,
		Transliterator:  a.providers.G2P,
		Analyzer:        analyzer,
		Store:           a.store,
		Drills:          a.drills,
		Packs:           a.packs,
		Audio:           a.audio,
		Logger:          a.logger,
		MinAudioBytes:   a.cfg.Assessment.MinAudioBytesOrDefault(),
		CoachingTimeout: time.Duration(a.cfg.Assessment.CoachingTimeoutOrDefault()) * time.Second,
		HistoryPageSize: a.cfg.Assessment.HistoryPageSizeOrDefault(),
		DrillTopK:       a.cfg.Assessment.DrillTopKOrDefault(),
	})
	if err != nil {
		return err
	}
	a.service = svc
	return nil
}

// initServer assembles the HTTP server around the API router.
func (a *App) initServer() {
	srv := httpapi.New(a.service, a.logger, a.checks...)

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.server = &http.Server{
		Addr:              addr,
		Handler:           srv.Router(observe.DefaultMetrics()),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Service exposes the assessment service, mainly for tests.
func (a *App) Service() *assess.Service { return a.service }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled or the listener fails. On
// cancellation the server is drained within the shutdown timeout before Run
// returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			a.logger.Info("serving HTTPS", "addr", a.server.Addr)
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			a.logger.Info("serving HTTP", "addr", a.server.Addr)
			err = a.server.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := a.server.Shutdown(drainCtx); err != nil {
			a.logger.Warn("server drain error", "err", err)
		}
		return ctx.Err()
	}
}

// ApplyAssessment applies hot-reloaded assessment tuning to the running
// service. Requests in flight keep the values they started with.
func (a *App) ApplyAssessment(cfg config.AssessmentConfig) {
	a.service.Retune(
		cfg.MinAudioBytesOrDefault(),
		time.Duration(cfg.CoachingTimeoutOrDefault())*time.Second,
		cfg.HistoryPageSizeOrDefault(),
		cfg.DrillTopKOrDefault(),
	)
	a.logger.Info("assessment tuning reloaded",
		"min_audio_bytes", cfg.MinAudioBytesOrDefault(),
		"coaching_timeout_seconds", cfg.CoachingTimeoutOrDefault(),
	)
}

// SetLogLevel applies a hot-reloaded log level. The callback shape matches
// what main wires into the config watcher.
func (a *App) SetLogLevel(level *slog.LevelVar, new config.LogLevel) {
	switch new {
	case config.LogDebug:
		level.Set(slog.LevelDebug)
	case config.LogWarn:
		level.Set(slog.LevelWarn)
	case config.LogError:
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	a.logger.Info("log level changed", "level", new)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
