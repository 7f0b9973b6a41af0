// Command accentor is the main entry point for the Accentor pronunciation
// assessment server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/accentor-app/accentor/internal/app"
	"github.com/accentor-app/accentor/internal/config"
	"github.com/accentor-app/accentor/internal/observe"
	"github.com/accentor-app/accentor/internal/resilience"
	"github.com/accentor-app/accentor/pkg/provider/coach"
	coachanyllm "github.com/accentor-app/accentor/pkg/provider/coach/anyllm"
	coachopenai "github.com/accentor-app/accentor/pkg/provider/coach/openai"
	"github.com/accentor-app/accentor/pkg/provider/embeddings"
	oaembed "github.com/accentor-app/accentor/pkg/provider/embeddings/openai"
	"github.com/accentor-app/accentor/pkg/provider/g2p"
	"github.com/accentor-app/accentor/pkg/provider/g2p/espeak"
	"github.com/accentor-app/accentor/pkg/provider/stt"
	"github.com/accentor-app/accentor/pkg/provider/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "accentor: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "accentor: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	var level slog.LevelVar
	logger := newLogger(&level, cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("accentor starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "accentor",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, logger)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			application.SetLogLevel(&level, d.NewLogLevel)
		}
		if d.AssessmentChanged {
			application.ApplyAssessment(d.NewAssessment)
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider category names to the implementations that
// ship with Accentor. Used for startup logging.
var builtinProviders = map[string][]string{
	"stt":        {"whisper"},
	"g2p":        {"espeak"},
	"coach":      {"openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "ollama"},
	"embeddings": {"openai"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Recognizer, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── G2P ───────────────────────────────────────────────────────────────────

	reg.RegisterG2P("espeak", func(entry config.ProviderEntry) (g2p.Transliterator, error) {
		return espeak.New(entry.BaseURL)
	})

	// ── Coach ─────────────────────────────────────────────────────────────────

	// openai uses the native SDK provider, which can attach the learner's
	// recording to the prompt. The any-llm names below are text-only.
	reg.RegisterCoach("openai", func(entry config.ProviderEntry) (coach.Provider, error) {
		var opts []coachopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, coachopenai.WithBaseURL(entry.BaseURL))
		}
		return coachopenai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterCoach(providerName, func(entry config.ProviderEntry) (coach.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return coachanyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterCoach("ollama", func(entry config.ProviderEntry) (coach.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return coachanyllm.New("ollama", entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	// Debug log of all registered providers.
	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to
// consume. Fallback entries wrap the primary in a circuit-breaking group.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	name := cfg.Providers.STT.Name
	recognizer, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", name)

	if fb := cfg.Providers.STTFallback; fb != nil {
		secondary, err := reg.CreateSTT(*fb)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
		}
		group := resilience.NewSTTFallback(recognizer, name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, secondary)
		ps.STT = group
		slog.Info("stt fallback enabled", "primary", name, "fallback", fb.Name)
	} else {
		ps.STT = recognizer
	}

	if name := cfg.Providers.G2P.Name; name != "" {
		p, err := reg.CreateG2P(cfg.Providers.G2P)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "g2p", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create g2p provider %q: %w", name, err)
		} else {
			ps.G2P = p
			slog.Info("provider created", "kind", "g2p", "name", name)
		}
	}

	if name := cfg.Providers.Coach.Name; name != "" {
		p, err := reg.CreateCoach(cfg.Providers.Coach)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "coach", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create coach provider %q: %w", name, err)
		} else {
			ps.Coach = p
			slog.Info("provider created", "kind", "coach", "name", name)
		}
	}

	if fb := cfg.Providers.CoachFallback; fb != nil && ps.Coach != nil {
		secondary, err := reg.CreateCoach(*fb)
		if err != nil {
			return nil, fmt.Errorf("create coach fallback %q: %w", fb.Name, err)
		}
		group := resilience.NewCoachFallback(ps.Coach, cfg.Providers.Coach.Name, resilience.FallbackConfig{})
		group.AddFallback(fb.Name, secondary)
		ps.Coach = group
		slog.Info("coach fallback enabled", "primary", cfg.Providers.Coach.Name, "fallback", fb.Name)
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "kind", "embeddings", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		} else {
			ps.Embeddings = p
			slog.Info("provider created", "kind", "embeddings", "name", name)
		}
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Accentor — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("G2P", cfg.Providers.G2P.Name, "")
	printProvider("Coach", cfg.Providers.Coach.Name, cfg.Providers.Coach.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	if cfg.Languages.PacksDir != "" {
		fmt.Printf("║  Language packs  : %-19s ║\n", cfg.Languages.PacksDir)
	} else {
		fmt.Printf("║  Language packs  : %-19s ║\n", "(generic prompts)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level *slog.LevelVar, initial config.LogLevel) *slog.Logger {
	switch initial {
	case config.LogDebug:
		level.Set(slog.LevelDebug)
	case config.LogWarn:
		level.Set(slog.LevelWarn)
	case config.LogError:
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
