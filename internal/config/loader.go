package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"whisper"},
	"g2p":        {"espeak"},
	"coach":      {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
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
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Providers: STT is the one mandatory collaborator; without it no
	// attempt can be scored at all.
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	if cfg.Providers.STTFallback != nil {
		validateProviderName("stt", cfg.Providers.STTFallback.Name)
		if cfg.Providers.STTFallback.Name == "" {
			errs = append(errs, errors.New("providers.stt_fallback.name is required when the block is present"))
		}
	}
	validateProviderName("g2p", cfg.Providers.G2P.Name)
	validateProviderName("coach", cfg.Providers.Coach.Name)
	if cfg.Providers.CoachFallback != nil {
		validateProviderName("coach", cfg.Providers.CoachFallback.Name)
		if cfg.Providers.CoachFallback.Name == "" {
			errs = append(errs, errors.New("providers.coach_fallback.name is required when the block is present"))
		}
	}
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Availability warnings for optional collaborators.
	if cfg.Providers.G2P.Name == "" {
		slog.Warn("no G2P provider configured; phoneme-level comparison will be skipped for every language")
	}
	if cfg.Providers.Coach.Name == "" {
		slog.Warn("no coach provider configured; coaching requests will be rejected")
	}
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("no embeddings provider configured; the drill similarity library is disabled")
	}

	// Database
	if cfg.Database.PostgresDSN == "" {
		errs = append(errs, errors.New("database.postgres_dsn is required"))
	}

	// Assessment bounds
	if cfg.Assessment.MinAudioBytes < 0 {
		errs = append(errs, fmt.Errorf("assessment.min_audio_bytes %d must not be negative", cfg.Assessment.MinAudioBytes))
	}
	if cfg.Assessment.CoachingTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("assessment.coaching_timeout_seconds %d must not be negative", cfg.Assessment.CoachingTimeoutSeconds))
	}
	if cfg.Assessment.HistoryPageSize < 0 {
		errs = append(errs, fmt.Errorf("assessment.history_page_size %d must not be negative", cfg.Assessment.HistoryPageSize))
	}
	if cfg.Assessment.DrillTopK < 0 {
		errs = append(errs, fmt.Errorf("assessment.drill_top_k %d must not be negative", cfg.Assessment.DrillTopK))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
