package config_test

import (
	"testing"

	"github.com/accentor-app/accentor/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Assessment: config.AssessmentConfig{
			MinAudioBytes: 4000,
			DrillTopK:     5,
		},
	}
	d := config.Diff(cfg, cfg)
	if d.HasChanges() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if d.AssessmentChanged {
		t.Error("expected AssessmentChanged=false")
	}
}

func TestDiff_AssessmentChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Assessment: config.AssessmentConfig{CoachingTimeoutSeconds: 45},
	}
	new := &config.Config{
		Assessment: config.AssessmentConfig{CoachingTimeoutSeconds: 30},
	}

	d := config.Diff(old, new)
	if !d.AssessmentChanged {
		t.Error("expected AssessmentChanged=true")
	}
	if d.NewAssessment.CoachingTimeoutSeconds != 30 {
		t.Errorf("expected NewAssessment.CoachingTimeoutSeconds=30, got %d", d.NewAssessment.CoachingTimeoutSeconds)
	}
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false")
	}
}

func TestDiff_ProviderChangeIsNotTracked(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Providers: config.ProvidersConfig{STT: config.ProviderEntry{Name: "whisper"}},
	}
	new := &config.Config{
		Providers: config.ProvidersConfig{STT: config.ProviderEntry{Name: "other"}},
	}

	// Provider swaps require a restart and must not show up as hot changes.
	d := config.Diff(old, new)
	if d.HasChanges() {
		t.Errorf("provider change should not produce a hot diff, got %+v", d)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:     config.ServerConfig{LogLevel: config.LogInfo},
		Assessment: config.AssessmentConfig{HistoryPageSize: 20},
	}
	new := &config.Config{
		Server:     config.ServerConfig{LogLevel: config.LogWarn},
		Assessment: config.AssessmentConfig{HistoryPageSize: 50},
	}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.AssessmentChanged {
		t.Error("expected AssessmentChanged=true")
	}
	if !d.HasChanges() {
		t.Error("expected HasChanges()=true")
	}
}
