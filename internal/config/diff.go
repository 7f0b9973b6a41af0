package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// database changes require a restart and are deliberately absent.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AssessmentChanged is true when any assessment tuning value changed
	// (audio threshold, coaching timeout, page size, drill fan-out).
	AssessmentChanged bool
	NewAssessment     AssessmentConfig
}

// HasChanges reports whether the diff contains anything to apply.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.AssessmentChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Assessment != new.Assessment {
		d.AssessmentChanged = true
		d.NewAssessment = new.Assessment
	}

	return d
}
