package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; the rest are
// listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// MatchingChanged is true when any matching parameter changed.
	MatchingChanged bool
	NewMatching     MatchingConfig

	// RestartRequired names the changed sections that only apply after a
	// restart or to connections opened later.
	RestartRequired []string
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Matching != new.Matching {
		d.MatchingChanged = true
		d.NewMatching = new.Matching
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Server.LogFormat != new.Server.LogFormat ||
		!slices.Equal(old.Server.AllowedOrigins, new.Server.AllowedOrigins) ||
		!equalTLS(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if old.Dialogue != new.Dialogue {
		d.RestartRequired = append(d.RestartRequired, "dialogue")
	}
	if old.Recognition != new.Recognition {
		d.RestartRequired = append(d.RestartRequired, "recognition")
	}
	if old.Content != new.Content {
		d.RestartRequired = append(d.RestartRequired, "content")
	}
	if !slices.Equal(old.Characters, new.Characters) {
		d.RestartRequired = append(d.RestartRequired, "characters")
	}
	return d
}

func equalTLS(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
