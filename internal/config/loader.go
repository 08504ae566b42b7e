package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/glossa/internal/dialogue"
)

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
// An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
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
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Matching
	m := cfg.Matching
	if m.Threshold < 0 || m.Threshold > 1 {
		errs = append(errs, fmt.Errorf("matching.threshold %.2f is out of range [0, 1]", m.Threshold))
	}
	if m.Divisor < 0 {
		errs = append(errs, fmt.Errorf("matching.divisor %d must not be negative", m.Divisor))
	}
	if m.HighlightDivisor < 0 {
		errs = append(errs, fmt.Errorf("matching.highlight_divisor %d must not be negative", m.HighlightDivisor))
	}
	if m.WordBoost > 1 {
		errs = append(errs, fmt.Errorf("matching.word_boost %.2f must not exceed 1", m.WordBoost))
	}

	// Durations
	for _, d := range []struct {
		name string
		v    time.Duration
	}{
		{"dialogue.cooldown", cfg.Dialogue.Cooldown},
		{"dialogue.success_delay", cfg.Dialogue.SuccessDelay},
		{"dialogue.terminal_delay", cfg.Dialogue.TerminalDelay},
		{"dialogue.speech_fallback", cfg.Dialogue.SpeechFallback},
		{"recognition.backoff", cfg.Recognition.Backoff},
		{"recognition.max_backoff", cfg.Recognition.MaxBackoff},
	} {
		if d.v < 0 {
			errs = append(errs, fmt.Errorf("%s %s must not be negative", d.name, d.v))
		}
	}

	// Recognition
	r := cfg.Recognition
	if r.MaxRestarts < 0 {
		errs = append(errs, fmt.Errorf("recognition.max_restarts %d must not be negative", r.MaxRestarts))
	}
	if r.Backoff > 0 && r.MaxBackoff > 0 && r.MaxBackoff < r.Backoff {
		errs = append(errs, fmt.Errorf("recognition.max_backoff %s is shorter than recognition.backoff %s", r.MaxBackoff, r.Backoff))
	}

	// Content
	if cfg.Content.Path == "" && cfg.Content.PostgresDSN == "" {
		slog.Warn("neither content.path nor content.postgres_dsn is set; no character will have a conversation")
	}

	// Characters
	seen := make(map[dialogue.CharacterKind]int, len(cfg.Characters))
	for i, ch := range cfg.Characters {
		prefix := fmt.Sprintf("characters[%d]", i)
		if prev, ok := seen[ch.Kind]; ok {
			errs = append(errs, fmt.Errorf("%s.kind %q is a duplicate of characters[%d]", prefix, ch.Kind, prev))
		}
		seen[ch.Kind] = i
		if ch.Voice.Pitch < 0 || ch.Voice.Pitch > 2 {
			errs = append(errs, fmt.Errorf("%s.voice.pitch %.2f is out of range [0, 2]", prefix, ch.Voice.Pitch))
		}
		if ch.Voice.Rate != 0 && (ch.Voice.Rate < 0.1 || ch.Voice.Rate > 10) {
			errs = append(errs, fmt.Errorf("%s.voice.rate %.2f is out of range [0.1, 10]", prefix, ch.Voice.Rate))
		}
		if ch.Range < 0 {
			errs = append(errs, fmt.Errorf("%s.range %.2f must not be negative", prefix, ch.Range))
		}
	}

	return errors.Join(errs...)
}
