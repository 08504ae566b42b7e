package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/glossa/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yaml string
		want []string
	}{
		{
			name: "bad log settings",
			yaml: "server:\n  log_level: loud\n  log_format: xml\n",
			want: []string{"server.log_level", "server.log_format"},
		},
		{
			name: "incomplete tls",
			yaml: "server:\n  tls:\n    cert_file: cert.pem\n",
			want: []string{"server.tls requires both"},
		},
		{
			name: "matching out of range",
			yaml: "matching:\n  threshold: 1.5\n  divisor: -1\n  highlight_divisor: -2\n  word_boost: 2\n",
			want: []string{"matching.threshold", "matching.divisor", "matching.highlight_divisor", "matching.word_boost"},
		},
		{
			name: "negative durations",
			yaml: "dialogue:\n  cooldown: -1s\n  speech_fallback: -2s\nrecognition:\n  backoff: -5ms\n",
			want: []string{"dialogue.cooldown", "dialogue.speech_fallback", "recognition.backoff"},
		},
		{
			name: "backoff cap below start",
			yaml: "recognition:\n  backoff: 2s\n  max_backoff: 1s\n  max_restarts: -1\n",
			want: []string{"recognition.max_backoff", "recognition.max_restarts"},
		},
		{
			name: "duplicate characters and bad voice",
			yaml: "characters:\n  - kind: cat\n  - kind: cat\n    voice:\n      pitch: 3\n      rate: 20\n    range: -1\n",
			want: []string{"duplicate of characters[0]", "voice.pitch", "voice.rate", "characters[1].range"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected a validation error, got nil")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error should mention %q, got: %v", w, err)
				}
			}
		})
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("matching:\n  treshold: 0.5\n"))
	if err == nil || !strings.Contains(err.Error(), "treshold") {
		t.Errorf("error should name the unknown field, got: %v", err)
	}
}

func TestLoadFromReader_UnknownCharacter(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("characters:\n  - kind: dragon\n"))
	if err == nil || !strings.Contains(err.Error(), "dragon") {
		t.Errorf("error should name the character, got: %v", err)
	}
}

func TestValidate_ZeroConfigIsValid(t *testing.T) {
	t.Parallel()
	if err := config.Validate(&config.Config{}); err != nil {
		t.Errorf("Validate(zero) = %v", err)
	}
}
