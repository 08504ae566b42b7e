package recognition

import (
	"context"
	"errors"
	"strings"

	"github.com/MrWong99/glossa/pkg/provider/stt"
)

// ErrorKind classifies recognition failures by how the controller reacts to
// them.
type ErrorKind int

const (
	// ErrNone means no failure.
	ErrNone ErrorKind = iota

	// NoSpeech means the recogniser heard nothing before its timeout.
	NoSpeech

	// NotAllowed means microphone access was denied or no microphone exists.
	NotAllowed

	// Network means the recognition service could not be reached.
	Network

	// Aborted means the recogniser was interrupted.
	Aborted

	// Unknown covers every other failure.
	Unknown
)

var kindNames = [...]string{
	ErrNone:    "none",
	NoSpeech:   "no_speech",
	NotAllowed: "not_allowed",
	Network:    "network",
	Aborted:    "aborted",
	Unknown:    "unknown",
}

// String returns the snake_case name used in logs and metrics.
func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[Unknown]
	}
	return kindNames[k]
}

// Restartable reports whether the controller restarts the recogniser on its
// own after a failure of this kind.
func (k ErrorKind) Restartable() bool {
	return k == NoSpeech || k == Aborted
}

// Message is the user-facing status line for a failure that needs the
// learner's attention.
func (k ErrorKind) Message() string {
	switch k {
	case ErrNone:
		return ""
	case NotAllowed:
		return "Microphone access denied. Check microphone permissions."
	case Network:
		return "Speech service unreachable. Check your connection and retry."
	case NoSpeech:
		return "Didn't catch that. Try again."
	default:
		return "Speech recognition failed. Try again."
	}
}

// ParseCode maps a Web Speech API error code to its kind. An empty code is
// ErrNone; unrecognised codes are Unknown.
func ParseCode(code string) ErrorKind {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "":
		return ErrNone
	case "no-speech":
		return NoSpeech
	case "not-allowed", "service-not-allowed", "audio-capture":
		return NotAllowed
	case "network":
		return Network
	case "aborted":
		return Aborted
	default:
		return Unknown
	}
}

// Classify returns the kind of err. Provider errors are classified by code;
// context cancellation counts as Aborted.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrNone
	}
	var se *stt.Error
	if errors.As(err, &se) {
		if k := ParseCode(se.Code); k != ErrNone {
			return k
		}
		return Unknown
	}
	if errors.Is(err, context.Canceled) {
		return Aborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Network
	}
	return Unknown
}
