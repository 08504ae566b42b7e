// Package stt defines the Provider interface for streaming speech recognition.
//
// A provider wraps whatever produces transcripts for a learner's speech: the
// browser's Web Speech API reached through the bridge, or a server-side
// streaming service. A Stream emits two ordered sequences of Transcript
// values: low-latency partials used for live highlighting and finals that
// are scored against the expected phrase.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by optional Stream methods a provider does not
// implement.
var ErrNotSupported = errors.New("stt: not supported")

// StreamConfig describes a recognition request.
type StreamConfig struct {
	// Language is the BCP-47 tag the recogniser listens for (e.g. "es-ES").
	Language string

	// Interim requests partial transcripts in addition to finals.
	Interim bool

	// Continuous keeps the stream open across pauses. When false the
	// provider ends the stream after the first final transcript.
	Continuous bool

	// Hints are phrases the recogniser should favour, typically the expected
	// line and the current option texts.
	Hints []string
}

// Stream is an open recognition session.
//
// Partials and Finals are closed when the stream ends, whether because the
// recogniser stopped on its own or because Close was called. Errors carries
// recognition failures; a failure does not necessarily end the stream.
type Stream interface {
	// Partials returns the channel of interim transcripts.
	Partials() <-chan Transcript

	// Finals returns the channel of committed transcripts.
	Finals() <-chan Transcript

	// Errors returns the channel of recognition failures. Values are
	// usually *Error.
	Errors() <-chan error

	// SetHints replaces the phrase hints without restarting. Providers that
	// cannot do this return ErrNotSupported.
	SetHints(hints []string) error

	// Close ends the stream. Calling Close more than once is safe.
	Close() error
}

// Provider opens recognition streams.
type Provider interface {
	// StartStream opens a new stream. The caller owns the returned Stream
	// and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (Stream, error)
}
