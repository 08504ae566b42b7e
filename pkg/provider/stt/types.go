package stt

import "fmt"

// Transcript is a recognition result. Partial and final results share the
// type.
type Transcript struct {
	// Text is the recognised speech.
	Text string

	// IsFinal is true for committed results.
	IsFinal bool

	// Confidence is in [0, 1]; zero when the recogniser does not report it.
	Confidence float64
}

// Error is a recognition failure reported by a provider.
type Error struct {
	// Code is the provider's error code. Browser recognisers use the Web
	// Speech API codes such as "no-speech", "not-allowed" or "network".
	Code string

	// Message is optional human-readable detail.
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("stt: recognition error %q", e.Code)
	}
	return fmt.Sprintf("stt: recognition error %q: %s", e.Code, e.Message)
}
