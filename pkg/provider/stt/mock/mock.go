// Package mock provides test doubles for the stt package interfaces.
//
// Stream exposes its channels so tests can push transcripts and errors in a
// controlled order:
//
//	s := mock.NewStream()
//	p := &mock.Provider{Streams: []*mock.Stream{s}}
//	st, _ := p.StartStream(ctx, cfg)
//	s.PartialsCh <- stt.Transcript{Text: "hola"}
//	s.End()
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/glossa/pkg/provider/stt"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	Ctx context.Context
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Streams are returned by successive StartStream calls. When exhausted,
	// StartStream returns a fresh Stream.
	Streams []*Stream

	// StartStreamErr, if non-nil, is returned by StartStream.
	StartStreamErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall

	// Started records every stream handed out, in order.
	Started []*Stream
}

var _ stt.Provider = (*Provider)(nil)

// StartStream records the call and returns the next stream.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	var s *Stream
	if len(p.Streams) > 0 {
		s, p.Streams = p.Streams[0], p.Streams[1:]
	} else {
		s = NewStream()
	}
	p.Started = append(p.Started, s)
	return s, nil
}

// Calls returns the number of StartStream calls. Thread-safe.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Stream is a mock implementation of stt.Stream. Tests send on the exported
// channels and call End to simulate the recogniser stopping on its own.
type Stream struct {
	PartialsCh chan stt.Transcript
	FinalsCh   chan stt.Transcript
	ErrorsCh   chan error

	// SetHintsErr, if non-nil, is returned by SetHints.
	SetHintsErr error

	mu         sync.Mutex
	ended      bool
	hints      [][]string
	closeCalls int
}

var _ stt.Stream = (*Stream)(nil)

// NewStream returns a Stream with buffered channels.
func NewStream() *Stream {
	return &Stream{
		PartialsCh: make(chan stt.Transcript, 16),
		FinalsCh:   make(chan stt.Transcript, 16),
		ErrorsCh:   make(chan error, 16),
	}
}

func (s *Stream) Partials() <-chan stt.Transcript { return s.PartialsCh }
func (s *Stream) Finals() <-chan stt.Transcript   { return s.FinalsCh }
func (s *Stream) Errors() <-chan error            { return s.ErrorsCh }

// SetHints records the hints and returns SetHintsErr.
func (s *Stream) SetHints(hints []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = append(s.hints, append([]string(nil), hints...))
	return s.SetHintsErr
}

// Hints returns every hint list passed to SetHints.
func (s *Stream) Hints() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hints
}

// End closes the channels once, as a recogniser does when it stops.
func (s *Stream) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	close(s.PartialsCh)
	close(s.FinalsCh)
	close(s.ErrorsCh)
}

// Close records the call and ends the stream.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	s.End()
	return nil
}

// CloseCalls returns the number of Close calls.
func (s *Stream) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}
