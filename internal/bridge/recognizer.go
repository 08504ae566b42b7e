package bridge

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/glossa/pkg/provider/stt"
)

const streamBuffer = 16

// browserProvider opens recognition streams on the browser's Web Speech
// API. Transcripts arrive as client messages and are routed to the stream
// they name.
type browserProvider struct{ c *Conn }

var _ stt.Provider = browserProvider{}

// StartStream implements [stt.Provider]. It supersedes any open stream.
func (p browserProvider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	c := p.c
	c.mu.Lock()
	prev := c.stream
	c.streamSeq++
	s := &browserStream{
		id:       c.streamSeq,
		c:        c,
		partials: make(chan stt.Transcript, streamBuffer),
		finals:   make(chan stt.Transcript, streamBuffer),
		errs:     make(chan error, streamBuffer),
	}
	c.stream = s
	c.mu.Unlock()
	if prev != nil {
		prev.end()
	}

	c.send(listenMsg{
		Type:       TypeListen,
		Stream:     s.id,
		Language:   cfg.Language,
		Interim:    cfg.Interim,
		Continuous: cfg.Continuous,
		Hints:      slices.Clone(cfg.Hints),
	})
	return s, nil
}

// streamFor returns the open stream with id. Stream ids start at 1.
func (c *Conn) streamFor(id uint64) *browserStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil || id != c.stream.id {
		return nil
	}
	return c.stream
}

func (c *Conn) dropStream(s *browserStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == s {
		c.stream = nil
	}
}

// browserStream is one recognition run in the browser.
type browserStream struct {
	id uint64
	c  *Conn

	mu       sync.Mutex
	ended    bool
	partials chan stt.Transcript
	finals   chan stt.Transcript
	errs     chan error
}

var _ stt.Stream = (*browserStream)(nil)

func (s *browserStream) Partials() <-chan stt.Transcript { return s.partials }
func (s *browserStream) Finals() <-chan stt.Transcript   { return s.finals }
func (s *browserStream) Errors() <-chan error            { return s.errs }

// SetHints implements [stt.Stream].
func (s *browserStream) SetHints(hints []string) error {
	s.c.send(hintsMsg{Type: TypeHints, Stream: s.id, Hints: slices.Clone(hints)})
	return nil
}

// Close implements [stt.Stream]. It tells the browser to stop unless the
// browser already ended the stream.
func (s *browserStream) Close() error {
	s.c.dropStream(s)
	if s.end() {
		s.c.send(stopListeningMsg{Type: TypeStopListening, Stream: s.id})
	}
	return nil
}

// deliver queues t. Results beyond the buffer are dropped.
func (s *browserStream) deliver(t stt.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	ch := s.partials
	if t.IsFinal {
		ch = s.finals
	}
	select {
	case ch <- t:
	default:
		s.c.log.Warn("recognition result dropped", "stream", s.id, "final", t.IsFinal)
	}
}

func (s *browserStream) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	select {
	case s.errs <- err:
	default:
	}
}

// end closes the channels once and reports whether this call did it.
func (s *browserStream) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	close(s.partials)
	close(s.finals)
	close(s.errs)
	return true
}
