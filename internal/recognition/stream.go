package recognition

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/glossa/pkg/provider/stt"
)

// StreamRecognizer adapts a streaming [stt.Provider] into a [Recognizer].
// Each Start opens a new stream; the stream's partials, finals and errors
// are forwarded to the handler from a single goroutine, and the closing of
// the transcript channels is reported as OnEnd.
type StreamRecognizer struct {
	provider stt.Provider

	mu     sync.Mutex
	cfg    stt.StreamConfig
	stream stt.Stream
	cancel context.CancelFunc
}

var (
	_ Recognizer = (*StreamRecognizer)(nil)
	_ Hinter     = (*StreamRecognizer)(nil)
)

// NewStreamRecognizer returns a recogniser that opens streams on p with cfg.
func NewStreamRecognizer(p stt.Provider, cfg stt.StreamConfig) *StreamRecognizer {
	return &StreamRecognizer{provider: p, cfg: cfg}
}

// Start implements [Recognizer].
func (r *StreamRecognizer) Start(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s, err := r.provider.StartStream(ctx, r.cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("recognition: start stream: %w", err)
	}
	r.stream, r.cancel = s, cancel
	go pump(ctx, s, h)
	return nil
}

// Stop implements [Recognizer]. It does not wait for the forwarding
// goroutine, so it is safe inside a handler callback.
func (r *StreamRecognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *StreamRecognizer) stopLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.stream != nil {
		_ = r.stream.Close()
		r.stream = nil
	}
}

// SetHints implements [Hinter]. The hints apply to the open stream, when
// the provider supports it, and to every later stream.
func (r *StreamRecognizer) SetHints(hints []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Hints = slices.Clone(hints)
	if r.stream == nil {
		return nil
	}
	return r.stream.SetHints(hints)
}

func pump(ctx context.Context, s stt.Stream, h Handler) {
	partials, finals, errs := s.Partials(), s.Finals(), s.Errors()
	for partials != nil || finals != nil {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if ctx.Err() == nil && h.OnResult != nil {
				h.OnResult(t.Text, false)
			}
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			if ctx.Err() == nil && h.OnResult != nil {
				h.OnResult(t.Text, true)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if ctx.Err() == nil && h.OnError != nil {
				h.OnError(err)
			}
		}
	}
	for errs != nil {
		select {
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if ctx.Err() == nil && h.OnError != nil {
				h.OnError(err)
			}
		default:
			errs = nil
		}
	}
	if ctx.Err() == nil && h.OnEnd != nil {
		h.OnEnd()
	}
}
