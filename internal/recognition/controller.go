// Package recognition controls speech recognition for the dialogue engine.
//
// A [Controller] owns one [Recognizer] and runs it for a listening turn
// identified by the caller's session token. It restarts the recogniser after
// transient failures (no speech, aborted, unexpected end) with exponential
// backoff, surfaces failures that need the learner (denied microphone,
// network) as a retry request, and drops callbacks from superseded runs.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/glossa/internal/clock"
	"github.com/MrWong99/glossa/internal/observe"
)

// Default restart parameters.
const (
	DefaultMaxRestarts = 5
	DefaultBackoff     = 250 * time.Millisecond
	DefaultMaxBackoff  = 4 * time.Second
)

// ErrNotListening is returned by [Controller.Retry] when no turn is active.
var ErrNotListening = errors.New("recognition: not listening")

// Handler receives the callbacks of one recogniser run. A [Recognizer]
// invokes them one at a time, in the order the results were produced, and
// never from inside Start or Stop.
type Handler struct {
	// OnResult delivers an interim (final=false) or final transcript.
	OnResult func(text string, final bool)

	// OnError reports a failure. The run may still end with OnEnd.
	OnError func(err error)

	// OnEnd reports that the recogniser stopped on its own.
	OnEnd func()
}

// Recognizer is a speech recogniser that can be started and stopped
// repeatedly. Stop must be idempotent and safe to call from inside a
// Handler callback; Start may also be called from inside a callback.
type Recognizer interface {
	Start(h Handler) error
	Stop()
}

// Hinter is implemented by recognisers that accept phrase hints.
type Hinter interface {
	SetHints(hints []string) error
}

// Sink receives the controller's output for a listening turn. Calls are
// made without the controller's lock held.
type Sink interface {
	// Transcript delivers a result of the turn identified by token.
	Transcript(token uint64, text string, final bool)

	// RecognitionStatus reports that the turn needs the learner's action.
	RecognitionStatus(token uint64, st Status)
}

// Status describes a failure surfaced to the learner.
type Status struct {
	Error      ErrorKind
	NeedsRetry bool
	Message    string
}

// State is a snapshot of the controller.
type State struct {
	// Listening is true while a turn is active and not waiting for a retry.
	Listening bool

	// LastInterim is the latest interim transcript of the current run.
	LastInterim string

	// Error is the most recent failure kind of the turn.
	Error ErrorKind

	// NeedsRetry is true when the turn stopped and waits for [Controller.Retry].
	NeedsRetry bool

	// Restarts is the number of automatic restarts since the last result.
	Restarts int
}

// Config holds the restart policy. Zero fields take the defaults.
type Config struct {
	// MaxRestarts bounds automatic restarts without a result in between.
	MaxRestarts int

	// Backoff is the delay before the first restart; it doubles per restart.
	Backoff time.Duration

	// MaxBackoff caps the restart delay.
	MaxBackoff time.Duration
}

// Option configures a [Controller].
type Option func(*Controller)

// WithClock sets the timer source. Default: [clock.Real].
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(ctl *Controller) { ctl.log = l }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(ctl *Controller) { ctl.metrics = m }
}

// Controller runs a [Recognizer] for listening turns. All methods are safe
// for concurrent use.
type Controller struct {
	rec         Recognizer
	clock       clock.Clock
	log         *slog.Logger
	metrics     *observe.Metrics
	maxRestarts int
	backoff     time.Duration
	maxBackoff  time.Duration

	mu          sync.Mutex
	gen         uint64 // bumped on every start and halt; callbacks of older runs are dropped
	token       uint64
	sink        Sink
	wanted      bool
	running     bool
	needsRetry  bool
	finalSeen   bool
	heard       bool
	restarts    int
	lastInterim string
	lastErr     ErrorKind
	timer       clock.Timer
}

// NewController returns a Controller for rec.
func NewController(rec Recognizer, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		rec:         rec,
		maxRestarts: cfg.MaxRestarts,
		backoff:     cfg.Backoff,
		maxBackoff:  cfg.MaxBackoff,
	}
	if c.maxRestarts <= 0 {
		c.maxRestarts = DefaultMaxRestarts
	}
	if c.backoff <= 0 {
		c.backoff = DefaultBackoff
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = DefaultMaxBackoff
	}
	for _, o := range opts {
		o(c)
	}
	if c.clock == nil {
		c.clock = clock.Real{}
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Listen starts a listening turn for token, stopping any previous run
// first. Results and surfaced failures go to sink until the next Listen or
// Stop. A synchronous start failure is returned and leaves the turn waiting
// for [Controller.Retry].
func (c *Controller) Listen(token uint64, sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.haltLocked()
	c.token, c.sink = token, sink
	c.wanted = true
	c.needsRetry = false
	c.restarts = 0
	c.lastErr = ErrNone
	if err := c.startLocked(); err != nil {
		return fmt.Errorf("recognition: listen: %w", err)
	}
	return nil
}

// Stop ends the current turn. Later callbacks of the stopped run are
// ignored. Stop is idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wanted = false
	c.needsRetry = false
	c.sink = nil
	c.haltLocked()
}

// Retry restarts the recogniser for the current turn on the learner's
// request, resetting the restart budget.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.wanted {
		return ErrNotListening
	}
	c.haltLocked()
	c.needsRetry = false
	c.restarts = 0
	c.lastErr = ErrNone
	if err := c.startLocked(); err != nil {
		return fmt.Errorf("recognition: retry: %w", err)
	}
	return nil
}

// SetHints forwards phrase hints to the recogniser when it supports them.
func (c *Controller) SetHints(hints []string) {
	h, ok := c.rec.(Hinter)
	if !ok {
		return
	}
	if err := h.SetHints(hints); err != nil {
		c.log.Debug("recognition: set hints", "err", err)
	}
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Listening:   c.wanted && !c.needsRetry,
		LastInterim: c.lastInterim,
		Error:       c.lastErr,
		NeedsRetry:  c.needsRetry,
		Restarts:    c.restarts,
	}
}

// haltLocked invalidates the current run and any pending restart.
func (c *Controller) haltLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.running {
		c.running = false
		c.rec.Stop()
	}
}

func (c *Controller) startLocked() error {
	c.gen++
	gen := c.gen
	c.finalSeen = false
	c.heard = false
	c.lastInterim = ""

	h := Handler{
		OnResult: func(text string, final bool) { c.onResult(gen, text, final) },
		OnError:  func(err error) { c.onError(gen, err) },
		OnEnd:    func() { c.onEnd(gen) },
	}
	if err := c.rec.Start(h); err != nil {
		c.running = false
		c.needsRetry = true
		c.lastErr = Classify(err)
		return err
	}
	c.running = true
	return nil
}

func (c *Controller) current(gen uint64) bool {
	return gen == c.gen && c.wanted
}

func (c *Controller) onResult(gen uint64, text string, final bool) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return
	}
	if c.finalSeen && !final {
		c.mu.Unlock()
		return
	}
	c.heard = true
	c.restarts = 0
	c.lastErr = ErrNone
	if final {
		c.finalSeen = true
		c.lastInterim = ""
	} else {
		c.lastInterim = text
	}
	sink, token := c.sink, c.token
	c.mu.Unlock()

	if sink != nil {
		sink.Transcript(token, text, final)
	}
}

func (c *Controller) onError(gen uint64, err error) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return
	}
	kind := Classify(err)
	c.lastErr = kind
	c.metrics.RecordRecognitionError(context.Background(), kind.String())
	c.haltLocked()

	if kind.Restartable() && c.restarts < c.maxRestarts {
		delay := c.scheduleRestartLocked()
		c.mu.Unlock()
		c.log.Debug("recognition: restarting after error", "kind", kind, "delay", delay, "err", err)
		return
	}
	st := c.surfaceLocked(kind)
	sink, token := c.sink, c.token
	c.mu.Unlock()

	c.log.Warn("recognition: failed", "kind", kind, "err", err)
	if sink != nil {
		sink.RecognitionStatus(token, st)
	}
}

func (c *Controller) onEnd(gen uint64) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return
	}
	c.running = false

	if c.heard {
		c.metrics.RecordRecognitionRestart(context.Background())
		err := c.startLocked()
		if err == nil {
			c.mu.Unlock()
			return
		}
		st := c.surfaceLocked(Classify(err))
		sink, token := c.sink, c.token
		c.mu.Unlock()
		if sink != nil {
			sink.RecognitionStatus(token, st)
		}
		return
	}

	c.gen++
	if c.restarts < c.maxRestarts {
		c.scheduleRestartLocked()
		c.mu.Unlock()
		return
	}
	kind := c.lastErr
	if kind == ErrNone {
		kind = NoSpeech
	}
	st := c.surfaceLocked(kind)
	sink, token := c.sink, c.token
	c.mu.Unlock()
	if sink != nil {
		sink.RecognitionStatus(token, st)
	}
}

// scheduleRestartLocked arms the backoff timer for the current generation
// and returns its delay.
func (c *Controller) scheduleRestartLocked() time.Duration {
	delay := c.backoff
	for range c.restarts {
		delay *= 2
		if delay >= c.maxBackoff {
			delay = c.maxBackoff
			break
		}
	}
	c.restarts++
	gen := c.gen
	c.timer = c.clock.AfterFunc(delay, func() { c.restart(gen) })
	return delay
}

func (c *Controller) restart(gen uint64) {
	c.mu.Lock()
	if !c.current(gen) {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.metrics.RecordRecognitionRestart(context.Background())
	err := c.startLocked()
	if err == nil {
		c.mu.Unlock()
		return
	}
	st := c.surfaceLocked(Classify(err))
	sink, token := c.sink, c.token
	c.mu.Unlock()

	c.log.Warn("recognition: restart failed", "err", err)
	if sink != nil {
		sink.RecognitionStatus(token, st)
	}
}

func (c *Controller) surfaceLocked(kind ErrorKind) Status {
	c.needsRetry = true
	c.lastErr = kind
	return Status{Error: kind, NeedsRetry: true, Message: kind.Message()}
}
