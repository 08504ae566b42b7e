// Package engine implements the dialogue state machine that drives a
// conversation between the learner and one character.
//
// An [Engine] walks a [dialogue.Graph]: character lines are spoken through
// the [Speaker], player turns are heard through the [Listener] and graded
// with a [match.Matcher], and accepted answers advance the conversation
// after a short success pause. Terminal lines close the dialogue on their
// own, and the learner may rewind to any earlier step.
//
// Every transition happens under one mutex. Timers, speech completions and
// recognition results carry the token that was current when they were
// scheduled; the token changes on every node entry and on End, so
// callbacks from an earlier step or session are ignored.
package engine

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/glossa/internal/clock"
	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/pkg/match"
)

// State is the engine's dialogue state.
type State int

const (
	// Idle means no dialogue is active.
	Idle State = iota

	// AwaitingNonPlayerLine means the character is speaking.
	AwaitingNonPlayerLine

	// AwaitingPlayerUtterance means the learner must say a line or pick an
	// option.
	AwaitingPlayerUtterance

	// Closing means a terminal line is shown and the dialogue ends soon.
	Closing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingNonPlayerLine:
		return "awaiting_npc_line"
	case AwaitingPlayerUtterance:
		return "awaiting_player_utterance"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// End reasons passed to [Engine.End] by the engine itself.
const (
	ReasonCompleted   = "completed"
	ReasonOutOfRange  = "out_of_range"
	ReasonMissingNode = "missing_node"
	ReasonUser        = "user"
)

// Config holds the engine's timings. Zero fields take the defaults.
type Config struct {
	// Cooldown blocks a new Start after a dialogue starts or ends.
	Cooldown time.Duration

	// SuccessDelay is the pause between an accepted answer and the next
	// node.
	SuccessDelay time.Duration

	// TerminalDelay is how long a terminal line stays before the dialogue
	// ends.
	TerminalDelay time.Duration

	// SpeechFallback advances a character line when the speaker never
	// reports completion.
	SpeechFallback time.Duration

	// Locale is the recogniser locale used to pick phrase variants. Empty
	// means every variant is tried.
	Locale string
}

// Default timings.
const (
	DefaultCooldown       = 1500 * time.Millisecond
	DefaultSuccessDelay   = 500 * time.Millisecond
	DefaultTerminalDelay  = 3000 * time.Millisecond
	DefaultSpeechFallback = 4 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.SuccessDelay <= 0 {
		c.SuccessDelay = DefaultSuccessDelay
	}
	if c.TerminalDelay <= 0 {
		c.TerminalDelay = DefaultTerminalDelay
	}
	if c.SpeechFallback <= 0 {
		c.SpeechFallback = DefaultSpeechFallback
	}
	return c
}

// Option configures an [Engine].
type Option func(*Engine)

// WithProximity sets the range check. Default: always in range.
func WithProximity(p Proximity) Option { return func(e *Engine) { e.prox = p } }

// WithAnimator sets the animation sink.
func WithAnimator(a Animator) Option { return func(e *Engine) { e.anim = a } }

// WithSpeaker sets the speech synthesiser. Without one, character lines
// advance after the speech fallback delay.
func WithSpeaker(s Speaker) Option { return func(e *Engine) { e.speaker = s } }

// WithUI sets the dialogue box renderer.
func WithUI(u UI) Option { return func(e *Engine) { e.ui = u } }

// WithListener sets the speech recognition controller. Without one, player
// turns can only be answered through [Engine.Select].
func WithListener(l Listener) Option { return func(e *Engine) { e.listener = l } }

// WithClock sets the timer source. Default: [clock.Real].
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithMatcher sets the matching policy. Default: [match.NewMatcher].
func WithMatcher(m match.Matcher) Option { return func(e *Engine) { e.matcher = m } }

// WithProfiles overrides the built-in character profiles.
func WithProfiles(p map[dialogue.CharacterKind]dialogue.Profile) Option {
	return func(e *Engine) {
		for k, v := range p {
			e.profiles[k] = v
		}
	}
}

// Engine is the dialogue state machine of one player. It is safe for
// concurrent use.
type Engine struct {
	store    dialogue.Store
	prox     Proximity
	anim     Animator
	speaker  Speaker
	ui       UI
	listener Listener
	clock    clock.Clock
	log      *slog.Logger
	metrics  *observe.Metrics
	profiles map[dialogue.CharacterKind]dialogue.Profile

	mu            sync.Mutex
	cfg           Config
	matcher       match.Matcher
	state         State
	sess          *Session
	graph         *dialogue.Graph
	token         uint64
	cooldownUntil time.Time
	timer         clock.Timer
}

// New returns an idle Engine reading conversations from store.
func New(store dialogue.Store, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		cfg:      cfg.withDefaults(),
		matcher:  match.NewMatcher(),
		profiles: make(map[dialogue.CharacterKind]dialogue.Profile),
	}
	for _, k := range dialogue.Kinds() {
		e.profiles[k] = dialogue.DefaultProfile(k)
	}
	for _, o := range opts {
		o(e)
	}
	if e.prox == nil {
		e.prox = nopProximity{}
	}
	if e.anim == nil {
		e.anim = nopAnimator{}
	}
	if e.ui == nil {
		e.ui = nopUI{}
	}
	if e.listener == nil {
		e.listener = nopListener{}
	}
	if e.clock == nil {
		e.clock = clock.Real{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns a copy of the active session, or false when idle.
func (e *Engine) Snapshot() (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return Session{}, false
	}
	s := *e.sess
	s.History = slices.Clone(s.History)
	return s, true
}

// Profile returns the presentation profile used for kind.
func (e *Engine) Profile(kind dialogue.CharacterKind) dialogue.Profile {
	return e.profiles[kind]
}

// SetMatching replaces the matching policy. It applies from the next
// transcript on.
func (e *Engine) SetMatching(m match.Matcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.matcher = m
}

// Matcher returns the current matching policy.
func (e *Engine) Matcher() match.Matcher {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matcher
}

// CooldownRemaining reports how long Start stays blocked.
func (e *Engine) CooldownRemaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return max(e.cooldownUntil.Sub(e.clock.Now()), 0)
}
