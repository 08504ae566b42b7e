// Package mock provides recording implementations of the engine's
// collaborators for unit tests.
//
// Every mock records its calls and is safe for concurrent use. Callbacks the
// engine hands out (speech completion, recognition sink) are stored so that
// tests can fire them explicitly, outside the engine's lock.
package mock

import (
	"slices"
	"sync"

	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/engine"
	"github.com/MrWong99/glossa/internal/recognition"
	"github.com/MrWong99/glossa/pkg/match"
)

var (
	_ engine.Proximity = (*Proximity)(nil)
	_ engine.Animator  = (*Animator)(nil)
	_ engine.Speaker   = (*Speaker)(nil)
	_ engine.UI        = (*UI)(nil)
	_ engine.Listener  = (*Listener)(nil)
)

// Proximity reports every character in range unless marked otherwise.
type Proximity struct {
	mu  sync.Mutex
	out map[dialogue.CharacterKind]bool
}

// SetInRange marks kind as in or out of range.
func (p *Proximity) SetInRange(kind dialogue.CharacterKind, in bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out == nil {
		p.out = make(map[dialogue.CharacterKind]bool)
	}
	p.out[kind] = !in
}

func (p *Proximity) InRange(kind dialogue.CharacterKind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.out[kind]
}

// Animator records played animations.
type Animator struct {
	mu    sync.Mutex
	calls []string
}

func (a *Animator) Play(kind dialogue.CharacterKind, animation string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, kind.String()+":"+animation)
}

// Calls returns "character:animation" for every Play call.
func (a *Animator) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.calls)
}

// SpeakCall records one Speak invocation.
type SpeakCall struct {
	Text  string
	Voice dialogue.Voice
	Done  func()
}

// Speaker records lines; tests complete them with Finish.
type Speaker struct {
	mu    sync.Mutex
	calls []SpeakCall
}

func (s *Speaker) Speak(text string, voice dialogue.Voice, done func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, SpeakCall{Text: text, Voice: voice, Done: done})
}

// Calls returns every Speak call.
func (s *Speaker) Calls() []SpeakCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Finish reports completion of the most recent line. It returns false when
// nothing was spoken.
func (s *Speaker) Finish() bool {
	s.mu.Lock()
	if len(s.calls) == 0 {
		s.mu.Unlock()
		return false
	}
	done := s.calls[len(s.calls)-1].Done
	s.mu.Unlock()
	done()
	return true
}

// UI records what the dialogue box was told to show.
type UI struct {
	mu         sync.Mutex
	Lines      []engine.LineView
	Words      []match.WordMatch
	Options    []int
	Statuses   []string
	Listenings []bool
	Closes     int
}

func (u *UI) ShowLine(v engine.LineView) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Lines = append(u.Lines, v)
}

func (u *UI) HighlightWords(m match.WordMatch) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Words = append(u.Words, m)
}

func (u *UI) HighlightOption(index int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Options = append(u.Options, index)
}

func (u *UI) Status(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Statuses = append(u.Statuses, msg)
}

func (u *UI) Listening(on bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Listenings = append(u.Listenings, on)
}

func (u *UI) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Closes++
}

// LastLine returns the most recently shown line.
func (u *UI) LastLine() engine.LineView {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.Lines) == 0 {
		return engine.LineView{}
	}
	return u.Lines[len(u.Lines)-1]
}

// LastStatus returns the most recent status line.
func (u *UI) LastStatus() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.Statuses) == 0 {
		return ""
	}
	return u.Statuses[len(u.Statuses)-1]
}

// CloseCount returns the number of Close calls.
func (u *UI) CloseCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.Closes
}

// Listener records recognition requests and keeps the latest sink so tests
// can deliver transcripts.
type Listener struct {
	mu        sync.Mutex
	ListenErr error
	RetryErr  error
	tokens    []uint64
	sink      recognition.Sink
	active    bool
	stops     int
	retries   int
	hints     [][]string
}

func (l *Listener) Listen(token uint64, sink recognition.Sink) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens = append(l.tokens, token)
	if l.ListenErr != nil {
		return l.ListenErr
	}
	l.sink = sink
	l.active = true
	return nil
}

func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stops++
	l.active = false
}

func (l *Listener) Retry() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.retries++
	if l.RetryErr != nil {
		return l.RetryErr
	}
	l.active = true
	return nil
}

func (l *Listener) SetHints(hints []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hints = append(l.hints, slices.Clone(hints))
}

// Active reports whether recognition is running.
func (l *Listener) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// LastToken returns the token of the latest Listen call, or 0.
func (l *Listener) LastToken() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tokens) == 0 {
		return 0
	}
	return l.tokens[len(l.tokens)-1]
}

// ListenCount returns the number of Listen calls.
func (l *Listener) ListenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tokens)
}

// Hints returns every hint list passed to SetHints.
func (l *Listener) Hints() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.hints)
}

// Say delivers a transcript with the latest token, as a recogniser would.
func (l *Listener) Say(text string, final bool) {
	l.SayWith(l.LastToken(), text, final)
}

// SayWith delivers a transcript with an explicit token.
func (l *Listener) SayWith(token uint64, text string, final bool) {
	l.mu.Lock()
	sink := l.sink
	l.mu.Unlock()
	if sink != nil {
		sink.Transcript(token, text, final)
	}
}

// Fail delivers a recognition status with the latest token.
func (l *Listener) Fail(st recognition.Status) {
	l.mu.Lock()
	sink := l.sink
	l.mu.Unlock()
	if sink != nil {
		sink.RecognitionStatus(l.LastToken(), st)
	}
}
