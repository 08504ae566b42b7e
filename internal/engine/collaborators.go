package engine

import (
	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/recognition"
	"github.com/MrWong99/glossa/pkg/match"
)

// The engine calls its collaborators while holding its lock. Implementations
// must return promptly and must not call back into the engine from inside
// these methods; asynchronous callbacks (such as a Speak completion) are
// fine.

// Proximity reports whether the player is close enough to a character.
type Proximity interface {
	InRange(kind dialogue.CharacterKind) bool
}

// Animator plays named animations on characters.
type Animator interface {
	Play(kind dialogue.CharacterKind, animation string)
}

// Speaker synthesises a character's line. done must be called exactly once
// when playback finishes, from another goroutine than Speak's caller.
type Speaker interface {
	Speak(text string, voice dialogue.Voice, done func())
}

// LineView is what the dialogue box shows for a node.
type LineView struct {
	Character   dialogue.CharacterKind
	Name        string
	NodeID      string
	Speaker     dialogue.Speaker
	Text        string
	Translation string
	Options     []string
	Turn        int
}

// UI renders the dialogue box.
type UI interface {
	// ShowLine displays a node.
	ShowLine(v LineView)

	// HighlightWords marks the recognised words of the current player line,
	// or of the option last passed to HighlightOption.
	HighlightWords(m match.WordMatch)

	// HighlightOption marks the option the learner appears to be saying;
	// -1 clears the mark.
	HighlightOption(index int)

	// Status shows a short feedback line ("Try again", permission hints).
	Status(msg string)

	// Listening toggles the microphone indicator.
	Listening(on bool)

	// Close hides the dialogue box.
	Close()
}

// Listener runs speech recognition for player turns. It is satisfied by
// [*recognition.Controller].
type Listener interface {
	Listen(token uint64, sink recognition.Sink) error
	Stop()
	Retry() error
	SetHints(hints []string)
}

var _ Listener = (*recognition.Controller)(nil)

type nopProximity struct{}

func (nopProximity) InRange(dialogue.CharacterKind) bool { return true }

type nopAnimator struct{}

func (nopAnimator) Play(dialogue.CharacterKind, string) {}

type nopUI struct{}

func (nopUI) ShowLine(LineView)              {}
func (nopUI) HighlightWords(match.WordMatch) {}
func (nopUI) HighlightOption(int)            {}
func (nopUI) Status(string)                  {}
func (nopUI) Listening(bool)                 {}
func (nopUI) Close()                         {}

type nopListener struct{}

func (nopListener) Listen(uint64, recognition.Sink) error { return nil }
func (nopListener) Stop()                                 {}
func (nopListener) Retry() error                          { return nil }
func (nopListener) SetHints([]string)                     {}
