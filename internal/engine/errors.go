package engine

import (
	"errors"
	"fmt"
)

// Recoverable conditions. Operations returning them leave the engine
// unchanged.
var (
	// ErrCooldown is returned by Start during the re-entry cooldown.
	ErrCooldown = errors.New("engine: dialogue cooldown active")

	// ErrBusy is returned by Start while a dialogue is active.
	ErrBusy = errors.New("engine: dialogue already active")

	// ErrOutOfRange is returned by Start when the player is too far away.
	ErrOutOfRange = errors.New("engine: player out of range")

	// ErrUnknownCharacter is returned by Start for a character without
	// content.
	ErrUnknownCharacter = errors.New("engine: unknown character")

	// ErrNotActive is returned by operations that need an active dialogue.
	ErrNotActive = errors.New("engine: no active dialogue")
)

// ErrInvalidTransition is wrapped by every [*TransitionError].
var ErrInvalidTransition = errors.New("engine: invalid transition")

// TransitionError reports an operation the current state does not allow.
// These indicate caller bugs, such as selecting an option while the
// character is still speaking.
type TransitionError struct {
	// Op is the rejected operation.
	Op string

	// State is the engine state at the time of the call.
	State State

	// Reason describes the violated precondition.
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("engine: %s in state %s: %s", e.Op, e.State, e.Reason)
}

// Unwrap returns [ErrInvalidTransition].
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
