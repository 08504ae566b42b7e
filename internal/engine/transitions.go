package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/observe"
)

// Start begins a conversation with kind at its entry node. It fails without
// side effects when a dialogue is active, the cooldown runs, the player is
// out of range or the character has no content.
func (e *Engine) Start(ctx context.Context, kind dialogue.CharacterKind) error {
	ctx, span := observe.StartSpan(ctx, "engine.Start")
	defer span.End()
	span.SetAttributes(attribute.String("character", kind.String()))

	if err := e.checkStart(ctx, kind); err != nil {
		return err
	}

	graph, err := e.store.Graph(ctx, kind)
	if err != nil {
		if errors.Is(err, dialogue.ErrNotFound) {
			e.metrics.RecordStartRejected(ctx, "unknown_character")
			return fmt.Errorf("%w: %s", ErrUnknownCharacter, kind)
		}
		return fmt.Errorf("engine: load conversation of %s: %w", kind, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The graph was loaded without the lock; re-check what may have changed.
	if err := e.checkStartLocked(ctx, kind); err != nil {
		return err
	}

	e.graph = graph
	e.sess = &Session{
		ID:        uuid.NewString(),
		Character: kind,
		StartedAt: e.clock.Now(),
	}
	e.cooldownUntil = e.clock.Now().Add(e.cfg.Cooldown)
	e.metrics.RecordDialogueStart(ctx, kind.String())
	e.sessionLog().Info("dialogue started", "entry", graph.Entry)

	e.sess.push(graph.Entry)
	e.enterLocked()
	return nil
}

func (e *Engine) checkStart(ctx context.Context, kind dialogue.CharacterKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkStartLocked(ctx, kind)
}

func (e *Engine) checkStartLocked(ctx context.Context, kind dialogue.CharacterKind) error {
	var err error
	switch {
	case !kind.IsValid():
		err = fmt.Errorf("%w: %s", ErrUnknownCharacter, kind)
	case e.state != Idle:
		err = ErrBusy
	case e.clock.Now().Before(e.cooldownUntil):
		err = ErrCooldown
	case !e.prox.InRange(kind):
		err = ErrOutOfRange
	default:
		return nil
	}
	e.metrics.RecordStartRejected(ctx, rejectReason(err))
	return err
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrCooldown):
		return "cooldown"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	default:
		return "unknown_character"
	}
}

// Select answers the current player turn by choice instead of speech: the
// option at index, or index 0 to confirm a single player line.
func (e *Engine) Select(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != AwaitingPlayerUtterance {
		return &TransitionError{Op: "select", State: e.state, Reason: "no player turn pending"}
	}
	if e.sess.advancing {
		return &TransitionError{Op: "select", State: e.state, Reason: "answer already accepted"}
	}
	n, ok := e.graph.Node(e.sess.Node)
	if !ok {
		e.missingNodeLocked(e.sess.Node)
		return nil
	}
	if len(n.Options) > 0 {
		if index < 0 || index >= len(n.Options) {
			return &TransitionError{Op: "select", State: e.state, Reason: fmt.Sprintf("option %d out of range [0,%d)", index, len(n.Options))}
		}
		e.ui.HighlightOption(index)
		e.acceptLocked(n.Options[index].Next)
		return nil
	}
	if index != 0 {
		return &TransitionError{Op: "select", State: e.state, Reason: fmt.Sprintf("line has no option %d", index)}
	}
	e.acceptLocked(n.Next)
	return nil
}

// GoToStep rewinds the conversation to the last visit of nodeID: later
// history is dropped, pending timers and recognition are cancelled and the
// node is entered again with its original turn index.
func (e *Engine) GoToStep(nodeID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Idle {
		return ErrNotActive
	}
	if !e.sess.rewind(nodeID) {
		return &TransitionError{Op: "goto", State: e.state, Reason: fmt.Sprintf("node %q not in history", nodeID)}
	}
	e.sessionLog().Debug("dialogue rewound", "node", nodeID, "turn", e.sess.Turn)
	e.enterLocked()
	return nil
}

// End stops the active conversation for reason.
func (e *Engine) End(reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Idle {
		return ErrNotActive
	}
	e.endLocked(reason)
	return nil
}

// CheckProximity ends the active conversation when the player has left the
// character's range. It reports whether a conversation was ended.
func (e *Engine) CheckProximity() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Idle || e.prox.InRange(e.sess.Character) {
		return false
	}
	e.endLocked(ReasonOutOfRange)
	return true
}

// Retry restarts recognition after a failure that needed the learner.
func (e *Engine) Retry() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != AwaitingPlayerUtterance || e.sess.advancing {
		return &TransitionError{Op: "retry", State: e.state, Reason: "no player turn pending"}
	}
	if err := e.listener.Retry(); err != nil {
		return fmt.Errorf("engine: retry recognition: %w", err)
	}
	e.sess.Listening = true
	e.ui.Status("")
	e.ui.Listening(true)
	return nil
}

func (e *Engine) endLocked(reason string) {
	kind := e.sess.Character
	e.bumpLocked()
	e.stopListeningLocked()
	e.anim.Play(kind, e.profiles[kind].IdleAnimation)
	e.ui.Close()

	e.metrics.RecordDialogueEnd(context.Background(), kind.String(), reason)
	e.sessionLog().Info("dialogue ended", "reason", reason, "turns", e.sess.Turn+1)

	e.cooldownUntil = e.clock.Now().Add(e.cfg.Cooldown)
	e.sess = nil
	e.graph = nil
	e.state = Idle
}
