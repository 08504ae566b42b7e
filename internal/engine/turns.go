package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/recognition"
	"github.com/MrWong99/glossa/pkg/match"
)

// Feedback lines shown through [UI.Status].
const (
	StatusTryAgain = "Try again"
	StatusSuccess  = "Well done!"
)

var _ recognition.Sink = (*Engine)(nil)

// bumpLocked invalidates every pending callback.
func (e *Engine) bumpLocked() {
	e.token++
	if e.sess != nil {
		e.sess.Token = e.token
		e.sess.advancing = false
	}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) stopListeningLocked() {
	e.listener.Stop()
	if e.sess != nil && e.sess.Listening {
		e.sess.Listening = false
		e.ui.Listening(false)
	}
}

// afterLocked runs f under the lock after d unless the token changes first.
func (e *Engine) afterLocked(d time.Duration, f func()) {
	tok := e.token
	e.timer = e.clock.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if tok != e.token {
			return
		}
		e.timer = nil
		f()
	})
}

func (e *Engine) sessionLog() *slog.Logger {
	if e.sess == nil {
		return e.log
	}
	return e.log.With("session", e.sess.ID, "character", e.sess.Character.String())
}

// enterLocked shows the current node and starts its turn.
func (e *Engine) enterLocked() {
	e.bumpLocked()
	e.stopListeningLocked()
	e.ui.HighlightOption(-1)

	n, ok := e.graph.Node(e.sess.Node)
	if !ok {
		e.missingNodeLocked(e.sess.Node)
		return
	}
	prof := e.profiles[e.sess.Character]
	e.ui.ShowLine(LineView{
		Character:   e.sess.Character,
		Name:        prof.DisplayName,
		NodeID:      n.ID,
		Speaker:     n.Speaker,
		Text:        n.Text,
		Translation: n.Translation,
		Options:     n.OptionTexts(),
		Turn:        e.sess.Turn,
	})

	if n.Speaker == dialogue.SpeakerPlayer {
		e.awaitPlayerLocked(n)
		return
	}

	e.state = AwaitingNonPlayerLine
	e.anim.Play(e.sess.Character, prof.TalkAnimation)
	voice := prof.Voice
	if n.Lang != "" {
		voice.Lang = n.Lang
	}
	tok := e.token
	if e.speaker != nil {
		e.speaker.Speak(n.Text, voice, func() { e.speechDone(tok) })
	}
	e.afterLocked(e.cfg.SpeechFallback, e.lineSpokenLocked)
}

func (e *Engine) speechDone(tok uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tok != e.token || e.state != AwaitingNonPlayerLine {
		return
	}
	e.lineSpokenLocked()
}

// lineSpokenLocked continues after a character line has been delivered.
func (e *Engine) lineSpokenLocked() {
	n, ok := e.graph.Node(e.sess.Node)
	if !ok {
		e.missingNodeLocked(e.sess.Node)
		return
	}
	e.anim.Play(e.sess.Character, e.profiles[e.sess.Character].IdleAnimation)
	switch {
	case len(n.Options) > 0:
		e.bumpLocked()
		e.awaitPlayerLocked(n)
	case n.Next != "":
		e.sess.push(n.Next)
		e.enterLocked()
	default:
		e.closingLocked()
	}
}

func (e *Engine) awaitPlayerLocked(n *dialogue.Node) {
	e.state = AwaitingPlayerUtterance

	hints := n.OptionTexts()
	if len(hints) == 0 {
		hints = append([]string{n.Text}, n.Alternates(e.cfg.Locale)...)
	}
	e.listener.SetHints(hints)

	if err := e.listener.Listen(e.token, e); err != nil {
		kind := recognition.Classify(err)
		e.sessionLog().Warn("could not start recognition", "err", err, "kind", kind)
		e.ui.Status(kind.Message())
		return
	}
	e.sess.Listening = true
	e.ui.Listening(true)
}

func (e *Engine) closingLocked() {
	e.bumpLocked()
	e.stopListeningLocked()
	e.state = Closing
	e.afterLocked(e.cfg.TerminalDelay, func() { e.endLocked(ReasonCompleted) })
}

// acceptLocked finishes the player turn and moves to next after the success
// delay. An empty next ends the conversation through Closing.
func (e *Engine) acceptLocked(next string) {
	e.bumpLocked()
	e.stopListeningLocked()
	e.sess.advancing = true
	e.ui.Status(StatusSuccess)
	e.afterLocked(e.cfg.SuccessDelay, func() {
		e.sess.advancing = false
		if next == "" {
			e.closingLocked()
			return
		}
		e.sess.push(next)
		e.enterLocked()
	})
}

func (e *Engine) missingNodeLocked(id string) {
	e.sessionLog().Error("dialogue node missing", "node", id)
	e.endLocked(ReasonMissingNode)
}

// Transcript implements [recognition.Sink]. Interim transcripts update the
// highlighting; final transcripts are graded and may advance.
func (e *Engine) Transcript(tok uint64, text string, final bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tok != e.token || e.state != AwaitingPlayerUtterance || e.sess.advancing {
		return
	}
	n, ok := e.graph.Node(e.sess.Node)
	if !ok {
		e.missingNodeLocked(e.sess.Node)
		return
	}

	var (
		res  match.Result
		flow string
		next string
	)
	if len(n.Options) > 0 {
		flow = "options"
		res = e.matcher.MatchOptions(text, n.OptionTexts())
		if e.matcher.Accepted(res) {
			e.ui.HighlightOption(res.Index)
			e.ui.HighlightWords(res.Words)
			next = n.Options[res.Index].Next
		} else {
			e.ui.HighlightOption(-1)
		}
	} else {
		flow = "phrase"
		res = e.matcher.MatchPhrase(text, n.Text, n.Alternates(e.cfg.Locale)...)
		if res.Index >= 0 {
			e.ui.HighlightWords(res.Words)
		}
		next = n.Next
	}
	if !final {
		return
	}

	accepted := e.matcher.Accepted(res)
	e.metrics.RecordMatch(context.Background(), flow, res.Score, accepted)
	e.sessionLog().Debug("transcript graded", "text", text, "score", res.Score, "index", res.Index, "accepted", accepted)
	if !accepted {
		e.ui.Status(StatusTryAgain)
		return
	}
	e.acceptLocked(next)
}

// RecognitionStatus implements [recognition.Sink].
func (e *Engine) RecognitionStatus(tok uint64, st recognition.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if tok != e.token || e.state != AwaitingPlayerUtterance {
		return
	}
	if st.NeedsRetry {
		e.sess.Listening = false
		e.ui.Listening(false)
	}
	e.ui.Status(st.Message)
}
