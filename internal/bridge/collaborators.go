package bridge

import (
	"strconv"

	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/engine"
	"github.com/MrWong99/glossa/pkg/match"
)

var (
	_ engine.Proximity = proximity{}
	_ engine.Animator  = animator{}
	_ engine.Speaker   = speaker{}
	_ engine.UI        = dialogueBox{}
)

// proximity answers from the last distance report of the browser. A
// character never reported is out of range.
type proximity struct{ c *Conn }

func (p proximity) InRange(kind dialogue.CharacterKind) bool {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	return p.c.inRange[kind]
}

type animator struct{ c *Conn }

func (a animator) Play(kind dialogue.CharacterKind, animation string) {
	a.c.send(animateMsg{Type: TypeAnimate, Character: kind.String(), Name: animation})
}

// speaker asks the browser to synthesise a line and keeps done until the
// matching speech_end arrives. Only the latest line is kept: an earlier one
// was either finished by the engine's fallback timer or abandoned.
type speaker struct{ c *Conn }

func (s speaker) Speak(text string, voice dialogue.Voice, done func()) {
	s.c.mu.Lock()
	clear(s.c.speeches)
	s.c.speechSeq++
	id := strconv.FormatUint(s.c.speechSeq, 10)
	s.c.speeches[id] = done
	s.c.mu.Unlock()
	s.c.send(speakMsg{Type: TypeSpeak, ID: id, Text: text, Voice: voice})
}

type dialogueBox struct{ c *Conn }

func (d dialogueBox) ShowLine(v engine.LineView) {
	d.c.send(dialogueMsg{
		Type:        TypeDialogue,
		Character:   v.Character.String(),
		Name:        v.Name,
		Node:        v.NodeID,
		Speaker:     v.Speaker.String(),
		Text:        v.Text,
		Translation: v.Translation,
		Options:     v.Options,
		Turn:        v.Turn,
	})
}

func (d dialogueBox) HighlightWords(m match.WordMatch) {
	d.c.send(highlightMsg{Type: TypeHighlight, Words: m.Words, Matched: m.Matched, RuneWord: m.RuneWord})
}

func (d dialogueBox) HighlightOption(index int) {
	d.c.send(optionHighlightMsg{Type: TypeOptionHighlight, Index: index})
}

func (d dialogueBox) Status(msg string) {
	d.c.send(statusMsg{Type: TypeStatus, Message: msg})
}

func (d dialogueBox) Listening(on bool) {
	d.c.send(listeningMsg{Type: TypeListening, Active: on})
}

func (d dialogueBox) Close() {
	d.c.send(typeOnlyMsg{Type: TypeClose})
}
