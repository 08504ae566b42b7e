package bridge

import (
	"github.com/MrWong99/glossa/internal/dialogue"
)

// Client message types.
const (
	TypeApproach         = "approach"
	TypeDistance         = "distance"
	TypeStart            = "start"
	TypeTranscript       = "transcript"
	TypeRecognitionError = "recognition_error"
	TypeRecognitionEnd   = "recognition_end"
	TypeSpeechEnd        = "speech_end"
	TypeSelect           = "select"
	TypeGoto             = "goto"
	TypeEnd              = "end"
	TypeRetry            = "retry"
)

// Server message types.
const (
	TypeDialogue        = "dialogue"
	TypeHighlight       = "highlight"
	TypeOptionHighlight = "option_highlight"
	TypeStatus          = "status"
	TypeListening       = "listening"
	TypeListen          = "listen"
	TypeHints           = "hints"
	TypeStopListening   = "stop_listening"
	TypeSpeak           = "speak"
	TypeAnimate         = "animate"
	TypeClose           = "close"
	TypeError           = "error"
)

// Inbound is a message from the browser. Only the fields of its Type are
// set.
type Inbound struct {
	Type string `json:"type"`

	// Character names the character for approach, distance and start.
	Character string `json:"character,omitempty"`

	// InRange is the proximity reported by distance.
	InRange bool `json:"in_range,omitempty"`

	// Distance is the player's distance to the character in world units.
	// When set it replaces InRange, compared against the character's range.
	Distance *float64 `json:"distance,omitempty"`

	// Stream is the recognition stream a transcript, recognition_error or
	// recognition_end belongs to. Messages without one are ignored.
	Stream uint64 `json:"stream,omitempty"`

	Text    string `json:"text,omitempty"`
	Final   bool   `json:"final,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	// ID is the speech id of speech_end.
	ID string `json:"id,omitempty"`

	Index int    `json:"index,omitempty"`
	Node  string `json:"node,omitempty"`
}

type dialogueMsg struct {
	Type        string   `json:"type"`
	Character   string   `json:"character"`
	Name        string   `json:"name"`
	Node        string   `json:"node"`
	Speaker     string   `json:"speaker"`
	Text        string   `json:"text"`
	Translation string   `json:"translation,omitempty"`
	Options     []string `json:"options,omitempty"`
	Turn        int      `json:"turn"`
}

type highlightMsg struct {
	Type     string   `json:"type"`
	Words    []string `json:"words"`
	Matched  []bool   `json:"matched"`
	RuneWord []int    `json:"rune_word"`
}

type optionHighlightMsg struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type statusMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type listeningMsg struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

type listenMsg struct {
	Type       string   `json:"type"`
	Stream     uint64   `json:"stream"`
	Language   string   `json:"language"`
	Interim    bool     `json:"interim"`
	Continuous bool     `json:"continuous"`
	Hints      []string `json:"hints,omitempty"`
}

type hintsMsg struct {
	Type   string   `json:"type"`
	Stream uint64   `json:"stream"`
	Hints  []string `json:"hints"`
}

type stopListeningMsg struct {
	Type   string `json:"type"`
	Stream uint64 `json:"stream"`
}

type speakMsg struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Text  string         `json:"text"`
	Voice dialogue.Voice `json:"voice"`
}

type animateMsg struct {
	Type      string `json:"type"`
	Character string `json:"character"`
	Name      string `json:"name"`
}

type typeOnlyMsg struct {
	Type string `json:"type"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
