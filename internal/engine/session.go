package engine

import (
	"time"

	"github.com/MrWong99/glossa/internal/dialogue"
)

// Session is the state of one conversation.
type Session struct {
	// ID is a random identifier used in logs.
	ID string

	// Character is the conversation partner.
	Character dialogue.CharacterKind

	// Node is the id of the current node.
	Node string

	// Turn is the position of Node in History.
	Turn int

	// History lists the visited nodes, entry first. A rewind truncates it.
	History []string

	// Listening is true while recognition runs for a player turn.
	Listening bool

	// Token is the current stale-callback token.
	Token uint64

	// StartedAt is when the conversation started.
	StartedAt time.Time

	// advancing is set between an accepted answer and the next node.
	advancing bool
}

func (s *Session) push(id string) {
	s.History = append(s.History, id)
	s.Turn = len(s.History) - 1
	s.Node = id
}

// rewind truncates History after the last visit of id and reports whether
// id was visited.
func (s *Session) rewind(id string) bool {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i] == id {
			s.History = s.History[:i+1]
			s.Turn = i
			s.Node = id
			return true
		}
	}
	return false
}
