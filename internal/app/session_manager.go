package app

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/glossa/internal/bridge"
	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/engine"
	"github.com/MrWong99/glossa/pkg/match"
)

// SessionInfo describes one live browser connection.
type SessionInfo struct {
	// ConnID is the connection's identifier, as it appears in logs.
	ConnID string

	// ConnectedAt is when the connection was registered.
	ConnectedAt time.Time

	// State is the connection engine's dialogue state.
	State engine.State

	// Active is true while a conversation runs. The fields below are only
	// set when it is.
	Active bool

	// Character is the conversation partner.
	Character dialogue.CharacterKind

	// Node is the current dialogue node.
	Node string

	// Turn is the position of Node in the conversation history.
	Turn int
}

type trackedConn struct {
	conn  *bridge.Conn
	since time.Time
}

// SessionManager tracks every live connection so configuration changes can
// reach their engines. It implements [bridge.Registry].
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu      sync.Mutex
	conns   map[string]trackedConn
	matcher match.Matcher
	now     func() time.Time
}

var _ bridge.Registry = (*SessionManager)(nil)

// NewSessionManager returns a SessionManager applying m to every
// registered engine.
func NewSessionManager(m match.Matcher) *SessionManager {
	return &SessionManager{
		conns:   make(map[string]trackedConn),
		matcher: m,
		now:     time.Now,
	}
}

// Add registers c and brings its engine up to the current matching policy.
func (sm *SessionManager) Add(c *bridge.Conn) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.conns[c.ID()] = trackedConn{conn: c, since: sm.now().UTC()}
	c.Engine().SetMatching(sm.matcher)
}

// Remove forgets c. Unknown connections are ignored.
func (sm *SessionManager) Remove(c *bridge.Conn) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.conns, c.ID())
}

// SetMatching replaces the matching policy of every live engine and of
// connections registered later.
func (sm *SessionManager) SetMatching(m match.Matcher) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.matcher = m
	for _, tc := range sm.conns {
		tc.conn.Engine().SetMatching(m)
	}
}

// Matcher returns the current matching policy.
func (sm *SessionManager) Matcher() match.Matcher {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.matcher
}

// Count returns the number of live connections.
func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.conns)
}

// Sessions returns a description of every live connection, oldest first.
func (sm *SessionManager) Sessions() []SessionInfo {
	sm.mu.Lock()
	tracked := make([]trackedConn, 0, len(sm.conns))
	for _, tc := range sm.conns {
		tracked = append(tracked, tc)
	}
	sm.mu.Unlock()

	out := make([]SessionInfo, 0, len(tracked))
	for _, tc := range tracked {
		info := SessionInfo{
			ConnID:      tc.conn.ID(),
			ConnectedAt: tc.since,
			State:       tc.conn.Engine().State(),
		}
		if s, ok := tc.conn.Engine().Snapshot(); ok {
			info.Active = true
			info.Character = s.Character
			info.Node = s.Node
			info.Turn = s.Turn
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if c := a.ConnectedAt.Compare(b.ConnectedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ConnID, b.ConnID)
	})
	return out
}
