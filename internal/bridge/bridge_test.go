package bridge_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/glossa/internal/bridge"
	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/engine"
	"github.com/MrWong99/glossa/internal/recognition"
	"github.com/MrWong99/glossa/pkg/provider/stt"
)

// msg is the union of every server message field.
type msg struct {
	Type      string   `json:"type"`
	Character string   `json:"character"`
	Name      string   `json:"name"`
	Node      string   `json:"node"`
	Speaker   string   `json:"speaker"`
	Text      string   `json:"text"`
	Options   []string `json:"options"`
	Turn      int      `json:"turn"`
	ID        string   `json:"id"`
	Stream    uint64   `json:"stream"`
	Language  string   `json:"language"`
	Hints     []string `json:"hints"`
	Index     int      `json:"index"`
	Message   string   `json:"message"`
	Active    bool     `json:"active"`
	Words     []string `json:"words"`
	Matched   []bool   `json:"matched"`
}

type registry struct {
	mu    sync.Mutex
	conns map[*bridge.Conn]bool
}

func (r *registry) Add(c *bridge.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns == nil {
		r.conns = make(map[*bridge.Conn]bool)
	}
	r.conns[c] = true
}

func (r *registry) Remove(c *bridge.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
}

func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func startServer(t *testing.T) (*httptest.Server, *registry) {
	t.Helper()
	store := dialogue.NewMemStore()
	cat, err := dialogue.LinearScript(dialogue.KindCat, []dialogue.PhrasePair{
		{Native: "Hello", Target: dialogue.Phrase{Text: "Hola"}},
		{Native: "Hello friend", Target: dialogue.Phrase{Text: "Hola amigo"}},
		{Native: "Very good", Target: dialogue.Phrase{Text: "Muy bien"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveGraph(context.Background(), cat); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	reg := &registry{}
	h := bridge.NewHandler(ctx, bridge.Config{
		Store: store,
		Engine: engine.Config{
			Cooldown:       time.Millisecond,
			SuccessDelay:   10 * time.Millisecond,
			TerminalDelay:  20 * time.Millisecond,
			SpeechFallback: time.Minute,
		},
		Recognition: recognition.Config{Backoff: time.Millisecond},
		Stream:      stt.StreamConfig{Language: "es-ES", Interim: true},
	}, bridge.WithRegistry(reg))
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, reg
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.CloseNow() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, in bridge.Inbound) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(in)
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write %s: %v", in.Type, err)
	}
}

func sendRaw(t *testing.T, ws *websocket.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// expect reads messages until one of type typ arrives.
func expect(t *testing.T, ws *websocket.Conn, typ string) msg {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var seen []string
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %q (saw %v): %v", typ, seen, err)
		}
		var m msg
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if m.Type == typ {
			return m
		}
		seen = append(seen, m.Type)
	}
}

// reachPlayerTurn starts the cat conversation and finishes its first line.
func reachPlayerTurn(t *testing.T, ws *websocket.Conn) msg {
	t.Helper()
	send(t, ws, bridge.Inbound{Type: bridge.TypeApproach, Character: "cat"})

	line := expect(t, ws, bridge.TypeDialogue)
	if line.Node != dialogue.StepID(0) || line.Speaker != "npc" || line.Text != "Hola" || line.Name != "Cat" {
		t.Fatalf("first line = %+v", line)
	}
	speak := expect(t, ws, bridge.TypeSpeak)
	if speak.Text != "Hola" || speak.ID == "" {
		t.Fatalf("speak = %+v", speak)
	}
	send(t, ws, bridge.Inbound{Type: bridge.TypeSpeechEnd, ID: speak.ID})

	line = expect(t, ws, bridge.TypeDialogue)
	if line.Node != dialogue.StepID(1) || line.Speaker != "player" || line.Turn != 1 {
		t.Fatalf("player line = %+v", line)
	}
	listen := expect(t, ws, bridge.TypeListen)
	if listen.Language != "es-ES" || !slices.Contains(listen.Hints, "Hola amigo") || listen.Stream == 0 {
		t.Fatalf("listen = %+v", listen)
	}
	return listen
}

func TestConversationRoundTrip(t *testing.T) {
	t.Parallel()
	srv, reg := startServer(t)
	ws := dial(t, srv)

	listen := reachPlayerTurn(t, ws)
	if reg.Len() != 1 {
		t.Errorf("registered connections = %d, want 1", reg.Len())
	}

	send(t, ws, bridge.Inbound{Type: bridge.TypeTranscript, Stream: listen.Stream, Text: "hola amigo"})
	hl := expect(t, ws, bridge.TypeHighlight)
	if !slices.Equal(hl.Matched, []bool{true, true}) {
		t.Errorf("highlight = %+v", hl)
	}

	send(t, ws, bridge.Inbound{Type: bridge.TypeTranscript, Stream: listen.Stream, Text: "hola amigo", Final: true})
	if stop := expect(t, ws, bridge.TypeStopListening); stop.Stream != listen.Stream {
		t.Errorf("stop_listening stream = %d, want %d", stop.Stream, listen.Stream)
	}
	if st := expect(t, ws, bridge.TypeStatus); st.Message != engine.StatusSuccess {
		t.Errorf("status = %q", st.Message)
	}

	line := expect(t, ws, bridge.TypeDialogue)
	if line.Node != dialogue.StepID(2) {
		t.Fatalf("after answer at %q", line.Node)
	}
	speak := expect(t, ws, bridge.TypeSpeak)
	send(t, ws, bridge.Inbound{Type: bridge.TypeSpeechEnd, ID: speak.ID})
	expect(t, ws, bridge.TypeClose)

	if err := ws.Close(websocket.StatusNormalClosure, ""); err != nil {
		t.Logf("close: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for reg.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection still registered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecognitionFailureAndRetry(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t)
	ws := dial(t, srv)
	listen := reachPlayerTurn(t, ws)

	send(t, ws, bridge.Inbound{Type: bridge.TypeRecognitionError, Stream: listen.Stream, Code: "not-allowed"})
	if st := expect(t, ws, bridge.TypeStatus); st.Message != recognition.NotAllowed.Message() {
		t.Errorf("status = %q, want %q", st.Message, recognition.NotAllowed.Message())
	}

	send(t, ws, bridge.Inbound{Type: bridge.TypeRetry})
	again := expect(t, ws, bridge.TypeListen)
	if again.Stream <= listen.Stream {
		t.Errorf("retry reused stream %d", again.Stream)
	}
	if st := expect(t, ws, bridge.TypeStatus); st.Message != "" {
		t.Errorf("status after retry = %q, want cleared", st.Message)
	}

	// Results of the superseded stream are ignored.
	send(t, ws, bridge.Inbound{Type: bridge.TypeTranscript, Stream: listen.Stream, Text: "hola amigo", Final: true})
	send(t, ws, bridge.Inbound{Type: bridge.TypeSelect, Index: 0})
	if st := expect(t, ws, bridge.TypeStatus); st.Message != engine.StatusSuccess {
		t.Errorf("status = %q", st.Message)
	}
	line := expect(t, ws, bridge.TypeDialogue)
	if line.Node != dialogue.StepID(2) {
		t.Errorf("after select at %q", line.Node)
	}
}

func TestRejectedRequests(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t)
	ws := dial(t, srv)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "malformed", raw: `{"type":`, want: "malformed"},
		{name: "unknown type", raw: `{"type":"dance"}`, want: "unknown message type"},
		{name: "unknown character", raw: `{"type":"start","character":"dragon"}`, want: "unknown character"},
		{name: "out of range", raw: `{"type":"start","character":"cat"}`, want: "out of range"},
		{name: "select while idle", raw: `{"type":"select","index":0}`, want: "select in state idle"},
		{name: "end while idle", raw: `{"type":"end"}`, want: "no active dialogue"},
	}
	for _, tt := range tests {
		sendRaw(t, ws, tt.raw)
		m := expect(t, ws, bridge.TypeError)
		if !strings.Contains(m.Message, tt.want) {
			t.Errorf("%s: error = %q, want it to contain %q", tt.name, m.Message, tt.want)
		}
	}
}

func TestDistanceEndsConversation(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t)
	ws := dial(t, srv)
	reachPlayerTurn(t, ws)

	send(t, ws, bridge.Inbound{Type: bridge.TypeDistance, Character: "cat", InRange: false})
	expect(t, ws, bridge.TypeStopListening)
	anim := expect(t, ws, bridge.TypeAnimate)
	if anim.Character != "cat" || anim.Name != "sit" {
		t.Errorf("animate = %+v", anim)
	}
	expect(t, ws, bridge.TypeClose)
}

func TestDistanceUsesCharacterRange(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t)
	ws := dial(t, srv)
	reachPlayerTurn(t, ws)

	// The cat's range is 2.
	near := 1.5
	send(t, ws, bridge.Inbound{Type: bridge.TypeDistance, Character: "cat", Distance: &near})
	sendRaw(t, ws, `{"type":"dance"}`)
	expectBefore(t, ws, bridge.TypeError, bridge.TypeClose)

	far := 2.5
	send(t, ws, bridge.Inbound{Type: bridge.TypeDistance, Character: "cat", Distance: &far})
	expect(t, ws, bridge.TypeStopListening)
	expect(t, ws, bridge.TypeClose)
}

func TestTranscriptWithoutStreamIgnored(t *testing.T) {
	t.Parallel()
	srv, _ := startServer(t)
	ws := dial(t, srv)
	listen := reachPlayerTurn(t, ws)

	sendRaw(t, ws, `{"type":"transcript","text":"hola amigo","final":true}`)
	sendRaw(t, ws, `{"type":"dance"}`)
	expectBefore(t, ws, bridge.TypeError, bridge.TypeHighlight)

	send(t, ws, bridge.Inbound{Type: bridge.TypeTranscript, Stream: listen.Stream, Text: "hola amigo", Final: true})
	if st := expect(t, ws, bridge.TypeStatus); st.Message != engine.StatusSuccess {
		t.Errorf("status = %q", st.Message)
	}
}

// expectBefore reads messages until one of type typ arrives and fails if
// one of type forbidden comes first.
func expectBefore(t *testing.T, ws *websocket.Conn, typ, forbidden string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		var m msg
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		switch m.Type {
		case typ:
			return
		case forbidden:
			t.Fatalf("got %q before %q: %+v", forbidden, typ, m)
		}
	}
}
