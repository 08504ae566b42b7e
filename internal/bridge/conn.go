// Package bridge connects a browser client to a dialogue engine over a
// WebSocket.
//
// The browser owns the microphone, speech synthesis, the 3D world and the
// dialogue box. A [Conn] turns its JSON messages into engine calls and
// implements the engine's collaborators by sending messages back: lines to
// show, text to speak, animations to play and recognition streams to open.
// Each connection gets its own [engine.Engine] and
// [recognition.Controller].
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glossa/internal/clock"
	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/engine"
	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/internal/recognition"
	"github.com/MrWong99/glossa/pkg/match"
	"github.com/MrWong99/glossa/pkg/provider/stt"
)

// ReasonDisconnected ends the conversation of a closed connection.
const ReasonDisconnected = "disconnected"

const (
	defaultSendBuffer = 64
	defaultReadLimit  = 64 << 10
	writeTimeout      = 5 * time.Second
)

// ErrSlowClient is returned by [Conn.Run] when the browser does not keep up
// with outgoing messages.
var ErrSlowClient = errors.New("bridge: client too slow")

// Config holds what every connection is built from.
type Config struct {
	// Store serves the conversations.
	Store dialogue.Store

	// Engine holds the dialogue timings.
	Engine engine.Config

	// Recognition holds the restart policy.
	Recognition recognition.Config

	// Stream is the recognition request sent with every listen message.
	// Hints are replaced per turn.
	Stream stt.StreamConfig

	// Matcher is the initial matching policy. The zero value means
	// [match.NewMatcher].
	Matcher match.Matcher

	// Profiles override the built-in character profiles.
	Profiles map[dialogue.CharacterKind]dialogue.Profile

	// SendBuffer is the number of queued outgoing messages before the
	// client counts as too slow. Default: 64.
	SendBuffer int

	Metrics *observe.Metrics
	Logger  *slog.Logger
	Clock   clock.Clock
}

// Conn is one browser connection and the dialogue engine it drives.
type Conn struct {
	id      string
	ws      *websocket.Conn
	log     *slog.Logger
	metrics *observe.Metrics
	eng     *engine.Engine
	rec     *recognition.Controller

	out    chan []byte
	cancel context.CancelCauseFunc

	mu        sync.Mutex
	inRange   map[dialogue.CharacterKind]bool
	speeches  map[string]func()
	speechSeq uint64
	stream    *browserStream
	streamSeq uint64
	streamCfg stt.StreamConfig
}

// NewConn wraps an accepted WebSocket. Call [Conn.Run] to serve it.
func NewConn(ws *websocket.Conn, cfg Config) *Conn {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Matcher.Threshold == 0 {
		cfg.Matcher = match.NewMatcher()
	}

	c := &Conn{
		id:        uuid.NewString(),
		ws:        ws,
		metrics:   cfg.Metrics,
		out:       make(chan []byte, cfg.SendBuffer),
		cancel:    func(error) {},
		inRange:   make(map[dialogue.CharacterKind]bool),
		speeches:  make(map[string]func()),
		streamCfg: cfg.Stream,
	}
	c.log = cfg.Logger.With("conn", c.id)

	c.rec = recognition.NewController(
		recognition.NewStreamRecognizer(browserProvider{c}, cfg.Stream),
		cfg.Recognition,
		recognition.WithClock(cfg.Clock),
		recognition.WithLogger(c.log),
		recognition.WithMetrics(cfg.Metrics),
	)
	c.eng = engine.New(cfg.Store, cfg.Engine,
		engine.WithProximity(proximity{c}),
		engine.WithAnimator(animator{c}),
		engine.WithSpeaker(speaker{c}),
		engine.WithUI(dialogueBox{c}),
		engine.WithListener(c.rec),
		engine.WithClock(cfg.Clock),
		engine.WithLogger(c.log),
		engine.WithMetrics(cfg.Metrics),
		engine.WithMatcher(cfg.Matcher),
		engine.WithProfiles(cfg.Profiles),
	)
	return c
}

// ID returns the connection id used in logs.
func (c *Conn) ID() string { return c.id }

// Engine returns the connection's dialogue engine.
func (c *Conn) Engine() *engine.Engine { return c.eng }

// Run serves the connection until the browser disconnects or ctx is
// cancelled. A normal close returns nil. Any active conversation is ended
// and the WebSocket is closed before Run returns.
func (c *Conn) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.metrics.ActiveConnections.Add(ctx, 1)
	defer c.metrics.ActiveConnections.Add(context.WithoutCancel(ctx), -1)
	c.log.Info("client connected")

	c.ws.SetReadLimit(defaultReadLimit)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.readLoop(gctx) })
	g.Go(func() error { return c.writeLoop(gctx) })
	err := g.Wait()
	if cause := context.Cause(ctx); errors.Is(cause, ErrSlowClient) {
		err = cause
	}

	c.shutdown()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		_ = c.ws.Close(websocket.StatusNormalClosure, "bye")
		c.log.Info("client disconnected")
		return nil
	case errors.Is(err, ErrSlowClient):
		_ = c.ws.Close(websocket.StatusPolicyViolation, "too slow")
	default:
		_ = c.ws.CloseNow()
	}
	c.log.Warn("client connection failed", "err", err)
	return err
}

func (c *Conn) shutdown() {
	if err := c.eng.End(ReasonDisconnected); err != nil && !errors.Is(err, engine.ErrNotActive) {
		c.log.Warn("could not end dialogue", "err", err)
	}
	c.rec.Stop()

	c.mu.Lock()
	s := c.stream
	c.stream = nil
	clear(c.speeches)
	c.mu.Unlock()
	if s != nil {
		s.end()
	}
}

func (c *Conn) readLoop(ctx context.Context) error {
	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return context.Canceled
			}
			return fmt.Errorf("bridge: read: %w", err)
		}
		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			c.sendError(fmt.Sprintf("malformed message: %v", err))
			continue
		}
		c.dispatch(ctx, in)
	}
}

func (c *Conn) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				return fmt.Errorf("bridge: write: %w", err)
			}
		}
	}
}

// send queues v for the browser. It never blocks: the engine calls it with
// its lock held. A full queue drops the connection.
func (c *Conn) send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error("could not encode message", "err", err)
		return
	}
	select {
	case c.out <- b:
	default:
		c.log.Warn("send queue full, dropping client")
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		cancel(ErrSlowClient)
	}
}

func (c *Conn) sendError(msg string) {
	c.send(errorMsg{Type: TypeError, Message: msg})
}

// dispatch handles one browser message.
func (c *Conn) dispatch(ctx context.Context, in Inbound) {
	var err error
	switch in.Type {
	case TypeApproach:
		var kind dialogue.CharacterKind
		if kind, err = dialogue.ParseCharacterKind(in.Character); err == nil {
			c.setInRange(kind, true)
			err = c.eng.Start(ctx, kind)
		}
	case TypeDistance:
		var kind dialogue.CharacterKind
		if kind, err = dialogue.ParseCharacterKind(in.Character); err == nil {
			inRange := in.InRange
			if in.Distance != nil {
				inRange = *in.Distance <= c.eng.Profile(kind).Range
			}
			c.setInRange(kind, inRange)
			c.eng.CheckProximity()
		}
	case TypeStart:
		var kind dialogue.CharacterKind
		if kind, err = dialogue.ParseCharacterKind(in.Character); err == nil {
			err = c.eng.Start(ctx, kind)
		}
	case TypeTranscript:
		if s := c.streamFor(in.Stream); s != nil {
			s.deliver(stt.Transcript{Text: in.Text, IsFinal: in.Final})
		}
	case TypeRecognitionError:
		if s := c.streamFor(in.Stream); s != nil {
			s.fail(&stt.Error{Code: in.Code, Message: in.Message})
		}
	case TypeRecognitionEnd:
		if s := c.streamFor(in.Stream); s != nil {
			c.dropStream(s)
			s.end()
		}
	case TypeSpeechEnd:
		c.speechEnded(in.ID)
	case TypeSelect:
		err = c.eng.Select(in.Index)
	case TypeGoto:
		err = c.eng.GoToStep(in.Node)
	case TypeEnd:
		err = c.eng.End(engine.ReasonUser)
	case TypeRetry:
		err = c.eng.Retry()
	default:
		err = fmt.Errorf("unknown message type %q", in.Type)
	}
	if err != nil {
		c.log.Debug("client request rejected", "type", in.Type, "err", err)
		c.sendError(err.Error())
	}
}

func (c *Conn) setInRange(kind dialogue.CharacterKind, in bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inRange[kind] = in
}

func (c *Conn) speechEnded(id string) {
	c.mu.Lock()
	done, ok := c.speeches[id]
	delete(c.speeches, id)
	c.mu.Unlock()
	if ok {
		done()
	}
}
