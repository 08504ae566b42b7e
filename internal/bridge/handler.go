package bridge

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// Registry tracks live connections, for example to apply configuration
// changes to every engine.
type Registry interface {
	Add(c *Conn)
	Remove(c *Conn)
}

// Handler upgrades requests to WebSocket connections and serves each one
// with a new [Conn]. Connections end when ctx is cancelled. reg may be nil.
type Handler struct {
	ctx     context.Context
	cfg     Config
	reg     Registry
	origins []string
}

// HandlerOption configures a [Handler].
type HandlerOption func(*Handler)

// WithOriginPatterns allows cross-origin browsers matching patterns (see
// [websocket.AcceptOptions]).
func WithOriginPatterns(patterns ...string) HandlerOption {
	return func(h *Handler) { h.origins = append(h.origins, patterns...) }
}

// WithRegistry registers every connection with reg while it is served.
func WithRegistry(reg Registry) HandlerOption {
	return func(h *Handler) { h.reg = reg }
}

// NewHandler returns a Handler building connections from cfg.
func NewHandler(ctx context.Context, cfg Config, opts ...HandlerOption) *Handler {
	h := &Handler{ctx: ctx, cfg: cfg}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := NewConn(ws, h.cfg)
	if h.reg != nil {
		h.reg.Add(c)
		defer h.reg.Remove(c)
	}
	// Hijacked connections outlive http.Server.Shutdown; h.ctx ends them.
	_ = c.Run(h.ctx)
}
