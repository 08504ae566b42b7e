// Package app wires all glossa subsystems into a running server.
//
// The App struct owns the full lifecycle: New opens the content store and
// imports conversations, Run serves HTTP and WebSocket traffic until the
// context ends, and Shutdown releases what New acquired.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics, etc.). When an option is not provided, New builds the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glossa/internal/bridge"
	"github.com/MrWong99/glossa/internal/config"
	"github.com/MrWong99/glossa/internal/dialogue"
	"github.com/MrWong99/glossa/internal/health"
	"github.com/MrWong99/glossa/internal/observe"
	"github.com/MrWong99/glossa/internal/resilience"
)

const (
	readHeaderTimeout = 10 * time.Second
	drainTimeout      = 10 * time.Second
)

// App owns all subsystem lifetimes of the glossa server.
type App struct {
	cfg *config.Config

	store          dialogue.Store
	metrics        *observe.Metrics
	metricsHandler http.Handler
	sessions       *SessionManager
	checkers       []health.Checker
	level          *slog.LevelVar
	log            *slog.Logger
	configPath     string
	watchInterval  time.Duration

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a content store instead of creating one from config.
// Content files named in the config are still imported into it.
func WithStore(s dialogue.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLevelVar lets configuration reloads change the log level through lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithConfigWatch makes Run poll path every interval and apply the
// hot-reloadable parts of each valid revision. A zero interval uses the
// watcher default.
func WithConfigWatch(path string, interval time.Duration) Option {
	return func(a *App) {
		a.configPath = path
		a.watchInterval = interval
	}
}

// WithChecker adds a readiness check served on /readyz.
func WithChecker(c health.Checker) Option {
	return func(a *App) { a.checkers = append(a.checkers, c) }
}

// WithCloser registers fn to run during Shutdown, after the closers New
// registers itself.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New creates an App from cfg. It connects to PostgreSQL when
// content.postgres_dsn is set (applying the schema) and otherwise keeps
// conversations in memory, then imports content.path into the store.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	// Closers passed as options run after the ones New adds.
	extraClosers := a.closers
	a.closers = nil

	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("app: init store: %w", err), a.closeAll())
	}
	if err := a.importContent(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("app: import content: %w", err), a.closeAll())
	}

	a.checkers = append(a.checkers, health.Content(a.store))
	a.sessions = NewSessionManager(cfg.Matching.Matcher())
	a.closers = append(a.closers, extraClosers...)
	return a, nil
}

// initStore opens the PostgreSQL store behind a circuit breaker or falls
// back to memory.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Content.PostgresDSN
	if dsn == "" {
		a.store = dialogue.NewMemStore()
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})

	ps := dialogue.NewPostgresStore(pool)
	if err := ps.Migrate(ctx); err != nil {
		return err
	}
	a.store = resilience.NewStore(ps, resilience.BreakerConfig{Name: "postgres", Logger: a.log})
	a.checkers = append(a.checkers, health.Ping("postgres", ps))
	a.log.Info("using postgres content store")
	return nil
}

// importContent loads content.path into the store.
func (a *App) importContent(ctx context.Context) error {
	path := a.cfg.Content.Path
	if path == "" {
		return nil
	}
	f, err := dialogue.LoadFile(path)
	if err != nil {
		return err
	}
	n, err := dialogue.Import(ctx, a.store, f)
	if err != nil {
		return err
	}
	a.log.Info("imported conversations", "path", path, "count", n, "lessons", len(f.Lessons))
	return nil
}

// Store returns the content store.
func (a *App) Store() dialogue.Store { return a.store }

// Sessions returns the live connection registry.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Handler returns the server's routes: the WebSocket endpoint at /ws, the
// health probes and, when configured, /metrics. Connections served by the
// handler end when ctx does.
func (a *App) Handler(ctx context.Context) http.Handler {
	bcfg := bridge.Config{
		Store:       a.store,
		Engine:      a.cfg.Dialogue.Engine(),
		Recognition: a.cfg.Recognition.Controller(),
		Stream:      a.cfg.Recognition.Stream(),
		Matcher:     a.sessions.Matcher(),
		Profiles:    a.cfg.Profiles(),
		Metrics:     a.metrics,
		Logger:      a.log,
	}

	mux := http.NewServeMux()
	mux.Handle("GET /ws", bridge.NewHandler(ctx, bcfg,
		bridge.WithRegistry(a.sessions),
		bridge.WithOriginPatterns(a.cfg.Server.AllowedOrigins...),
	))
	health.New(a.checkers, health.WithSessions(a.sessions.Count)).Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	return observe.Middleware(a.metrics)(mux)
}

// Run listens on server.listen_addr and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then drains the server. It
// also runs the config watcher when one is configured. A clean shutdown
// returns nil.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	// The watcher loads its baseline before the listener serves.
	var watcher *config.Watcher
	if a.configPath != "" {
		wopts := []config.WatcherOption{config.WithWatcherLogger(a.log)}
		if a.watchInterval > 0 {
			wopts = append(wopts, config.WithInterval(a.watchInterval))
		}
		w, err := config.NewWatcher(a.configPath, a.applyConfig, wopts...)
		if err != nil {
			a.log.Warn("config watcher disabled", "path", a.configPath, "err", err)
		} else {
			watcher = w
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler:           a.Handler(gctx),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(a.log.Handler(), slog.LevelWarn),
	}

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		return srv.Shutdown(drainCtx)
	})

	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	a.log.Info("server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
	return g.Wait()
}

// applyConfig applies the hot-reloadable parts of a new config revision.
func (a *App) applyConfig(r config.Reload) {
	d := r.Diff
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		a.log.Info("log level changed", "level", d.NewLogLevel, "seq", r.Seq)
	}
	if d.MatchingChanged {
		a.sessions.SetMatching(d.NewMatching.Matcher())
		a.log.Info("matching policy updated", "connections", a.sessions.Count(), "seq", r.Seq)
	}
	if len(d.RestartRequired) > 0 {
		a.log.Warn("config changes need a restart to take effect", "sections", d.RestartRequired, "seq", r.Seq)
	}
}

// Shutdown releases everything New acquired. It is safe to call more than
// once. If ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			if ctx.Err() != nil {
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				err = ctx.Err()
				return
			}
			if cerr := closer(); cerr != nil {
				a.log.Warn("closer error", "index", i, "err", cerr)
			}
		}
		a.log.Info("shutdown complete")
	})
	return err
}

// closeAll runs the closers registered so far, for a failed New.
func (a *App) closeAll() error {
	var errs []error
	for _, closer := range a.closers {
		errs = append(errs, closer())
	}
	return errors.Join(errs...)
}
