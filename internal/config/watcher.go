package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls without [WithInterval].
const DefaultWatchInterval = 5 * time.Second

// Reload is one accepted revision of the watched file.
type Reload struct {
	// Seq counts accepted revisions, starting at 1 for the first change
	// after the initial load.
	Seq int

	Old, New *Config

	// Diff is Diff(Old, New).
	Diff ConfigDiff
}

// fingerprint identifies one state of the file on disk.
type fingerprint struct {
	mtime time.Time
	sum   [sha256.Size]byte
}

// Watcher polls a config file and hands every valid revision that differs
// from the previous one to its callback. Revisions that fail to parse or
// validate are logged and the last good config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	onReload func(Reload)
	log      *slog.Logger

	mu      sync.Mutex
	current *Config
	seen    fingerprint
	seq     int
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values keep
// [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatcherLogger sets the logger. Default: slog.Default().
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher reads path once and fails if that revision is unusable. A nil
// onReload is allowed.
func NewWatcher(path string, onReload func(Reload), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onReload: onReload,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, fp, err := readRevision(path)
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.seen = cfg, fp
	return w, nil
}

// Current returns the last valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run polls until ctx ends and returns nil. Callbacks run on the calling
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if r, ok := w.poll(); ok && w.onReload != nil {
				w.onReload(r)
			}
		}
	}
}

// poll reports a Reload when the file holds a new valid revision.
func (w *Watcher) poll() (Reload, bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		w.log.Warn("config: stat failed", "path", w.path, "err", err)
		return Reload{}, false
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.seen.mtime)
	w.mu.Unlock()
	if unchanged {
		return Reload{}, false
	}

	cfg, fp, err := readRevision(w.path)
	if err != nil {
		w.log.Warn("config: revision rejected, keeping the previous one", "path", w.path, "err", err)
		return Reload{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	sameContent := fp.sum == w.seen.sum
	w.seen = fp
	if sameContent {
		return Reload{}, false
	}
	w.seq++
	r := Reload{Seq: w.seq, Old: w.current, New: cfg, Diff: Diff(w.current, cfg)}
	w.current = cfg
	w.log.Info("config: reloaded", "path", w.path, "seq", r.Seq,
		"matching", r.Diff.MatchingChanged, "log_level", r.Diff.LogLevelChanged)
	return r, true
}

// readRevision loads and validates path and fingerprints the bytes it read.
func readRevision(path string) (*Config, fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fingerprint{}, err
	}
	return cfg, fingerprint{mtime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
