package config_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/glossa/internal/config"
)

const watcherValidYAML = `
server:
  log_level: info
matching:
  threshold: 0.6
content:
  path: content.yaml
`

const watcherUpdatedYAML = `
server:
  log_level: debug
matching:
  threshold: 0.7
content:
  path: content.yaml
`

const watcherInvalidYAML = `
server:
  log_level: bananas
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %q: %v", path, err)
	}
}

// runWatcher polls w until the test ends.
func runWatcher(t *testing.T, w *config.Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// countingWatcher returns a watcher whose callback count can be read.
func countingWatcher(t *testing.T, path string) (*config.Watcher, func() int) {
	t.Helper()
	var mu sync.Mutex
	calls := 0
	w, err := config.NewWatcher(path, func(config.Reload) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runWatcher(t, w)
	return w, func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	reloads := make(chan config.Reload, 1)
	w, err := config.NewWatcher(cfgPath, func(r config.Reload) {
		select {
		case reloads <- r:
		default:
		}
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runWatcher(t, w)

	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherUpdatedYAML)

	var r config.Reload
	select {
	case r = <-reloads:
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not invoked within timeout")
	}

	if r.Seq != 1 {
		t.Errorf("Seq = %d, want 1", r.Seq)
	}
	if r.Old.Matching.Threshold != 0.6 || r.New.Matching.Threshold != 0.7 {
		t.Errorf("thresholds old=%v new=%v", r.Old.Matching.Threshold, r.New.Matching.Threshold)
	}
	if !r.Diff.LogLevelChanged || r.Diff.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff = %+v", r.Diff)
	}
	if !r.Diff.MatchingChanged || r.Diff.NewMatching.Threshold != 0.7 {
		t.Errorf("matching diff = %+v", r.Diff)
	}
	if len(r.Diff.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", r.Diff.RestartRequired)
	}
	if cur := w.Current(); cur.Matching.Threshold != 0.7 {
		t.Errorf("Current() threshold: got %v, want 0.7", cur.Matching.Threshold)
	}
}

func TestWatcher_InvalidFileKeepsOldConfig(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)
	w, calls := countingWatcher(t, cfgPath)

	time.Sleep(100 * time.Millisecond)
	writeFile(t, cfgPath, watcherInvalidYAML)
	time.Sleep(300 * time.Millisecond)

	if n := calls(); n != 0 {
		t.Errorf("callback should not be called for invalid config, got %d calls", n)
	}
	if cur := w.Current(); cur.Server.LogLevel != config.LogInfo {
		t.Errorf("Current() should still have old config, got log_level=%q", cur.Server.LogLevel)
	}
}

func TestWatcher_InitialLoadFails(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher("/nonexistent/path.yaml", nil); err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
}

func TestWatcher_RunEndsWithContext(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	w, err := config.NewWatcher(cfgPath, nil, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_SeqCountsAcceptedRevisions(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)

	reloads := make(chan config.Reload, 4)
	w, err := config.NewWatcher(cfgPath, func(r config.Reload) { reloads <- r },
		config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runWatcher(t, w)

	revisions := []string{watcherUpdatedYAML, watcherInvalidYAML, watcherValidYAML}
	for i, body := range revisions {
		writeFile(t, cfgPath, body)
		future := time.Now().Add(time.Duration(i+1) * time.Second)
		if err := os.Chtimes(cfgPath, future, future); err != nil {
			t.Fatal(err)
		}
		if body == watcherInvalidYAML {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		select {
		case r := <-reloads:
			if want := min(i+1, 2); r.Seq != want {
				t.Errorf("revision %d: Seq = %d, want %d", i, r.Seq, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("revision %d not reported", i)
		}
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, cfgPath, watcherValidYAML)
	_, calls := countingWatcher(t, cfgPath)

	time.Sleep(100 * time.Millisecond)
	now := time.Now().Add(time.Second)
	if err := os.Chtimes(cfgPath, now, now); err != nil {
		t.Fatalf("failed to touch file: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if n := calls(); n != 0 {
		t.Errorf("callback should not fire for touch-only, got %d calls", n)
	}
}
