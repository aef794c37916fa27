package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/envsmith/internal/envfile"
	"github.com/eugenenazirov/envsmith/internal/environ"
	"github.com/eugenenazirov/envsmith/internal/secrets"
)

type fakeReloader struct {
	mu      sync.Mutex
	calls   int
	paths   []string
	values  map[string]string
	err     error
	panicky bool
}

func (f *fakeReloader) Load(paths []string, _ ...envfile.LoadOption) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.paths = paths
	if f.panicky {
		panic("reload exploded")
	}
	return f.values, f.err
}

func (f *fakeReloader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writeFile(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func waitFor(t *testing.T, ch <-chan map[string]string) map[string]string {
	t.Helper()
	select {
	case values := <-ch:
		return values
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reload")
		return nil
	}
}

func TestWatcherPollingReloadsAndCallsBack(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	start := time.Now().Add(-time.Hour)
	writeFile(t, path, "KEY=one\n", start)

	env := environ.NewMap(map[string]string{"KEY": "stale"})
	loader := envfile.NewLoader(
		envfile.WithEnvironment(env),
		envfile.WithResolver(secrets.NewResolver()),
		envfile.WithLogger(zaptest.NewLogger(t)),
	)

	changes := make(chan map[string]string, 4)
	w, err := New(path, loader,
		WithPolling(true),
		WithInterval(10*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
		WithCallback(func(values map[string]string) error {
			changes <- values
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer w.Stop()

	writeFile(t, path, "KEY=two\n", start.Add(time.Minute))

	values := waitFor(t, changes)
	if values["KEY"] != "two" {
		t.Fatalf("expected reloaded value, got %v", values)
	}
	if v, _ := env.LookupEnv("KEY"); v != "two" {
		t.Fatalf("expected reload to override environment, got %q", v)
	}
}

func TestWatcherEventsReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, path, "KEY=one\n", time.Now())

	reloader := &fakeReloader{values: map[string]string{"KEY": "two"}}
	changes := make(chan map[string]string, 4)
	w, err := New(path, reloader,
		WithDebounce(20*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
		WithCallback(func(values map[string]string) error {
			changes <- values
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer w.Stop()

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(dir, "other.env"), "X=1\n", time.Now())
	writeFile(t, path, "KEY=two\n", time.Now().Add(time.Second))

	if values := waitFor(t, changes); values["KEY"] != "two" {
		t.Fatalf("unexpected values %v", values)
	}
	if got := reloader.paths; len(got) != 1 || got[0] != w.Path() {
		t.Fatalf("expected reload of %s, got %v", w.Path(), got)
	}
}

func TestWatcherSwallowsCallbackFailures(t *testing.T) {
	t.Parallel()

	reloader := &fakeReloader{values: map[string]string{}}
	var calls int
	w, err := New(filepath.Join(t.TempDir(), ".env"), reloader,
		WithLogger(zaptest.NewLogger(t)),
		WithCallback(func(map[string]string) error {
			calls++
			if calls == 1 {
				return errors.New("callback failed")
			}
			panic("callback exploded")
		}),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	w.handleChange()
	w.handleChange()

	if calls != 2 || reloader.callCount() != 2 {
		t.Fatalf("expected two reloads and callbacks, got %d reloads and %d callbacks", reloader.callCount(), calls)
	}
}

func TestWatcherSwallowsReloadFailures(t *testing.T) {
	t.Parallel()

	var called bool
	callback := WithCallback(func(map[string]string) error {
		called = true
		return nil
	})

	for _, reloader := range []*fakeReloader{
		{err: errors.New("bad file")},
		{panicky: true},
	} {
		w, err := New(filepath.Join(t.TempDir(), ".env"), reloader, callback, WithLogger(zaptest.NewLogger(t)))
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		w.handleChange()
	}

	if called {
		t.Fatalf("callback must not run after a failed reload")
	}
}

func TestWatcherRateLimitDropsReloads(t *testing.T) {
	t.Parallel()

	reloader := &fakeReloader{}
	w, err := New(filepath.Join(t.TempDir(), ".env"), reloader, WithLogger(zaptest.NewLogger(t)))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	w.cfg.limiter = &staticLimiter{allow: false}

	w.handleChange()

	if reloader.callCount() != 0 {
		t.Fatalf("expected reload to be dropped")
	}
}

func TestWatcherStartIsIdempotent(t *testing.T) {
	t.Parallel()

	w, err := New(filepath.Join(t.TempDir(), ".env"), &fakeReloader{},
		WithPolling(true),
		WithInterval(10*time.Millisecond),
		WithLogger(zaptest.NewLogger(t)),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if w.Running() {
		t.Fatalf("expected watcher to be idle before Start")
	}
	for i := 0; i < 2; i++ {
		if err := w.Start(context.Background()); err != nil {
			t.Fatalf("Start #%d returned error: %v", i+1, err)
		}
	}
	if !w.Running() {
		t.Fatalf("expected watcher to be running")
	}

	w.Stop()
	if w.Running() {
		t.Fatalf("expected watcher to stop")
	}
	w.Stop()
}

func TestWatcherStopsWithContext(t *testing.T) {
	t.Parallel()

	w, err := New(filepath.Join(t.TempDir(), ".env"), &fakeReloader{},
		WithPolling(true),
		WithLogger(zaptest.NewLogger(t)),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for w.Running() {
		if time.Now().After(deadline) {
			t.Fatalf("watcher kept running after context cancellation")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewRequiresReloader(t *testing.T) {
	t.Parallel()

	if _, err := New(".env", nil); err == nil {
		t.Fatalf("expected error for nil reloader")
	}
}
