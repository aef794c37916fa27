package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/envsmith/internal/config"
	"github.com/eugenenazirov/envsmith/internal/envfile"
	"github.com/eugenenazirov/envsmith/internal/environ"
	"github.com/eugenenazirov/envsmith/internal/schema"
	"github.com/eugenenazirov/envsmith/internal/secrets"
	"github.com/eugenenazirov/envsmith/internal/validation"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func baseTestConfig(files ...string) config.Config {
	return config.Config{
		Files:    files,
		Format:   "json",
		Expand:   true,
		Strict:   true,
		Cache:    true,
		LogLevel: "info",
		Watch: config.WatchConfig{
			Interval: 10 * time.Millisecond,
			Polling:  true,
		},
	}
}

func newTestApp(t *testing.T, cfg config.Config, env *environ.Map) (*App, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	app := New(cfg, zaptest.NewLogger(t),
		WithEnvironment(env),
		WithResolver(secrets.NewResolver()),
		WithOutput(out),
	)
	return app, out
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "DB_HOST=localhost\nDB_PORT=5432\n")

	tests := []struct {
		name     string
		files    []string
		required []string
		wantCode int
		wantOut  string
	}{
		{"passes", []string{path}, []string{"DB_HOST"}, ExitOK, "All required variables present: DB_HOST"},
		{"missing required", []string{path}, []string{"DB_HOST", "API_KEY", "TOKEN"}, ExitMissingRequired, "Missing required variables: API_KEY, TOKEN"},
		{"missing file", []string{filepath.Join(dir, "none.env")}, []string{"X"}, ExitFileNotFound, "Environment file not found"},
		{"missing file without requirements", []string{filepath.Join(dir, "none.env")}, nil, ExitOK, "Loaded 0 variables"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, out := newTestApp(t, baseTestConfig(tt.files...), environ.NewMap(nil))

			if code := app.Check(tt.required); code != tt.wantCode {
				t.Fatalf("expected exit code %d, got %d (output %q)", tt.wantCode, code, out.String())
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Fatalf("expected output containing %q, got %q", tt.wantOut, out.String())
			}
		})
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.yaml", "PORT:\n  type: int\n  max: 65535\nDEBUG: bool\n")
	brokenSchema := writeFile(t, dir, "broken.yaml", "PORT:\n  required: true\n")
	good := writeFile(t, dir, "good.env", "PORT=8080\nDEBUG=yes\n")
	bad := writeFile(t, dir, "bad.env", "PORT=70000\nDEBUG=yes\n")

	t.Run("passes", func(t *testing.T) {
		app, out := newTestApp(t, baseTestConfig(good), environ.NewMap(nil))

		if code := app.Validate(schemaPath); code != ExitOK {
			t.Fatalf("expected exit code 0, got %d (output %q)", code, out.String())
		}
		text := out.String()
		jsonStart := strings.Index(text, "{")
		if jsonStart < 0 {
			t.Fatalf("expected JSON output, got %q", text)
		}
		var got map[string]any
		if err := json.Unmarshal([]byte(text[jsonStart:]), &got); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if got["PORT"] != float64(8080) || got["DEBUG"] != true {
			t.Fatalf("unexpected validated values %v", got)
		}
	})

	t.Run("validation failure", func(t *testing.T) {
		app, out := newTestApp(t, baseTestConfig(bad), environ.NewMap(nil))

		if code := app.Validate(schemaPath); code != ExitValidation {
			t.Fatalf("expected exit code %d, got %d", ExitValidation, code)
		}
		if !strings.Contains(out.String(), "PORT: PORT value 70000 is greater than maximum 65535") {
			t.Fatalf("unexpected output %q", out.String())
		}
	})

	t.Run("schema error", func(t *testing.T) {
		app, _ := newTestApp(t, baseTestConfig(good), environ.NewMap(nil))

		if code := app.Validate(brokenSchema); code != ExitSchema {
			t.Fatalf("expected exit code %d, got %d", ExitSchema, code)
		}
	})

	t.Run("non-strict", func(t *testing.T) {
		cfg := baseTestConfig(writeFile(t, dir, "partial.env", "PORT=1\n"))
		cfg.Strict = false
		app, out := newTestApp(t, cfg, environ.NewMap(nil))

		if code := app.Validate(schemaPath); code != ExitOK {
			t.Fatalf("expected exit code 0, got %d (output %q)", code, out.String())
		}
	})
}

func TestPrint(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "NEW_KEY=new\nEXISTING=from-file\n")

	t.Run("only new keys", func(t *testing.T) {
		cfg := baseTestConfig(path)
		cfg.Format = "env"
		app, out := newTestApp(t, cfg, environ.NewMap(map[string]string{"EXISTING": "kept"}))

		if code := app.Print(false); code != ExitOK {
			t.Fatalf("expected exit code 0, got %d", code)
		}
		if out.String() != "NEW_KEY=\"new\"\n" {
			t.Fatalf("unexpected output %q", out.String())
		}
	})

	t.Run("all keys", func(t *testing.T) {
		cfg := baseTestConfig(path)
		cfg.Format = "env"
		app, out := newTestApp(t, cfg, environ.NewMap(map[string]string{"EXISTING": "kept"}))

		if code := app.Print(true); code != ExitOK {
			t.Fatalf("expected exit code 0, got %d", code)
		}
		if out.String() != "EXISTING=\"from-file\"\nNEW_KEY=\"new\"\n" {
			t.Fatalf("unexpected output %q", out.String())
		}
	})

	t.Run("invalid line", func(t *testing.T) {
		broken := writeFile(t, dir, "broken.env", "NOT A PAIR\n")
		app, out := newTestApp(t, baseTestConfig(broken), environ.NewMap(nil))

		if code := app.Print(false); code != ExitError {
			t.Fatalf("expected exit code %d, got %d", ExitError, code)
		}
		if !strings.Contains(out.String(), "line 1") {
			t.Fatalf("expected line number in output, got %q", out.String())
		}
	})
}

func TestWatchReloadsUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ".env", "KEY=one\n")
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	env := environ.NewMap(map[string]string{"KEY": "preset"})
	app, out := newTestApp(t, baseTestConfig(path), env)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() {
		done <- app.Watch(ctx)
	}()

	waitUntil(t, func() bool { return strings.Contains(out.String(), "Watching") })
	if v, _ := env.LookupEnv("KEY"); v != "one" {
		t.Fatalf("expected initial load to override, got %q", v)
	}

	writeFile(t, dir, ".env", "KEY=two\n")
	if err := os.Chtimes(path, old.Add(time.Minute), old.Add(time.Minute)); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	waitUntil(t, func() bool { return strings.Contains(out.String(), "Reloaded 1 variables") })
	if v, _ := env.LookupEnv("KEY"); v != "two" {
		t.Fatalf("expected reload to override, got %q", v)
	}

	cancel()
	select {
	case code := <-done:
		if code != ExitOK {
			t.Fatalf("expected exit code 0, got %d", code)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("watch did not stop after cancellation")
	}
}

func TestWatchMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.env")
	app, _ := newTestApp(t, baseTestConfig(path), environ.NewMap(nil))

	// The sole path is skipped without requirements, so watching starts.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if code := app.Watch(ctx); code != ExitOK {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{&validation.Error{Fields: map[string]string{"A": "bad"}}, ExitValidation},
		{fmt.Errorf("wrapped: %w", &envfile.MissingRequiredVarsError{Missing: []string{"A"}}), ExitMissingRequired},
		{&schema.Error{Err: errors.New("broken")}, ExitSchema},
		{fmt.Errorf("%w: .env", envfile.ErrFileNotFound), ExitFileNotFound},
		{errors.New("other"), ExitError},
	}

	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Fatalf("ExitCode(%v): expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
