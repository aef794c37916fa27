package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/envsmith/internal/config"
	"github.com/eugenenazirov/envsmith/internal/envfile"
	"github.com/eugenenazirov/envsmith/internal/environ"
	"github.com/eugenenazirov/envsmith/internal/output"
	"github.com/eugenenazirov/envsmith/internal/schema"
	"github.com/eugenenazirov/envsmith/internal/secrets"
	"github.com/eugenenazirov/envsmith/internal/validation"
	"github.com/eugenenazirov/envsmith/internal/watch"
)

// Process exit codes.
const (
	ExitOK              = 0
	ExitError           = 1
	ExitValidation      = 2
	ExitMissingRequired = 3
	ExitSchema          = 4
	ExitFileNotFound    = 5
)

// App runs envsmith commands against one environment.
type App struct {
	cfg      config.Config
	env      environ.Environment
	resolver *secrets.Resolver
	loader   *envfile.Loader
	logger   *zap.Logger
	out      io.Writer
}

// Option customizes an App.
type Option func(*App)

// WithEnvironment sets the environment files are loaded into.
func WithEnvironment(env environ.Environment) Option {
	return func(a *App) {
		if env != nil {
			a.env = env
		}
	}
}

// WithResolver sets the secret resolver.
func WithResolver(resolver *secrets.Resolver) Option {
	return func(a *App) {
		if resolver != nil {
			a.resolver = resolver
		}
	}
}

// WithOutput sets where command results are written.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		if w != nil {
			a.out = w
		}
	}
}

// New initializes the application from the resolved settings.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		env:    environ.OS(),
		logger: logger,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.loader = envfile.NewLoader(
		envfile.WithEnvironment(a.env),
		envfile.WithResolver(a.resolver),
		envfile.WithLogger(logger),
	)
	return a
}

// Config returns the settings the application runs with.
func (a *App) Config() config.Config {
	return a.cfg
}

func (a *App) loadOptions(extra ...envfile.LoadOption) []envfile.LoadOption {
	opts := []envfile.LoadOption{
		envfile.WithOverride(a.cfg.Override),
		envfile.WithExpand(a.cfg.Expand),
		envfile.WithCaching(a.cfg.Cache),
	}
	return append(opts, extra...)
}

// Check loads the configured files and verifies the required variables.
func (a *App) Check(required []string) int {
	values, err := a.loader.Load(a.cfg.Files, a.loadOptions(envfile.WithRequired(required...))...)
	if err != nil {
		return a.fail("environment check failed", err)
	}

	a.printf("✓ Environment check passed\n")
	a.printf("  Loaded %d variables from %d file(s)\n", len(values), len(a.cfg.Files))
	if len(required) > 0 {
		a.printf("  All required variables present: %s\n", strings.Join(required, ", "))
	}
	return ExitOK
}

// Validate loads the configured files and validates the environment against
// the schema file.
func (a *App) Validate(schemaPath string) int {
	format, err := output.ParseFormat(a.cfg.Format)
	if err != nil {
		return a.fail("validation failed", err)
	}

	fields, err := schema.LoadFile(schemaPath, a.logger)
	if err != nil {
		return a.fail("validation failed", err)
	}

	if _, err := a.loader.Load(a.cfg.Files, a.loadOptions()...); err != nil {
		return a.fail("validation failed", err)
	}

	result, err := validation.Validate(fields,
		validation.WithStrict(a.cfg.Strict),
		validation.WithEnvironment(a.env),
		validation.WithLogger(a.logger),
	)
	if err != nil {
		return a.fail("validation failed", err)
	}

	a.printf("✓ Environment validation passed\n")
	a.printf("  Validated %d variables against schema\n", len(result))
	if err := output.Write(a.out, format, "Validated Environment Variables", result); err != nil {
		return a.fail("render output", err)
	}
	return ExitOK
}

// Print loads the configured files and renders the loaded variables. Unless
// all is set, variables that already existed before loading are left out.
func (a *App) Print(all bool) int {
	format, err := output.ParseFormat(a.cfg.Format)
	if err != nil {
		return a.fail("print failed", err)
	}

	before := a.env.Snapshot()
	values, err := a.loader.Load(a.cfg.Files, a.loadOptions()...)
	if err != nil {
		return a.fail("print failed", err)
	}

	if !all {
		for key := range values {
			if _, existed := before[key]; existed {
				delete(values, key)
			}
		}
	}

	if err := output.Write(a.out, format, "Environment Variables", output.Strings(values)); err != nil {
		return a.fail("render output", err)
	}
	return ExitOK
}

// Watch loads the first configured file and reloads it on every change until
// ctx is cancelled.
func (a *App) Watch(ctx context.Context) int {
	path := a.cfg.Files[0]

	values, err := a.loader.Load([]string{path}, a.loadOptions(envfile.WithOverride(true))...)
	if err != nil {
		return a.fail("watch failed", err)
	}
	a.printf("✓ Loaded %d variables from %s\n", len(values), path)

	w, err := watch.New(path, a.loader,
		watch.WithInterval(a.cfg.Watch.Interval),
		watch.WithPolling(a.cfg.Watch.Polling),
		watch.WithDebounce(a.cfg.Watch.Debounce),
		watch.WithLogger(a.logger),
		watch.WithCallback(func(reloaded map[string]string) error {
			a.printf("↻ Reloaded %d variables from %s\n", len(reloaded), path)
			return nil
		}),
	)
	if err != nil {
		return a.fail("watch failed", err)
	}

	if err := w.Start(ctx); err != nil {
		return a.fail("watch failed", err)
	}
	a.printf("Watching %s (Ctrl+C to stop)\n", w.Path())

	<-ctx.Done()
	w.Stop()
	a.printf("Stopped watching %s\n", path)
	return ExitOK
}

// fail reports err and maps it to an exit code.
func (a *App) fail(action string, err error) int {
	code := ExitCode(err)
	a.logger.Debug(action, zap.Error(err), zap.Int("exit_code", code))

	var (
		missing  *envfile.MissingRequiredVarsError
		validErr *validation.Error
	)
	switch {
	case errors.As(err, &missing):
		a.printf("✗ Missing required variables: %s\n", strings.Join(missing.Missing, ", "))
	case errors.As(err, &validErr):
		a.printf("✗ Validation failed:\n")
		for _, name := range sortedKeys(validErr.Fields) {
			a.printf("  %s: %s\n", name, validErr.Fields[name])
		}
	case errors.Is(err, schema.ErrSchema):
		a.printf("✗ Schema error: %v\n", err)
	case errors.Is(err, envfile.ErrFileNotFound):
		a.printf("✗ Environment file not found: %v\n", err)
	default:
		a.printf("✗ %s: %v\n", action, err)
	}
	return code
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, validation.ErrValidation):
		return ExitValidation
	case errors.Is(err, envfile.ErrMissingRequired):
		return ExitMissingRequired
	case errors.Is(err, schema.ErrSchema):
		return ExitSchema
	case errors.Is(err, envfile.ErrFileNotFound):
		return ExitFileNotFound
	default:
		return ExitError
	}
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}
