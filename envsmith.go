// Package envsmith loads env files into the process environment, resolves
// secret references, and validates the result against a typed schema.
//
// The package-level functions share one loader (and its file cache) bound to
// the process environment and the default secret resolver. NewLoader builds
// isolated loaders, for example over an in-memory environment in tests.
package envsmith

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/envsmith/internal/envfile"
	"github.com/eugenenazirov/envsmith/internal/environ"
	"github.com/eugenenazirov/envsmith/internal/schema"
	"github.com/eugenenazirov/envsmith/internal/secrets"
	"github.com/eugenenazirov/envsmith/internal/validation"
	"github.com/eugenenazirov/envsmith/internal/watch"
)

type (
	// Environment is a readable and writable set of variables.
	Environment = environ.Environment
	// Loader reads env files into an environment.
	Loader = envfile.Loader
	// LoaderOption configures a Loader.
	LoaderOption = envfile.Option
	// LoadOption configures one Load call.
	LoadOption = envfile.LoadOption
	// Schema maps variable names to fields.
	Schema = schema.Schema
	// Field describes one schema entry.
	Field = schema.Field
	// Type is a parsed type descriptor.
	Type = schema.Type
	// Constraints restrict the values of a field.
	Constraints = schema.Constraints
	// ValidateOption configures Validate.
	ValidateOption = validation.Option
	// Result holds typed values produced by Validate.
	Result = validation.Result
	// Provider resolves secret URIs for one scheme.
	Provider = secrets.Provider
	// Resolver dispatches secret URIs to providers by scheme.
	Resolver = secrets.Resolver
	// ResolverOption configures a Resolver.
	ResolverOption = secrets.Option
	// Watcher reloads an env file on change.
	Watcher = watch.Watcher
	// WatchOption configures a Watcher.
	WatchOption = watch.Option
)

// Loader options.
var (
	WithEnvironment  = envfile.WithEnvironment
	WithResolver     = envfile.WithResolver
	WithLoaderLogger = envfile.WithLogger
)

// Resolver options.
var (
	WithEnvLookup = secrets.WithEnvLookup
)

// NewMapEnvironment returns an in-memory Environment seeded with initial.
func NewMapEnvironment(initial map[string]string) Environment {
	return environ.NewMap(initial)
}

// Load options.
var (
	WithRequired = envfile.WithRequired
	WithOverride = envfile.WithOverride
	WithExpand   = envfile.WithExpand
	WithCaching  = envfile.WithCaching
)

// Validate options.
var (
	WithStrict = validation.WithStrict
)

// Watch options.
var (
	WithCallback  = watch.WithCallback
	WithInterval  = watch.WithInterval
	WithPolling   = watch.WithPolling
	WithDebounce  = watch.WithDebounce
	WithRateLimit = watch.WithRateLimit
)

// Errors reported by the package functions.
var (
	ErrFileNotFound      = envfile.ErrFileNotFound
	ErrInvalidLine       = envfile.ErrInvalidLine
	ErrMissingRequired   = envfile.ErrMissingRequired
	ErrCircularReference = envfile.ErrCircularReference
	ErrMaxDepthExceeded  = envfile.ErrMaxDepthExceeded
	ErrSchema            = schema.ErrSchema
	ErrValidation        = validation.ErrValidation
	ErrSecretResolution  = secrets.ErrSecretResolution
	ErrInvalidProvider   = secrets.ErrInvalidProvider
)

var (
	defaultOnce   sync.Once
	defaultLoader *envfile.Loader
)

func loader() *envfile.Loader {
	defaultOnce.Do(func() {
		defaultLoader = envfile.NewLoader()
	})
	return defaultLoader
}

// NewLoader returns an isolated Loader. Without options it uses the process
// environment, the default secret resolver and its own file cache.
func NewLoader(opts ...LoaderOption) *Loader {
	return envfile.NewLoader(opts...)
}

// Load reads paths in order, later files winning, and applies the result to
// the process environment. Without paths it loads ".env".
func Load(paths []string, opts ...LoadOption) (map[string]string, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return loader().Load(paths, opts...)
}

// LoadFile parses one env file without touching the environment.
func LoadFile(path string, opts ...LoadOption) (map[string]string, error) {
	return loader().LoadFile(path, opts...)
}

// ParseType parses a type annotation such as "list[int]".
func ParseType(annotation string) (*Type, error) {
	return schema.ParseType(annotation)
}

// Normalize converts a shorthand or extended schema tree into a Schema.
func Normalize(raw any) (Schema, error) {
	return schema.Normalize(raw, zap.NewNop())
}

// LoadSchema reads a YAML or JSON schema file.
func LoadSchema(path string) (Schema, error) {
	return schema.LoadFile(path, zap.NewNop())
}

// Validate checks the process environment against raw, which may be a
// Schema or a generic map such as map[string]any{"PORT": "int"}.
func Validate(raw any, opts ...ValidateOption) (Result, error) {
	s, err := schema.Normalize(raw, zap.NewNop())
	if err != nil {
		return nil, err
	}
	return validation.Validate(s, opts...)
}

// RegisterProvider adds a secret provider to the default resolver. The last
// registration for a scheme wins.
func RegisterProvider(provider Provider) error {
	return secrets.Default().Register(provider)
}

// NewResolver returns an isolated resolver seeded with the env and file
// providers. Providers registered on it are not visible to other resolvers.
func NewResolver(opts ...ResolverOption) *Resolver {
	return secrets.NewResolver(opts...)
}

// ProviderFunc adapts a function to a Provider for scheme.
func ProviderFunc(scheme string, fn func(uri string) (string, error)) Provider {
	return secrets.ProviderFunc(scheme, fn)
}

// Watch starts reloading path into the process environment whenever it
// changes, until ctx is cancelled or the returned Watcher is stopped.
func Watch(ctx context.Context, path string, opts ...WatchOption) (*Watcher, error) {
	w, err := watch.New(path, loader(), opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
