package secrets

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const secretPrefix = "secret://"

var uriPrefixes = []string{secretPrefix, "env://", "file://"}

// IsSecretURI reports whether value should be routed through a Resolver.
func IsSecretURI(value string) bool {
	for _, prefix := range uriPrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

// Resolver holds the provider registry and resolves secret URIs through it.
type Resolver struct {
	mu        sync.RWMutex
	providers map[string]Provider
	logger    *zap.Logger
	envLookup func(string) (string, bool)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for registration and resolution events.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEnvLookup makes the built-in env provider read variables through
// lookup instead of os.LookupEnv.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(r *Resolver) {
		r.envLookup = lookup
	}
}

// NewResolver creates an isolated resolver seeded with the env and file providers.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		providers: make(map[string]Provider),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.providers["env"] = &EnvProvider{lookup: r.envLookup}
	r.providers["file"] = NewFileProvider()
	return r
}

var (
	defaultOnce     sync.Once
	defaultResolver *Resolver
)

// Default returns the process-wide resolver.
func Default() *Resolver {
	defaultOnce.Do(func() {
		defaultResolver = NewResolver()
	})
	return defaultResolver
}

// Register adds provider to the registry, replacing any provider already
// registered for the same scheme.
func (r *Resolver) Register(provider Provider) error {
	if provider == nil {
		return fmt.Errorf("%w: provider is nil", ErrInvalidProvider)
	}
	if fp, ok := provider.(*funcProvider); ok && !fp.valid() {
		return fmt.Errorf("%w: provider %q has no resolve function", ErrInvalidProvider, fp.scheme)
	}
	scheme := provider.Scheme()
	if scheme == "" {
		return fmt.Errorf("%w: provider must declare a scheme", ErrInvalidProvider)
	}

	r.mu.Lock()
	r.providers[scheme] = provider
	r.mu.Unlock()

	r.logger.Debug("registered secret provider", zap.String("scheme", scheme))
	return nil
}

// Provider returns the provider registered for scheme.
func (r *Resolver) Provider(scheme string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[scheme]
	return p, ok
}

// Schemes lists registered schemes in sorted order.
func (r *Resolver) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.providers))
	for scheme := range r.providers {
		out = append(out, scheme)
	}
	slices.Sort(out)
	return out
}

// ResolveMaybe resolves value when it is a secret URI and returns it
// unchanged otherwise.
func (r *Resolver) ResolveMaybe(value string) (string, error) {
	if !IsSecretURI(value) {
		return value, nil
	}

	scheme, uri, err := splitURI(value)
	if err != nil {
		return "", err
	}

	provider, ok := r.Provider(scheme)
	if !ok {
		return "", &ResolutionError{URI: value, Scheme: scheme, Err: fmt.Errorf("%w: %s", ErrNoProvider, scheme)}
	}

	resolved, err := provider.Resolve(uri)
	if err != nil {
		var resErr *ResolutionError
		if errors.As(err, &resErr) {
			return "", err
		}
		return "", &ResolutionError{URI: uri, Scheme: scheme, Err: err}
	}

	r.logger.Debug("resolved secret", zap.String("scheme", scheme))
	return resolved, nil
}

// splitURI extracts the scheme and the provider-facing URI from value.
func splitURI(value string) (string, string, error) {
	if rest, ok := strings.CutPrefix(value, secretPrefix); ok {
		scheme, path, found := strings.Cut(rest, "/")
		if !found {
			return "", "", &ResolutionError{URI: value, Err: ErrMalformedURI}
		}
		return scheme, scheme + "://" + path, nil
	}

	scheme, _, _ := strings.Cut(value, "://")
	return scheme, value, nil
}
