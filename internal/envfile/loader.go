package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/eugenenazirov/envsmith/internal/environ"
	"github.com/eugenenazirov/envsmith/internal/secrets"
)

const maxLineSize = 1 << 20

// Option configures a Loader.
type Option func(*Loader)

// WithEnvironment sets the environment snapshotted for expansion and written on load.
func WithEnvironment(env environ.Environment) Option {
	return func(l *Loader) {
		if env != nil {
			l.env = env
			l.envSet = env != environ.OS()
		}
	}
}

// WithResolver sets the secret resolver used for secret URI values.
func WithResolver(resolver *secrets.Resolver) Option {
	return func(l *Loader) {
		if resolver != nil {
			l.resolver = resolver
		}
	}
}

// WithCache overrides the file cache (primarily for tests).
func WithCache(cache Cache) Option {
	return func(l *Loader) {
		if cache != nil {
			l.cache = cache
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMaxExpansionDepth bounds nested ${NAME} expansion passes.
func WithMaxExpansionDepth(depth int) Option {
	return func(l *Loader) {
		l.maxDepth = depth
	}
}

// Loader reads env files and applies them to an environment.
type Loader struct {
	env      environ.Environment
	envSet   bool
	resolver *secrets.Resolver
	cache    Cache
	expander *Expander
	logger   *zap.Logger
	maxDepth int
}

// NewLoader creates a Loader with its own cache. By default it uses the
// process environment and the shared secret resolver. A loader given its own
// environment without a resolver gets a private resolver whose env:// lookups
// read that environment.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		env:      environ.OS(),
		cache:    NewMemoryCache(),
		logger:   zap.NewNop(),
		maxDepth: MaxExpansionDepth,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.resolver == nil {
		l.resolver = secrets.Default()
		if l.envSet {
			l.resolver = secrets.NewResolver(
				secrets.WithEnvLookup(l.env.LookupEnv),
				secrets.WithLogger(l.logger),
			)
		}
	}
	l.expander = NewExpander(l.logger, l.maxDepth)
	return l
}

// Cache returns the loader's file cache.
func (l *Loader) Cache() Cache {
	return l.cache
}

type loadSettings struct {
	required []string
	override bool
	expand   bool
	cache    bool
}

// LoadOption configures a single Load or LoadFile call.
type LoadOption func(*loadSettings)

// WithRequired lists variables that must be present after loading.
func WithRequired(names ...string) LoadOption {
	return func(s *loadSettings) {
		s.required = append(s.required, names...)
	}
}

// WithOverride controls whether loaded values replace existing variables.
func WithOverride(enabled bool) LoadOption {
	return func(s *loadSettings) {
		s.override = enabled
	}
}

// WithExpand controls ${NAME} expansion.
func WithExpand(enabled bool) LoadOption {
	return func(s *loadSettings) {
		s.expand = enabled
	}
}

// WithCaching controls use of the file cache.
func WithCaching(enabled bool) LoadOption {
	return func(s *loadSettings) {
		s.cache = enabled
	}
}

func newLoadSettings(opts []LoadOption) loadSettings {
	s := loadSettings{expand: true, cache: true}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// LoadFile parses a single file, resolving secret URI values. Only
// WithCaching affects LoadFile.
func (l *Loader) LoadFile(path string, opts ...LoadOption) (map[string]string, error) {
	settings := newLoadSettings(opts)
	return l.loadFile(path, settings.cache)
}

func (l *Loader) loadFile(path string, useCache bool) (map[string]string, error) {
	if !useCache {
		return l.readFile(path)
	}

	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}

	if values, ok := l.cache.Get(key, info.ModTime()); ok {
		l.logger.Debug("env file cache hit", zap.String("path", path))
		return values, nil
	}

	l.logger.Debug("env file cache miss", zap.String("path", path))
	values, err := l.readFile(path)
	if err != nil {
		return nil, err
	}
	l.cache.Put(key, info.ModTime(), values)
	return values, nil
}

func (l *Loader) readFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}
	defer file.Close()

	l.logger.Debug("loading env file", zap.String("path", path))

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		pair, ok, err := ParseLine(scanner.Text())
		if err != nil {
			var lineErr *InvalidLineError
			if errors.As(err, &lineErr) {
				lineErr.Line = lineNum
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if !ok {
			continue
		}

		value, err := l.resolver.ResolveMaybe(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", path, lineNum, err)
		}
		values[pair.Key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFileNotFound, path, err)
	}

	return values, nil
}

// Load reads paths in order and merges them, later files overriding earlier
// ones. Each file is expanded against the environment snapshot and the values
// merged from previous files before it is merged itself. A missing file is
// skipped unless it is the only path and required names were given.
func (l *Loader) Load(paths []string, opts ...LoadOption) (map[string]string, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	settings := newLoadSettings(opts)

	snapshot := l.env.Snapshot()
	merged := make(map[string]string)

	for _, path := range paths {
		fileValues, err := l.loadFile(path, settings.cache)
		if err != nil {
			if !errors.Is(err, ErrFileNotFound) {
				return nil, err
			}
			if len(paths) == 1 && len(settings.required) > 0 {
				return nil, err
			}
			l.logger.Warn("skipping env file", zap.String("path", path), zap.Error(err))
			continue
		}

		if settings.expand {
			for key, value := range fileValues {
				expanded, err := l.expander.Expand(value, merged, snapshot)
				if err != nil {
					return nil, fmt.Errorf("%s: expand %s: %w", path, key, err)
				}
				fileValues[key] = expanded
			}
		}

		maps.Copy(merged, fileValues)
	}

	if missing := missingNames(settings.required, merged); len(missing) > 0 {
		return nil, &MissingRequiredVarsError{Missing: missing}
	}

	if err := l.apply(merged, settings.override); err != nil {
		return nil, err
	}

	l.logger.Info("loaded environment variables",
		zap.Int("count", len(merged)),
		zap.Int("files", len(paths)),
	)
	return maps.Clone(merged), nil
}

func (l *Loader) apply(values map[string]string, override bool) error {
	for key, value := range values {
		if !override {
			if _, exists := l.env.LookupEnv(key); exists {
				l.logger.Debug("keeping existing variable", zap.String("key", key))
				continue
			}
		}
		if err := l.env.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		l.logger.Debug("set variable", zap.String("key", key))
	}
	return nil
}

func missingNames(required []string, values map[string]string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
