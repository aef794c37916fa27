package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eugenenazirov/envsmith/internal/envfile"
)

const (
	// DefaultInterval is the polling period.
	DefaultInterval = time.Second
	// DefaultDebounce coalesces bursts of file events into one reload.
	DefaultDebounce = 200 * time.Millisecond
)

// Reloader loads env files. *envfile.Loader implements it.
type Reloader interface {
	Load(paths []string, opts ...envfile.LoadOption) (map[string]string, error)
}

// Callback receives the values reloaded after a change.
type Callback func(values map[string]string) error

type watchConfig struct {
	callback Callback
	interval time.Duration
	polling  bool
	debounce time.Duration
	limiter  rateLimiter
	logger   *zap.Logger
}

// Option customizes a Watcher.
type Option func(*watchConfig)

// WithCallback runs fn after every successful reload.
func WithCallback(fn Callback) Option {
	return func(cfg *watchConfig) {
		cfg.callback = fn
	}
}

// WithInterval sets the polling period.
func WithInterval(interval time.Duration) Option {
	return func(cfg *watchConfig) {
		if interval > 0 {
			cfg.interval = interval
		}
	}
}

// WithPolling forces modification-time polling instead of fsnotify.
func WithPolling(enabled bool) Option {
	return func(cfg *watchConfig) {
		cfg.polling = enabled
	}
}

// WithDebounce sets how long the watcher waits for events to settle.
func WithDebounce(delay time.Duration) Option {
	return func(cfg *watchConfig) {
		if delay >= 0 {
			cfg.debounce = delay
		}
	}
}

// WithRateLimit caps reloads with a token bucket. Changes over the limit are
// dropped.
func WithRateLimit(reloadsPerSecond float64, burst int) Option {
	return func(cfg *watchConfig) {
		cfg.limiter = newTokenBucketLimiter(reloadsPerSecond, burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *watchConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Watcher reloads one env file on change.
type Watcher struct {
	path     string
	reloader Reloader
	cfg      watchConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Watcher for path. It does not start watching.
func New(path string, reloader Reloader, opts ...Option) (*Watcher, error) {
	if reloader == nil {
		return nil, fmt.Errorf("watch %s: reloader is required", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	cfg := watchConfig{
		interval: DefaultInterval,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Watcher{path: abs, reloader: reloader, cfg: cfg}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Running reports whether the watch loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start begins watching in the background. Calling Start on a running
// watcher does nothing. The loop ends when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	var notifier *fsnotify.Watcher
	if !w.cfg.polling {
		var err error
		notifier, err = w.newNotifier()
		if err != nil {
			w.cfg.logger.Info("file events unavailable, falling back to polling",
				zap.String("path", w.path),
				zap.Error(err),
			)
			notifier = nil
		}
	}

	lastMod := w.modTime()
	w.running = true
	w.cancel = cancel
	w.done = done

	go func() {
		defer close(done)
		defer w.markStopped(done)

		if notifier != nil {
			w.cfg.logger.Info("watching env file", zap.String("path", w.path), zap.String("mode", "events"))
			w.eventLoop(loopCtx, notifier)
			return
		}
		w.cfg.logger.Info("watching env file",
			zap.String("path", w.path),
			zap.String("mode", "polling"),
			zap.Duration("interval", w.cfg.interval),
		)
		w.pollLoop(loopCtx, lastMod)
	}()

	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) markStopped(done chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done != done {
		return
	}
	w.running = false
	w.cancel = nil
}

// newNotifier watches the parent directory so that editors replacing the
// file through a rename are still seen.
func (w *Watcher) newNotifier() (*fsnotify.Watcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := notifier.Add(filepath.Dir(w.path)); err != nil {
		_ = notifier.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	return notifier, nil
}

func (w *Watcher) eventLoop(ctx context.Context, notifier *fsnotify.Watcher) {
	defer func() {
		_ = notifier.Close()
	}()

	fire := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-notifier.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}
			w.cfg.logger.Debug("env file event", zap.String("path", event.Name), zap.String("op", event.Op.String()))

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.cfg.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			w.handleChange()

		case err, ok := <-notifier.Errors:
			if !ok {
				return
			}
			w.cfg.logger.Error("watcher error", zap.String("path", w.path), zap.Error(err))
		}
	}
}

func (w *Watcher) pollLoop(ctx context.Context, lastMod time.Time) {
	ticker := time.NewTicker(w.cfg.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := w.modTime()
			if current.After(lastMod) {
				lastMod = current
				w.handleChange()
			}
		}
	}
}

func (w *Watcher) modTime() time.Time {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// handleChange reloads the file and runs the callback. Nothing it does can
// stop the watcher.
func (w *Watcher) handleChange() {
	if w.cfg.limiter != nil && !w.cfg.limiter.Allow() {
		w.cfg.logger.Debug("reload dropped by rate limiter", zap.String("path", w.path))
		return
	}

	w.cfg.logger.Info("env file changed", zap.String("path", w.path))

	values, err := w.reload()
	if err != nil {
		w.cfg.logger.Error("reload failed", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.cfg.logger.Info("env file reloaded", zap.String("path", w.path), zap.Int("variables", len(values)))

	if w.cfg.callback == nil {
		return
	}
	if err := w.runCallback(values); err != nil {
		w.cfg.logger.Error("change callback failed", zap.String("path", w.path), zap.Error(err))
	}
}

func (w *Watcher) reload() (values map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reload panicked: %v", r)
		}
	}()
	return w.reloader.Load([]string{w.path}, envfile.WithOverride(true), envfile.WithCaching(false))
}

func (w *Watcher) runCallback(values map[string]string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panicked: %v", r)
		}
	}()
	return w.cfg.callback(values)
}
