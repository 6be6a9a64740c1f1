package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the freshly loaded configuration after the file on
// disk changes and passes validation.
type ReloadFunc func(*Config)

// Watcher reloads the YAML config file when it changes on disk. Rapid
// events are debounced because editors typically emit several writes (or a
// rename-and-replace) per save. A reload that fails to parse or validate is
// logged and dropped; subscribers only ever see valid configs.
type Watcher struct {
	path     string
	window   time.Duration
	logger   *slog.Logger
	notifier *fsnotify.Watcher

	mu    sync.Mutex
	subs  []ReloadFunc
	timer *time.Timer

	stopOnce sync.Once
	done     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceWindow overrides the default 500ms debounce window.
func WithDebounceWindow(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.window = d }
}

// NewWatcher watches the config file at path. Watching starts on Run.
func NewWatcher(path string, logger *slog.Logger, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config watcher requires a file path")
	}
	if logger == nil {
		logger = slog.Default()
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		path:     path,
		window:   500 * time.Millisecond,
		logger:   logger.With("component", "config-watcher"),
		notifier: notifier,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Subscribe registers fn to be called with each successfully reloaded
// config. Safe to call before or after Run.
func (w *Watcher) Subscribe(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Run watches until ctx is cancelled or Stop is called. The parent
// directory is watched rather than the file itself so rename-and-replace
// saves keep working.
func (w *Watcher) Run(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.notifier.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("watching config file", slog.String("path", w.path))

	base := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return nil
		case <-w.done:
			return nil
		case event, okCh := <-w.notifier.Events:
			if !okCh {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, okCh := <-w.notifier.Errors:
			if !okCh {
				return nil
			}
			w.logger.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

// Stop ends watching. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.notifier.Close()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, w.reload)
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous config",
			slog.String("path", w.path),
			slog.String("error", err.Error()),
		)
		return
	}

	w.mu.Lock()
	subs := make([]ReloadFunc, len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	w.logger.Info("config reloaded", slog.String("path", w.path))
	for _, fn := range subs {
		fn(cfg)
	}
}
