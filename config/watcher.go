package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GoCodeAlone/appserver"
)

// DefaultDebounce is how long the watcher waits after the last file event
// before reloading.
const DefaultDebounce = 500 * time.Millisecond

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(logger appserver.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher reloads a configuration file when it changes and hands the new
// configuration to the registered callbacks. Invalid reloads are logged and
// dropped; the previous configuration stays current.
type Watcher struct {
	path     string
	logger   appserver.Logger
	debounce time.Duration

	mu        sync.RWMutex
	config    *ServerConfig
	callbacks []func(prev, next *ServerConfig)

	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher starts watching path. initial is the configuration already in use.
func NewWatcher(path string, initial *ServerConfig, opts ...WatcherOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrConfigPathEmpty
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w := &Watcher{
		path:     abs,
		logger:   appserver.NopLogger(),
		debounce: DefaultDebounce,
		config:   initial,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory so editors that replace the file are still seen.
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", abs, err)
	}
	w.watcher = fsWatcher

	go w.watchLoop()

	w.logger.Info("Configuration watcher started", "path", abs)
	return w, nil
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	defer w.watcher.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug("Configuration file changed", "file", event.Name, "operation", event.Op.String())
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", "error", err)

		case <-w.stopCh:
			w.logger.Info("Stopping configuration watcher", "path", w.path)
			return
		}
	}
}

// reload loads the file and notifies callbacks if the result differs from the
// current configuration.
func (w *Watcher) reload() {
	select {
	case <-w.stopCh:
		return
	default:
	}

	next, err := Load(w.path)
	if err != nil {
		w.logger.Error("Invalid configuration after reload", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	prev := w.config
	if reflect.DeepEqual(prev, next) {
		w.mu.Unlock()
		w.logger.Debug("Configuration unchanged after reload", "path", w.path)
		return
	}
	w.config = next
	callbacks := make([]func(prev, next *ServerConfig), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for i, callback := range callbacks {
		w.notify(i, callback, prev, next)
	}
	w.logger.Info("Configuration reloaded", "path", w.path, "callbacks", len(callbacks))
}

func (w *Watcher) notify(idx int, callback func(prev, next *ServerConfig), prev, next *ServerConfig) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Configuration callback panicked", "callback", idx, "panic", r)
		}
	}()
	callback(prev, next)
}

// OnChange registers a callback invoked with the previous and the new
// configuration after every successful reload.
func (w *Watcher) OnChange(callback func(prev, next *ServerConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Config returns the current configuration.
func (w *Watcher) Config() *ServerConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop stops watching and waits for the watch loop to exit. It is idempotent.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	<-w.done
}
