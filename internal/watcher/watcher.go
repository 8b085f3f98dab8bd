// Package watcher watches the plugin store file and signals, debounced,
// when it changes on disk.
package watcher

import (
	"fmt"
	"path/filepath"
	"time"

	"dnaconverter/internal/clock"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher monitors one file for changes and sends notifications.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	clock     clock.Clock
	logger    *zap.Logger
	onChange  chan struct{}
	done      chan struct{}

	timer clock.Timer
}

// Config holds watcher configuration options.
type Config struct {
	Path        string
	DebounceDur time.Duration
	Clock       clock.Clock
	Logger      *zap.Logger
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		DebounceDur: 500 * time.Millisecond,
	}
}

// New creates a new file watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		fsWatcher: fsw,
		path:      cfg.Path,
		debounce:  cfg.DebounceDur,
		clock:     clk,
		logger:    logger.Named("watcher"),
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the file's directory. Watching the directory
// rather than the file survives editors and stores that replace the file
// by renaming.
// Returns a channel that receives a signal when the file changes.
func (w *Watcher) Start() (<-chan struct{}, error) {
	dir := filepath.Dir(w.path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	go w.loop()

	w.logger.Info("Watching plugin store", zap.String("path", w.path))
	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watch error", zap.Error(err))

		case <-w.done:
			if w.timer != nil {
				w.timer.Stop()
			}
			return
		}
	}
}

// handle restarts the debounce timer for relevant events.
func (w *Watcher) handle(event fsnotify.Event) {
	if !w.isRelevantEvent(event) {
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = w.clock.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.logger.Debug("Plugin store changed", zap.String("path", w.path))

	// Non-blocking send - drop if a signal is already pending
	select {
	case w.onChange <- struct{}{}:
	default:
	}
}

// isRelevantEvent checks if the event should trigger a refresh.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	// Atomic saves show up as a create of the target name
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.path)
}
