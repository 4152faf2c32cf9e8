package config

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long to wait for more changes before reloading.
const defaultDebounce = 500 * time.Millisecond

// ReloadFunc receives each validated configuration after a file change.
// Callbacks run on the watcher goroutine and must return promptly.
type ReloadFunc func(*Config)

// Watcher reloads a configuration file on change. Engine tunables
// (thresholds, timeouts, caps) take effect when the consumer rebuilds its
// collaborators from the new config; connection-level settings like the
// NATS URL and model endpoints require a restart. Invalid or unparsable
// edits are logged and skipped, keeping the last good configuration.
type Watcher struct {
	path     string
	onReload ReloadFunc
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	// Debouncing: collect changes before reloading
	pendingMu sync.Mutex
	pending   bool

	// Hash-based change detection
	lastHash [sha256.Size]byte

	reloads atomic.Int64
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the reload debounce delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets a custom logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher creates a watcher for the config file at path. The file must
// exist and parse when the watcher starts.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		onReload: onReload,
		watcher:  fsw,
		logger:   slog.Default(),
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start validates the current file contents and begins watching. Watches
// are placed on the parent directory so atomic replaces (write to temp,
// rename over) are seen.
func (w *Watcher) Start(ctx context.Context) error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	cfg, err := parse(data)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	w.lastHash = sha256.Sum256(data)

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Config watcher started",
		"path", w.path,
		"debounce", w.debounce)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// Reloads returns the number of reloads delivered to the callback.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Config watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

// handleFSEvent marks a reload pending when the config file itself
// changed.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.pendingMu.Lock()
	w.pending = true
	w.pendingMu.Unlock()

	w.logger.Debug("Config change detected",
		"path", w.path,
		"op", event.Op.String())
}

// flushPending reloads the file if a change is pending and the content
// actually differs from the last good configuration.
func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()
	if !pending {
		return
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		// Transient during atomic replaces; the next event retries.
		w.logger.Debug("Config file unreadable, skipping reload",
			"path", w.path,
			"error", err)
		return
	}

	hash := sha256.Sum256(data)
	if hash == w.lastHash {
		return
	}

	cfg, err := parse(data)
	if err != nil {
		w.logger.Warn("Config reload rejected, keeping last good config",
			"path", w.path,
			"error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		w.logger.Warn("Config reload rejected, keeping last good config",
			"path", w.path,
			"error", err)
		return
	}

	w.lastHash = hash
	reloads := w.reloads.Add(1)
	w.logger.Info("Config reloaded",
		"path", w.path,
		"reloads", reloads)

	if w.onReload != nil {
		w.onReload(cfg)
	}
}
