package responseengine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// snapshotEventBuffer is the size of the watch event channel.
	snapshotEventBuffer = 100

	// snapshotExt is the only file extension treated as a snapshot.
	snapshotExt = ".json"
)

// WatchConfig configures the snapshot drop directory.
type WatchConfig struct {
	// Enabled controls whether the drop directory is watched.
	Enabled bool `json:"enabled" schema:"type:bool,description:Enable snapshot drop-directory watching,category:advanced,default:false"`

	// Dir is the directory watched for snapshot JSON files.
	Dir string `json:"dir" schema:"type:string,description:Directory watched for snapshot JSON files,category:advanced"`

	// DebounceDelay is how long to wait for more changes before submitting.
	DebounceDelay string `json:"debounce_delay" schema:"type:string,description:Debounce delay before submitting changed snapshots,category:advanced,default:500ms"`
}

// DefaultWatchConfig returns default watch configuration.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Enabled:       false,
		DebounceDelay: "500ms",
	}
}

// GetDebounceDelay returns the debounce delay as a duration.
func (c *WatchConfig) GetDebounceDelay() time.Duration {
	if c.DebounceDelay == "" {
		return 500 * time.Millisecond
	}
	d, err := time.ParseDuration(c.DebounceDelay)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// SnapshotEvent reports a new or changed snapshot file ready to submit.
type SnapshotEvent struct {
	// Path is the file path relative to the drop directory.
	Path string

	// AbsPath is the absolute file path.
	AbsPath string
}

// SnapshotWatcher watches a drop directory for snapshot files and emits
// an event for each new or changed file. A deleted file only clears the
// change-detection state; it never retracts a run that already started.
type SnapshotWatcher struct {
	config  WatchConfig
	dropDir string
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// Debouncing: collect changes before processing
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	// Hash-based change detection
	hashMu sync.RWMutex
	hashes map[string]string

	// Output channel
	events chan SnapshotEvent

	// Metrics
	droppedEvents atomic.Int64
}

// NewSnapshotWatcher creates a new snapshot drop-directory watcher.
func NewSnapshotWatcher(config WatchConfig, dropDir string, logger *slog.Logger) (*SnapshotWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SnapshotWatcher{
		config:  config,
		dropDir: dropDir,
		watcher: fsw,
		logger:  logger,
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
		events:  make(chan SnapshotEvent, snapshotEventBuffer),
	}, nil
}

// Events returns the channel of snapshot events.
func (w *SnapshotWatcher) Events() <-chan SnapshotEvent {
	return w.events
}

// Start begins watching the drop directory for snapshot files.
func (w *SnapshotWatcher) Start(ctx context.Context) error {
	// Create the drop directory if it doesn't exist
	if err := os.MkdirAll(w.dropDir, 0755); err != nil {
		return err
	}

	// Add watches recursively
	if err := w.addWatchesRecursive(w.dropDir); err != nil {
		return err
	}

	// Start the event processing goroutine
	go w.processEvents(ctx)

	w.logger.Info("Snapshot watcher started",
		"drop_dir", w.dropDir,
		"debounce", w.config.GetDebounceDelay())

	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *SnapshotWatcher) Stop() error {
	return w.watcher.Close()
}

// SetHash records the hash for a file.
func (w *SnapshotWatcher) SetHash(path, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[path] = hash
}

// GetHash returns the recorded hash for a file.
func (w *SnapshotWatcher) GetHash(path string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[path]
	return hash, ok
}

// addWatchesRecursive adds watches to all directories under root.
func (w *SnapshotWatcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Only watch directories
		if !info.IsDir() {
			return nil
		}

		// Skip hidden directories
		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != root {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}

		return nil
	})
}

// processEvents handles fsnotify events with debouncing.
func (w *SnapshotWatcher) processEvents(ctx context.Context) {
	defer close(w.events) // Close events channel when goroutine exits
	ticker := time.NewTicker(w.config.GetDebounceDelay())
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
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent processes a single fsnotify event.
func (w *SnapshotWatcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	ext := strings.ToLower(filepath.Ext(path))
	if ext != snapshotExt {
		// But handle directory creation (for new watches)
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.handleNewDirectory(path)
			}
		}
		return
	}

	// Accumulate pending changes
	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	relPath, _ := filepath.Rel(w.dropDir, path)
	w.logger.Debug("Snapshot change detected",
		"path", relPath,
		"op", event.Op.String())
}

// handleNewDirectory adds a watch to a newly created directory.
func (w *SnapshotWatcher) handleNewDirectory(path string) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return
	}

	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory",
			"path", path,
			"error", err)
	} else {
		w.logger.Debug("Added watch for new directory", "path", path)
	}
}

// flushPending processes accumulated changes.
func (w *SnapshotWatcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}

	// Copy and clear pending
	toProcess := make(map[string]fsnotify.Op)
	for k, v := range w.pending {
		toProcess[k] = v
	}
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	// Process each change
	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, _ := filepath.Rel(w.dropDir, path)

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			// A removed snapshot never retracts a run; just forget it so
			// a later re-drop of the same content submits again.
			w.hashMu.Lock()
			delete(w.hashes, relPath)
			w.hashMu.Unlock()
			continue
		}

		// Transient window during atomic replaces
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("Failed to read snapshot for hash check",
				"path", relPath,
				"error", err)
			continue
		}

		newHash := contentHash(content)

		// Check if content actually changed
		oldHash, hadHash := w.GetHash(relPath)
		if hadHash && oldHash == newHash {
			continue
		}

		w.SetHash(relPath, newHash)

		w.sendEvent(SnapshotEvent{
			Path:    relPath,
			AbsPath: path,
		})
	}
}

// sendEvent sends an event to the output channel.
func (w *SnapshotWatcher) sendEvent(event SnapshotEvent) {
	select {
	case w.events <- event:
		w.logger.Debug("Sent snapshot event", "path", event.Path)
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("Event channel full, dropping snapshot event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}

// DroppedEvents returns the number of events dropped due to channel overflow.
func (w *SnapshotWatcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}

// contentHash returns the hex SHA-256 of content.
func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
