package responseengine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchConfig_GetDebounceDelay(t *testing.T) {
	tests := []struct {
		name   string
		delay  string
		expect time.Duration
	}{
		{
			name:   "valid duration",
			delay:  "100ms",
			expect: 100 * time.Millisecond,
		},
		{
			name:   "empty string uses default",
			delay:  "",
			expect: 500 * time.Millisecond,
		},
		{
			name:   "invalid duration uses default",
			delay:  "invalid",
			expect: 500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := WatchConfig{DebounceDelay: tt.delay}
			got := config.GetDebounceDelay()
			if got != tt.expect {
				t.Errorf("GetDebounceDelay() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestDefaultWatchConfig(t *testing.T) {
	config := DefaultWatchConfig()

	if config.Enabled {
		t.Error("default config should have watching disabled")
	}

	if config.DebounceDelay != "500ms" {
		t.Errorf("unexpected default debounce delay: %s", config.DebounceDelay)
	}
}

func testWatcher(t *testing.T, dir string) *SnapshotWatcher {
	t.Helper()

	config := WatchConfig{
		Enabled:       true,
		Dir:           dir,
		DebounceDelay: "50ms",
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	watcher, err := NewSnapshotWatcher(config, dir, logger)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(func() { watcher.Stop() })

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)

	return watcher
}

func TestSnapshotWatcher_FileCreation(t *testing.T) {
	tmpDir := t.TempDir()
	watcher := testWatcher(t, tmpDir)

	snapFile := filepath.Join(tmpDir, "cx880.json")
	if err := os.WriteFile(snapFile, []byte(`{"flight_number":"CX880"}`), 0644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	select {
	case event := <-watcher.Events():
		if event.Path != "cx880.json" {
			t.Errorf("expected path cx880.json, got %s", event.Path)
		}
		if event.AbsPath != snapFile {
			t.Errorf("expected abs path %s, got %s", snapFile, event.AbsPath)
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout waiting for snapshot event")
	}
}

func TestSnapshotWatcher_IgnoresOtherExtensions(t *testing.T) {
	tmpDir := t.TempDir()
	watcher := testWatcher(t, tmpDir)

	otherFile := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(otherFile, []byte("not a snapshot"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	select {
	case event := <-watcher.Events():
		t.Errorf("unexpected event for non-snapshot file: %+v", event)
	case <-time.After(300 * time.Millisecond):
		// Expected - no event for other extensions
	}
}

func TestSnapshotWatcher_UnchangedContentSuppressed(t *testing.T) {
	tmpDir := t.TempDir()
	watcher := testWatcher(t, tmpDir)

	content := []byte(`{"flight_number":"UA329","delay_minutes":95}`)
	snapFile := filepath.Join(tmpDir, "ua329.json")
	if err := os.WriteFile(snapFile, content, 0644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	select {
	case <-watcher.Events():
		// First write always emits
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for first snapshot event")
	}

	// Touch the file with identical content
	if err := os.WriteFile(snapFile, content, 0644); err != nil {
		t.Fatalf("failed to rewrite snapshot: %v", err)
	}

	select {
	case event := <-watcher.Events():
		t.Errorf("unexpected event for unchanged content: %+v", event)
	case <-time.After(300 * time.Millisecond):
		// Expected - hash unchanged
	}
}

func TestSnapshotWatcher_DeleteClearsState(t *testing.T) {
	tmpDir := t.TempDir()
	watcher := testWatcher(t, tmpDir)

	content := []byte(`{"flight_number":"BA117"}`)
	snapFile := filepath.Join(tmpDir, "ba117.json")
	if err := os.WriteFile(snapFile, content, 0644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	select {
	case <-watcher.Events():
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for first snapshot event")
	}

	// Deleting a snapshot emits nothing; runs are never retracted.
	if err := os.Remove(snapFile); err != nil {
		t.Fatalf("failed to remove snapshot: %v", err)
	}

	select {
	case event := <-watcher.Events():
		t.Errorf("unexpected event for deleted snapshot: %+v", event)
	case <-time.After(300 * time.Millisecond):
	}

	// Re-dropping the same content submits again because the hash was
	// cleared by the delete.
	if err := os.WriteFile(snapFile, content, 0644); err != nil {
		t.Fatalf("failed to rewrite snapshot: %v", err)
	}

	select {
	case event := <-watcher.Events():
		if event.Path != "ba117.json" {
			t.Errorf("expected path ba117.json, got %s", event.Path)
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout waiting for re-dropped snapshot event")
	}
}

func TestSnapshotWatcher_SetGetHash(t *testing.T) {
	tmpDir := t.TempDir()

	watcher, err := NewSnapshotWatcher(DefaultWatchConfig(), tmpDir, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	watcher.SetHash("snap.json", "abc123")

	hash, ok := watcher.GetHash("snap.json")
	if !ok {
		t.Error("expected hash to exist")
	}
	if hash != "abc123" {
		t.Errorf("expected hash abc123, got %s", hash)
	}

	_, ok = watcher.GetHash("missing.json")
	if ok {
		t.Error("expected hash to not exist for unknown file")
	}
}

func TestSnapshotWatcher_DroppedEvents(t *testing.T) {
	tmpDir := t.TempDir()

	watcher, err := NewSnapshotWatcher(DefaultWatchConfig(), tmpDir, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	if watcher.DroppedEvents() != 0 {
		t.Errorf("expected 0 dropped events, got %d", watcher.DroppedEvents())
	}
}
