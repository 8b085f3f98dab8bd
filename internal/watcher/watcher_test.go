package watcher_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dnaconverter/internal/store"
	"dnaconverter/internal/watcher"

	"github.com/stretchr/testify/require"
)

func TestWatcher_DebounceMultipleWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plugins: []\n"), 0o644))

	w, err := watcher.New(watcher.Config{
		Path:        path,
		DebounceDur: 50 * time.Millisecond,
	})
	require.NoError(t, err, "failed to create watcher")
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err, "failed to start watcher")

	// Rapid writes should coalesce into single notification
	for i := 0; i < 10; i++ {
		err := os.WriteFile(path, []byte(fmt.Sprintf("controller: c%d\n", i)), 0o644)
		require.NoError(t, err, "failed to write file")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-onChange:
	case <-time.After(time.Second):
		t.Fatal("expected notification but got timeout")
	}

	select {
	case <-onChange:
		t.Fatal("unexpected second notification")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_SeesAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	s := store.NewFileStore(path)
	require.NoError(t, s.Save(context.Background(), &store.Document{Controller: "before"}))

	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 20 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), &store.Document{Controller: "after"}))

	select {
	case <-onChange:
	case <-time.After(time.Second):
		t.Fatal("rename-based save was not noticed")
	}
}

func TestWatcher_IgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plugins.yaml")
	otherPath := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(path, []byte("plugins: []\n"), 0o644))
	require.NoError(t, os.WriteFile(otherPath, []byte("initial"), 0o644))

	w, err := watcher.New(watcher.Config{Path: path, DebounceDur: 20 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(otherPath, []byte("other content"), 0o644))

	select {
	case <-onChange:
		t.Fatal("unexpected notification for unrelated file")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_StartFailsForMissingDirectory(t *testing.T) {
	w, err := watcher.New(watcher.DefaultConfig(filepath.Join(t.TempDir(), "missing", "plugins.yaml")))
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	_, err = w.Start()
	require.Error(t, err)
}
