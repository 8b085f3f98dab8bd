package watcher

import (
	"path/filepath"
	"testing"
	"time"

	"dnaconverter/internal/clock"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebounceWithMockClock(t *testing.T) {
	clk := clock.NewMockClock(time.Unix(0, 0))
	path := filepath.Join(t.TempDir(), "plugins.yaml")

	w, err := New(Config{Path: path, DebounceDur: time.Second, Clock: clk})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	write := fsnotify.Event{Name: path, Op: fsnotify.Write}
	w.handle(write)
	clk.Advance(900 * time.Millisecond)
	w.handle(write) // restarts the debounce window
	clk.Advance(900 * time.Millisecond)

	select {
	case <-w.onChange:
		t.Fatal("fired before the debounce window closed")
	default:
	}

	clk.Advance(100 * time.Millisecond)
	select {
	case <-w.onChange:
	default:
		t.Fatal("expected a change signal")
	}
	assert.Equal(t, 0, clk.Pending())
}

func TestWatcher_IsRelevantEvent(t *testing.T) {
	path := filepath.Join("data", "plugins.yaml")
	w := &Watcher{path: path}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "write", event: fsnotify.Event{Name: path, Op: fsnotify.Write}, want: true},
		{name: "create", event: fsnotify.Event{Name: path, Op: fsnotify.Create}, want: true},
		{name: "chmod", event: fsnotify.Event{Name: path, Op: fsnotify.Chmod}, want: false},
		{name: "remove", event: fsnotify.Event{Name: path, Op: fsnotify.Remove}, want: false},
		{name: "temp file", event: fsnotify.Event{Name: filepath.Join("data", ".plugins.yaml-123"), Op: fsnotify.Create}, want: false},
		{name: "unclean path", event: fsnotify.Event{Name: "data/./plugins.yaml", Op: fsnotify.Write}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.isRelevantEvent(tt.event))
		})
	}
}
