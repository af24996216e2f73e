package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UltravioletaDAO/karmakadabra-sub003/internal/logging"
)

func startWatcher(t *testing.T, roots ...string) (*Watcher, chan struct{}) {
	t.Helper()
	changes := make(chan struct{}, 16)
	w, err := New(50*time.Millisecond, func() { changes <- struct{}{} }, logging.New(nil, "silent"), roots...)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w, changes
}

func waitChange(t *testing.T, changes <-chan struct{}) {
	t.Helper()
	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("no change signalled")
	}
}

func TestWatcherSignalsRecordWrite(t *testing.T) {
	root := t.TempDir()
	agentDir := filepath.Join(root, "researcher")
	require.NoError(t, os.MkdirAll(agentDir, 0o755))

	_, changes := startWatcher(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(agentDir, "performance.json"), []byte(`{}`), 0o644))
	waitChange(t, changes)
}

func TestWatcherDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	agentDir := filepath.Join(root, "coder")
	require.NoError(t, os.MkdirAll(agentDir, 0o755))

	_, changes := startWatcher(t, root)
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(agentDir, "evidence_history.json"), []byte(`[]`), 0o644))
	}
	waitChange(t, changes)

	select {
	case <-changes:
		t.Fatal("burst produced more than one change")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherFollowsNewAgentDirs(t *testing.T) {
	root := t.TempDir()
	_, changes := startWatcher(t, root)

	agentDir := filepath.Join(root, "newbie")
	require.NoError(t, os.MkdirAll(agentDir, 0o755))
	waitChange(t, changes)

	require.NoError(t, os.WriteFile(filepath.Join(agentDir, "lifecycle.json"), []byte(`{}`), 0o644))
	waitChange(t, changes)
}

func TestWatcherMissingRoot(t *testing.T) {
	w, err := New(0, func() {}, logging.New(nil, "silent"), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, 2*time.Second, w.debounce)
	w.Stop()
}

func TestRelevant(t *testing.T) {
	w, err := New(time.Second, func() {}, logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(w.Stop)

	dir := t.TempDir()
	assert.True(t, w.relevant(fsnotify.Event{Name: filepath.Join(dir, "a", "trust.json"), Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: filepath.Join(dir, "a", "notes.txt"), Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: filepath.Join(dir, "a", ".performance.json.swp"), Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: filepath.Join(dir, "a", "trust.json"), Op: fsnotify.Chmod}))
	assert.True(t, w.relevant(fsnotify.Event{Name: filepath.Join(dir, "gone"), Op: fsnotify.Remove}))
}
