package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qobs-build/rebuild/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, w *watch.Watcher) watch.Event {
	t.Helper()
	ch := make(chan watch.Event, 1)
	go func() {
		for ev := range w.Events() {
			ch <- ev
			return
		}
	}()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a file event")
		return watch.Event{}
	}
}

func TestWatcher_ReportsChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := watch.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, w.Add(dir, dir))
	assert.Equal(t, 1, w.Len())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w.Start(ctx)

	path := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(path, []byte("int a;"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, path, ev.Path)
}

func TestWatcher_Ignore(t *testing.T) {
	dir := t.TempDir()
	w, err := watch.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })
	w.Ignore = func(path string) bool { return strings.HasSuffix(path, ".o") }

	require.NoError(t, w.Add(dir))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w.Start(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.o"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cpp"), nil, 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, filepath.Join(dir, "a.cpp"), ev.Path)
}

func TestWatcher_AddMissingDirectory(t *testing.T) {
	w, err := watch.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	assert.Error(t, w.Add(filepath.Join(t.TempDir(), "missing")))
	assert.Equal(t, 0, w.Len())
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "write", watch.OpWrite.String())
	assert.Equal(t, "rename", watch.OpRename.String())
}
