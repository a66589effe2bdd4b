package builder_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/qobs-build/rebuild/internal/builder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapClock is a Clock backed by a map; absent keys are missing files
type mapClock struct {
	times map[string]time.Time
	errs  map[string]error
}

func (c mapClock) ModTime(path string) (time.Time, bool, error) {
	if err, ok := c.errs[path]; ok {
		return time.Time{}, false, err
	}
	t, ok := c.times[path]
	return t, ok, nil
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestStale(t *testing.T) {
	tests := []struct {
		name     string
		times    map[string]time.Time
		stale    bool
		cause    string
		vanished []string
	}{
		{
			name:  "missing artifact",
			times: map[string]time.Time{"a.cpp": t0},
			stale: true,
		},
		{
			name:  "inputs older",
			times: map[string]time.Time{"a.o": t0, "a.cpp": t0.Add(-time.Second), "a.h": t0.Add(-time.Hour)},
		},
		{
			name:  "equal timestamps are not stale",
			times: map[string]time.Time{"a.o": t0, "a.cpp": t0, "a.h": t0},
		},
		{
			name:  "one input newer",
			times: map[string]time.Time{"a.o": t0, "a.cpp": t0, "a.h": t0.Add(time.Nanosecond)},
			stale: true,
			cause: "a.h",
		},
		{
			name:  "first newer input is the cause",
			times: map[string]time.Time{"a.o": t0, "a.cpp": t0.Add(time.Second), "a.h": t0.Add(time.Hour)},
			stale: true,
			cause: "a.cpp",
		},
		{
			name:     "vanished input",
			times:    map[string]time.Time{"a.o": t0, "a.cpp": t0},
			stale:    true,
			vanished: []string{"a.h"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := builder.Stale(mapClock{times: tt.times}, "a.o", []string{"a.cpp", "a.h"})
			require.NoError(t, err)
			assert.Equal(t, tt.stale, v.Stale)
			assert.Equal(t, tt.cause, v.Cause)
			assert.Equal(t, tt.vanished, v.Vanished)
		})
	}
}

func TestStale_MissingArtifactIgnoresInputs(t *testing.T) {
	// inputs are never looked at, so even a broken one doesn't matter
	clock := mapClock{errs: map[string]error{"a.cpp": os.ErrPermission}}
	v, err := builder.Stale(clock, "a.o", []string{"a.cpp"})
	require.NoError(t, err)
	assert.True(t, v.Stale)
}

func TestStale_StatErrorIsFatal(t *testing.T) {
	clock := mapClock{
		times: map[string]time.Time{"a.o": t0},
		errs:  map[string]error{"a.h": os.ErrPermission},
	}
	_, err := builder.Stale(clock, "a.o", []string{"a.cpp", "a.h"})
	assert.True(t, errors.Is(err, os.ErrPermission))
}

func TestFileClock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.h")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, os.Chtimes(path, t0, t0))

	clock := builder.FileClock{Dir: dir}

	mt, exists, err := clock.ModTime(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, mt.Equal(t0))

	mt, exists, err = clock.ModTime("a.h")
	require.NoError(t, err)
	assert.True(t, exists, "relative paths are resolved against Dir")
	assert.True(t, mt.Equal(t0))

	_, exists, err = clock.ModTime("missing.h")
	require.NoError(t, err)
	assert.False(t, exists)
}
