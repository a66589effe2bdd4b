package watch_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/qobs-build/rebuild/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		var calls [][]string

		d := watch.NewDebouncer(100*time.Millisecond, func(paths []string) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, paths)
		})

		d.Add("/p/src/b.cpp")
		d.Add("/p/src/a.h")
		time.Sleep(50 * time.Millisecond)
		d.Add("/p/src/b.cpp")

		time.Sleep(150 * time.Millisecond)
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, calls, 1)
		assert.Equal(t, []string{"/p/src/a.h", "/p/src/b.cpp"}, calls[0])
	})
}

func TestDebouncer_WindowRestartsOnAdd(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var mu sync.Mutex
		count := 0
		d := watch.NewDebouncer(100*time.Millisecond, func([]string) {
			mu.Lock()
			count++
			mu.Unlock()
		})

		for range 5 {
			d.Add("/p/src/a.cpp")
			time.Sleep(60 * time.Millisecond)
		}
		synctest.Wait()
		mu.Lock()
		assert.Equal(t, 0, count)
		mu.Unlock()

		time.Sleep(100 * time.Millisecond)
		synctest.Wait()
		mu.Lock()
		assert.Equal(t, 1, count)
		mu.Unlock()
	})
}

func TestDebouncer_Flush(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var got []string
		d := watch.NewDebouncer(time.Hour, func(paths []string) { got = paths })

		d.Add("/p/src/a.cpp")
		d.Flush()
		assert.Equal(t, []string{"/p/src/a.cpp"}, got)

		// nothing pending, nothing to do
		got = nil
		d.Flush()
		assert.Nil(t, got)
	})
}

func TestDebouncer_NilCallback(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		d := watch.NewDebouncer(10*time.Millisecond, nil)
		d.Add("/p/src/a.cpp")
		time.Sleep(20 * time.Millisecond)
		synctest.Wait()
		d.Flush()
	})
}
