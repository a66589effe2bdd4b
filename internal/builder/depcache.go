package builder

import (
	"context"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultDepCacheSize = 4096

type cachedDeps struct {
	deps   []string
	stamps []time.Time // modification time of deps[i] when they were resolved
}

// CachingResolver remembers dependency lists between runs. An entry is reused only
// while every file it names still has the modification time it had when resolved;
// the dependency list of a unit can only change when one of those files changes.
type CachingResolver struct {
	next  DependencyResolver
	clock Clock
	cache *lru.Cache[string, cachedDeps]
}

func NewCachingResolver(next DependencyResolver, clock Clock, size int) (*CachingResolver, error) {
	if size <= 0 {
		size = defaultDepCacheSize
	}
	cache, err := lru.New[string, cachedDeps](size)
	if err != nil {
		return nil, err
	}
	return &CachingResolver{next: next, clock: clock, cache: cache}, nil
}

func (c *CachingResolver) Resolve(ctx context.Context, source string) ([]string, error) {
	if entry, ok := c.cache.Get(source); ok && c.fresh(entry) {
		return slices.Clone(entry.deps), nil
	}

	deps, err := c.next.Resolve(ctx, source)
	if err != nil {
		c.cache.Remove(source)
		return nil, err
	}

	// the source itself is always checked, even if the compiler left it out
	tracked := slices.Clone(deps)
	if !slices.Contains(tracked, source) {
		tracked = append(tracked, source)
	}

	stamps := make([]time.Time, len(tracked))
	for i, dep := range tracked {
		t, exists, err := c.clock.ModTime(dep)
		if err != nil || !exists {
			c.cache.Remove(source)
			return tracked, nil // not cacheable
		}
		stamps[i] = t
	}
	c.cache.Add(source, cachedDeps{deps: tracked, stamps: stamps})

	return slices.Clone(tracked), nil
}

func (c *CachingResolver) fresh(entry cachedDeps) bool {
	for i, dep := range entry.deps {
		t, exists, err := c.clock.ModTime(dep)
		if err != nil || !exists || !t.Equal(entry.stamps[i]) {
			return false
		}
	}
	return true
}

// Len returns the number of cached units
func (c *CachingResolver) Len() int { return c.cache.Len() }
