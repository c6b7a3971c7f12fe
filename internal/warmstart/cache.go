// Package warmstart memoizes the per-process application build so warm
// invocations reuse it.
package warmstart

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

const buildKey = "build"

// BuildFunc assembles the asset. It runs at most once per successful build.
type BuildFunc[T any] func(ctx context.Context) (T, error)

// Cache holds the result of a single expensive build. Concurrent first
// callers share one in-flight build; a failed build is not cached, so the
// next caller retries.
type Cache[T any] struct {
	group singleflight.Group

	mu    sync.RWMutex
	value T
	built bool
}

// Get returns the cached asset, building it with build on first use. The
// build sees ctx's values but not its cancellation.
func (c *Cache[T]) Get(ctx context.Context, build BuildFunc[T]) (T, error) {
	if v, ok := c.load(); ok {
		return v, nil
	}

	res, err, _ := c.group.Do(buildKey, func() (any, error) {
		// A caller that lost the race to a just-finished build lands here.
		if v, ok := c.load(); ok {
			return v, nil
		}

		// The build is shared by every waiter, so one caller's
		// cancellation must not fail the others. Values are kept.
		v, err := build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		// Store before Do returns so no later caller can miss the value
		// and trigger a second build.
		c.mu.Lock()
		c.value = v
		c.built = true
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("warm start build: %w", err)
	}
	v, _ := res.(T)
	return v, nil
}

// Built reports whether a successful build is cached.
func (c *Cache[T]) Built() bool {
	_, ok := c.load()
	return ok
}

// Reset drops the cached asset; the next Get builds again.
func (c *Cache[T]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.built = false
}

func (c *Cache[T]) load() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.built
}
