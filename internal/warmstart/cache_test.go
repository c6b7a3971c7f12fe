package warmstart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type asset struct{ id int }

func TestCache_ConcurrentFirstCallsBuildOnce(t *testing.T) {
	var cache Cache[*asset]
	var builds atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	build := func(ctx context.Context) (*asset, error) {
		if builds.Add(1) == 1 {
			close(started)
		}
		<-release
		return &asset{id: 1}, nil
	}

	const callers = 10
	results := make([]*asset, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := cache.Get(context.Background(), build)
		assert.NoError(t, err)
		results[0] = v
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Get(context.Background(), build)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, builds.Load())
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.True(t, cache.Built())
}

func TestCache_WarmCallsReuseAsset(t *testing.T) {
	var cache Cache[*asset]
	var builds int

	build := func(ctx context.Context) (*asset, error) {
		builds++
		return &asset{id: builds}, nil
	}

	first, err := cache.Get(context.Background(), build)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := cache.Get(context.Background(), build)
		require.NoError(t, err)
		assert.Same(t, first, again)
	}
	assert.Equal(t, 1, builds)
}

func TestCache_FailedBuildIsRetried(t *testing.T) {
	var cache Cache[*asset]
	var builds int
	boom := errors.New("database unreachable")

	build := func(ctx context.Context) (*asset, error) {
		builds++
		if builds == 1 {
			return nil, boom
		}
		return &asset{id: builds}, nil
	}

	_, err := cache.Get(context.Background(), build)
	require.ErrorIs(t, err, boom)
	assert.False(t, cache.Built())

	v, err := cache.Get(context.Background(), build)
	require.NoError(t, err)
	assert.Equal(t, 2, v.id)
	assert.Equal(t, 2, builds)
}

func TestCache_Reset(t *testing.T) {
	var cache Cache[*asset]
	var builds int
	build := func(ctx context.Context) (*asset, error) {
		builds++
		return &asset{id: builds}, nil
	}

	_, err := cache.Get(context.Background(), build)
	require.NoError(t, err)
	cache.Reset()
	assert.False(t, cache.Built())

	v, err := cache.Get(context.Background(), build)
	require.NoError(t, err)
	assert.Equal(t, 2, v.id)
}

type ctxKey struct{}

func TestCache_CallerCancellationDoesNotFailSharedBuild(t *testing.T) {
	var cache Cache[*asset]
	started := make(chan struct{})
	release := make(chan struct{})

	var buildErr error
	var seen any
	build := func(ctx context.Context) (*asset, error) {
		close(started)
		<-release
		buildErr = ctx.Err()
		seen = ctx.Value(ctxKey{})
		if buildErr != nil {
			return nil, buildErr
		}
		return &asset{id: 7}, nil
	}

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "first"))
	first := make(chan *asset)
	go func() {
		v, err := cache.Get(ctx, build)
		assert.NoError(t, err)
		first <- v
	}()
	<-started

	second := make(chan *asset)
	go func() {
		v, err := cache.Get(context.Background(), build)
		assert.NoError(t, err)
		second <- v
	}()

	cancel()
	close(release)

	a, b := <-first, <-second
	require.NotNil(t, a)
	assert.Same(t, a, b)
	assert.Equal(t, 7, a.id)
	assert.NoError(t, buildErr)
	assert.Equal(t, "first", seen)
	assert.True(t, cache.Built())
}
