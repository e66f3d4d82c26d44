package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/lister/pkg/workerpool"
)

func TestPool_RunReturnsResult(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Shutdown()

	want := errors.New("boom")
	assert.NoError(t, pool.Run(context.Background(), func(context.Context) error { return nil }))
	assert.ErrorIs(t, pool.Run(context.Background(), func(context.Context) error { return want }), want)
}

func TestPool_RunConcurrent(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Shutdown()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := pool.Run(context.Background(), func(context.Context) error {
					count.Add(1)
					return nil
				})
				if !errors.Is(err, workerpool.ErrPoolFull) {
					return
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), count.Load())
}

func TestPool_ErrPoolFull(t *testing.T) {
	pool := workerpool.New(1)
	release := make(chan struct{})
	started := make(chan struct{})
	defer func() {
		close(release)
		pool.Shutdown()
	}()

	require.NoError(t, pool.Submit(func() {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, pool.Submit(func() { <-release }), "backlog slot")

	err := pool.Run(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, workerpool.ErrPoolFull)
	assert.Equal(t, 1, pool.Busy())
}

func TestPool_RunHonoursContext(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := pool.Run(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_ErrPoolClosed(t *testing.T) {
	pool := workerpool.New(2)
	pool.Shutdown()
	pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(func() {}), workerpool.ErrPoolClosed)
	assert.ErrorIs(t, pool.Run(context.Background(), func(context.Context) error { return nil }), workerpool.ErrPoolClosed)
}

func TestPool_PanicBecomesError(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	err := pool.Run(context.Background(), func(context.Context) error { panic("bad task") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad task")

	assert.NoError(t, pool.Run(context.Background(), func(context.Context) error { return nil }),
		"worker survives a panic")
}

func TestPool_ShutdownDrains(t *testing.T) {
	pool := workerpool.New(2)
	var done, accepted atomic.Int32
	for i := 0; i < 4; i++ {
		if pool.Submit(func() {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
		}) == nil {
			accepted.Add(1)
		}
	}
	pool.Shutdown()
	assert.GreaterOrEqual(t, accepted.Load(), int32(2))
	assert.Equal(t, accepted.Load(), done.Load())
}
