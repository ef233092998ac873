package runtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestCPUPoolBoundsConcurrency(t *testing.T) {
	pool := NewCPUPool(2)
	var current, maxSeen int32

	group, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		group.Go(func() error {
			return pool.Run(ctx, func() error {
				n := atomic.AddInt32(&current, 1)
				for {
					m := atomic.LoadInt32(&maxSeen)
					if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&current, -1)
				return nil
			})
		})
	}
	require.NoError(t, group.Wait())
	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxSeen)), 2)
}

func TestCPUPoolTryRun(t *testing.T) {
	pool := NewCPUPool(1)
	block := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = pool.Run(context.Background(), func() error {
			<-block
			return nil
		})
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)

	ran := pool.TryRun(func() {})
	assert.False(t, ran)

	close(block)
	<-done
	ran = pool.TryRun(func() {})
	assert.True(t, ran)
}

func TestRunBatchPreservesOrderAndStopsOnError(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results, err := RunBatch(context.Background(), items, 3, func(_ context.Context, i int) (int, error) {
		return i * i, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25}, results)

	_, err = RunBatch(context.Background(), items, 2, func(_ context.Context, i int) (int, error) {
		if i == 3 {
			return 0, errBoom
		}
		return i, nil
	})
	assert.ErrorIs(t, err, errBoom)
}
