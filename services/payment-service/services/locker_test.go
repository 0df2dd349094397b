package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	locker := NewLocalLocker(2 * time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "booking:bk-1", time.Second)
			require.NoError(t, err)
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker(50 * time.Millisecond)
	a, err := locker.Acquire(context.Background(), "booking:a", time.Second)
	require.NoError(t, err)
	defer a()

	b, err := locker.Acquire(context.Background(), "booking:b", time.Second)
	require.NoError(t, err)
	b()
}

func TestLocalLocker_TimesOut(t *testing.T) {
	locker := NewLocalLocker(20 * time.Millisecond)
	release, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release()
	again, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	again()
}

func TestLocalLocker_HonoursContext(t *testing.T) {
	locker := NewLocalLocker(time.Second)
	release, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}
