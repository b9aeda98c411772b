package wmi

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComThread_RunsCalls(t *testing.T) {
	var tornDown atomic.Bool
	th, err := startThread(func() error { return nil }, func() { tornDown.Store(true) })
	require.NoError(t, err)

	var n int
	for i := 0; i < 10; i++ {
		require.NoError(t, th.do(context.Background(), func() error {
			n++
			return nil
		}))
	}
	assert.Equal(t, 10, n)

	boom := errors.New("boom")
	assert.ErrorIs(t, th.do(context.Background(), func() error { return boom }), boom)

	th.stop()
	th.stop()
	assert.ErrorIs(t, th.do(context.Background(), func() error { return nil }), errThreadClosed)
	assert.Eventually(t, tornDown.Load, time.Second, 10*time.Millisecond)
}

func TestComThread_InitFailure(t *testing.T) {
	boom := errors.New("CoInitializeEx failed")
	_, err := startThread(func() error { return boom }, nil)
	assert.ErrorIs(t, err, boom)
}

func TestComThread_SerializesConcurrentCallers(t *testing.T) {
	th, err := startThread(func() error { return nil }, nil)
	require.NoError(t, err)
	defer th.stop()

	var inFlight, maxInFlight atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = th.do(context.Background(), func() error {
				cur := inFlight.Add(1)
				if cur > maxInFlight.Load() {
					maxInFlight.Store(cur)
				}
				inFlight.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestComThread_CancelledBeforeDispatch(t *testing.T) {
	th, err := startThread(func() error { return nil }, nil)
	require.NoError(t, err)
	defer th.stop()

	started := make(chan struct{})
	block := make(chan struct{})
	go func() {
		_ = th.do(context.Background(), func() error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = th.do(ctx, func() error { return nil })
	close(block)
	assert.ErrorIs(t, err, context.Canceled)
}
