package appserver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsAllTasks(t *testing.T) {
	p := NewPool(0)
	var count atomic.Int32

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
			count.Add(1)
			return nil
		}))
	}

	require.NoError(t, p.Wait())
	assert.Equal(t, int32(10), count.Load())
}

func TestPool_JoinsErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	p := NewPool(2)

	require.NoError(t, p.Submit(context.Background(), func(context.Context) error { return errA }))
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error { return errB }))

	err := p.Wait()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32

	for i := 0; i < 8; i++ {
		require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	require.NoError(t, p.Wait())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool(0)
	require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
		panic("receiver exploded")
	}))

	err := p.Wait()
	assert.ErrorIs(t, err, ErrTaskPanicked)
	assert.Contains(t, err.Error(), "receiver exploded")
}

func TestPool_QueuedTaskHonoursCancel(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, p.Submit(context.Background(), func(context.Context) error {
		<-release
		return nil
	}))
	var ran atomic.Bool
	require.NoError(t, p.Submit(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	}))

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)

	err := p.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

func TestPool_SubmitValidation(t *testing.T) {
	p := NewPool(0)
	assert.ErrorIs(t, p.Submit(context.Background(), nil), ErrTaskNil)

	require.NoError(t, p.Wait())
	err := p.Submit(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
}
