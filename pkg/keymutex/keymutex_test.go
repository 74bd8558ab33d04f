package keymutex

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_SerializesSameKey(t *testing.T) {
	km := New()
	ctx := context.Background()

	const workers = 20
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Lock(ctx, "member:42")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()
			// Unsynchronized increment; the lock is the only protection.
			v := counter
			time.Sleep(time.Millisecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
	assert.Equal(t, 0, km.Len(), "all entries released")
}

func TestLock_IndependentKeysDoNotBlock(t *testing.T) {
	km := New()
	ctx := context.Background()

	releaseA, err := km.Lock(ctx, "a")
	require.NoError(t, err)
	defer releaseA()

	done := make(chan struct{})
	go func() {
		releaseB, err := km.Lock(ctx, "b")
		if err == nil {
			releaseB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on independent key blocked")
	}
}

func TestLock_CancelledWhileWaiting(t *testing.T) {
	km := New()

	release, err := km.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = km.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	assert.Equal(t, 0, km.Len())
}

func TestTryLock(t *testing.T) {
	km := New()

	release, ok := km.TryLock("k")
	require.True(t, ok)

	_, ok = km.TryLock("k")
	assert.False(t, ok)

	release()

	release2, ok := km.TryLock("k")
	assert.True(t, ok)
	release2()
}
