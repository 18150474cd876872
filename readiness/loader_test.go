package readiness

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

func TestLoadOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := New(func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, l.Start(context.Background()).Ready)
		}()
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.True(t, l.Start(context.Background()).Ready)
	assert.Equal(t, int32(1), calls.Load())
	require.NoError(t, l.Wait(context.Background()))
}

func TestRetryAfterFailure(t *testing.T) {
	fail := errors.New("script blocked")
	attempts := 0
	l := New(func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			return fail
		}
		return nil
	}, nil)

	var seen []Status
	unsubscribe := l.Subscribe(func(s Status) { seen = append(seen, s) })
	defer unsubscribe()

	s := l.Start(context.Background())
	assert.False(t, s.Ready)
	assert.ErrorIs(t, s.Err, fail)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)

	s = l.Start(context.Background())
	assert.True(t, s.Ready)
	assert.NoError(t, s.Err)

	require.Len(t, seen, 2)
	assert.False(t, seen[0].Ready)
	assert.True(t, seen[1].Ready)
}

func TestReady(t *testing.T) {
	l := Ready()
	assert.True(t, l.Status().Ready)
	assert.True(t, l.Start(context.Background()).Ready)
	require.NoError(t, l.Wait(context.Background()))
}
