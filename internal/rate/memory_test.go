package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	base := time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, int64(3-i), res.Remaining)
	}

	res, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(4), res.CurrentHits)
	assert.Equal(t, 55*time.Second, res.RetryAfter)

	// Other keys have their own counter.
	res, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// Next window starts fresh.
	l.now = func() time.Time { return base.Add(time.Minute) }
	res, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.CurrentHits)
}

func TestMemoryLimiter_ConcurrentHitsAreCounted(t *testing.T) {
	l := NewMemoryLimiter(1000, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Allow(context.Background(), "k")
		}()
	}
	wg.Wait()

	res, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(51), res.CurrentHits)
}

func TestNew_Drivers(t *testing.T) {
	l, err := New(context.Background(), Config{Max: 5, Window: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &MemoryLimiter{}, l)
	require.NoError(t, l.Close())

	_, err = New(context.Background(), Config{Driver: "memcached", Max: 5, Window: time.Second})
	require.ErrorContains(t, err, "unknown driver")

	_, err = New(context.Background(), Config{Max: 0, Window: time.Second})
	require.Error(t, err)
}
