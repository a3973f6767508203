package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{10, 1 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffWithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}

	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, d, 1800*time.Millisecond)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}

func TestConstantBackoff(t *testing.T) {
	backoff := &ConstantBackoff{Delay: 30 * time.Second}
	assert.Equal(t, time.Duration(0), backoff.NextDelay(0))
	assert.Equal(t, 30*time.Second, backoff.NextDelay(1))
	assert.Equal(t, 30*time.Second, backoff.NextDelay(7))
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy("constant", 5*time.Second, 0)
	require.NoError(t, err)
	assert.IsType(t, &ConstantBackoff{}, s)

	s, err = NewStrategy("exponential", time.Second, time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &ExponentialBackoff{}, s)

	_, err = NewStrategy("fibonacci", time.Second, 0)
	assert.Error(t, err)
}

func TestWait(t *testing.T) {
	t.Run("Elapses", func(t *testing.T) {
		start := time.Now()
		require.NoError(t, Wait(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		err := Wait(ctx, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("ZeroDelayObservesCancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, Wait(ctx, 0), context.Canceled)
		assert.NoError(t, Wait(context.Background(), 0))
	})
}
