package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/perfcache/internal/config"
)

func noSleep(r *Retrier) *Retrier {
	r.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return r
}

func TestNewRetrierValidation(t *testing.T) {
	_, err := NewRetrier(0, time.Millisecond, time.Second, 2, 0, ExponentialBackoff, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	_, err = NewRetrier(1, time.Microsecond, time.Second, 2, 0, ExponentialBackoff, nil)
	assert.ErrorIs(t, err, ErrInvalidBaseDelay)
	_, err = NewRetrier(1, time.Millisecond, time.Second, 0.5, 0, ExponentialBackoff, nil)
	assert.ErrorIs(t, err, ErrInvalidFactor)
	_, err = NewRetrier(1, time.Millisecond, time.Second, 2, 1.5, ExponentialBackoff, nil)
	assert.ErrorIs(t, err, ErrInvalidJitter)
}

func TestRunRetriesTemporaryErrors(t *testing.T) {
	r, err := NewRetrier(3, time.Millisecond, time.Second, 2, 0, ExponentialBackoff, nil)
	require.NoError(t, err)
	noSleep(r)

	calls := 0
	err = r.Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return MarkTemporary(errors.New("busy"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunStopsOnPermanentError(t *testing.T) {
	r, err := NewRetrier(5, time.Millisecond, time.Second, 2, 0, ExponentialBackoff, nil)
	require.NoError(t, err)
	noSleep(r)

	permanent := errors.New("not found")
	calls := 0
	err = r.Run(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRunExhaustsAttempts(t *testing.T) {
	r, err := NewRetrier(3, time.Millisecond, time.Second, 2, 0, ExponentialBackoff, func(error) bool { return true })
	require.NoError(t, err)
	noSleep(r)

	boom := errors.New("boom")
	calls := 0
	err = r.Run(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "max retry attempts reached")
	assert.Equal(t, 3, calls)
}

func TestRunHonoursContext(t *testing.T) {
	r, err := NewRetrier(3, time.Millisecond, time.Second, 2, 0, ExponentialBackoff, func(error) bool { return true })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err = r.Run(ctx, func(context.Context) error {
		calls++
		return errors.New("x")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestCalculateDelay(t *testing.T) {
	base := 10 * time.Millisecond

	exp, err := NewRetrier(5, base, 50*time.Millisecond, 2, 0, ExponentialBackoff, nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, exp.calculateDelay(0))
	assert.Equal(t, 20*time.Millisecond, exp.calculateDelay(1))
	assert.Equal(t, 40*time.Millisecond, exp.calculateDelay(2))
	assert.Equal(t, 50*time.Millisecond, exp.calculateDelay(3))

	lin, err := NewRetrier(5, base, time.Second, 1, 0, LinearBackoff, nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Millisecond, lin.calculateDelay(2))

	fib, err := NewRetrier(5, base, time.Second, 1, 0, FibonacciBackoff, nil)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, fib.calculateDelay(0))
	assert.Equal(t, 10*time.Millisecond, fib.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, fib.calculateDelay(2))
	assert.Equal(t, 50*time.Millisecond, fib.calculateDelay(4))
}

func TestCalculateDelayJitterBounded(t *testing.T) {
	r, err := NewRetrier(5, 10*time.Millisecond, time.Second, 2, 0.5, ExponentialBackoff, nil)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		d := r.calculateDelay(0)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 15*time.Millisecond)
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.NewConfig()
	require.NoError(t, err)

	r, err := FromConfig(cfg.ResilienceConfig, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.ResilienceConfig.MaxRetries+1, r.maxAttempts)
	assert.Equal(t, cfg.ResilienceConfig.InitialInterval, r.baseDelay)
}

func TestIsTemporary(t *testing.T) {
	assert.False(t, IsTemporary(errors.New("x")))
	assert.True(t, IsTemporary(MarkTemporary(errors.New("x"))))
	assert.True(t, IsTemporary(errors.Join(errors.New("a"), MarkTemporary(errors.New("b")))))
	assert.NoError(t, MarkTemporary(nil))
}
