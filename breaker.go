package perfcache

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"
)

// executeWithResilience 以熔斷器包住重試後的 loader 呼叫
func (c *Cache[V]) executeWithResilience(ctx context.Context, key string, loader Loader[V]) (V, error) {
	var value V
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.retrier.Run(ctx, func(ctx context.Context) error {
			v, err := loader(ctx, key)
			if err != nil {
				return err
			}
			value = v
			return nil
		})
	})
	if err != nil {
		var zero V
		return zero, fmt.Errorf("%w: %s: %w", ErrLoaderFailed, key, err)
	}
	return value, nil
}

// BreakerState reports the loader circuit breaker state.
func (c *Cache[V]) BreakerState() gobreaker.State {
	return c.breaker.State()
}
