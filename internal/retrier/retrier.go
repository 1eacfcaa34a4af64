package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"goflare.io/perfcache/internal/config"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
	maxDelayCap    = time.Hour
)

// ExponentialBackoff multiplies the delay by the factor on every attempt.
// LinearBackoff grows the delay by the base delay on every attempt.
// FibonacciBackoff grows the delay along the Fibonacci sequence.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
	FibonacciBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// BackoffStrategy defines how the delay between loader attempts grows.
type BackoffStrategy int

// Retrier 以退避策略重試 loader 呼叫
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	factor      float64
	jitter      float64
	strategy    BackoffStrategy

	randPool *sync.Pool

	fibMu          sync.Mutex
	fibonacciCache []time.Duration

	// TempErrorFunc decides whether an error is worth retrying. Defaults to IsTemporary.
	TempErrorFunc func(error) bool
	// sleep 可在測試中替換
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a new Retrier instance.
// Parameters:
// - maxAttempts: total number of attempts, the first one included.
// - baseDelay: delay before the second attempt.
// - maxDelay: upper bound of any single delay.
// - factor: multiplier for exponential backoff.
// - jitter: fraction of the delay added at random.
// - strategy: ExponentialBackoff, LinearBackoff or FibonacciBackoff.
// - tempErrorFunc: optional retry predicate.
func NewRetrier(maxAttempts int, baseDelay, maxDelay time.Duration, factor, jitter float64, strategy BackoffStrategy, tempErrorFunc func(error) bool) (*Retrier, error) {
	if maxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if baseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if jitter < 0 || jitter > maxJitter {
		return nil, ErrInvalidJitter
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}

	return &Retrier{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
		factor:      factor,
		jitter:      jitter,
		strategy:    strategy,
		randPool: &sync.Pool{
			New: func() any {
				return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			},
		},
		fibonacciCache: []time.Duration{baseDelay, baseDelay},
		TempErrorFunc:  tempErrorFunc,
		sleep:          sleepContext,
	}, nil
}

// FromConfig builds an exponential Retrier from the loader resilience settings.
// MaxRetries counts retries, so the retrier makes MaxRetries+1 attempts.
func FromConfig(cfg config.ResilienceConfig, tempErrorFunc func(error) bool) (*Retrier, error) {
	return NewRetrier(
		max(cfg.MaxRetries, 0)+1,
		cfg.InitialInterval,
		cfg.MaxInterval,
		cfg.Multiplier,
		cfg.RandomizationFactor,
		ExponentialBackoff,
		tempErrorFunc,
	)
}

// Run executes fn until it succeeds, returns a permanent error, or attempts run out.
func (r *Retrier) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err != nil {
				return fmt.Errorf("%w (last error: %v)", ctxErr, err)
			}
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}

		if !r.isTemporary(err) {
			return err
		}

		if attempt == r.maxAttempts-1 {
			break
		}

		if sleepErr := r.sleep(ctx, r.calculateDelay(attempt)); sleepErr != nil {
			return fmt.Errorf("%w (last error: %v)", sleepErr, err)
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

func (r *Retrier) isTemporary(err error) bool {
	if r.TempErrorFunc != nil {
		return r.TempErrorFunc(err)
	}
	return IsTemporary(err)
}

// calculateDelay computes the delay after the given attempt.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	var delay float64

	switch r.strategy {
	case LinearBackoff:
		delay = float64(r.baseDelay) * float64(attempt+1)
	case FibonacciBackoff:
		delay = float64(r.getFibonacciDelay(attempt))
	default:
		delay = float64(r.baseDelay) * math.Pow(r.factor, float64(attempt))
	}

	if delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}

	if r.jitter > 0 {
		rng := r.randPool.Get().(*rand.Rand)
		delay += rng.Float64() * r.jitter * delay
		r.randPool.Put(rng)
	}

	if delay > float64(maxDelayCap) {
		delay = float64(maxDelayCap)
	}
	return time.Duration(delay)
}

// getFibonacciDelay returns base, base, 2*base, 3*base, 5*base ... capped at maxDelay.
func (r *Retrier) getFibonacciDelay(attempt int) time.Duration {
	r.fibMu.Lock()
	defer r.fibMu.Unlock()

	for len(r.fibonacciCache) <= attempt {
		n := len(r.fibonacciCache)
		next := r.fibonacciCache[n-1] + r.fibonacciCache[n-2]
		if next > r.maxDelay {
			next = r.maxDelay
		}
		r.fibonacciCache = append(r.fibonacciCache, next)
	}
	return r.fibonacciCache[attempt]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
