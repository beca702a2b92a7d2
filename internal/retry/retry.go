// Package retry retries transient store operations with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/logging"
)

// Config configures retry behavior
type Config struct {
	MaxAttempts     int           // attempts including the first call
	InitialInterval time.Duration // delay before the first retry
	MaxInterval     time.Duration // cap on a single delay
	MaxElapsedTime  time.Duration // cap on total retry time
}

// DefaultConfig returns the retry policy used for store reads
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsedTime:  10 * time.Second,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, exhausts its
// attempts, or ctx is done. The last error is returned unchanged.
func Do(ctx context.Context, cfg Config, name string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsedTime
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	var policy backoff.BackOff = backoff.WithContext(b, ctx)
	if cfg.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(cfg.MaxAttempts-1))
	}

	operation := func() error {
		err := op(ctx)
		if err != nil && !apperrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	attempts := 0
	notify := func(err error, next time.Duration) {
		attempts++
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"operation":   name,
			"attempt":     attempts,
			"nextRetryIn": next.String(),
		}).WithError(err).Warn("Operation failed, retrying with exponential backoff")
	}

	return backoff.RetryNotify(operation, policy, notify)
}
