package service

import (
	"context"
	"errors"

	"github.com/wallet-insights/internal/circuitbreaker"
	apperrors "github.com/wallet-insights/internal/errors"
	"github.com/wallet-insights/internal/retry"
)

// storeGuard runs data store calls behind a circuit breaker with retries, so a
// failing store fails the remaining calls fast instead of blocking them
type storeGuard struct {
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
}

func newStoreGuard(breaker *circuitbreaker.CircuitBreaker, retryCfg retry.Config) *storeGuard {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("transaction-store"))
	}
	return &storeGuard{breaker: breaker, retryCfg: retryCfg}
}

// run executes op. Raw driver errors come back as database errors.
func (g *storeGuard) run(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, g.retryCfg, operation, op)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var catErr *apperrors.CategorizedError
	if errors.As(err, &catErr) {
		return err
	}
	return apperrors.NewDatabaseError(operation, err)
}
