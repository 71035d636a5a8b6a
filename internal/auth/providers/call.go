package providers

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/metrics"
)

// DefaultTimeout bounds every outbound provider call when none is configured.
const DefaultTimeout = 5 * time.Second

// Call runs fn under timeout and records the outcome. Any failure is returned
// as an *auth.ProviderError for provider/op.
func Call[T any](ctx context.Context, timeout time.Duration, provider, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := fn(ctx)
	switch {
	case err == nil:
		metrics.ObserveProviderRequest(provider, op, "ok")
		return out, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		metrics.ObserveProviderRequest(provider, op, "timeout")
	default:
		metrics.ObserveProviderRequest(provider, op, "error")
	}
	var zero T
	var pe *auth.ProviderError
	if errors.As(err, &pe) {
		return zero, err
	}
	return zero, auth.NewProviderError(provider, op, err)
}
