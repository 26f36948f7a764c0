package provider

import (
	"context"

	jaccerrors "github.com/jacc-ai/jacc-core/internal/errors"
)

// GuardedCompleter wraps a Completer with a circuit breaker. Once the
// provider fails repeatedly, calls fail fast until the reset window
// elapses, which keeps query latency bounded during outages.
type GuardedCompleter struct {
	inner   Completer
	breaker *jaccerrors.CircuitBreaker
}

var _ Completer = (*GuardedCompleter)(nil)

// NewGuardedCompleter wraps inner with the given breaker. A nil breaker
// gets default thresholds.
func NewGuardedCompleter(inner Completer, breaker *jaccerrors.CircuitBreaker) *GuardedCompleter {
	if breaker == nil {
		breaker = jaccerrors.NewCircuitBreaker("completions")
	}
	return &GuardedCompleter{inner: inner, breaker: breaker}
}

// Complete executes the completion through the breaker.
func (g *GuardedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return jaccerrors.ExecuteWithResult(g.breaker, func() (string, error) {
		return g.inner.Complete(ctx, req)
	}, nil)
}

// ModelName returns the wrapped model identifier.
func (g *GuardedCompleter) ModelName() string { return g.inner.ModelName() }

// Available reports false while the breaker is open.
func (g *GuardedCompleter) Available(ctx context.Context) bool {
	return g.breaker.Allow() && g.inner.Available(ctx)
}

// BreakerState exposes the breaker state for stats reporting.
func (g *GuardedCompleter) BreakerState() jaccerrors.State {
	return g.breaker.State()
}
