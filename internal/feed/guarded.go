package feed

import (
	"context"

	"github.com/rs/zerolog"

	"tradesim/internal/errors"
	"tradesim/internal/metrics"
	"tradesim/internal/models"
	"tradesim/internal/resilience"
)

// Guarded puts a circuit breaker in front of an upstream feed. While the
// circuit is open, calls fail immediately with ErrPriceUnavailable.
type Guarded struct {
	upstream PriceFeed
	breaker  *resilience.CircuitBreaker
}

// NewGuarded wraps upstream. State changes are logged and exported as metrics.
func NewGuarded(upstream PriceFeed, cfg resilience.CircuitBreakerConfig, logger zerolog.Logger) *Guarded {
	name := upstream.Name()
	next := cfg.OnStateChange
	cfg.OnStateChange = func(breaker string, from, to resilience.CircuitState) {
		metrics.FeedCircuitOpen.WithLabelValues(breaker).Set(boolGauge(to != resilience.CircuitClosed))
		logger.Warn().
			Str("source", breaker).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Feed circuit changed state")
		if next != nil {
			next(breaker, from, to)
		}
	}
	metrics.FeedCircuitOpen.WithLabelValues(name).Set(0)
	return &Guarded{
		upstream: upstream,
		breaker:  resilience.NewCircuitBreaker(name, cfg),
	}
}

// Name implements PriceFeed.
func (g *Guarded) Name() string {
	return g.upstream.Name()
}

// CurrentPrice implements PriceFeed.
func (g *Guarded) CurrentPrice(ctx context.Context) (float64, error) {
	price, err := resilience.ExecuteWithResult(g.breaker, ctx, g.upstream.CurrentPrice)
	return price, g.wrap("current", err)
}

// HistoricalPrices implements PriceFeed. Invalid arguments never reach the
// upstream and do not count against it.
func (g *Guarded) HistoricalPrices(ctx context.Context, days int) ([]models.PriceSample, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	samples, err := resilience.ExecuteWithResult(g.breaker, ctx, func(ctx context.Context) ([]models.PriceSample, error) {
		return g.upstream.HistoricalPrices(ctx, days)
	})
	return samples, g.wrap("history", err)
}

// State reports the breaker state.
func (g *Guarded) State() resilience.CircuitState {
	return g.breaker.State()
}

func (g *Guarded) wrap(op string, err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		metrics.FeedFetches.WithLabelValues(g.Name(), op, "rejected").Inc()
		return errors.NewFeedError(g.Name(), op, err)
	}
	return err
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
