package feed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"tradesim/internal/errors"
	"tradesim/internal/models"
)

// Cached records every successful fetch of an upstream feed and serves the
// recorded samples while the upstream is down, as long as they are newer than MaxAge.
type Cached struct {
	upstream PriceFeed
	cache    SampleCache
	maxAge   time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewCached wraps upstream with cache.
func NewCached(upstream PriceFeed, cache SampleCache, maxAge time.Duration, logger zerolog.Logger) *Cached {
	return &Cached{
		upstream: upstream,
		cache:    cache,
		maxAge:   maxAge,
		now:      time.Now,
		logger:   logger,
	}
}

// Name implements PriceFeed.
func (c *Cached) Name() string {
	return c.upstream.Name()
}

// CurrentPrice implements PriceFeed.
func (c *Cached) CurrentPrice(ctx context.Context) (float64, error) {
	price, err := c.upstream.CurrentPrice(ctx)
	if err == nil {
		sample := models.PriceSample{Timestamp: c.now().UnixMilli(), Price: price}
		if serr := c.cache.SaveSamples(ctx, c.Name(), []models.PriceSample{sample}); serr != nil {
			c.logger.Warn().Err(serr).Msg("Failed to cache quote")
		}
		return price, nil
	}

	latest, cerr := c.cache.LatestSample(ctx, c.Name())
	if cerr != nil || latest == nil || latest.Price <= 0 || c.stale(latest.Timestamp) {
		return 0, err
	}
	c.logger.Warn().Err(err).
		Time("cached_at", latest.Time()).
		Float64("price", latest.Price).
		Msg("Upstream unavailable, serving cached quote")
	return latest.Price, nil
}

// HistoricalPrices implements PriceFeed.
func (c *Cached) HistoricalPrices(ctx context.Context, days int) ([]models.PriceSample, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	samples, err := c.upstream.HistoricalPrices(ctx, days)
	if err == nil {
		if serr := c.cache.SaveSamples(ctx, c.Name(), samples); serr != nil {
			c.logger.Warn().Err(serr).Int("samples", len(samples)).Msg("Failed to cache history")
		}
		return samples, nil
	}
	if errors.Is(err, errors.ErrInputValidation) {
		return nil, err
	}

	to := c.now()
	from := to.Add(-time.Duration(days) * 24 * time.Hour)
	cached, cerr := c.cache.GetSamples(ctx, c.Name(), from.UnixMilli(), to.UnixMilli())
	if cerr != nil || len(cached) == 0 || c.stale(cached[len(cached)-1].Timestamp) {
		return nil, err
	}
	c.logger.Warn().Err(err).Int("samples", len(cached)).Msg("Upstream unavailable, serving cached history")
	return cached, nil
}

func (c *Cached) stale(tsMillis int64) bool {
	return c.maxAge > 0 && c.now().Sub(time.UnixMilli(tsMillis)) > c.maxAge
}
