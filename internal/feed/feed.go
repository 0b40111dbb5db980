// Package feed provides price sources for the valuation core.
package feed

import (
	"context"

	"tradesim/internal/errors"
	"tradesim/internal/models"
)

// MaxHistoryDays bounds history requests to ten years.
const MaxHistoryDays = 3650

// ValidateDays rejects history ranges that are empty or beyond MaxHistoryDays.
func ValidateDays(days int) error {
	if days <= 0 {
		return errors.NewValidationError("days", days, "must be positive")
	}
	if days > MaxHistoryDays {
		return errors.NewValidationError("days", days, "must be at most 3650")
	}
	return nil
}

// PriceFeed supplies current and historical prices for the traded asset.
// Implementations must report an outage as errors.ErrPriceUnavailable and never
// substitute a zero or made-up quote.
type PriceFeed interface {
	// CurrentPrice returns the latest positive quote.
	CurrentPrice(ctx context.Context) (float64, error)
	// HistoricalPrices returns samples covering the last days, oldest first.
	HistoricalPrices(ctx context.Context, days int) ([]models.PriceSample, error)
	// Name identifies the source in logs and metrics.
	Name() string
}

// SampleCache persists fetched samples so they can be served during an outage.
type SampleCache interface {
	SaveSamples(ctx context.Context, source string, samples []models.PriceSample) error
	GetSamples(ctx context.Context, source string, fromMillis, toMillis int64) ([]models.PriceSample, error)
	LatestSample(ctx context.Context, source string) (*models.PriceSample, error)
}
