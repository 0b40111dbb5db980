package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"tradesim/internal/models"
)

// SyntheticConfig tunes the random-walk generator.
type SyntheticConfig struct {
	BasePrice     float64
	Volatility    float64 // fraction of base price per step
	MeanReversion float64 // pull toward base price per step
	Seed          int64
	Now           func() time.Time
}

// DefaultSyntheticConfig returns the demo defaults.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		BasePrice:     8.5,
		Volatility:    0.15,
		MeanReversion: 0.1,
		Seed:          time.Now().UnixNano(),
		Now:           time.Now,
	}
}

// Synthetic is a mean-reverting random walk for demos and offline use.
// It must be selected explicitly; it is never a fallback for a failed feed.
type Synthetic struct {
	cfg  SyntheticConfig
	mu   sync.Mutex
	rng  *rand.Rand
	last float64
}

// NewSynthetic creates a synthetic feed.
func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	if cfg.BasePrice <= 0 {
		cfg.BasePrice = 8.5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Synthetic{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(cfg.Seed)),
		last: cfg.BasePrice,
	}
}

// Name implements PriceFeed.
func (s *Synthetic) Name() string {
	return "synthetic"
}

// CurrentPrice advances the walk by one step.
func (s *Synthetic) CurrentPrice(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = s.step(s.last)
	return s.last, nil
}

// HistoricalPrices generates a fresh walk covering days, sampled at SampleInterval(days).
func (s *Synthetic) HistoricalPrices(ctx context.Context, days int) ([]models.PriceSample, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	interval := SampleInterval(days)
	n := int(time.Duration(days) * 24 * time.Hour / interval)
	now := s.cfg.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make([]models.PriceSample, n)
	price := s.cfg.BasePrice
	for i := 0; i < n; i++ {
		price = s.step(price)
		samples[i] = models.PriceSample{
			Timestamp: now - int64(n-i)*interval.Milliseconds(),
			Price:     price,
			Volume:    (500000 + s.rng.Float64()*300000) * price,
		}
	}
	return samples, nil
}

// step must be called with the lock held. Prices never go below one cent.
func (s *Synthetic) step(price float64) float64 {
	change := (s.rng.Float64() - 0.5) * s.cfg.Volatility * s.cfg.BasePrice
	reversion := (s.cfg.BasePrice - price) * s.cfg.MeanReversion
	next := price + change + reversion
	if next < 0.01 {
		next = 0.01
	}
	return next
}

// SampleInterval is the spacing of historical samples for a range of days.
func SampleInterval(days int) time.Duration {
	switch {
	case days <= 1:
		return 30 * time.Minute
	case days <= 7:
		return 4 * time.Hour
	case days <= 30:
		return 12 * time.Hour
	default:
		return 24 * time.Hour
	}
}
