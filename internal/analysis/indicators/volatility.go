package indicators

import (
	"fmt"
	"math"
)

// DefaultVolatilityPeriod is the number of returns in each volatility window.
const DefaultVolatilityPeriod = 20

// Volatility calculates the rolling standard deviation of simple returns, in
// percent. Each window covers period returns, so the first value belongs to
// price index period. A return from a zero price counts as no change.
func Volatility(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(prices) < period+1 {
		return nil, ErrInsufficientData
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1] * 100
		}
	}

	result := make([]float64, 0, len(returns)-period+1)
	for i := period; i <= len(returns); i++ {
		result = append(result, stdDev(returns[i-period:i]))
	}
	return result, nil
}

// stdDev is the population standard deviation.
func stdDev(values []float64) float64 {
	m := mean(values)
	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// Band is the interpretation of a volatility reading.
type Band string

const (
	BandLow    Band = "low"
	BandMedium Band = "medium"
	BandHigh   Band = "high"
)

// VolatilityBands configures where volatility turns medium and high.
type VolatilityBands struct {
	Medium float64
	High   float64
}

// DefaultVolatilityBands returns the 10%/20% bands.
func DefaultVolatilityBands() VolatilityBands {
	return VolatilityBands{Medium: 10, High: 20}
}

// Validate checks that the bands are ordered and non-negative.
func (b VolatilityBands) Validate() error {
	if b.Medium < 0 || b.Medium >= b.High {
		return fmt.Errorf("volatility bands must satisfy 0 <= medium < high, got %v/%v", b.Medium, b.High)
	}
	return nil
}

// Classify maps a volatility reading to its band. Boundaries belong to the lower band.
func (b VolatilityBands) Classify(volatility float64) Band {
	switch {
	case volatility > b.High:
		return BandHigh
	case volatility > b.Medium:
		return BandMedium
	default:
		return BandLow
	}
}

// ClassifyVolatility uses the default bands.
func ClassifyVolatility(volatility float64) Band {
	return DefaultVolatilityBands().Classify(volatility)
}
