package indicators

import "fmt"

// DefaultRSIPeriod is the conventional RSI lookback.
const DefaultRSIPeriod = 14

// RSI calculates the Relative Strength Index with Wilder smoothing.
// The first value belongs to price index period; one value follows per later price.
// A window without losses saturates at 100.
func RSI(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(prices) < period+1 {
		return nil, ErrInsufficientData
	}

	n := len(prices) - 1
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	result := make([]float64, 0, n-period+1)
	avgGain := mean(gains[:period])
	avgLoss := mean(losses[:period])
	result = append(result, rsiValue(avgGain, avgLoss))

	p := float64(period)
	for i := period; i < n; i++ {
		avgGain = (avgGain*(p-1) + gains[i]) / p
		avgLoss = (avgLoss*(p-1) + losses[i]) / p
		result = append(result, rsiValue(avgGain, avgLoss))
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	v := 100 - (100 / (1 + rs))
	// Guard against rounding just outside the band.
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// Zone is the interpretation band of an RSI reading.
type Zone string

const (
	ZoneOversold   Zone = "oversold"
	ZoneNeutral    Zone = "neutral"
	ZoneOverbought Zone = "overbought"
)

// ZoneThresholds configures the RSI interpretation bands.
type ZoneThresholds struct {
	Oversold   float64
	Overbought float64
}

// DefaultZoneThresholds returns the classic 30/70 bands.
func DefaultZoneThresholds() ZoneThresholds {
	return ZoneThresholds{Oversold: 30, Overbought: 70}
}

// Validate checks that the bands are ordered and inside [0, 100].
func (z ZoneThresholds) Validate() error {
	if z.Oversold < 0 || z.Overbought > 100 || z.Oversold >= z.Overbought {
		return fmt.Errorf("rsi zones must satisfy 0 <= oversold < overbought <= 100, got %v/%v", z.Oversold, z.Overbought)
	}
	return nil
}

// Classify maps an RSI reading to its zone.
func (z ZoneThresholds) Classify(rsi float64) Zone {
	switch {
	case rsi > z.Overbought:
		return ZoneOverbought
	case rsi < z.Oversold:
		return ZoneOversold
	default:
		return ZoneNeutral
	}
}
