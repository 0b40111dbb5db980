package indicators

import "fmt"

// SMA returns the simple moving average of prices.
// Value j is the mean of prices[j : j+period], so it belongs to price index j+period-1.
func SMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(prices) < period {
		return nil, ErrInsufficientData
	}

	result := make([]float64, len(prices)-period+1)
	for i := period - 1; i < len(prices); i++ {
		result[i-period+1] = mean(prices[i-period+1 : i+1])
	}
	return result, nil
}

// EMA returns the exponential moving average of prices, seeded with the SMA of the
// first period values. Value j belongs to price index j+period-1.
func EMA(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(prices) < period {
		return nil, ErrInsufficientData
	}

	k := 2.0 / float64(period+1)
	result := make([]float64, len(prices)-period+1)
	result[0] = mean(prices[:period])
	for i := period; i < len(prices); i++ {
		j := i - period + 1
		result[j] = prices[i]*k + result[j-1]*(1-k)
	}
	return result, nil
}

// MACDResult holds the three MACD series, aligned to a common index base.
// Line[i], Signal[i] and Histogram[i] all belong to price index Offset+i.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
	Offset    int
}

// Len returns the number of aligned points.
func (r MACDResult) Len() int {
	return len(r.Histogram)
}

// MACD calculates Moving Average Convergence Divergence.
type MACD struct {
	fastPeriod   int
	slowPeriod   int
	signalPeriod int
}

// NewMACD creates a new MACD indicator (typically 12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fastPeriod:   fast,
		slowPeriod:   slow,
		signalPeriod: signal,
	}
}

func (m *MACD) Name() string {
	return fmt.Sprintf("MACD_%d_%d_%d", m.fastPeriod, m.slowPeriod, m.signalPeriod)
}

// Period is the number of prices needed before any output appears.
func (m *MACD) Period() int {
	return m.slowPeriod + m.signalPeriod
}

// Calculate computes the MACD line, signal line and histogram.
func (m *MACD) Calculate(prices []float64) (MACDResult, error) {
	if m.fastPeriod <= 0 || m.slowPeriod <= 0 || m.signalPeriod <= 0 {
		return MACDResult{}, ErrInvalidPeriod
	}
	if m.fastPeriod >= m.slowPeriod {
		return MACDResult{}, fmt.Errorf("fast period %d must be below slow period %d: %w", m.fastPeriod, m.slowPeriod, ErrInvalidPeriod)
	}
	if len(prices) < m.Period() {
		return MACDResult{}, ErrInsufficientData
	}

	fastEMA, err := EMA(prices, m.fastPeriod)
	if err != nil {
		return MACDResult{}, err
	}
	slowEMA, err := EMA(prices, m.slowPeriod)
	if err != nil {
		return MACDResult{}, err
	}

	// Both EMAs end at the last price; drop the fast EMA's extra head.
	fastEMA = fastEMA[len(fastEMA)-len(slowEMA):]
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i] - slowEMA[i]
	}

	signal, err := EMA(line, m.signalPeriod)
	if err != nil {
		return MACDResult{}, err
	}

	line = line[len(line)-len(signal):]
	histogram := make([]float64, len(signal))
	for i := range signal {
		histogram[i] = line[i] - signal[i]
	}

	return MACDResult{
		Line:      line,
		Signal:    signal,
		Histogram: histogram,
		Offset:    len(prices) - len(signal),
	}, nil
}
