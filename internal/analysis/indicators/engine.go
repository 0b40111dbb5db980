// Package indicators provides technical indicator calculations with parallel processing.
package indicators

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradesim/internal/errors"
	"tradesim/internal/metrics"
	"tradesim/internal/models"
)

// Config selects which indicators the engine computes.
type Config struct {
	SMAPeriods []int
	EMAPeriods []int
	RSIPeriod  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	Zones      ZoneThresholds

	VolatilityPeriod int
	VolatilityBands  VolatilityBands
}

// DefaultConfig returns the chart defaults: MA overlays 20/50/100/200, RSI 14, MACD 12/26/9.
func DefaultConfig() Config {
	return Config{
		SMAPeriods: []int{20, 50, 100, 200},
		EMAPeriods: []int{12, 26},
		RSIPeriod:  DefaultRSIPeriod,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		Zones:      DefaultZoneThresholds(),

		VolatilityPeriod: DefaultVolatilityPeriod,
		VolatilityBands:  DefaultVolatilityBands(),
	}
}

// Validate checks every period before any work is scheduled.
func (c Config) Validate() error {
	for _, p := range c.SMAPeriods {
		if p <= 0 {
			return errors.NewValidationError("sma_periods", p, "period must be positive")
		}
	}
	for _, p := range c.EMAPeriods {
		if p <= 0 {
			return errors.NewValidationError("ema_periods", p, "period must be positive")
		}
	}
	if c.RSIPeriod <= 0 {
		return errors.NewValidationError("rsi_period", c.RSIPeriod, "period must be positive")
	}
	if c.MACDFast <= 0 || c.MACDSlow <= 0 || c.MACDSignal <= 0 {
		return errors.NewValidationError("macd", fmt.Sprintf("%d/%d/%d", c.MACDFast, c.MACDSlow, c.MACDSignal), "periods must be positive")
	}
	if c.MACDFast >= c.MACDSlow {
		return errors.NewValidationError("macd", fmt.Sprintf("%d/%d", c.MACDFast, c.MACDSlow), "fast period must be below slow period")
	}
	if c.VolatilityPeriod <= 0 {
		return errors.NewValidationError("volatility_period", c.VolatilityPeriod, "period must be positive")
	}
	if err := c.VolatilityBands.Validate(); err != nil {
		return errors.NewValidationError("volatility_bands", fmt.Sprintf("%v/%v", c.VolatilityBands.Medium, c.VolatilityBands.High), err.Error())
	}
	return c.Zones.Validate()
}

// MACDPoint is one aligned MACD observation.
type MACDPoint struct {
	Timestamp int64   `json:"timestamp"`
	Line      float64 `json:"macd_line"`
	Signal    float64 `json:"signal_line"`
	Histogram float64 `json:"histogram"`
}

// Set is the indicator output for one price series. Every series is tagged with
// the timestamps of the originating samples; missing history yields an empty series.
type Set struct {
	SMA  map[int]Series `json:"sma"`
	EMA  map[int]Series `json:"ema"`
	RSI  Series         `json:"rsi"`
	MACD []MACDPoint    `json:"macd"`
	// Zone classifies the latest RSI value; empty when RSI is absent.
	Zone Zone `json:"rsi_zone,omitempty"`

	Volatility Series `json:"volatility"`
	// VolatilityBand classifies the latest volatility value.
	VolatilityBand Band `json:"volatility_band,omitempty"`
}

// job is one unit of work for the pool.
type job struct {
	name string
	run  func() error
}

// Engine provides parallel indicator calculation using a worker pool.
type Engine struct {
	workers int
}

// NewEngine creates a new indicator engine with the specified number of workers.
func NewEngine(workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	return &Engine{workers: workers}
}

// ComputeIndicators calculates every configured indicator over samples in parallel.
// Indicators without enough history come back empty. Only an invalid config, a
// malformed series or cancellation is an error.
func (e *Engine) ComputeIndicators(ctx context.Context, samples []models.PriceSample, cfg Config) (*Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateSeries(samples); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidSeries, err.Error())
	}

	prices := models.Prices(samples)
	if !finite(prices) {
		return nil, errors.Wrap(errors.ErrInvalidSeries, "non-finite price")
	}

	start := time.Now()
	set := &Set{
		SMA:  make(map[int]Series, len(cfg.SMAPeriods)),
		EMA:  make(map[int]Series, len(cfg.EMAPeriods)),
		RSI:  Series{},
		MACD: []MACDPoint{},

		Volatility: Series{},
	}
	var mu sync.Mutex

	jobs := make([]job, 0, len(cfg.SMAPeriods)+len(cfg.EMAPeriods)+3)
	for _, period := range uniq(cfg.SMAPeriods) {
		period := period
		jobs = append(jobs, job{name: fmt.Sprintf("SMA_%d", period), run: func() error {
			values, err := SMA(prices, period)
			mu.Lock()
			set.SMA[period] = Align(samples, values, period-1)
			mu.Unlock()
			return err
		}})
	}
	for _, period := range uniq(cfg.EMAPeriods) {
		period := period
		jobs = append(jobs, job{name: fmt.Sprintf("EMA_%d", period), run: func() error {
			values, err := EMA(prices, period)
			mu.Lock()
			set.EMA[period] = Align(samples, values, period-1)
			mu.Unlock()
			return err
		}})
	}
	jobs = append(jobs, job{name: fmt.Sprintf("RSI_%d", cfg.RSIPeriod), run: func() error {
		values, err := RSI(prices, cfg.RSIPeriod)
		series := Align(samples, values, cfg.RSIPeriod)
		mu.Lock()
		set.RSI = series
		if last, ok := series.Last(); ok {
			set.Zone = cfg.Zones.Classify(last.Value)
		}
		mu.Unlock()
		return err
	}})
	jobs = append(jobs, job{name: fmt.Sprintf("VOL_%d", cfg.VolatilityPeriod), run: func() error {
		values, err := Volatility(prices, cfg.VolatilityPeriod)
		series := Align(samples, values, cfg.VolatilityPeriod)
		mu.Lock()
		set.Volatility = series
		if last, ok := series.Last(); ok {
			set.VolatilityBand = cfg.VolatilityBands.Classify(last.Value)
		}
		mu.Unlock()
		return err
	}})
	macd := NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	jobs = append(jobs, job{name: macd.Name(), run: func() error {
		res, err := macd.Calculate(prices)
		points := make([]MACDPoint, res.Len())
		for i := range points {
			points[i] = MACDPoint{
				Timestamp: samples[res.Offset+i].Timestamp,
				Line:      res.Line[i],
				Signal:    res.Signal[i],
				Histogram: res.Histogram[i],
			}
		}
		mu.Lock()
		set.MACD = points
		mu.Unlock()
		return err
	}})

	if err := e.run(ctx, jobs); err != nil {
		return nil, err
	}

	metrics.IndicatorDuration.Observe(time.Since(start).Seconds())
	return set, nil
}

// run drains jobs through the worker pool. Insufficient data is recorded, not returned.
func (e *Engine) run(ctx context.Context, jobs []job) error {
	work := make(chan job, len(jobs))
	for _, j := range jobs {
		work <- j
	}
	close(work)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}
				status := "ok"
				if err := j.run(); errors.Is(err, ErrInsufficientData) {
					status = "insufficient_data"
				} else if err != nil {
					status = "error"
				}
				metrics.IndicatorRuns.WithLabelValues(j.name, status).Inc()
			}
		}()
	}
	wg.Wait()

	return ctx.Err()
}

// uniq returns the sorted distinct periods.
func uniq(periods []int) []int {
	seen := make(map[int]bool, len(periods))
	out := make([]int, 0, len(periods))
	for _, p := range periods {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}
