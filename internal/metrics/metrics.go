// Package metrics provides Prometheus instrumentation for the simulator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Valuations counts portfolio valuation passes by outcome (ok, unavailable, invalid).
	Valuations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_valuations_total",
		Help: "Portfolio valuation passes by outcome",
	}, []string{"mode", "outcome"})

	// PortfolioValue is the last computed total value per game mode.
	PortfolioValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradesim_portfolio_value",
		Help: "Last computed portfolio total value",
	}, []string{"mode"})

	// MarginLocked is the last computed margin locked in open positions.
	MarginLocked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradesim_margin_locked",
		Help: "Margin locked in open leveraged positions",
	}, []string{"mode"})

	// IndicatorRuns counts indicator computations by indicator and status.
	IndicatorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_indicator_runs_total",
		Help: "Indicator computations by indicator and status",
	}, []string{"indicator", "status"})

	// IndicatorDuration tracks how long a full indicator set takes.
	IndicatorDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradesim_indicator_duration_seconds",
		Help:    "Time to compute a full indicator set",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	// FeedFetches counts price feed requests by source, operation and status.
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradesim_feed_fetches_total",
		Help: "Price feed requests by source, operation and status",
	}, []string{"source", "operation", "status"})

	// FeedLatency tracks upstream price feed latency.
	FeedLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradesim_feed_latency_seconds",
		Help:    "Price feed request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source", "operation"})

	// FeedCircuitOpen is 1 while a source's circuit breaker is open or probing.
	FeedCircuitOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tradesim_feed_circuit_open",
		Help: "Whether the price feed circuit breaker is rejecting requests",
	}, []string{"source"})

	// LastPrice is the most recent quote accepted from the feed.
	LastPrice = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradesim_last_price",
		Help: "Most recent current price from the feed",
	})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
