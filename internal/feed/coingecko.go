package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"tradesim/internal/errors"
	"tradesim/internal/logging"
	"tradesim/internal/metrics"
	"tradesim/internal/models"
	"tradesim/pkg/utils"
)

// DefaultCoinGeckoURL is the public CoinGecko API root.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// CoinGeckoConfig configures the CoinGecko client.
type CoinGeckoConfig struct {
	BaseURL    string
	CoinID     string
	VsCurrency string
	Timeout    time.Duration
	Retry      utils.RetryConfig
}

// CoinGecko fetches quotes from the CoinGecko REST API.
type CoinGecko struct {
	cfg    CoinGeckoConfig
	client *http.Client
	logger zerolog.Logger
}

// statusError carries an HTTP status so the retry policy can inspect it.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// NewCoinGecko creates a CoinGecko client.
func NewCoinGecko(cfg CoinGeckoConfig, logger zerolog.Logger) *CoinGecko {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCoinGeckoURL
	}
	if cfg.CoinID == "" {
		cfg.CoinID = "internet-computer"
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = utils.DefaultRetryConfig()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = retryable
	}
	return &CoinGecko{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.WithSource(logger, "coingecko"),
	}
}

// Name implements PriceFeed.
func (c *CoinGecko) Name() string {
	return "coingecko:" + c.cfg.CoinID
}

// CurrentPrice implements PriceFeed.
func (c *CoinGecko) CurrentPrice(ctx context.Context) (float64, error) {
	q := url.Values{}
	q.Set("ids", c.cfg.CoinID)
	q.Set("vs_currencies", c.cfg.VsCurrency)

	var body map[string]map[string]float64
	if err := c.get(ctx, "current", "/simple/price", q, &body); err != nil {
		return 0, err
	}

	price := body[c.cfg.CoinID][c.cfg.VsCurrency]
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		metrics.FeedFetches.WithLabelValues(c.Name(), "current", "empty").Inc()
		return 0, errors.NewFeedError(c.Name(), "current", fmt.Errorf("no usable quote for %s/%s", c.cfg.CoinID, c.cfg.VsCurrency))
	}
	metrics.LastPrice.Set(price)
	return price, nil
}

// HistoricalPrices implements PriceFeed.
func (c *CoinGecko) HistoricalPrices(ctx context.Context, days int) ([]models.PriceSample, error) {
	if err := ValidateDays(days); err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("vs_currency", c.cfg.VsCurrency)
	q.Set("days", strconv.Itoa(days))

	var body struct {
		Prices       [][2]float64 `json:"prices"`
		TotalVolumes [][2]float64 `json:"total_volumes"`
	}
	if err := c.get(ctx, "history", "/coins/"+url.PathEscape(c.cfg.CoinID)+"/market_chart", q, &body); err != nil {
		return nil, err
	}
	if len(body.Prices) == 0 {
		metrics.FeedFetches.WithLabelValues(c.Name(), "history", "empty").Inc()
		return nil, errors.NewFeedError(c.Name(), "history", errors.ErrDataNotFound)
	}

	volumes := make(map[int64]float64, len(body.TotalVolumes))
	for _, v := range body.TotalVolumes {
		if v[1] > 0 && !math.IsInf(v[1], 0) {
			volumes[int64(v[0])] = v[1]
		}
	}

	samples := make([]models.PriceSample, 0, len(body.Prices))
	for _, p := range body.Prices {
		if p[1] < 0 || math.IsNaN(p[1]) || math.IsInf(p[1], 0) {
			continue
		}
		ts := int64(p[0])
		samples = append(samples, models.PriceSample{Timestamp: ts, Price: p[1], Volume: volumes[ts]})
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp < samples[j].Timestamp
	})
	return samples, nil
}

func (c *CoinGecko) get(ctx context.Context, op, path string, query url.Values, out interface{}) error {
	endpoint := c.cfg.BaseURL + path + "?" + query.Encode()
	start := time.Now()

	err := utils.Retry(ctx, c.cfg.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return &statusError{code: resp.StatusCode, body: string(snippet)}
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})

	elapsed := time.Since(start)
	metrics.FeedLatency.WithLabelValues(c.Name(), op).Observe(elapsed.Seconds())
	logging.LogAPICall(c.logger, http.MethodGet, path, elapsed, err)
	if err != nil {
		metrics.FeedFetches.WithLabelValues(c.Name(), op, "error").Inc()
		return errors.NewFeedError(c.Name(), op, err)
	}
	metrics.FeedFetches.WithLabelValues(c.Name(), op, "ok").Inc()
	return nil
}

// retryable retries transport errors, throttling and server errors.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}
