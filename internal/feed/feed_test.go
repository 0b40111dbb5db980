package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"tradesim/internal/errors"
	"tradesim/internal/models"
	"tradesim/internal/resilience"
	"tradesim/pkg/utils"
)

func fastRetry(attempts int) utils.RetryConfig {
	return utils.RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func newTestCoinGecko(t *testing.T, handler http.HandlerFunc) *CoinGecko {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewCoinGecko(CoinGeckoConfig{
		BaseURL: srv.URL,
		CoinID:  "internet-computer",
		Retry:   fastRetry(3),
	}, zerolog.Nop())
}

func TestCoinGecko_CurrentPrice(t *testing.T) {
	cg := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/price" || r.URL.Query().Get("ids") != "internet-computer" || r.URL.Query().Get("vs_currencies") != "usd" {
			http.Error(w, "bad request "+r.URL.String(), http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"internet-computer":{"usd":8.42}}`)
	})

	price, err := cg.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrice() error = %v", err)
	}
	if price != 8.42 {
		t.Errorf("price = %v, want 8.42", price)
	}
	if cg.Name() != "coingecko:internet-computer" {
		t.Errorf("name = %q", cg.Name())
	}
}

func TestCoinGecko_UnusableQuote(t *testing.T) {
	for _, body := range []string{`{"internet-computer":{"usd":0}}`, `{}`, `{"internet-computer":{"usd":-1}}`} {
		cg := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		})
		if _, err := cg.CurrentPrice(context.Background()); !errors.Is(err, errors.ErrPriceUnavailable) {
			t.Errorf("body %s: err = %v, want ErrPriceUnavailable", body, err)
		}
	}
}

func TestCoinGecko_RetriesServerErrors(t *testing.T) {
	var calls int32
	cg := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"internet-computer":{"usd":9}}`)
	})

	price, err := cg.CurrentPrice(context.Background())
	if err != nil || price != 9 {
		t.Fatalf("CurrentPrice() = %v, %v", price, err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestCoinGecko_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	cg := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusNotFound)
	})

	_, err := cg.CurrentPrice(context.Background())
	if !errors.Is(err, errors.ErrPriceUnavailable) {
		t.Errorf("err = %v, want ErrPriceUnavailable", err)
	}
	var fe *errors.FeedError
	if !errors.As(err, &fe) || fe.Operation != "current" {
		t.Errorf("err = %v, want a FeedError for current", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestCoinGecko_HistoricalPrices(t *testing.T) {
	cg := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/internet-computer/market_chart" || r.URL.Query().Get("days") != "7" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"prices":[[3000,8.3],[1000,8.1],[2000,-1],[4000,8.4]]}`)
	})

	samples, err := cg.HistoricalPrices(context.Background(), 7)
	if err != nil {
		t.Fatalf("HistoricalPrices() error = %v", err)
	}
	want := []models.PriceSample{{Timestamp: 1000, Price: 8.1}, {Timestamp: 3000, Price: 8.3}, {Timestamp: 4000, Price: 8.4}}
	if len(samples) != len(want) {
		t.Fatalf("samples = %+v", samples)
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %+v, want %+v", i, samples[i], want[i])
		}
	}

	if _, err := cg.HistoricalPrices(context.Background(), 0); !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("days 0: err = %v", err)
	}
}

func TestCoinGecko_HistoricalVolumes(t *testing.T) {
	cg := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"prices":[[1000,8.1],[2000,8.2],[3000,8.3]],"total_volumes":[[1000,5200000],[3000,4100000.5]]}`)
	})

	samples, err := cg.HistoricalPrices(context.Background(), 1)
	if err != nil {
		t.Fatalf("HistoricalPrices() error = %v", err)
	}
	want := []float64{5200000, 0, 4100000.5}
	for i, v := range want {
		if samples[i].Volume != v {
			t.Errorf("sample %d volume = %v, want %v", i, samples[i].Volume, v)
		}
	}
}

func TestHistoricalPrices_DaysBounds(t *testing.T) {
	var calls int32
	cg := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"prices":[[1000,8.1]]}`)
	})
	synthetic := NewSynthetic(DefaultSyntheticConfig())
	guarded := NewGuarded(synthetic, resilience.CircuitBreakerConfig{FailureThreshold: 1}, zerolog.Nop())
	cached := NewCached(&stubFeed{}, newMemCache(), time.Hour, zerolog.Nop())

	feeds := []PriceFeed{cg, synthetic, guarded, cached}
	for _, f := range feeds {
		for _, days := range []int{0, -3, MaxHistoryDays + 1, 200000} {
			if _, err := f.HistoricalPrices(context.Background(), days); !errors.Is(err, errors.ErrInputValidation) {
				t.Errorf("%s: days %d: err = %v, want ErrInputValidation", f.Name(), days, err)
			}
		}
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("out-of-range requests reached the API %d times", n)
	}
	if guarded.State() != resilience.CircuitClosed {
		t.Errorf("argument errors tripped the breaker: %s", guarded.State())
	}

	samples, err := synthetic.HistoricalPrices(context.Background(), MaxHistoryDays)
	if err != nil || len(samples) != MaxHistoryDays {
		t.Errorf("days %d: %d samples, err %v", MaxHistoryDays, len(samples), err)
	}
}

func TestCoinGecko_EmptyHistory(t *testing.T) {
	cg := newTestCoinGecko(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"prices":[]}`)
	})
	if _, err := cg.HistoricalPrices(context.Background(), 1); !errors.Is(err, errors.ErrPriceUnavailable) {
		t.Errorf("err = %v, want ErrPriceUnavailable", err)
	}
}

func TestSampleInterval(t *testing.T) {
	tests := map[int]time.Duration{
		1:   30 * time.Minute,
		7:   4 * time.Hour,
		30:  12 * time.Hour,
		365: 24 * time.Hour,
	}
	for days, want := range tests {
		if got := SampleInterval(days); got != want {
			t.Errorf("SampleInterval(%d) = %v, want %v", days, got, want)
		}
	}
}

// Property: synthetic history is ordered, evenly spaced, ends before now and
// never produces a non-positive price.
func TestProperty_SyntheticHistory(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	properties.Property("ordered positive samples", prop.ForAll(
		func(days int, seed int64) bool {
			s := NewSynthetic(SyntheticConfig{BasePrice: 8.5, Volatility: 0.9, MeanReversion: 0.1, Seed: seed, Now: func() time.Time { return now }})
			samples, err := s.HistoricalPrices(context.Background(), days)
			if err != nil || len(samples) == 0 {
				return false
			}
			step := SampleInterval(days).Milliseconds()
			for i, smp := range samples {
				if smp.Price <= 0 || smp.Volume <= 0 {
					return false
				}
				if i > 0 && smp.Timestamp-samples[i-1].Timestamp != step {
					return false
				}
			}
			return samples[len(samples)-1].Timestamp < now.UnixMilli()
		},
		gen.IntRange(1, 400),
		gen.Int64(),
	))

	properties.TestingRun(t)
}

func TestSynthetic_CurrentPrice(t *testing.T) {
	s := NewSynthetic(SyntheticConfig{Seed: 1, Volatility: 0.15, MeanReversion: 0.1})
	for i := 0; i < 1000; i++ {
		p, err := s.CurrentPrice(context.Background())
		if err != nil || p <= 0 {
			t.Fatalf("step %d: price %v, err %v", i, p, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.CurrentPrice(ctx); err == nil {
		t.Error("expected cancelled context to fail")
	}
}

// memCache is an in-memory SampleCache.
type memCache struct {
	mu      sync.Mutex
	samples map[string][]models.PriceSample
}

func newMemCache() *memCache {
	return &memCache{samples: make(map[string][]models.PriceSample)}
}

func (m *memCache) SaveSamples(_ context.Context, source string, samples []models.PriceSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[source] = append(m.samples[source], samples...)
	sort.Slice(m.samples[source], func(i, j int) bool {
		return m.samples[source][i].Timestamp < m.samples[source][j].Timestamp
	})
	return nil
}

func (m *memCache) GetSamples(_ context.Context, source string, from, to int64) ([]models.PriceSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PriceSample
	for _, s := range m.samples[source] {
		if s.Timestamp >= from && s.Timestamp <= to {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memCache) LatestSample(_ context.Context, source string) (*models.PriceSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.samples[source]
	if len(list) == 0 {
		return nil, nil
	}
	latest := list[len(list)-1]
	return &latest, nil
}

// stubFeed returns fixed results.
type stubFeed struct {
	price   float64
	history []models.PriceSample
	err     error
}

func (s *stubFeed) Name() string { return "stub" }

func (s *stubFeed) CurrentPrice(context.Context) (float64, error) {
	return s.price, s.err
}

func (s *stubFeed) HistoricalPrices(context.Context, int) ([]models.PriceSample, error) {
	return s.history, s.err
}

func TestCached_ServesRecentQuoteDuringOutage(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	upstream := &stubFeed{price: 8.1}
	cache := newMemCache()
	c := NewCached(upstream, cache, time.Hour, zerolog.Nop())
	c.now = func() time.Time { return now }

	if p, err := c.CurrentPrice(context.Background()); err != nil || p != 8.1 {
		t.Fatalf("CurrentPrice() = %v, %v", p, err)
	}

	upstream.err = errors.NewFeedError("stub", "current", fmt.Errorf("down"))
	now = now.Add(30 * time.Minute)
	if p, err := c.CurrentPrice(context.Background()); err != nil || p != 8.1 {
		t.Errorf("within max age: CurrentPrice() = %v, %v, want cached 8.1", p, err)
	}

	now = now.Add(time.Hour)
	if _, err := c.CurrentPrice(context.Background()); !errors.Is(err, errors.ErrPriceUnavailable) {
		t.Errorf("stale cache: err = %v, want ErrPriceUnavailable", err)
	}
}

func TestCached_NoCacheNoPrice(t *testing.T) {
	upstream := &stubFeed{err: errors.NewFeedError("stub", "current", fmt.Errorf("down"))}
	c := NewCached(upstream, newMemCache(), time.Hour, zerolog.Nop())
	if p, err := c.CurrentPrice(context.Background()); !errors.Is(err, errors.ErrPriceUnavailable) || p != 0 {
		t.Errorf("CurrentPrice() = %v, %v", p, err)
	}
}

func TestCached_History(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	history := []models.PriceSample{
		{Timestamp: now.Add(-2 * time.Hour).UnixMilli(), Price: 8},
		{Timestamp: now.Add(-time.Hour).UnixMilli(), Price: 8.2},
	}
	upstream := &stubFeed{history: history}
	c := NewCached(upstream, newMemCache(), 6*time.Hour, zerolog.Nop())
	c.now = func() time.Time { return now }

	if got, err := c.HistoricalPrices(context.Background(), 1); err != nil || len(got) != 2 {
		t.Fatalf("HistoricalPrices() = %v, %v", got, err)
	}

	upstream.err = errors.NewFeedError("stub", "history", fmt.Errorf("down"))
	upstream.history = nil
	got, err := c.HistoricalPrices(context.Background(), 1)
	if err != nil || len(got) != 2 || got[1].Price != 8.2 {
		t.Errorf("cached history = %v, %v", got, err)
	}

	upstream.err = errors.NewValidationError("days", 0, "must be positive")
	if _, err := c.HistoricalPrices(context.Background(), 0); !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("validation errors must pass through, got %v", err)
	}
}

func TestGuarded_FailsFastWhenOpen(t *testing.T) {
	upstream := &stubFeed{err: errors.NewFeedError("stub", "current", fmt.Errorf("down"))}
	g := NewGuarded(upstream, resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		if _, err := g.CurrentPrice(context.Background()); !errors.Is(err, errors.ErrPriceUnavailable) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if g.State() != resilience.CircuitOpen {
		t.Fatalf("state = %s, want open", g.State())
	}

	upstream.err = nil
	upstream.price = 9
	_, err := g.CurrentPrice(context.Background())
	if !errors.Is(err, errors.ErrPriceUnavailable) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("open circuit: err = %v", err)
	}

	// Argument errors are rejected before the breaker.
	if _, err := g.HistoricalPrices(context.Background(), -1); !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("days -1: err = %v", err)
	}
}

func TestGuarded_CachedFallbackWhileOpen(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	upstream := &stubFeed{price: 7.5}
	g := NewGuarded(upstream, resilience.CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Hour}, zerolog.Nop())
	c := NewCached(g, newMemCache(), time.Hour, zerolog.Nop())
	c.now = func() time.Time { return now }

	if _, err := c.CurrentPrice(context.Background()); err != nil {
		t.Fatal(err)
	}
	upstream.err = errors.NewFeedError("stub", "current", fmt.Errorf("down"))
	for i := 0; i < 3; i++ {
		if p, err := c.CurrentPrice(context.Background()); err != nil || p != 7.5 {
			t.Errorf("call %d: CurrentPrice() = %v, %v, want cached 7.5", i, p, err)
		}
	}
}
