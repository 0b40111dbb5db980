package trading

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"tradesim/internal/errors"
	"tradesim/internal/models"
)

func TestComputePortfolio(t *testing.T) {
	tests := []struct {
		name      string
		snap      models.Snapshot
		price     float64
		wantTotal float64
		wantPL    float64
		wantOpen  int
	}{
		{
			name: "cash only",
			snap: models.Snapshot{
				Mode:    models.GameModeDaily,
				Account: models.Account{Owner: "a", CashBalance: 10000},
			},
			price:     8.5,
			wantTotal: 10000,
			wantPL:    0,
		},
		{
			name: "spot holdings",
			snap: models.Snapshot{
				Mode:    models.GameModeWeekly,
				Account: models.Account{Owner: "a", CashBalance: 5000, AssetBalance: 100, StartingBalance: 10000},
			},
			price:     60,
			wantTotal: 11000,
			wantPL:    1000,
		},
		{
			name: "margin and unrealized pnl",
			snap: models.Snapshot{
				Mode:    models.GameModeDaily,
				Account: models.Account{Owner: "a", CashBalance: 9800},
				Positions: []models.Position{
					models.NewPosition("p1", models.Long, 5, 100, 10, opened),
				},
			},
			price:     110,
			wantTotal: 10500,
			wantPL:    500,
			wantOpen:  1,
		},
		{
			name: "closed positions are ignored",
			snap: models.Snapshot{
				Mode:    models.GameModeDaily,
				Account: models.Account{Owner: "a", CashBalance: 10000},
				Positions: []models.Position{
					{ID: "gone", Direction: models.Short, Leverage: 3, EntryPrice: 100, NotionalAmount: 10, Margin: 333, IsOpen: false},
				},
			},
			price:     150,
			wantTotal: 10000,
			wantPL:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ComputePortfolio(tt.snap, tt.price)
			if err != nil {
				t.Fatalf("ComputePortfolio() error = %v", err)
			}
			if !approx(p.TotalValue, tt.wantTotal) {
				t.Errorf("total = %v, want %v", p.TotalValue, tt.wantTotal)
			}
			if !approx(p.ProfitLoss, tt.wantPL) {
				t.Errorf("profit/loss = %v, want %v", p.ProfitLoss, tt.wantPL)
			}
			if p.OpenPositions != tt.wantOpen || len(p.Positions) != tt.wantOpen {
				t.Errorf("open positions = %d (%d risks), want %d", p.OpenPositions, len(p.Positions), tt.wantOpen)
			}
			if p.Mode != tt.snap.Mode {
				t.Errorf("mode = %q", p.Mode)
			}
		})
	}
}

func TestComputePortfolio_Errors(t *testing.T) {
	snap := models.Snapshot{Account: models.Account{Owner: "a", CashBalance: 100}}

	for _, price := range []float64{0, -3, math.NaN(), math.Inf(-1)} {
		if _, err := ComputePortfolio(snap, price); !errors.Is(err, errors.ErrPriceUnavailable) {
			t.Errorf("price %v: err = %v, want ErrPriceUnavailable", price, err)
		}
	}

	neg := snap
	neg.Account.CashBalance = -1
	if _, err := ComputePortfolio(neg, 10); !errors.Is(err, errors.ErrInputValidation) {
		t.Errorf("negative cash: err = %v, want ErrInputValidation", err)
	}

	bad := snap
	bad.Positions = []models.Position{{ID: "x", Direction: models.Long, Leverage: 0.5, EntryPrice: 1, NotionalAmount: 1, IsOpen: true}}
	if _, err := ComputePortfolio(bad, 10); !errors.Is(err, errors.ErrInvalidPosition) {
		t.Errorf("bad position: err = %v, want ErrInvalidPosition", err)
	}
}

func TestUtilization(t *testing.T) {
	u := Utilization(&Portfolio{TotalMarginLocked: 250, TotalValue: 1000})
	if u.Utilization != 25 {
		t.Errorf("utilization = %v, want 25", u.Utilization)
	}
	if u := Utilization(&Portfolio{TotalMarginLocked: 10}); u.Utilization != 0 {
		t.Errorf("utilization with no equity = %v, want 0", u.Utilization)
	}
}

func TestRequiredMargin(t *testing.T) {
	m, err := RequiredMargin(10, 100, 4)
	if err != nil || m != 250 {
		t.Errorf("RequiredMargin() = %v, %v, want 250", m, err)
	}
	if _, err := RequiredMargin(0, 100, 4); !errors.Is(err, errors.ErrInvalidPosition) {
		t.Errorf("zero notional: err = %v", err)
	}
	if _, err := RequiredMargin(1, 0, 4); !errors.Is(err, errors.ErrPriceUnavailable) {
		t.Errorf("zero price: err = %v", err)
	}
}

func copySnapshot(s models.Snapshot) models.Snapshot {
	c := s
	c.Positions = append([]models.Position(nil), s.Positions...)
	return c
}

// Property: valuation is a pure function of its inputs. Repeating it gives the
// same answer and leaves the snapshot untouched, and the total always equals
// cash + asset value + margin + unrealized P&L.
func TestProperty_PortfolioIsPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("repeatable and non-mutating", prop.ForAll(
		func(cash, asset, price float64, leverages []float64) bool {
			snap := models.Snapshot{
				Mode:    models.GameModeMonthly,
				Account: models.Account{Owner: "p", CashBalance: cash, AssetBalance: asset},
			}
			for i, lev := range leverages {
				dir := models.Long
				if i%2 == 1 {
					dir = models.Short
				}
				pos := models.NewPosition("p", dir, lev, 50+float64(i), 1+float64(i), opened)
				if i%3 == 2 {
					pos.Close()
				}
				snap.Positions = append(snap.Positions, pos)
			}
			before := copySnapshot(snap)

			first, err := ComputePortfolio(snap, price)
			if err != nil {
				t.Logf("first: %v", err)
				return false
			}
			second, err := ComputePortfolio(snap, price)
			if err != nil {
				return false
			}
			if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(before, snap) {
				return false
			}

			sum := first.CashBalance + first.AssetValue + first.TotalMarginLocked + first.TotalUnrealizedPnL
			return approx(first.TotalValue, sum) && first.OpenPositions == len(models.OpenPositions(snap.Positions))
		},
		gen.Float64Range(0, 1e6),
		gen.Float64Range(0, 1e4),
		gen.Float64Range(0.01, 1e4),
		gen.SliceOf(gen.Float64Range(1, 50)),
	))

	properties.TestingRun(t)
}
