// Package trading provides leveraged-position risk and portfolio valuation.
package trading

import (
	"fmt"
	"math"

	"tradesim/internal/errors"
	"tradesim/internal/models"
)

// PositionRisk is the mark-to-market view of one open position.
type PositionRisk struct {
	PositionID       string           `json:"position_id"`
	Direction        models.Direction `json:"direction"`
	UnrealizedPnL    float64          `json:"unrealized_pnl"`
	LiquidationPrice float64          `json:"liquidation_price"`
	// DistanceToLiquidation is the adverse move, in percent of the current
	// price, left before liquidation. Negative once the price has crossed it.
	DistanceToLiquidation float64 `json:"distance_to_liquidation"`
	ReturnOnMargin        float64 `json:"return_on_margin"`
	Liquidated            bool    `json:"liquidated"`
}

// LiquidationAdjuster moves the raw liquidation price, e.g. to account for fees
// or funding drift. It must return a non-negative price.
type LiquidationAdjuster interface {
	Adjust(pos models.Position, raw float64) float64
}

// NoAdjustment leaves the liquidation price untouched.
type NoAdjustment struct{}

// Adjust returns raw.
func (NoAdjustment) Adjust(_ models.Position, raw float64) float64 {
	return raw
}

// FeeBuffer reserves Rate (0..1) of the entry-to-liquidation distance for fees,
// pulling the liquidation price toward entry.
type FeeBuffer struct {
	Rate float64
}

// Adjust shrinks the distance between entry and raw by Rate.
func (f FeeBuffer) Adjust(pos models.Position, raw float64) float64 {
	rate := f.Rate
	if rate <= 0 || rate >= 1 || math.IsNaN(rate) {
		return raw
	}
	return pos.EntryPrice + (raw-pos.EntryPrice)*(1-rate)
}

// Calculator evaluates position risk with a pluggable liquidation adjustment.
type Calculator struct {
	adjuster LiquidationAdjuster
	starting float64
}

// NewCalculator creates a calculator. A nil adjuster means NoAdjustment.
func NewCalculator(adj LiquidationAdjuster) *Calculator {
	if adj == nil {
		adj = NoAdjustment{}
	}
	return &Calculator{adjuster: adj}
}

// WithStartingBalance sets the balance P&L is measured against for accounts
// that do not carry their own.
func (c *Calculator) WithStartingBalance(balance float64) *Calculator {
	c.starting = balance
	return c
}

// DefaultCalculator applies the plain liquidation formula.
var DefaultCalculator = NewCalculator(nil)

// ValidatePosition rejects positions whose numbers cannot produce a finite,
// non-negative valuation. Nothing is clamped.
func ValidatePosition(pos models.Position) error {
	if !pos.Direction.Valid() {
		return errors.NewPositionError(pos.ID, "direction", float64(pos.Direction), "must be long or short")
	}
	checks := []struct {
		field string
		value float64
		ok    bool
		why   string
	}{
		{"leverage", pos.Leverage, pos.Leverage >= 1, "must be at least 1"},
		{"entry_price", pos.EntryPrice, pos.EntryPrice > 0, "must be positive"},
		{"notional_amount", pos.NotionalAmount, pos.NotionalAmount > 0, "must be positive"},
		{"margin", pos.Margin, pos.Margin >= 0, "must not be negative"},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return errors.NewPositionError(pos.ID, c.field, c.value, "must be finite")
		}
		if !c.ok {
			return errors.NewPositionError(pos.ID, c.field, c.value, c.why)
		}
	}
	return nil
}

// UnrealizedPnL returns the leveraged mark-to-market P&L of pos at price.
func UnrealizedPnL(pos models.Position, price float64) (float64, error) {
	if err := ValidatePosition(pos); err != nil {
		return 0, err
	}
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	return unrealizedPnL(pos, price), nil
}

func unrealizedPnL(pos models.Position, price float64) float64 {
	exposure := pos.NotionalAmount * pos.Leverage
	switch pos.Direction {
	case models.Long:
		return (price - pos.EntryPrice) * exposure
	case models.Short:
		return (pos.EntryPrice - price) * exposure
	default:
		panic(fmt.Sprintf("unhandled direction %s", pos.Direction))
	}
}

// LiquidationPrice returns the price at which pos loses its posted margin.
func (c *Calculator) LiquidationPrice(pos models.Position) (float64, error) {
	if err := ValidatePosition(pos); err != nil {
		return 0, err
	}
	return c.liquidationPrice(pos), nil
}

func (c *Calculator) liquidationPrice(pos models.Position) float64 {
	var raw float64
	switch pos.Direction {
	case models.Long:
		raw = pos.EntryPrice * (1 - 1/pos.Leverage)
	case models.Short:
		raw = pos.EntryPrice * (1 + 1/pos.Leverage)
	default:
		panic(fmt.Sprintf("unhandled direction %s", pos.Direction))
	}
	return math.Max(0, c.adjuster.Adjust(pos, raw))
}

// ComputePositionPnL evaluates pos at the current price.
func (c *Calculator) ComputePositionPnL(pos models.Position, price float64) (PositionRisk, error) {
	if err := ValidatePosition(pos); err != nil {
		return PositionRisk{}, err
	}
	if err := checkPrice(price); err != nil {
		return PositionRisk{}, err
	}

	pnl := unrealizedPnL(pos, price)
	liq := c.liquidationPrice(pos)
	risk := PositionRisk{
		PositionID:       pos.ID,
		Direction:        pos.Direction,
		UnrealizedPnL:    pnl,
		LiquidationPrice: liq,
	}

	switch pos.Direction {
	case models.Long:
		risk.DistanceToLiquidation = (price - liq) / price * 100
		risk.Liquidated = price <= liq && price < pos.EntryPrice
	case models.Short:
		risk.DistanceToLiquidation = (liq - price) / price * 100
		risk.Liquidated = price >= liq && price > pos.EntryPrice
	}
	if pos.Margin > 0 {
		risk.ReturnOnMargin = pnl / pos.Margin * 100
	}

	return risk, nil
}

// LiquidationPrice uses the default calculator.
func LiquidationPrice(pos models.Position) (float64, error) {
	return DefaultCalculator.LiquidationPrice(pos)
}

// ComputePositionPnL uses the default calculator.
func ComputePositionPnL(pos models.Position, price float64) (PositionRisk, error) {
	return DefaultCalculator.ComputePositionPnL(pos, price)
}

// checkPrice rejects quotes that cannot be used for valuation.
func checkPrice(price float64) error {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return errors.Wrapf(errors.ErrPriceUnavailable, "current price %v", price)
	}
	return nil
}
