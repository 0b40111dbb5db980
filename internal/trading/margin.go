package trading

import (
	"math"

	"tradesim/internal/errors"
	"tradesim/internal/models"
)

// RequiredMargin is the collateral needed to open notional units at price with leverage.
func RequiredMargin(notional, price, leverage float64) (float64, error) {
	if leverage < 1 || math.IsNaN(leverage) || math.IsInf(leverage, 0) {
		return 0, errors.NewPositionError("", "leverage", leverage, "must be at least 1")
	}
	if notional <= 0 || math.IsNaN(notional) || math.IsInf(notional, 0) {
		return 0, errors.NewPositionError("", "notional_amount", notional, "must be positive")
	}
	if err := checkPrice(price); err != nil {
		return 0, err
	}
	return notional * price / leverage, nil
}

// WhatIfResult describes whether an account could open a position.
type WhatIfResult struct {
	Direction        models.Direction `json:"direction"`
	Notional         float64          `json:"notional"`
	Price            float64          `json:"price"`
	Leverage         float64          `json:"leverage"`
	RequiredMargin   float64          `json:"required_margin"`
	AvailableCash    float64          `json:"available_cash"`
	PostTradeCash    float64          `json:"post_trade_cash"`
	LiquidationPrice float64          `json:"liquidation_price"`
	CanExecute       bool             `json:"can_execute"`
	Shortfall        float64          `json:"shortfall"`
}

// WhatIf checks an account's cash against the margin of a prospective position.
// The account is not modified.
func (c *Calculator) WhatIf(account models.Account, dir models.Direction, notional, price, leverage float64) (*WhatIfResult, error) {
	margin, err := RequiredMargin(notional, price, leverage)
	if err != nil {
		return nil, err
	}
	pos := models.Position{
		Direction:      dir,
		Leverage:       leverage,
		EntryPrice:     price,
		NotionalAmount: notional,
		Margin:         margin,
		IsOpen:         true,
	}
	liq, err := c.LiquidationPrice(pos)
	if err != nil {
		return nil, err
	}

	result := &WhatIfResult{
		Direction:        dir,
		Notional:         notional,
		Price:            price,
		Leverage:         leverage,
		RequiredMargin:   margin,
		AvailableCash:    account.CashBalance,
		PostTradeCash:    account.CashBalance - margin,
		LiquidationPrice: liq,
		CanExecute:       account.CashBalance >= margin,
	}
	if !result.CanExecute {
		result.Shortfall = margin - account.CashBalance
	}
	return result, nil
}

// MarginUtilization is the share of account equity committed as margin.
type MarginUtilization struct {
	UsedMargin  float64 `json:"used_margin"`
	Equity      float64 `json:"equity"`
	Utilization float64 `json:"utilization"` // percent
}

// Utilization derives margin usage from a computed portfolio.
func Utilization(p *Portfolio) MarginUtilization {
	u := MarginUtilization{
		UsedMargin: p.TotalMarginLocked,
		Equity:     p.TotalValue,
	}
	if p.TotalValue > 0 {
		u.Utilization = p.TotalMarginLocked / p.TotalValue * 100
	}
	return u
}
