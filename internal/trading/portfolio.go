package trading

import (
	"tradesim/internal/errors"
	"tradesim/internal/models"
)

// Portfolio is the derived valuation of one snapshot at one price.
// It is recomputed on every pass and never stored.
type Portfolio struct {
	Mode               models.GameMode `json:"mode"`
	CurrentPrice       float64         `json:"current_price"`
	CashBalance        float64         `json:"cash_balance"`
	AssetBalance       float64         `json:"asset_balance"`
	AssetValue         float64         `json:"asset_value"`
	TotalMarginLocked  float64         `json:"total_margin_locked"`
	TotalUnrealizedPnL float64         `json:"total_unrealized_pnl"`
	TotalValue         float64         `json:"total_value"`
	StartingBalance    float64         `json:"starting_balance"`
	ProfitLoss         float64         `json:"profit_loss"`
	OpenPositions      int             `json:"open_positions"`
	Positions          []PositionRisk  `json:"positions"`
}

// ComputePortfolio values a snapshot at currentPrice. Closed positions are ignored.
// A zero, negative or non-finite price returns ErrPriceUnavailable instead of a
// misleading total. The snapshot is not modified.
func (c *Calculator) ComputePortfolio(snap models.Snapshot, currentPrice float64) (*Portfolio, error) {
	if err := checkPrice(currentPrice); err != nil {
		return nil, err
	}
	acct := snap.Account
	if acct.CashBalance < 0 || acct.AssetBalance < 0 {
		return nil, errors.NewValidationError("account", acct.Owner, "balances must not be negative")
	}

	p := &Portfolio{
		Mode:            snap.Mode,
		CurrentPrice:    currentPrice,
		CashBalance:     acct.CashBalance,
		AssetBalance:    acct.AssetBalance,
		AssetValue:      acct.AssetBalance * currentPrice,
		StartingBalance: acct.StartingOr(c.starting),
		Positions:       make([]PositionRisk, 0, len(snap.Positions)),
	}

	for _, pos := range snap.Positions {
		if !pos.IsOpen {
			continue
		}
		risk, err := c.ComputePositionPnL(pos, currentPrice)
		if err != nil {
			return nil, err
		}
		p.TotalMarginLocked += pos.Margin
		p.TotalUnrealizedPnL += risk.UnrealizedPnL
		p.Positions = append(p.Positions, risk)
	}

	p.OpenPositions = len(p.Positions)
	p.TotalValue = p.CashBalance + p.AssetValue + p.TotalMarginLocked + p.TotalUnrealizedPnL
	p.ProfitLoss = p.TotalValue - p.StartingBalance
	return p, nil
}

// ComputePortfolio uses the default calculator.
func ComputePortfolio(snap models.Snapshot, currentPrice float64) (*Portfolio, error) {
	return DefaultCalculator.ComputePortfolio(snap, currentPrice)
}
