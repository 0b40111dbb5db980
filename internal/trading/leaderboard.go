package trading

import (
	"sort"

	"tradesim/internal/models"
)

// LeaderboardEntry is one ranked player.
type LeaderboardEntry struct {
	Rank              int     `json:"rank"`
	Player            string  `json:"player"`
	CashBalance       float64 `json:"cash_balance"`
	AssetBalance      float64 `json:"asset_balance"`
	TotalValue        float64 `json:"total_value"`
	StartingBalance   float64 `json:"starting_balance"`
	ProfitLoss        float64 `json:"profit_loss"`
	ProfitLossPercent float64 `json:"profit_loss_percent"`
}

// RankLeaderboard values every account at currentPrice and orders them by
// profit/loss, best first. Ties fall back to total value, then player name.
func (c *Calculator) RankLeaderboard(accounts []models.Account, currentPrice float64) ([]LeaderboardEntry, error) {
	if err := checkPrice(currentPrice); err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(accounts))
	for i, a := range accounts {
		total := a.CashBalance + a.AssetBalance*currentPrice
		starting := a.StartingOr(c.starting)
		pl := total - starting
		entries[i] = LeaderboardEntry{
			Player:            a.Owner,
			CashBalance:       a.CashBalance,
			AssetBalance:      a.AssetBalance,
			TotalValue:        total,
			StartingBalance:   starting,
			ProfitLoss:        pl,
			ProfitLossPercent: pl / starting * 100,
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ProfitLoss != entries[j].ProfitLoss {
			return entries[i].ProfitLoss > entries[j].ProfitLoss
		}
		if entries[i].TotalValue != entries[j].TotalValue {
			return entries[i].TotalValue > entries[j].TotalValue
		}
		return entries[i].Player < entries[j].Player
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// RankLeaderboard uses the default calculator.
func RankLeaderboard(accounts []models.Account, currentPrice float64) ([]LeaderboardEntry, error) {
	return DefaultCalculator.RankLeaderboard(accounts, currentPrice)
}
