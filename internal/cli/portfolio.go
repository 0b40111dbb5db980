package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/errors"
	"tradesim/internal/logging"
	"tradesim/internal/metrics"
	"tradesim/internal/models"
	"tradesim/internal/store"
	"tradesim/internal/trading"
	"tradesim/pkg/utils"
)

func addPortfolioCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPositionCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newLeaderboardCmd(app))
	rootCmd.AddCommand(newCountdownCmd(app))
	rootCmd.AddCommand(newSnapshotCmd(app))
}

// priceOrFetch returns the --price flag when set, otherwise the feed's quote.
func (a *App) priceOrFetch(ctx context.Context, flagPrice float64) (float64, error) {
	if flagPrice != 0 {
		return flagPrice, nil
	}
	price, err := a.feed().CurrentPrice(ctx)
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	return price, nil
}

func newPositionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "position",
		Short: "Leveraged position risk",
	}
	cmd.AddCommand(newPositionCalcCmd(app))
	cmd.AddCommand(newPositionListCmd(app))
	cmd.AddCommand(newPositionWhatIfCmd(app))
	return cmd
}

func newPositionCalcCmd(app *App) *cobra.Command {
	var direction string
	var leverage, entry, notional, price float64

	cmd := &cobra.Command{
		Use:   "calc",
		Short: "Compute P&L and liquidation price of a hypothetical position",
		Example: `  tradesim position calc --direction long --leverage 5 --entry 100 --notional 10 --price 110
  tradesim position calc --direction short --leverage 2 --entry 8.2 --notional 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			dir, err := models.ParseDirection(direction)
			if err != nil {
				return errors.NewValidationError("direction", direction, err.Error())
			}
			pos := models.NewPosition("adhoc", dir, leverage, entry, notional, time.Now().UTC())

			current, err := app.priceOrFetch(ctx, price)
			if err != nil {
				return err
			}
			risk, err := app.Calc.ComputePositionPnL(pos, current)
			if err != nil {
				return err
			}
			if risk.Liquidated {
				logging.LogLiquidation(logger(ctx), pos.ID, pos.Direction.String(), current, risk.LiquidationPrice)
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"position":      pos,
					"current_price": current,
					"risk":          risk,
				})
			}

			output.Bold("%s %s @ %s", FormatDirection(dir), FormatLeverage(leverage), utils.FormatPrice(entry))
			output.Printf("  Notional:        %s\n", utils.FormatAsset(notional))
			output.Printf("  Margin:          %s\n", utils.FormatUSD(pos.Margin))
			output.Printf("  Current Price:   %s\n", utils.FormatPrice(current))
			output.Printf("  Unrealized P&L:  %s\n", output.FormatPnL(risk.UnrealizedPnL))
			output.Printf("  Return/Margin:   %s\n", output.FormatPercent(risk.ReturnOnMargin))
			output.Printf("  Liquidation:     %s (%s away)\n", utils.FormatPrice(risk.LiquidationPrice), utils.FormatPercent(risk.DistanceToLiquidation))
			if risk.Liquidated {
				output.Error("  Price is beyond the liquidation level")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "long", "long or short")
	cmd.Flags().Float64Var(&leverage, "leverage", 1, "leverage multiplier (>= 1)")
	cmd.Flags().Float64Var(&entry, "entry", 0, "entry price")
	cmd.Flags().Float64Var(&notional, "notional", 0, "position size in asset units")
	cmd.Flags().Float64Var(&price, "price", 0, "mark price (default: current feed price)")
	cmd.MarkFlagRequired("entry")
	cmd.MarkFlagRequired("notional")
	return cmd
}

func newPositionListCmd(app *App) *cobra.Command {
	var price float64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open positions with their risk at the current price",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			s, err := app.store()
			if err != nil {
				return err
			}
			positions, err := s.OpenPositions(ctx, app.mode, app.owner)
			if err != nil {
				return err
			}
			if len(positions) == 0 {
				if output.IsJSON() {
					return output.JSON([]trading.PositionRisk{})
				}
				output.Info("No open %s positions for %s", app.mode, app.owner)
				return nil
			}

			current, err := app.priceOrFetch(ctx, price)
			if err != nil {
				return err
			}

			risks := make([]trading.PositionRisk, 0, len(positions))
			for _, pos := range positions {
				risk, err := app.Calc.ComputePositionPnL(pos, current)
				if err != nil {
					return err
				}
				if risk.Liquidated {
					logging.LogLiquidation(logger(ctx), pos.ID, pos.Direction.String(), current, risk.LiquidationPrice)
				}
				risks = append(risks, risk)
			}

			if output.IsJSON() {
				return output.JSON(risks)
			}
			printPositions(output, positions, risks)
			output.Dim("Marked at %s", utils.FormatPrice(current))
			return nil
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "mark price (default: current feed price)")
	return cmd
}

func printPositions(output *Output, positions []models.Position, risks []trading.PositionRisk) {
	table := NewTable(output, "ID", "SIDE", "LEV", "ENTRY", "SIZE", "MARGIN", "P&L", "LIQ", "DIST")
	for i, pos := range positions {
		r := risks[i]
		liq := utils.FormatPrice(r.LiquidationPrice)
		if r.Liquidated {
			liq = output.ColoredString(ColorRed, liq+" !")
		}
		table.AddRow(
			TruncateString(pos.ID, 12),
			FormatDirection(pos.Direction),
			FormatLeverage(pos.Leverage),
			utils.FormatPrice(pos.EntryPrice),
			utils.FormatAsset(pos.NotionalAmount),
			utils.FormatUSD(pos.Margin),
			output.FormatPnL(r.UnrealizedPnL),
			liq,
			utils.FormatPercent(r.DistanceToLiquidation),
		)
	}
	table.Render()
}

func newPositionWhatIfCmd(app *App) *cobra.Command {
	var direction string
	var leverage, notional, price float64

	cmd := &cobra.Command{
		Use:   "whatif",
		Short: "Check whether the account can afford a new position",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			dir, err := models.ParseDirection(direction)
			if err != nil {
				return errors.NewValidationError("direction", direction, err.Error())
			}
			s, err := app.store()
			if err != nil {
				return err
			}
			account, err := s.Account(ctx, app.mode, app.owner)
			if err != nil {
				return err
			}
			current, err := app.priceOrFetch(ctx, price)
			if err != nil {
				return err
			}

			result, err := app.Calc.WhatIf(*account, dir, notional, current, leverage)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(result)
			}

			output.Bold("What-if: %s %s %s @ %s", FormatDirection(dir), utils.FormatAsset(notional), FormatLeverage(leverage), utils.FormatPrice(current))
			output.Printf("  Required Margin: %s\n", utils.FormatUSD(result.RequiredMargin))
			output.Printf("  Available Cash:  %s\n", utils.FormatUSD(result.AvailableCash))
			output.Printf("  Liquidation:     %s\n", utils.FormatPrice(result.LiquidationPrice))
			if result.CanExecute {
				output.Success("  Affordable, cash after trade %s", utils.FormatUSD(result.PostTradeCash))
			} else {
				output.Error("  Short by %s", utils.FormatUSD(result.Shortfall))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "long", "long or short")
	cmd.Flags().Float64Var(&leverage, "leverage", 1, "leverage multiplier (>= 1)")
	cmd.Flags().Float64Var(&notional, "notional", 0, "position size in asset units")
	cmd.Flags().Float64Var(&price, "price", 0, "entry price (default: current feed price)")
	cmd.MarkFlagRequired("notional")
	return cmd
}

func newPortfolioCmd(app *App) *cobra.Command {
	var price float64

	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Value the account and open positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			s, err := app.store()
			if err != nil {
				return err
			}
			snap, err := s.Snapshot(ctx, app.mode, app.owner)
			if err != nil {
				return err
			}
			current, err := app.priceOrFetch(ctx, price)
			if err != nil {
				metrics.Valuations.WithLabelValues(string(app.mode), "unavailable").Inc()
				logging.LogValuationUnavailable(logger(ctx), string(app.mode), err)
				return err
			}

			p, err := app.value(ctx, snap, current)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(p)
			}
			printPortfolio(output, app.owner, snap, p)
			return nil
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "mark price (default: current feed price)")
	return cmd
}

// value computes a portfolio and records the outcome in logs and metrics.
func (a *App) value(ctx context.Context, snap *models.Snapshot, price float64) (*trading.Portfolio, error) {
	mode := string(snap.Mode)
	p, err := a.Calc.ComputePortfolio(*snap, price)
	switch {
	case errors.Is(err, errors.ErrPriceUnavailable):
		metrics.Valuations.WithLabelValues(mode, "unavailable").Inc()
		logging.LogValuationUnavailable(logger(ctx), mode, err)
		return nil, err
	case err != nil:
		metrics.Valuations.WithLabelValues(mode, "invalid").Inc()
		return nil, err
	}

	metrics.Valuations.WithLabelValues(mode, "ok").Inc()
	metrics.PortfolioValue.WithLabelValues(mode).Set(p.TotalValue)
	metrics.MarginLocked.WithLabelValues(mode).Set(p.TotalMarginLocked)
	logging.LogValuation(logger(ctx), mode, price, p.TotalValue, p.ProfitLoss, p.OpenPositions)
	for _, r := range p.Positions {
		if r.Liquidated {
			logging.LogLiquidation(logger(ctx), r.PositionID, r.Direction.String(), price, r.LiquidationPrice)
		}
	}
	return p, nil
}

func printPortfolio(output *Output, owner string, snap *models.Snapshot, p *trading.Portfolio) {
	u := trading.Utilization(p)

	output.Bold("Portfolio: %s (%s)", owner, p.Mode)
	output.Printf("  Price:           %s\n", utils.FormatPrice(p.CurrentPrice))
	output.Printf("  Cash:            %s\n", utils.FormatUSD(p.CashBalance))
	output.Printf("  Asset:           %s (%s)\n", utils.FormatAsset(p.AssetBalance), utils.FormatUSD(p.AssetValue))
	output.Printf("  Margin Locked:   %s (%.1f%% of equity)\n", utils.FormatUSD(p.TotalMarginLocked), u.Utilization)
	output.Printf("  Unrealized P&L:  %s\n", output.FormatPnL(p.TotalUnrealizedPnL))
	output.Printf("  Total Value:     %s\n", output.ColoredString(ColorBold, utils.FormatUSD(p.TotalValue)))
	pct := 0.0
	if p.StartingBalance > 0 {
		pct = p.ProfitLoss / p.StartingBalance * 100
	}
	output.Printf("  P&L:             %s (%s)\n", output.FormatPnL(p.ProfitLoss), output.FormatPercent(pct))

	if p.OpenPositions > 0 {
		output.Println()
		printPositions(output, models.OpenPositions(snap.Positions), p.Positions)
	}
}

func newLeaderboardCmd(app *App) *cobra.Command {
	var price float64
	var top int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank every account in the game mode by P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			s, err := app.store()
			if err != nil {
				return err
			}
			accounts, err := s.Accounts(ctx, app.mode)
			if err != nil {
				return err
			}
			current, err := app.priceOrFetch(ctx, price)
			if err != nil {
				return err
			}
			entries, err := app.Calc.RankLeaderboard(accounts, current)
			if err != nil {
				return err
			}
			if top > 0 && len(entries) > top {
				entries = entries[:top]
			}

			if output.IsJSON() {
				return output.JSON(entries)
			}
			output.Bold("Leaderboard (%s) at %s", app.mode, utils.FormatPrice(current))
			table := NewTable(output, "#", "PLAYER", "CASH", "ASSET", "TOTAL", "P&L", "P&L %")
			for _, e := range entries {
				table.AddRow(
					fmt.Sprintf("%d", e.Rank),
					TruncateString(e.Player, 20),
					utils.FormatCompact(e.CashBalance),
					utils.FormatAsset(e.AssetBalance),
					utils.FormatUSD(e.TotalValue),
					output.FormatPnL(e.ProfitLoss),
					output.FormatPercent(e.ProfitLossPercent),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().Float64Var(&price, "price", 0, "mark price (default: current feed price)")
	cmd.Flags().IntVar(&top, "top", 10, "number of entries to show (0 = all)")
	return cmd
}

func newCountdownCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "countdown",
		Short: "Show time left until the game mode resets",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			remaining, reset, err := trading.Countdown(app.mode, time.Now())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"mode":      app.mode,
					"resets_at": reset,
					"remaining": remaining,
				})
			}
			output.Printf("%s game resets in %s\n", app.mode, output.ColoredString(ColorBold, remaining.String()))
			output.Dim("at %s UTC", FormatDateTime(reset))
			return nil
		},
	}
}

func newSnapshotCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Ledger snapshot management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import account and position snapshots from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			snaps, err := store.LoadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			s, err := app.store()
			if err != nil {
				return err
			}
			for i := range snaps {
				if snaps[i].Account.StartingBalance <= 0 {
					snaps[i].Account.StartingBalance = app.Config.Portfolio.StartingBalance
				}
				if err := s.SaveSnapshot(ctx, &snaps[i]); err != nil {
					return fmt.Errorf("importing %s/%s: %w", snaps[i].Mode, snaps[i].Account.Owner, err)
				}
			}
			log := logger(ctx)
			log.Info().Str("file", args[0]).Int("snapshots", len(snaps)).Msg("Snapshots imported")

			if output.IsJSON() {
				return output.JSON(map[string]int{"imported": len(snaps)})
			}
			output.Success("Imported %d snapshot(s) from %s", len(snaps), args[0])
			return nil
		},
	})

	return cmd
}
