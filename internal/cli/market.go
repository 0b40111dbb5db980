package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/analysis/indicators"
	"tradesim/internal/errors"
	"tradesim/internal/models"
	"tradesim/pkg/utils"
)

func addMarketCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newIndicatorsCmd(app))
}

func newPriceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Show the current price",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			pf := app.feed()

			price, err := pf.CurrentPrice(cmd.Context())
			if err != nil {
				return wrapUnavailable(err)
			}

			quote := models.Quote{Price: price, Source: pf.Name(), Timestamp: time.Now().UTC()}
			if output.IsJSON() {
				return output.JSON(quote)
			}
			output.Printf("%s  %s\n", output.ColoredString(ColorBold, utils.FormatPrice(quote.Price)), output.ColoredString(ColorDim, quote.Source))
			output.Dim("as of %s UTC", FormatDateTime(quote.Timestamp))
			return nil
		},
	}
}

func newHistoryCmd(app *App) *cobra.Command {
	var days, limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show historical prices",
		Example: `  tradesim history --days 7
  tradesim history --days 30 --limit 0 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			samples, err := app.feed().HistoricalPrices(cmd.Context(), days)
			if err != nil {
				if errors.Is(err, errors.ErrInputValidation) {
					return err
				}
				return wrapUnavailable(err)
			}

			if output.IsJSON() {
				return output.JSON(samples)
			}

			shown := samples
			if limit > 0 && len(shown) > limit {
				shown = shown[len(shown)-limit:]
			}
			table := NewTable(output, "TIME (UTC)", "PRICE")
			for _, s := range shown {
				table.AddRow(FormatDateTime(s.Time()), utils.FormatPrice(s.Price))
			}
			table.Render()
			output.Dim("%d of %d samples over %d day(s)", len(shown), len(samples), days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 1, "number of days of history")
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to print, most recent last (0 = all)")
	return cmd
}

func newIndicatorsCmd(app *App) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "indicators",
		Short: "Compute SMA, EMA, RSI and MACD over recent history",
		Example: `  tradesim indicators --days 30
  tradesim indicators --days 90 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			samples, err := app.feed().HistoricalPrices(ctx, days)
			if err != nil {
				if errors.Is(err, errors.ErrInputValidation) {
					return err
				}
				return wrapUnavailable(err)
			}

			set, err := app.Engine.ComputeIndicators(ctx, samples, app.Config.IndicatorConfig())
			if err != nil {
				return err
			}
			log := logger(ctx)
			log.Debug().Int("samples", len(samples)).Msg("Indicators computed")

			if output.IsJSON() {
				return output.JSON(set)
			}
			printIndicators(output, set, len(samples))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "number of days of history")
	return cmd
}

func printIndicators(output *Output, set *indicators.Set, samples int) {
	output.Bold("Indicators (%d samples)", samples)

	table := NewTable(output, "INDICATOR", "LATEST", "POINTS")
	addSeries := func(name string, s indicators.Series, format func(float64) string) {
		if p, ok := s.Last(); ok {
			table.AddRow(name, format(p.Value), fmt.Sprintf("%d", len(s)))
		} else {
			table.AddRow(name, "n/a", "0")
		}
	}

	for _, p := range sortedPeriods(set.SMA) {
		addSeries(fmt.Sprintf("SMA(%d)", p), set.SMA[p], utils.FormatPrice)
	}
	for _, p := range sortedPeriods(set.EMA) {
		addSeries(fmt.Sprintf("EMA(%d)", p), set.EMA[p], utils.FormatPrice)
	}
	addSeries("RSI", set.RSI, func(v float64) string { return fmt.Sprintf("%.2f", v) })
	addSeries("Volatility", set.Volatility, func(v float64) string { return fmt.Sprintf("%.2f%%", v) })

	if n := len(set.MACD); n > 0 {
		last := set.MACD[n-1]
		table.AddRow("MACD", fmt.Sprintf("%.4f", last.Line), fmt.Sprintf("%d", n))
		table.AddRow("MACD signal", fmt.Sprintf("%.4f", last.Signal), fmt.Sprintf("%d", n))
		table.AddRow("MACD histogram", fmt.Sprintf("%.4f", last.Histogram), fmt.Sprintf("%d", n))
	} else {
		table.AddRow("MACD", "n/a", "0")
	}
	table.Render()

	if set.Zone != "" {
		output.Println()
		output.Printf("RSI zone: %s\n", output.Zone(set.Zone))
	}
	if set.VolatilityBand != "" {
		output.Printf("Volatility: %s\n", set.VolatilityBand)
	}
}

func sortedPeriods(m map[int]indicators.Series) []int {
	periods := make([]int, 0, len(m))
	for p := range m {
		periods = append(periods, p)
	}
	sort.Ints(periods)
	return periods
}
