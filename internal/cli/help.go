package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addHelpCommands adds workflow documentation commands.
func addHelpCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newExamplesCmd())
}

type workflow struct {
	title    string
	commands []string
}

var workflows = []workflow{
	{
		title: "Check the Market",
		commands: []string{
			"tradesim price                  # Current quote",
			"tradesim history --days 7       # Recent samples",
			"tradesim indicators --days 30   # SMA/EMA/RSI/MACD with RSI zone",
		},
	},
	{
		title: "Size a Leveraged Position",
		commands: []string{
			"tradesim position calc --direction long --leverage 5 --entry 100 --notional 10",
			"tradesim position whatif --direction short --leverage 3 --notional 50",
		},
	},
	{
		title: "Value an Account",
		commands: []string{
			"tradesim snapshot import ledger.yaml  # Load balances and positions",
			"tradesim portfolio --owner alice      # Totals and per-position risk",
			"tradesim position list --owner alice  # Liquidation distances",
			"tradesim leaderboard --mode weekly    # Rank every player",
			"tradesim countdown --mode monthly     # Time until reset",
		},
	},
	{
		title: "Monitor",
		commands: []string{
			"tradesim watch --interval 30s --metrics-addr :9090",
			"tradesim watch --count 1 --json   # One poll, machine readable",
		},
	},
	{
		title: "Work Offline",
		commands: []string{
			"TRADESIM_FEED_PROVIDER=synthetic tradesim watch  # Random-walk prices",
		},
	},
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				out := make(map[string][]string, len(workflows))
				for _, w := range workflows {
					out[w.title] = w.commands
				}
				return output.JSON(out)
			}

			output.Bold("Common Workflow Examples")
			output.Println()

			for _, w := range workflows {
				output.Bold(w.title)
				for _, c := range w.commands {
					parts := strings.SplitN(c, "#", 2)
					if len(parts) == 2 {
						output.Printf("  %s %s\n", output.ColoredString(ColorCyan, strings.TrimSpace(parts[0])), output.ColoredString(ColorDim, strings.TrimSpace(parts[1])))
					} else {
						output.Printf("  %s\n", output.ColoredString(ColorCyan, c))
					}
				}
				output.Println()
			}
			return nil
		},
	}
}
