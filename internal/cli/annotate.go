package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tradesim/internal/annotation"
	"tradesim/internal/errors"
)

func addAnnotationCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTrendlineCmd(app))
}

// newTrendlineCmd validates chart drags the way the chart does: each drag
// becomes a trendline unless it is shorter than the configured minimum.
func newTrendlineCmd(app *App) *cobra.Command {
	var lines []string

	cmd := &cobra.Command{
		Use:     "trendline",
		Short:   "Validate trendline drags and assign ids",
		Example: `  tradesim trendline --line 10,200,300,120 --line 5,5,8,9`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			store := annotation.NewStore(app.Config.Trendline.MinLength)

			type result struct {
				Input    string                `json:"input"`
				Line     *annotation.Trendline `json:"trendline,omitempty"`
				Rejected string                `json:"rejected,omitempty"`
			}
			results := make([]result, 0, len(lines))

			for _, raw := range lines {
				g, err := parseGeometry(raw)
				if err != nil {
					return err
				}
				tl, err := store.Add(g)
				switch {
				case errors.Is(err, errors.ErrTrendlineTooShort):
					results = append(results, result{Input: raw, Rejected: "too short"})
				case err != nil:
					return err
				default:
					results = append(results, result{Input: raw, Line: &tl})
				}
			}

			if output.IsJSON() {
				return output.JSON(results)
			}
			table := NewTable(output, "DRAG", "LENGTH", "RESULT")
			for _, r := range results {
				g, _ := parseGeometry(r.Input)
				status := output.ColoredString(ColorYellow, "discarded ("+r.Rejected+")")
				if r.Line != nil {
					status = output.ColoredString(ColorGreen, r.Line.ID)
				}
				table.AddRow(r.Input, fmt.Sprintf("%.1f", g.Length()), status)
			}
			table.Render()
			output.Dim("%d of %d drags kept (minimum length %.0f)", store.Len(), len(lines), app.Config.Trendline.MinLength)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&lines, "line", nil, "drag as x1,y1,x2,y2 (repeatable)")
	cmd.MarkFlagRequired("line")
	return cmd
}

func parseGeometry(s string) (annotation.Geometry, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return annotation.Geometry{}, errors.NewValidationError("line", s, "expected x1,y1,x2,y2")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return annotation.Geometry{}, errors.NewValidationError("line", s, "coordinates must be numbers")
		}
		v[i] = f
	}
	return annotation.Geometry{StartX: v[0], StartY: v[1], EndX: v[2], EndY: v[3]}, nil
}
