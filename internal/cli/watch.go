package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tradesim/internal/errors"
	"tradesim/internal/metrics"
	"tradesim/internal/trading"
	"tradesim/pkg/utils"
)

func newWatchCmd(app *App) *cobra.Command {
	var interval time.Duration
	var metricsAddr string
	var count int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the price and revalue the portfolio until interrupted",
		Example: `  tradesim watch --interval 30s
  tradesim watch --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if interval <= 0 {
				interval = app.Config.Feed.PollInterval
			}
			if interval <= 0 {
				interval = 30 * time.Second
			}
			if metricsAddr == "" {
				metricsAddr = app.Config.Metrics.Addr
			}
			if metricsAddr != "" {
				srv := startMetricsServer(ctx, app, metricsAddr)
				defer srv.Close()
			}

			return app.watch(ctx, NewOutput(cmd), interval, count)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many polls (0 = run until interrupted)")
	return cmd
}

func startMetricsServer(ctx context.Context, app *App, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	return srv
}

// watch polls once immediately and then every interval. A failed poll is
// reported and the loop carries on; only cancellation ends it.
func (a *App) watch(ctx context.Context, output *Output, interval time.Duration, count int) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if !output.IsJSON() {
		output.Info("Watching %s every %s (%s, %s). Ctrl+C to stop.", a.feed().Name(), interval, a.mode, a.owner)
	}

	for polls := 1; ; polls++ {
		a.poll(ctx, output)
		if count > 0 && polls >= count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// watchTick is one line of watch output.
type watchTick struct {
	Time      time.Time          `json:"time"`
	Price     float64            `json:"price,omitempty"`
	Portfolio *trading.Portfolio `json:"portfolio,omitempty"`
	ResetsIn  string             `json:"resets_in"`
	Error     string             `json:"error,omitempty"`
}

func (a *App) poll(ctx context.Context, output *Output) {
	now := time.Now().UTC()
	tick := watchTick{Time: now}
	if remaining, _, err := trading.Countdown(a.mode, now); err == nil {
		tick.ResetsIn = FormatDuration(time.Duration(remaining.TotalSeconds) * time.Second)
	}

	price, err := a.feed().CurrentPrice(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.Valuations.WithLabelValues(string(a.mode), "unavailable").Inc()
		tick.Error = "price unavailable"
		log := logger(ctx)
		log.Warn().Err(err).Msg("Poll failed")
		a.printTick(output, tick)
		return
	}
	tick.Price = price

	s, err := a.store()
	if err != nil {
		tick.Error = "store unavailable"
		log := logger(ctx)
		log.Warn().Err(err).Str("path", a.Config.Store.Path).Msg("Store unavailable, portfolio not valued")
	} else {
		snap, err := s.Snapshot(ctx, a.mode, a.owner)
		switch {
		case err == nil:
			if p, err := a.value(ctx, snap, price); err == nil {
				tick.Portfolio = p
			} else {
				tick.Error = err.Error()
			}
		case errors.Is(err, errors.ErrDataNotFound):
			// Price-only watch.
		default:
			tick.Error = err.Error()
		}
	}

	a.printTick(output, tick)
}

func (a *App) printTick(output *Output, t watchTick) {
	if output.IsJSON() {
		output.JSON(t)
		return
	}
	line := FormatTime(t.Time) + "  "
	if t.Price > 0 {
		line += output.ColoredString(ColorBold, utils.FormatPrice(t.Price))
	} else {
		line += output.ColoredString(ColorYellow, "--")
	}
	if p := t.Portfolio; p != nil {
		line += "  value " + utils.FormatUSD(p.TotalValue) + "  P&L " + output.FormatPnL(p.ProfitLoss)
		for _, r := range p.Positions {
			if r.Liquidated {
				line += "  " + output.ColoredString(ColorRed, "LIQ "+r.PositionID)
			}
		}
	}
	if t.ResetsIn != "" {
		line += output.ColoredString(ColorDim, "  reset in "+t.ResetsIn)
	}
	if t.Error != "" {
		line += "  " + output.ColoredString(ColorRed, t.Error)
	}
	output.Println(line)
}
