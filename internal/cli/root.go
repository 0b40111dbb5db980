// Package cli provides the command-line interface for tradesim.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tradesim/internal/analysis/indicators"
	"tradesim/internal/config"
	"tradesim/internal/feed"
	"tradesim/internal/logging"
	"tradesim/internal/models"
	"tradesim/internal/resilience"
	"tradesim/internal/store"
	"tradesim/internal/trading"
	"tradesim/pkg/utils"
)

// Version information, overridden with -ldflags at build time.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
	Feed   feed.PriceFeed
	Engine *indicators.Engine
	Calc   *trading.Calculator

	mode  models.GameMode
	owner string
}

// NewRootCmd creates the root command for the CLI. Configuration, logging and
// the price feed are set up once flags are parsed.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "tradesim",
		Short: "Simulated leveraged trading: prices, indicators and portfolio risk",
		Long: `tradesim values simulated trading accounts against a live price feed.

It computes chart indicators (SMA, EMA, RSI, MACD), the P&L and liquidation
price of leveraged long/short positions, and portfolio totals per game mode
(daily, weekly, monthly, yearly).

Use 'tradesim <command> --help' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/tradesim)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("mode", "", "game mode: daily, weekly, monthly, yearly (default from config)")
	rootCmd.PersistentFlags().String("owner", "", "account owner (default from config)")

	addCoreCommands(rootCmd, app)
	addMarketCommands(rootCmd, app)
	addPortfolioCommands(rootCmd, app)
	addAnnotationCommands(rootCmd, app)
	rootCmd.AddCommand(newWatchCmd(app))
	addHelpCommands(rootCmd)

	return rootCmd
}

// setup loads configuration and builds the shared collaborators.
func (a *App) setup(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg

	a.Logger = logging.NewLoggerWithConfig(logging.LogConfig{
		Level:      cfg.Logging.Level,
		Console:    true,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Output:     cmd.ErrOrStderr(),
	})

	// Handle debug flag
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logging.SetDebugLevel()
		a.Logger = a.Logger.Level(zerolog.DebugLevel)
	}

	a.mode = cfg.GameMode()
	if m, _ := cmd.Flags().GetString("mode"); m != "" {
		mode, err := models.ParseGameMode(m)
		if err != nil {
			return err
		}
		a.mode = mode
	}
	a.owner = cfg.Portfolio.Owner
	if o, _ := cmd.Flags().GetString("owner"); o != "" {
		a.owner = o
	}

	var adj trading.LiquidationAdjuster = trading.NoAdjustment{}
	if cfg.Portfolio.LiquidationFeeRate > 0 {
		adj = trading.FeeBuffer{Rate: cfg.Portfolio.LiquidationFeeRate}
	}
	a.Calc = trading.NewCalculator(adj).WithStartingBalance(cfg.Portfolio.StartingBalance)
	a.Engine = indicators.NewEngine(cfg.Indicators.Workers)

	scoped := logging.WithOperation(logging.WithMode(a.Logger, string(a.mode)), cmd.Name())
	cmd.SetContext(logging.WithLogger(cmd.Context(), scoped))
	return nil
}

// store opens the SQLite store on first use.
func (a *App) store() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store initialized")
	a.Store = s
	return s, nil
}

// feed builds the configured price feed on first use. The CoinGecko client sits
// behind a circuit breaker and, when the store can be opened, the SQLite sample cache.
func (a *App) feed() feed.PriceFeed {
	if a.Feed != nil {
		return a.Feed
	}

	if a.Config.IsSynthetic() {
		cfg := feed.DefaultSyntheticConfig()
		a.Feed = feed.NewSynthetic(cfg)
		a.Logger.Debug().Msg("Synthetic price feed selected")
		return a.Feed
	}

	retry := utils.DefaultRetryConfig()
	if a.Config.Feed.MaxAttempts > 0 {
		retry.MaxAttempts = a.Config.Feed.MaxAttempts
	}
	var pf feed.PriceFeed = feed.NewCoinGecko(feed.CoinGeckoConfig{
		BaseURL:    a.Config.Feed.BaseURL,
		CoinID:     a.Config.Feed.CoinID,
		VsCurrency: a.Config.Feed.VsCurrency,
		Timeout:    a.Config.Feed.Timeout,
		Retry:      retry,
	}, a.Logger)
	pf = feed.NewGuarded(pf, resilience.CircuitBreakerConfig{
		FailureThreshold: a.Config.Feed.BreakerFailures,
		Cooldown:         a.Config.Feed.BreakerCooldown,
	}, a.Logger)

	if s, err := a.store(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to initialize store, quotes will not be cached")
	} else {
		pf = feed.NewCached(pf, s, a.Config.Feed.CacheMaxAge, a.Logger)
	}
	a.Feed = pf
	return pf
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

// logger returns the request-scoped logger.
func logger(ctx context.Context) zerolog.Logger {
	return logging.FromContext(ctx)
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("tradesim v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View the effective configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir})
			}
			output.Println(dir)
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Feed")
	output.Printf("  Provider:        %s\n", cfg.Feed.Provider)
	if !cfg.IsSynthetic() {
		output.Printf("  Coin:            %s/%s\n", cfg.Feed.CoinID, cfg.Feed.VsCurrency)
		output.Printf("  Base URL:        %s\n", cfg.Feed.BaseURL)
		output.Printf("  Breaker:         %d failures, %s cooldown\n", cfg.Feed.BreakerFailures, cfg.Feed.BreakerCooldown)
	}
	output.Printf("  Poll Interval:   %s\n", cfg.Feed.PollInterval)
	output.Printf("  Cache Max Age:   %s\n", cfg.Feed.CacheMaxAge)
	output.Println()

	output.Bold("Portfolio")
	output.Printf("  Owner:           %s\n", cfg.Portfolio.Owner)
	output.Printf("  Mode:            %s\n", cfg.Portfolio.Mode)
	output.Printf("  Starting:        %s\n", utils.FormatUSD(cfg.Portfolio.StartingBalance))
	output.Printf("  Liq. Fee Rate:   %s\n", utils.FormatPercent(cfg.Portfolio.LiquidationFeeRate*100))
	output.Println()

	output.Bold("Indicators")
	output.Printf("  SMA:             %v\n", cfg.Indicators.SMAPeriods)
	output.Printf("  EMA:             %v\n", cfg.Indicators.EMAPeriods)
	output.Printf("  RSI:             %d (%.0f/%.0f)\n", cfg.Indicators.RSIPeriod, cfg.Indicators.Oversold, cfg.Indicators.Overbought)
	output.Printf("  MACD:            %d/%d/%d\n", cfg.Indicators.MACDFast, cfg.Indicators.MACDSlow, cfg.Indicators.MACDSignal)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:        %s\n", cfg.Store.Path)
	output.Printf("  Log Level:       %s\n", cfg.Logging.Level)
	metricsAddr := cfg.Metrics.Addr
	if metricsAddr == "" {
		metricsAddr = "disabled"
	}
	output.Printf("  Metrics:         %s\n", metricsAddr)
}

// wrapUnavailable adds a hint to price outages without hiding the cause.
func wrapUnavailable(err error) error {
	return fmt.Errorf("price unavailable, try again later: %w", err)
}
