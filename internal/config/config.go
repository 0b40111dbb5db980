// Package config provides configuration management for tradesim.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"tradesim/internal/analysis/indicators"
	"tradesim/internal/errors"
	"tradesim/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Feed       FeedConfig      `mapstructure:"feed"`
	Portfolio  PortfolioConfig `mapstructure:"portfolio"`
	Indicators IndicatorConfig `mapstructure:"indicators"`
	Trendline  TrendlineConfig `mapstructure:"trendline"`
	Logging    LoggingConfig   `mapstructure:"logging"`
	Store      StoreConfig     `mapstructure:"store"`
	Metrics    MetricsConfig   `mapstructure:"metrics"`
}

// FeedConfig selects and tunes the price source.
type FeedConfig struct {
	Provider        string        `mapstructure:"provider"` // coingecko, synthetic
	BaseURL         string        `mapstructure:"base_url"`
	CoinID          string        `mapstructure:"coin_id"`
	VsCurrency      string        `mapstructure:"vs_currency"`
	Timeout         time.Duration `mapstructure:"timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	CacheMaxAge     time.Duration `mapstructure:"cache_max_age"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// PortfolioConfig holds account defaults.
type PortfolioConfig struct {
	StartingBalance float64 `mapstructure:"starting_balance"`
	Mode            string  `mapstructure:"mode"` // daily, weekly, monthly, yearly
	Owner           string  `mapstructure:"owner"`

	// LiquidationFeeRate moves liquidation prices toward entry; 0 uses the plain formula.
	LiquidationFeeRate float64 `mapstructure:"liquidation_fee_rate"`
}

// IndicatorConfig mirrors indicators.Config in file form.
type IndicatorConfig struct {
	Workers    int     `mapstructure:"workers"`
	SMAPeriods []int   `mapstructure:"sma_periods"`
	EMAPeriods []int   `mapstructure:"ema_periods"`
	RSIPeriod  int     `mapstructure:"rsi_period"`
	MACDFast   int     `mapstructure:"macd_fast"`
	MACDSlow   int     `mapstructure:"macd_slow"`
	MACDSignal int     `mapstructure:"macd_signal"`
	Oversold   float64 `mapstructure:"oversold"`
	Overbought float64 `mapstructure:"overbought"`

	VolatilityPeriod int     `mapstructure:"volatility_period"`
	VolatilityMedium float64 `mapstructure:"volatility_medium"`
	VolatilityHigh   float64 `mapstructure:"volatility_high"`
}

// TrendlineConfig holds chart annotation settings.
type TrendlineConfig struct {
	MinLength float64 `mapstructure:"min_length"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// StoreConfig holds the SQLite location.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig holds the Prometheus listener address. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/tradesim"
	}
	return filepath.Join(home, ".config", "tradesim")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// A missing config.toml is replaced by the commented template and then read.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	cfg := &Config{}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.expandPaths(configDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func newViper(configDir, name string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	ind := indicators.DefaultConfig()

	v.SetDefault("feed.provider", "coingecko")
	v.SetDefault("feed.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("feed.coin_id", "internet-computer")
	v.SetDefault("feed.vs_currency", "usd")
	v.SetDefault("feed.timeout", "10s")
	v.SetDefault("feed.poll_interval", "30s")
	v.SetDefault("feed.cache_max_age", "1h")
	v.SetDefault("feed.max_attempts", 3)
	v.SetDefault("feed.breaker_failures", 5)
	v.SetDefault("feed.breaker_cooldown", "1m")

	v.SetDefault("portfolio.starting_balance", models.DefaultStartingBalance)
	v.SetDefault("portfolio.mode", string(models.GameModeDaily))
	v.SetDefault("portfolio.owner", "local")
	v.SetDefault("portfolio.liquidation_fee_rate", 0.0)

	v.SetDefault("indicators.workers", 4)
	v.SetDefault("indicators.sma_periods", ind.SMAPeriods)
	v.SetDefault("indicators.ema_periods", ind.EMAPeriods)
	v.SetDefault("indicators.rsi_period", ind.RSIPeriod)
	v.SetDefault("indicators.macd_fast", ind.MACDFast)
	v.SetDefault("indicators.macd_slow", ind.MACDSlow)
	v.SetDefault("indicators.macd_signal", ind.MACDSignal)
	v.SetDefault("indicators.oversold", ind.Zones.Oversold)
	v.SetDefault("indicators.overbought", ind.Zones.Overbought)
	v.SetDefault("indicators.volatility_period", ind.VolatilityPeriod)
	v.SetDefault("indicators.volatility_medium", ind.VolatilityBands.Medium)
	v.SetDefault("indicators.volatility_high", ind.VolatilityBands.High)

	v.SetDefault("trendline.min_length", 20.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", "logs/tradesim.log")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)

	v.SetDefault("store.path", "tradesim.db")
	v.SetDefault("metrics.addr", "")
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := newViper(configDir, name)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// Config file not found, create template and read it back
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
		if err := v.ReadInConfig(); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

// Defaults returns the configuration used when no file or env overrides exist.
func Defaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("TRADESIM_FEED_PROVIDER"); v != "" {
		cfg.Feed.Provider = v
	}
	if v := os.Getenv("TRADESIM_FEED_BASE_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := os.Getenv("TRADESIM_COIN_ID"); v != "" {
		cfg.Feed.CoinID = v
	}
	if v := os.Getenv("TRADESIM_MODE"); v != "" {
		cfg.Portfolio.Mode = v
	}
	if v := os.Getenv("TRADESIM_STARTING_BALANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigInvalid, "TRADESIM_STARTING_BALANCE=%q", v)
		}
		cfg.Portfolio.StartingBalance = f
	}
	if v := os.Getenv("TRADESIM_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("TRADESIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRADESIM_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}

// expandPaths makes relative file locations relative to the config directory.
func (c *Config) expandPaths(configDir string) {
	if c.Store.Path != "" && c.Store.Path != ":memory:" && !filepath.IsAbs(c.Store.Path) {
		c.Store.Path = filepath.Join(configDir, c.Store.Path)
	}
	if c.Logging.FilePath != "" && !filepath.IsAbs(c.Logging.FilePath) {
		c.Logging.FilePath = filepath.Join(configDir, c.Logging.FilePath)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Feed.Provider) {
	case "coingecko", "synthetic":
	default:
		return errors.Wrapf(errors.ErrConfigInvalid, "feed provider %q (must be 'coingecko' or 'synthetic')", c.Feed.Provider)
	}
	if c.Feed.Timeout < 0 || c.Feed.PollInterval < 0 || c.Feed.CacheMaxAge < 0 || c.Feed.BreakerCooldown < 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "feed durations must be non-negative")
	}

	if _, err := models.ParseGameMode(c.Portfolio.Mode); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalid, "portfolio mode %q", c.Portfolio.Mode)
	}
	if c.Portfolio.StartingBalance <= 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "starting_balance must be positive")
	}
	if c.Portfolio.LiquidationFeeRate < 0 || c.Portfolio.LiquidationFeeRate >= 1 {
		return errors.Wrap(errors.ErrConfigInvalid, "liquidation_fee_rate must be in [0, 1)")
	}

	if err := c.IndicatorConfig().Validate(); err != nil {
		return errors.Wrapf(errors.ErrConfigInvalid, "indicators: %v", err)
	}

	if c.Trendline.MinLength < 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "trendline min_length must be non-negative")
	}

	return nil
}

// IndicatorConfig converts the file settings to engine settings.
func (c *Config) IndicatorConfig() indicators.Config {
	return indicators.Config{
		SMAPeriods: c.Indicators.SMAPeriods,
		EMAPeriods: c.Indicators.EMAPeriods,
		RSIPeriod:  c.Indicators.RSIPeriod,
		MACDFast:   c.Indicators.MACDFast,
		MACDSlow:   c.Indicators.MACDSlow,
		MACDSignal: c.Indicators.MACDSignal,
		Zones: indicators.ZoneThresholds{
			Oversold:   c.Indicators.Oversold,
			Overbought: c.Indicators.Overbought,
		},
		VolatilityPeriod: c.Indicators.VolatilityPeriod,
		VolatilityBands: indicators.VolatilityBands{
			Medium: c.Indicators.VolatilityMedium,
			High:   c.Indicators.VolatilityHigh,
		},
	}
}

// GameMode returns the configured default mode.
func (c *Config) GameMode() models.GameMode {
	mode, err := models.ParseGameMode(c.Portfolio.Mode)
	if err != nil {
		return models.GameModeDaily
	}
	return mode
}

// IsSynthetic returns true if the random-walk feed is selected.
func (c *Config) IsSynthetic() bool {
	return strings.EqualFold(c.Feed.Provider, "synthetic")
}
