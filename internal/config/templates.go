package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# tradesim configuration

[feed]
# coingecko or synthetic (offline random walk)
provider = "coingecko"
base_url = "https://api.coingecko.com/api/v3"
coin_id = "internet-computer"
vs_currency = "usd"
timeout = "10s"
poll_interval = "30s"
# cached quotes older than this are not served when the API is down
cache_max_age = "1h"
max_attempts = 3
# consecutive failed requests before the feed stops calling the API for breaker_cooldown
breaker_failures = 5
breaker_cooldown = "1m"

[portfolio]
starting_balance = 10000.0
# daily, weekly, monthly, yearly
mode = "daily"
owner = "local"
liquidation_fee_rate = 0.0

[indicators]
workers = 4
sma_periods = [20, 50, 100, 200]
ema_periods = [12, 26]
rsi_period = 14
macd_fast = 12
macd_slow = 26
macd_signal = 9
oversold = 30.0
overbought = 70.0
# stddev of returns (%) over volatility_period samples; bands for medium/high
volatility_period = 20
volatility_medium = 10.0
volatility_high = 20.0

[trendline]
# pixels; shorter drags are discarded
min_length = 20.0

[logging]
level = "info"
file = true
file_path = "logs/tradesim.log"
max_size = 100
max_backups = 7
max_age = 30

[store]
path = "tradesim.db"

[metrics]
# e.g. ":9090"; empty disables the endpoint
addr = ""
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
