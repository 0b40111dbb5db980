// Package models provides domain models for the trading simulator.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultStartingBalance is the cash every account starts a game with.
const DefaultStartingBalance = 10000.0

// GameMode partitions accounts and positions into independent competitions.
type GameMode string

const (
	GameModeDaily   GameMode = "daily"
	GameModeWeekly  GameMode = "weekly"
	GameModeMonthly GameMode = "monthly"
	GameModeYearly  GameMode = "yearly"
)

// GameModes lists every supported mode in display order.
var GameModes = []GameMode{GameModeDaily, GameModeWeekly, GameModeMonthly, GameModeYearly}

// ParseGameMode converts a string into a GameMode.
func ParseGameMode(s string) (GameMode, error) {
	mode := GameMode(strings.ToLower(strings.TrimSpace(s)))
	for _, m := range GameModes {
		if m == mode {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown game mode %q (must be daily, weekly, monthly or yearly)", s)
}

// PriceSample is one observation from the price feed.
type PriceSample struct {
	Timestamp int64   `json:"timestamp" yaml:"timestamp"` // epoch millis
	Price     float64 `json:"price" yaml:"price"`
	// Volume is the trailing 24h traded volume in the quote currency, 0 when unknown.
	Volume float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
}

// Time returns the sample timestamp as a time.Time.
func (s PriceSample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Prices extracts the price column from a series.
func Prices(samples []PriceSample) []float64 {
	prices := make([]float64, len(samples))
	for i, s := range samples {
		prices[i] = s.Price
	}
	return prices
}

// ValidateSeries checks that prices are non-negative and timestamps never go backwards.
func ValidateSeries(samples []PriceSample) error {
	for i, s := range samples {
		if s.Price < 0 {
			return fmt.Errorf("sample %d: negative price %v", i, s.Price)
		}
		if i > 0 && s.Timestamp < samples[i-1].Timestamp {
			return fmt.Errorf("sample %d: timestamp %d before %d", i, s.Timestamp, samples[i-1].Timestamp)
		}
	}
	return nil
}

// Quote is a current price observation.
type Quote struct {
	Price     float64   `json:"price"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}
