package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the side of a leveraged position.
type Direction int

const (
	Long Direction = iota + 1
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Valid reports whether d is one of the two defined directions.
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// ParseDirection converts "long"/"short" into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long":
		return Long, nil
	case "short":
		return Short, nil
	default:
		return 0, fmt.Errorf("unknown position direction %q (must be long or short)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("cannot marshal %s", d)
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Position is one leveraged exposure to the traded asset.
type Position struct {
	ID             string    `json:"id" yaml:"id"`
	Direction      Direction `json:"direction" yaml:"direction"`
	Leverage       float64   `json:"leverage" yaml:"leverage"`
	EntryPrice     float64   `json:"entry_price" yaml:"entry_price"`
	NotionalAmount float64   `json:"notional_amount" yaml:"notional_amount"`
	Margin         float64   `json:"margin" yaml:"margin"`
	OpenedAt       time.Time `json:"opened_at" yaml:"opened_at"`
	IsOpen         bool      `json:"is_open" yaml:"is_open"`
}

// NewPosition opens a position, deriving its margin from notional, entry and leverage.
func NewPosition(id string, dir Direction, leverage, entryPrice, notional float64, openedAt time.Time) Position {
	var margin float64
	if leverage > 0 {
		margin = notional * entryPrice / leverage
	}
	return Position{
		ID:             id,
		Direction:      dir,
		Leverage:       leverage,
		EntryPrice:     entryPrice,
		NotionalAmount: notional,
		Margin:         margin,
		OpenedAt:       openedAt,
		IsOpen:         true,
	}
}

// Close marks the position closed. Closing is terminal.
func (p *Position) Close() {
	p.IsOpen = false
}

// OpenPositions filters the open positions, preserving order.
func OpenPositions(positions []Position) []Position {
	open := make([]Position, 0, len(positions))
	for _, p := range positions {
		if p.IsOpen {
			open = append(open, p)
		}
	}
	return open
}

// Account is a read-only snapshot of a player's balances in one game mode.
type Account struct {
	Owner           string    `json:"owner" yaml:"owner"`
	CashBalance     float64   `json:"cash_balance" yaml:"cash_balance"`
	AssetBalance    float64   `json:"asset_balance" yaml:"asset_balance"`
	StartingBalance float64   `json:"starting_balance" yaml:"starting_balance"`
	LastUpdated     time.Time `json:"last_updated" yaml:"last_updated"`
}

// Starting returns the account's starting balance, falling back to the default.
func (a Account) Starting() float64 {
	return a.StartingOr(DefaultStartingBalance)
}

// StartingOr returns the account's starting balance, or def when the account
// carries none. A non-positive def means DefaultStartingBalance.
func (a Account) StartingOr(def float64) float64 {
	if a.StartingBalance > 0 {
		return a.StartingBalance
	}
	if def > 0 {
		return def
	}
	return DefaultStartingBalance
}

// Snapshot is everything the ledger reports for one player in one mode.
type Snapshot struct {
	Mode      GameMode   `json:"mode" yaml:"mode"`
	Account   Account    `json:"account" yaml:"account"`
	Positions []Position `json:"positions" yaml:"positions"`
}
