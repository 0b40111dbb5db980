// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"tradesim/internal/models"
)

// Ledger is the read side of the account/position ledger. Every query is scoped
// to one game mode; modes never share balances or positions.
type Ledger interface {
	// Account returns the owner's balances, or errors.ErrDataNotFound.
	Account(ctx context.Context, mode models.GameMode, owner string) (*models.Account, error)
	// OpenPositions returns the owner's open positions, oldest first.
	OpenPositions(ctx context.Context, mode models.GameMode, owner string) ([]models.Position, error)
	// Accounts returns every account in the mode for leaderboard ranking.
	Accounts(ctx context.Context, mode models.GameMode) ([]models.Account, error)
	// Snapshot combines Account and OpenPositions.
	Snapshot(ctx context.Context, mode models.GameMode, owner string) (*models.Snapshot, error)
}

// LedgerWriter persists snapshots, e.g. from an imported file.
type LedgerWriter interface {
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
}

// DataStore is everything the SQLite store offers.
type DataStore interface {
	Ledger
	LedgerWriter

	// Price samples, keyed by feed source.
	SaveSamples(ctx context.Context, source string, samples []models.PriceSample) error
	GetSamples(ctx context.Context, source string, fromMillis, toMillis int64) ([]models.PriceSample, error)
	LatestSample(ctx context.Context, source string) (*models.PriceSample, error)

	// Lifecycle
	Close() error
}
