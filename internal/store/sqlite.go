// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tradesim/internal/errors"
	"tradesim/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Price samples fetched from a feed, one row per source and instant
	CREATE TABLE IF NOT EXISTS price_samples (
		source TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		price REAL NOT NULL,
		volume REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (source, timestamp)
	);

	-- Account balances per game mode
	CREATE TABLE IF NOT EXISTS accounts (
		mode TEXT NOT NULL,
		owner TEXT NOT NULL,
		cash_balance REAL NOT NULL,
		asset_balance REAL NOT NULL,
		starting_balance REAL NOT NULL,
		last_updated DATETIME,
		PRIMARY KEY (mode, owner)
	);

	-- Leveraged positions; ids are only unique within one mode and owner
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT NOT NULL,
		mode TEXT NOT NULL,
		owner TEXT NOT NULL,
		direction TEXT NOT NULL,
		leverage REAL NOT NULL,
		entry_price REAL NOT NULL,
		notional_amount REAL NOT NULL,
		margin REAL NOT NULL,
		opened_at DATETIME,
		is_open INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (mode, owner, id)
	);

	CREATE INDEX IF NOT EXISTS idx_positions_owner ON positions(mode, owner, is_open);
	`

	legacy, err := s.renameLegacyPositions()
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	if err := s.addSampleVolume(); err != nil {
		return err
	}
	if !legacy {
		return nil
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO positions
			(id, mode, owner, direction, leverage, entry_price, notional_amount, margin, opened_at, is_open)
		SELECT id, mode, owner, direction, leverage, entry_price, notional_amount, margin, opened_at, is_open
		FROM positions_v1;
		DROP TABLE positions_v1;
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate positions: %w", err)
	}
	return nil
}

// addSampleVolume adds the volume column to price_samples created without it.
func (s *SQLiteStore) addSampleVolume() error {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('price_samples') WHERE name = 'volume'`).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	if _, err := s.db.Exec(`ALTER TABLE price_samples ADD COLUMN volume REAL NOT NULL DEFAULT 0`); err != nil {
		return fmt.Errorf("failed to add volume column: %w", err)
	}
	return nil
}

// renameLegacyPositions moves a positions table keyed by id alone out of the
// way so the scoped table can be created and refilled.
func (s *SQLiteStore) renameLegacyPositions() (bool, error) {
	var keyCols int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('positions') WHERE pk > 0`).Scan(&keyCols)
	if err != nil {
		return false, fmt.Errorf("failed to inspect positions: %w", err)
	}
	if keyCols != 1 {
		return false, nil
	}
	_, err = s.db.Exec(`
		ALTER TABLE positions RENAME TO positions_v1;
		DROP INDEX IF EXISTS idx_positions_owner;
	`)
	if err != nil {
		return false, fmt.Errorf("failed to migrate positions: %w", err)
	}
	return true, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSamples upserts price samples for a source.
func (s *SQLiteStore) SaveSamples(ctx context.Context, source string, samples []models.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO price_samples (source, timestamp, price, volume)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range samples {
		if _, err := stmt.ExecContext(ctx, source, p.Timestamp, p.Price, p.Volume); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSamples retrieves samples in [fromMillis, toMillis], oldest first.
func (s *SQLiteStore) GetSamples(ctx context.Context, source string, fromMillis, toMillis int64) ([]models.PriceSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, price, volume
		FROM price_samples
		WHERE source = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, source, fromMillis, toMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []models.PriceSample
	for rows.Next() {
		var p models.PriceSample
		if err := rows.Scan(&p.Timestamp, &p.Price, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating samples: %w", err)
	}

	return samples, nil
}

// LatestSample returns the most recent sample for a source, or nil if none exist.
func (s *SQLiteStore) LatestSample(ctx context.Context, source string) (*models.PriceSample, error) {
	var p models.PriceSample
	err := s.db.QueryRowContext(ctx, `
		SELECT timestamp, price, volume FROM price_samples
		WHERE source = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, source).Scan(&p.Timestamp, &p.Price, &p.Volume)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest sample: %w", err)
	}
	return &p, nil
}

// SaveSnapshot replaces the owner's account and position list in one mode.
// Stored positions missing from the snapshot are marked closed.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if _, err := models.ParseGameMode(string(snap.Mode)); err != nil {
		return errors.NewValidationError("mode", snap.Mode, err.Error())
	}
	if snap.Account.Owner == "" {
		return errors.NewValidationError("owner", snap.Account.Owner, "owner is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	a := snap.Account
	updated := a.LastUpdated
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO accounts (mode, owner, cash_balance, asset_balance, starting_balance, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(snap.Mode), a.Owner, a.CashBalance, a.AssetBalance, a.Starting(), updated)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	// The snapshot is the full position list; anything it omits is closed.
	_, err = tx.ExecContext(ctx, `
		UPDATE positions SET is_open = 0 WHERE mode = ? AND owner = ?
	`, string(snap.Mode), a.Owner)
	if err != nil {
		return fmt.Errorf("failed to close stale positions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO positions
			(id, mode, owner, direction, leverage, entry_price, notional_amount, margin, opened_at, is_open)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range snap.Positions {
		if p.ID == "" {
			return errors.NewValidationError("position.id", p.ID, "position id is required")
		}
		if !p.Direction.Valid() {
			return errors.NewPositionError(p.ID, "direction", float64(p.Direction), "must be long or short")
		}
		_, err := stmt.ExecContext(ctx, p.ID, string(snap.Mode), a.Owner, p.Direction.String(),
			p.Leverage, p.EntryPrice, p.NotionalAmount, p.Margin, p.OpenedAt, p.IsOpen)
		if err != nil {
			return fmt.Errorf("failed to save position %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Account returns the owner's balances in a mode.
func (s *SQLiteStore) Account(ctx context.Context, mode models.GameMode, owner string) (*models.Account, error) {
	var a models.Account
	var updated sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT owner, cash_balance, asset_balance, starting_balance, last_updated
		FROM accounts WHERE mode = ? AND owner = ?
	`, string(mode), owner).Scan(&a.Owner, &a.CashBalance, &a.AssetBalance, &a.StartingBalance, &updated)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrDataNotFound, "account %s/%s", mode, owner)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseError, err.Error())
	}
	if updated.Valid {
		a.LastUpdated = updated.Time
	}
	return &a, nil
}

// OpenPositions returns the owner's open positions in a mode, oldest first.
func (s *SQLiteStore) OpenPositions(ctx context.Context, mode models.GameMode, owner string) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, direction, leverage, entry_price, notional_amount, margin, opened_at, is_open
		FROM positions
		WHERE mode = ? AND owner = ? AND is_open = 1
		ORDER BY opened_at ASC, id ASC
	`, string(mode), owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		var dir string
		var opened sql.NullTime
		if err := rows.Scan(&p.ID, &dir, &p.Leverage, &p.EntryPrice, &p.NotionalAmount, &p.Margin, &opened, &p.IsOpen); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		if p.Direction, err = models.ParseDirection(dir); err != nil {
			return nil, errors.NewPositionError(p.ID, "direction", 0, err.Error())
		}
		if opened.Valid {
			p.OpenedAt = opened.Time
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// Accounts returns every account in a mode, ordered by owner.
func (s *SQLiteStore) Accounts(ctx context.Context, mode models.GameMode) ([]models.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, cash_balance, asset_balance, starting_balance, last_updated
		FROM accounts WHERE mode = ?
		ORDER BY owner ASC
	`, string(mode))
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		var updated sql.NullTime
		if err := rows.Scan(&a.Owner, &a.CashBalance, &a.AssetBalance, &a.StartingBalance, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if updated.Valid {
			a.LastUpdated = updated.Time
		}
		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// Snapshot loads the owner's account and open positions.
func (s *SQLiteStore) Snapshot(ctx context.Context, mode models.GameMode, owner string) (*models.Snapshot, error) {
	account, err := s.Account(ctx, mode, owner)
	if err != nil {
		return nil, err
	}
	positions, err := s.OpenPositions(ctx, mode, owner)
	if err != nil {
		return nil, err
	}
	return &models.Snapshot{Mode: mode, Account: *account, Positions: positions}, nil
}
