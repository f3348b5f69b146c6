package history

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] moves a database from user_version i to i+1. Append only.
var migrations = []string{
	schemaSQL,
}

// ErrSchemaMismatch indicates the database was written by a newer vinscan.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func schemaVersion() int { return len(migrations) }

// migrate applies pending migrations, tracking progress in PRAGMA
// user_version. Each step commits with its version bump.
func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if current > schemaVersion() {
		return fmt.Errorf("%w: database has version %d, this build knows %d (move %s aside)",
			ErrSchemaMismatch, current, schemaVersion(), s.path)
	}

	for version := current; version < schemaVersion(); version++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[version]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", version+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record schema version %d: %w", version+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version+1, err)
		}
	}
	return nil
}
