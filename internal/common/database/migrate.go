package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed migrations/001_status_tracking.sql
var statusTrackingMigration string

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, statusTrackingMigration); err != nil {
		return fmt.Errorf("apply 001_status_tracking: %w", err)
	}
	return nil
}
