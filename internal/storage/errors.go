package storage

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")

	// ErrSchemaMissing indicates a required table or view does not exist.
	// Callers degrade to a no-op pass instead of crashing; the remediation
	// is running the schema migrations.
	ErrSchemaMissing = errors.New("storage: schema object missing")
)

// undefined_table per the PostgreSQL error code reference.
const pgUndefinedTable = "42P01"

// classifyError maps driver errors onto the package sentinels so callers
// branch on error kind rather than message text.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%s: %w: %s", op, ErrSchemaMissing, pgErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsSchemaMissing reports whether err stems from a missing table or view.
func IsSchemaMissing(err error) bool {
	return errors.Is(err, ErrSchemaMissing)
}
