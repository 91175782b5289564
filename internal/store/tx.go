package store

import (
	"context"
	"database/sql"
)

// querier is the subset of *sql.DB and *sql.Tx the read and write helpers use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is a write transaction handed to the function passed to Store.Update.
// It exposes the same reads as Store plus every mutation; mutations are only
// reachable through a Tx.
type Tx struct {
	tx *sql.Tx
}

var (
	_ querier = (*sql.DB)(nil)
	_ querier = (*sql.Tx)(nil)
)
