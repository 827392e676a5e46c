package repository

import (
	"context"
	"database/sql"
)

// Querier is the subset of database operations shared by *sql.DB and
// *sql.Tx. Repositories are built over a Querier so the checkout engine can
// run them inside a single transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)
