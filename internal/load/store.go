// Package load is the dependency-aware batch loader. It owns the insert
// order across the facility reference table and the two snapshot tables,
// recovers from foreign-key violations with a compensating profile insert,
// and keeps every insert path idempotent on its primary key.
package load

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Store is the single open connection handle a run owns for its whole
// lifetime. Satisfied by *pgxpool.Pool. Every batch interaction happens
// inside a transaction obtained here; transactions never span batches.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
