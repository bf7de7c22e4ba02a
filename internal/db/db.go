// Package db is the hand-written pgx query layer underneath every
// pkg/*/store.go. It follows the shape the teacher's own store files
// import (db.DBTX, db.New, db.Queries, db.<Table> row types,
// db.Create<X>Params param types) without a sqlc code generator in the
// loop: the query methods below are written by hand in that same shape.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, letting callers pass
// either a pool or an in-flight transaction to New.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries wraps a DBTX with the hand-written statements used across the
// monitoring core's stores.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given connection or transaction.
func New(dbtx DBTX) *Queries {
	return &Queries{db: dbtx}
}

// WithTx returns a Queries bound to tx, for callers composing multiple
// statements atomically (e.g. ticket creation + alert linking).
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
