// Package db provides PostgreSQL-backed repository implementations for the
// riskwatch service. All repositories accept a DBTX interface that is
// satisfied by both *pgxpool.Pool (for normal queries) and pgx.Tx (for
// transactional execution), enabling clean transaction support.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"riskwatch/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry bundles the concrete repositories behind types.RepositoryRegistry.
type Registry struct {
	indicators *IndicatorRepository
	results    *ResultRepository
}

// NewRegistry creates repositories sharing one connection source.
func NewRegistry(db DBTX) *Registry {
	return &Registry{
		indicators: NewIndicatorRepository(db),
		results:    NewResultRepository(db),
	}
}

// Indicators returns the indicator repository.
func (r *Registry) Indicators() types.IndicatorRepository { return r.indicators }

// Results returns the result repository.
func (r *Registry) Results() types.ResultRepository { return r.results }
