// Package postgres provides the pgx-backed, tenant-scoped repositories.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/gymassistant/internal/domain"
)

// Repository provides Postgres-backed persistence for the gym service and its outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

var _ domain.Repository = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InTenantTx runs fn in a transaction whose app.tenant_id setting is bound to tenant.
// Every tenant-scoped statement of the service goes through it, including the outbox
// and dead-letter writes.
func InTenantTx(ctx context.Context, pool *pgxpool.Pool, tenant domain.TenantKey, fn func(pgx.Tx) error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", string(tenant)); err != nil {
		if rErr := tx.Rollback(ctx); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}

	if err := fn(tx); err != nil {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			return errors.Join(err, rErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

func inTenantTxResult[T any](ctx context.Context, pool *pgxpool.Pool, tenant domain.TenantKey, fn func(pgx.Tx) (T, error)) (T, error) {
	var out T
	err := InTenantTx(ctx, pool, tenant, func(tx pgx.Tx) error {
		var innerErr error
		out, innerErr = fn(tx)
		return innerErr
	})
	return out, err
}
