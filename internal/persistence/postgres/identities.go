package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"example.com/gymassistant/internal/domain"
	"example.com/gymassistant/internal/events"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const identityColumns = `user_id, tenant_id, phone_number, name, role, status, training_group, created_at`

// GetIdentity resolves an identity by id across tenants. Used only to authenticate.
func (r *Repository) GetIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE user_id=$1`, id)
	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return identity, err
}

// FindIdentityByPhone resolves an identity by its unique phone number.
func (r *Repository) FindIdentityByPhone(ctx context.Context, phone string) (*domain.Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE phone_number=$1`, phone)
	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return identity, err
}

// CreateIdentity inserts a new identity. A duplicate phone number yields ErrInvalidState.
func (r *Repository) CreateIdentity(ctx context.Context, identity domain.Identity) error {
	return InTenantTx(ctx, r.pool, identity.TenantKey, func(tx pgx.Tx) error {
		var group *string
		if identity.TrainingGroup != nil {
			value := string(*identity.TrainingGroup)
			group = &value
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO users (`+identityColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			identity.ID,
			string(identity.TenantKey),
			identity.PhoneNumber,
			identity.Name,
			string(identity.Role),
			string(identity.Status),
			group,
			identity.CreatedAt,
		)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: phone number already registered", domain.ErrInvalidState)
		}
		return err
	})
}

// ListIdentitiesByStatus returns identities of tenant in status, oldest first.
func (r *Repository) ListIdentitiesByStatus(ctx context.Context, tenant domain.TenantKey, status domain.ApprovalStatus) ([]domain.Identity, error) {
	return inTenantTxResult(ctx, r.pool, tenant, func(tx pgx.Tx) ([]domain.Identity, error) {
		rows, err := tx.Query(ctx,
			`SELECT `+identityColumns+` FROM users WHERE tenant_id=$1 AND status=$2 ORDER BY created_at, user_id`,
			string(tenant), string(status))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		results := make([]domain.Identity, 0)
		for rows.Next() {
			identity, err := scanIdentity(rows)
			if err != nil {
				return nil, err
			}
			results = append(results, *identity)
		}
		return results, rows.Err()
	})
}

// UpdateIdentity locks the identity row within tenant, applies mutate and persists a changed
// status together with an identity.status_changed outbox event.
func (r *Repository) UpdateIdentity(ctx context.Context, tenant domain.TenantKey, id string, mutate func(*domain.Identity) (bool, error)) (*domain.Identity, error) {
	return inTenantTxResult(ctx, r.pool, tenant, func(tx pgx.Tx) (*domain.Identity, error) {
		row := tx.QueryRow(ctx,
			`SELECT `+identityColumns+` FROM users WHERE tenant_id=$1 AND user_id=$2 FOR UPDATE`,
			string(tenant), id)
		identity, err := scanIdentity(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: identity %s", domain.ErrNotFound, id)
		}
		if err != nil {
			return nil, err
		}

		changed, err := mutate(identity)
		if err != nil {
			return nil, err
		}
		if !changed {
			return identity, nil
		}

		if _, err := tx.Exec(ctx,
			`UPDATE users SET status=$3, name=$4 WHERE tenant_id=$1 AND user_id=$2`,
			string(tenant), id, string(identity.Status), identity.Name); err != nil {
			return nil, err
		}

		if err := insertOutbox(ctx, tx, outboxRecord{
			tenantID:      string(tenant),
			aggregateType: "identity",
			aggregateID:   identity.ID,
			eventType:     events.TypeIdentityStatusChanged,
			partitionKey:  identity.ID,
			payload: events.IdentityStatusChanged{
				IdentityID: identity.ID,
				TenantID:   string(tenant),
				Status:     string(identity.Status),
				OccurredAt: time.Now().UTC(),
			},
		}); err != nil {
			return nil, err
		}
		return identity, nil
	})
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var (
		identity domain.Identity
		tenant   string
		role     string
		status   string
		group    *string
	)
	if err := row.Scan(&identity.ID, &tenant, &identity.PhoneNumber, &identity.Name, &role, &status, &group, &identity.CreatedAt); err != nil {
		return nil, err
	}
	identity.TenantKey = domain.TenantKey(tenant)

	var err error
	if identity.Role, err = domain.ParseRole(role); err != nil {
		return nil, err
	}
	if identity.Status, err = domain.ParseApprovalStatus(status); err != nil {
		return nil, err
	}
	if group != nil {
		parsed, err := domain.ParseTrainingGroup(*group)
		if err != nil {
			return nil, err
		}
		identity.TrainingGroup = &parsed
	}
	return &identity, nil
}
