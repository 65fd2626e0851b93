package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"example.com/gymassistant/internal/domain"
)

const gymColumns = `gym_id, name, logo, primary_color, secondary_color, capacity, entry_qr, exit_qr, subdomain`

// GetGym returns the tenant record, or nil when the tenant has none.
func (r *Repository) GetGym(ctx context.Context, tenant domain.TenantKey) (*domain.Gym, error) {
	return inTenantTxResult(ctx, r.pool, tenant, func(tx pgx.Tx) (*domain.Gym, error) {
		gym, err := scanGym(tx.QueryRow(ctx, `SELECT `+gymColumns+` FROM gyms WHERE gym_id=$1`, string(tenant)))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return gym, err
	})
}

// FindGymBySubdomain routes a registration to its tenant.
func (r *Repository) FindGymBySubdomain(ctx context.Context, subdomain string) (*domain.Gym, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+gymColumns+` FROM gyms WHERE subdomain=$1`, strings.ToLower(subdomain))
	gym, err := scanGym(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return gym, err
}

// UpsertGym creates or replaces a tenant record. Used by seeding and tests.
func (r *Repository) UpsertGym(ctx context.Context, gym domain.Gym) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO gyms (`+gymColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (gym_id) DO UPDATE SET name=EXCLUDED.name, logo=EXCLUDED.logo,
             primary_color=EXCLUDED.primary_color, secondary_color=EXCLUDED.secondary_color,
             capacity=EXCLUDED.capacity, entry_qr=EXCLUDED.entry_qr, exit_qr=EXCLUDED.exit_qr,
             subdomain=EXCLUDED.subdomain`,
		string(gym.ID), gym.Name, gym.Logo, gym.PrimaryColor, gym.SecondaryColor, gym.Capacity,
		gym.EntryQR, gym.ExitQR, strings.ToLower(gym.Subdomain))
	return err
}

func scanGym(row pgx.Row) (*domain.Gym, error) {
	var (
		gym domain.Gym
		id  string
	)
	if err := row.Scan(&id, &gym.Name, &gym.Logo, &gym.PrimaryColor, &gym.SecondaryColor, &gym.Capacity, &gym.EntryQR, &gym.ExitQR, &gym.Subdomain); err != nil {
		return nil, err
	}
	gym.ID = domain.TenantKey(id)
	return &gym, nil
}
