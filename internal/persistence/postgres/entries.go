package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"example.com/gymassistant/internal/domain"
	"example.com/gymassistant/internal/events"
	"example.com/gymassistant/internal/observability"
)

const entryColumns = `entry_id, tenant_id, user_id, entry_time, exit_time, duration_min`

// CreateEntry appends a check-in and its entry.recorded event. With singleOpen set the
// identity is serialised through an advisory lock so concurrent check-ins cannot both pass
// the open-record check.
func (r *Repository) CreateEntry(ctx context.Context, tenant domain.TenantKey, entry domain.EntryRecord, singleOpen bool) error {
	err := InTenantTx(ctx, r.pool, tenant, func(tx pgx.Tx) error {
		if singleOpen {
			lockKey := fmt.Sprintf("%s:%s", tenant, entry.IdentityID)
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
				return err
			}
			var openID string
			err := tx.QueryRow(ctx,
				`SELECT entry_id FROM gym_entries WHERE tenant_id=$1 AND user_id=$2 AND exit_time IS NULL LIMIT 1`,
				string(tenant), entry.IdentityID).Scan(&openID)
			switch {
			case err == nil:
				return fmt.Errorf("%w: identity %s already has open entry %s", domain.ErrInvalidState, entry.IdentityID, openID)
			case !errors.Is(err, pgx.ErrNoRows):
				return err
			}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO gym_entries (entry_id, tenant_id, user_id, entry_time) VALUES ($1,$2,$3,$4)`,
			entry.ID, string(tenant), entry.IdentityID, entry.EntryTime); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, outboxRecord{
			tenantID:      string(tenant),
			aggregateType: "entry",
			aggregateID:   entry.ID,
			eventType:     events.TypeEntryRecorded,
			partitionKey:  fmt.Sprintf("%s:%s", tenant, entry.IdentityID),
			payload: events.EntryRecorded{
				EntryID:    entry.ID,
				TenantID:   string(tenant),
				IdentityID: entry.IdentityID,
				EntryTime:  entry.EntryTime,
			},
		})
	})
	if err != nil {
		return err
	}
	observability.RecordEntryRecorded(string(tenant), entry.EntryTime)
	return nil
}

// UpdateEntry locks the record, applies mutate and persists the closing fields together with
// an entry.closed event. Records outside tenant are reported as ErrNotFound.
func (r *Repository) UpdateEntry(ctx context.Context, tenant domain.TenantKey, id string, mutate func(*domain.EntryRecord) error) (*domain.EntryRecord, error) {
	var closed bool
	entry, err := inTenantTxResult(ctx, r.pool, tenant, func(tx pgx.Tx) (*domain.EntryRecord, error) {
		row := tx.QueryRow(ctx,
			`SELECT `+entryColumns+` FROM gym_entries WHERE tenant_id=$1 AND entry_id=$2 FOR UPDATE`,
			string(tenant), id)
		entry, err := scanEntry(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: entry %s", domain.ErrNotFound, id)
		}
		if err != nil {
			return nil, err
		}

		wasOpen := entry.Open()
		if err := mutate(entry); err != nil {
			return nil, err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE gym_entries SET exit_time=$3, duration_min=$4 WHERE tenant_id=$1 AND entry_id=$2`,
			string(tenant), id, entry.ExitTime, entry.DurationMin); err != nil {
			return nil, err
		}

		if wasOpen && !entry.Open() {
			closed = true
			if err := insertOutbox(ctx, tx, outboxRecord{
				tenantID:      string(tenant),
				aggregateType: "entry",
				aggregateID:   entry.ID,
				eventType:     events.TypeEntryClosed,
				partitionKey:  fmt.Sprintf("%s:%s", tenant, entry.IdentityID),
				payload: events.EntryClosed{
					EntryID:     entry.ID,
					TenantID:    string(tenant),
					IdentityID:  entry.IdentityID,
					EntryTime:   entry.EntryTime,
					ExitTime:    *entry.ExitTime,
					DurationMin: *entry.DurationMin,
				},
			}); err != nil {
				return nil, err
			}
		}
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	if closed {
		observability.RecordEntryClosed(string(tenant), *entry.DurationMin)
	}
	return entry, nil
}

// ListEntries returns ledger records of tenant ordered by entry time ascending.
func (r *Repository) ListEntries(ctx context.Context, tenant domain.TenantKey, filter domain.EntryFilter) ([]domain.EntryRecord, error) {
	args := []any{string(tenant)}
	query := `SELECT ` + entryColumns + ` FROM gym_entries WHERE tenant_id=$1`
	if filter.IdentityID != "" {
		args = append(args, filter.IdentityID)
		query += fmt.Sprintf(` AND user_id=$%d`, len(args))
	}
	if filter.OpenOnly {
		query += ` AND exit_time IS NULL`
	}
	query += ` ORDER BY entry_time, entry_id`

	return inTenantTxResult(ctx, r.pool, tenant, func(tx pgx.Tx) ([]domain.EntryRecord, error) {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		results := make([]domain.EntryRecord, 0)
		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return nil, err
			}
			results = append(results, *entry)
		}
		return results, rows.Err()
	})
}

// OccupancySnapshot counts open records of tenant and reads its capacity in one statement.
func (r *Repository) OccupancySnapshot(ctx context.Context, tenant domain.TenantKey) (domain.OccupancySnapshot, error) {
	return inTenantTxResult(ctx, r.pool, tenant, func(tx pgx.Tx) (domain.OccupancySnapshot, error) {
		var snapshot domain.OccupancySnapshot
		err := tx.QueryRow(ctx,
			`SELECT (SELECT COUNT(*) FROM gym_entries WHERE tenant_id=$1 AND exit_time IS NULL),
                    COALESCE((SELECT capacity FROM gyms WHERE gym_id=$1), 0)`,
			string(tenant)).Scan(&snapshot.Open, &snapshot.Capacity)
		return snapshot, err
	})
}

func scanEntry(row pgx.Row) (*domain.EntryRecord, error) {
	var (
		entry  domain.EntryRecord
		tenant string
	)
	if err := row.Scan(&entry.ID, &tenant, &entry.IdentityID, &entry.EntryTime, &entry.ExitTime, &entry.DurationMin); err != nil {
		return nil, err
	}
	entry.TenantKey = domain.TenantKey(tenant)
	entry.EntryTime = entry.EntryTime.UTC()
	if entry.ExitTime != nil {
		exit := entry.ExitTime.UTC()
		entry.ExitTime = &exit
	}
	return &entry, nil
}
