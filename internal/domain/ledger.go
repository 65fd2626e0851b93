package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordEntry appends an open record for the actor. A zero entryTime means now.
func (s *Service) RecordEntry(ctx context.Context, actor *Identity, entryTime time.Time) (*EntryRecord, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if entryTime.IsZero() {
		entryTime = s.clock()
	}

	record := EntryRecord{
		ID:         uuid.NewString(),
		IdentityID: actor.ID,
		TenantKey:  actor.TenantKey,
		EntryTime:  entryTime.UTC(),
	}
	if err := s.repo.CreateEntry(ctx, actor.TenantKey, record, s.singleOpenEntry); err != nil {
		return nil, err
	}
	return &record, nil
}

// RecordExit closes an open record of the actor's tenant. Members may only close
// their own records; admins may close any record in their tenant.
func (s *Service) RecordExit(ctx context.Context, actor *Identity, recordID string, exitTime time.Time) (*EntryRecord, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if recordID == "" {
		return nil, fmt.Errorf("%w: entry id is required", ErrValidation)
	}
	if exitTime.IsZero() {
		exitTime = s.clock()
	}

	record, err := s.repo.UpdateEntry(ctx, actor.TenantKey, recordID, func(rec *EntryRecord) error {
		if rec.IdentityID != actor.ID && !actor.IsAdmin() {
			return fmt.Errorf("%w: entry %s belongs to another identity", ErrForbidden, rec.ID)
		}
		return rec.Close(exitTime)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListEntries returns ledger records ordered by entry time. An empty filter lists the
// actor's own records; other identities and the whole tenant are admin-only.
func (s *Service) ListEntries(ctx context.Context, actor *Identity, filter EntryFilter, wholeTenant bool) ([]EntryRecord, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	switch {
	case wholeTenant:
		if err := RequireAdmin(actor); err != nil {
			return nil, err
		}
		filter.IdentityID = ""
	case filter.IdentityID == "":
		filter.IdentityID = actor.ID
	case filter.IdentityID != actor.ID:
		if err := RequireAdmin(actor); err != nil {
			return nil, err
		}
	}
	return s.repo.ListEntries(ctx, actor.TenantKey, filter)
}

// ComputeOccupancy derives the current headcount view of a tenant. It only reads.
func (s *Service) ComputeOccupancy(ctx context.Context, tenant TenantKey) (Occupancy, error) {
	snapshot, err := s.repo.OccupancySnapshot(ctx, tenant)
	if err != nil {
		return Occupancy{}, err
	}

	capacity := snapshot.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return NewOccupancy(snapshot.Open, capacity), nil
}

// Occupancy is ComputeOccupancy for the actor's tenant.
func (s *Service) Occupancy(ctx context.Context, actor *Identity) (Occupancy, error) {
	if actor == nil {
		return Occupancy{}, ErrUnauthenticated
	}
	return s.ComputeOccupancy(ctx, actor.TenantKey)
}
