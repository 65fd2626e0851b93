package domain

import "context"

// IdentityRepository persists identities. GetIdentity and FindIdentityByPhone are the
// only unscoped reads: they run before a tenant is known (credential resolution and
// registration). Lookups return nil, nil when nothing matches.
type IdentityRepository interface {
	GetIdentity(ctx context.Context, id string) (*Identity, error)
	FindIdentityByPhone(ctx context.Context, phone string) (*Identity, error)
	CreateIdentity(ctx context.Context, identity Identity) error
	ListIdentitiesByStatus(ctx context.Context, tenant TenantKey, status ApprovalStatus) ([]Identity, error)
	// UpdateIdentity loads the identity inside the tenant, applies mutate and persists the
	// result when mutate reports a change. A missing identity yields ErrNotFound.
	UpdateIdentity(ctx context.Context, tenant TenantKey, id string, mutate func(*Identity) (bool, error)) (*Identity, error)
}

// EntryRepository is the append-only entry ledger.
type EntryRepository interface {
	// CreateEntry appends a record. With singleOpen set it fails with ErrInvalidState
	// when the identity already has an open record.
	CreateEntry(ctx context.Context, tenant TenantKey, entry EntryRecord, singleOpen bool) error
	// UpdateEntry locks the record, applies mutate and persists it in one transaction.
	UpdateEntry(ctx context.Context, tenant TenantKey, id string, mutate func(*EntryRecord) error) (*EntryRecord, error)
	// ListEntries returns records ordered by entry time ascending.
	ListEntries(ctx context.Context, tenant TenantKey, filter EntryFilter) ([]EntryRecord, error)
	// OccupancySnapshot reads the open-record count and the gym capacity of tenant in
	// one transaction. Capacity is zero when the tenant has no gym record.
	OccupancySnapshot(ctx context.Context, tenant TenantKey) (OccupancySnapshot, error)
}

// GymRepository reads tenant records.
type GymRepository interface {
	GetGym(ctx context.Context, tenant TenantKey) (*Gym, error)
	FindGymBySubdomain(ctx context.Context, subdomain string) (*Gym, error)
}

// ProgramRepository stores training programs.
type ProgramRepository interface {
	ListPrograms(ctx context.Context, tenant TenantKey) ([]TrainingProgram, error)
	CreateProgram(ctx context.Context, tenant TenantKey, program TrainingProgram) error
}

// ChatRepository stores group chat messages.
type ChatRepository interface {
	ListMessages(ctx context.Context, tenant TenantKey, cursor *Cursor, limit int) ([]ChatMessage, *Cursor, error)
	CreateMessage(ctx context.Context, tenant TenantKey, message ChatMessage) error
}

// SupplementRepository stores the supplement catalogue.
type SupplementRepository interface {
	ListSupplements(ctx context.Context, tenant TenantKey) ([]Supplement, error)
	CreateSupplement(ctx context.Context, tenant TenantKey, supplement Supplement) error
}

// Repository is the full persistence surface the Service depends on.
type Repository interface {
	IdentityRepository
	EntryRepository
	GymRepository
	ProgramRepository
	ChatRepository
	SupplementRepository
}
