// Package memory provides an in-process repository for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"example.com/gymassistant/internal/domain"
	"example.com/gymassistant/internal/observability"
)

// Store keeps every aggregate in maps guarded by a single RWMutex. Tenant scoping is
// applied on each read and write exactly as the postgres repository does.
type Store struct {
	mu          sync.RWMutex
	gyms        map[domain.TenantKey]domain.Gym
	identities  map[string]domain.Identity
	entries     map[string]domain.EntryRecord
	programs    []domain.TrainingProgram
	messages    []domain.ChatMessage
	supplements []domain.Supplement
}

var _ domain.Repository = (*Store)(nil)

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		gyms:       make(map[domain.TenantKey]domain.Gym),
		identities: make(map[string]domain.Identity),
		entries:    make(map[string]domain.EntryRecord),
	}
}

// PutGym inserts or replaces a gym.
func (s *Store) PutGym(gym domain.Gym) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gym.Subdomain = strings.ToLower(gym.Subdomain)
	s.gyms[gym.ID] = gym
}

// PutIdentity inserts or replaces an identity.
func (s *Store) PutIdentity(identity domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.ID] = identity
}

// GetIdentity implements domain.IdentityRepository.
func (s *Store) GetIdentity(_ context.Context, id string) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[id]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

// FindIdentityByPhone implements domain.IdentityRepository.
func (s *Store) FindIdentityByPhone(_ context.Context, phone string) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, identity := range s.identities {
		if identity.PhoneNumber == phone {
			found := identity
			return &found, nil
		}
	}
	return nil, nil
}

// CreateIdentity implements domain.IdentityRepository.
func (s *Store) CreateIdentity(_ context.Context, identity domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.identities {
		if existing.PhoneNumber == identity.PhoneNumber {
			return fmt.Errorf("%w: phone number already registered", domain.ErrInvalidState)
		}
	}
	s.identities[identity.ID] = identity
	return nil
}

// ListIdentitiesByStatus implements domain.IdentityRepository.
func (s *Store) ListIdentitiesByStatus(_ context.Context, tenant domain.TenantKey, status domain.ApprovalStatus) ([]domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]domain.Identity, 0)
	for _, identity := range s.identities {
		if identity.TenantKey == tenant && identity.Status == status {
			results = append(results, identity)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}

// UpdateIdentity implements domain.IdentityRepository.
func (s *Store) UpdateIdentity(_ context.Context, tenant domain.TenantKey, id string, mutate func(*domain.Identity) (bool, error)) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[id]
	if !ok || identity.TenantKey != tenant {
		return nil, fmt.Errorf("%w: identity %s", domain.ErrNotFound, id)
	}
	changed, err := mutate(&identity)
	if err != nil {
		return nil, err
	}
	if changed {
		s.identities[id] = identity
	}
	return &identity, nil
}

// CreateEntry implements domain.EntryRepository.
func (s *Store) CreateEntry(_ context.Context, tenant domain.TenantKey, entry domain.EntryRecord, singleOpen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if singleOpen {
		for _, existing := range s.entries {
			if existing.TenantKey == tenant && existing.IdentityID == entry.IdentityID && existing.Open() {
				return fmt.Errorf("%w: identity %s already has open entry %s", domain.ErrInvalidState, entry.IdentityID, existing.ID)
			}
		}
	}
	entry.TenantKey = tenant
	s.entries[entry.ID] = entry
	observability.RecordEntryRecorded(string(tenant), entry.EntryTime)
	return nil
}

// UpdateEntry implements domain.EntryRepository.
func (s *Store) UpdateEntry(_ context.Context, tenant domain.TenantKey, id string, mutate func(*domain.EntryRecord) error) (*domain.EntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok || entry.TenantKey != tenant {
		return nil, fmt.Errorf("%w: entry %s", domain.ErrNotFound, id)
	}
	wasOpen := entry.Open()
	if err := mutate(&entry); err != nil {
		return nil, err
	}
	s.entries[id] = entry
	if wasOpen && !entry.Open() {
		observability.RecordEntryClosed(string(tenant), *entry.DurationMin)
	}
	return &entry, nil
}

// ListEntries implements domain.EntryRepository.
func (s *Store) ListEntries(_ context.Context, tenant domain.TenantKey, filter domain.EntryFilter) ([]domain.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]domain.EntryRecord, 0)
	for _, entry := range s.entries {
		if entry.TenantKey != tenant {
			continue
		}
		if filter.IdentityID != "" && entry.IdentityID != filter.IdentityID {
			continue
		}
		if filter.OpenOnly && !entry.Open() {
			continue
		}
		results = append(results, entry)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].EntryTime.Equal(results[j].EntryTime) {
			return results[i].ID < results[j].ID
		}
		return results[i].EntryTime.Before(results[j].EntryTime)
	})
	return results, nil
}

// OccupancySnapshot implements domain.EntryRepository.
func (s *Store) OccupancySnapshot(_ context.Context, tenant domain.TenantKey) (domain.OccupancySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snapshot domain.OccupancySnapshot
	for _, entry := range s.entries {
		if entry.TenantKey == tenant && entry.Open() {
			snapshot.Open++
		}
	}
	if gym, ok := s.gyms[tenant]; ok {
		snapshot.Capacity = gym.Capacity
	}
	return snapshot, nil
}

// GetGym implements domain.GymRepository.
func (s *Store) GetGym(_ context.Context, tenant domain.TenantKey) (*domain.Gym, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gym, ok := s.gyms[tenant]
	if !ok {
		return nil, nil
	}
	return &gym, nil
}

// FindGymBySubdomain implements domain.GymRepository.
func (s *Store) FindGymBySubdomain(_ context.Context, subdomain string) (*domain.Gym, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, gym := range s.gyms {
		if gym.Subdomain == strings.ToLower(subdomain) {
			found := gym
			return &found, nil
		}
	}
	return nil, nil
}

// ListPrograms implements domain.ProgramRepository.
func (s *Store) ListPrograms(_ context.Context, tenant domain.TenantKey) ([]domain.TrainingProgram, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]domain.TrainingProgram, 0)
	for _, program := range s.programs {
		if program.TenantKey == tenant {
			results = append(results, program)
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Date.Before(results[j].Date) })
	return results, nil
}

// CreateProgram implements domain.ProgramRepository.
func (s *Store) CreateProgram(_ context.Context, tenant domain.TenantKey, program domain.TrainingProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	program.TenantKey = tenant
	s.programs = append(s.programs, program)
	return nil
}

// ListMessages implements domain.ChatRepository.
func (s *Store) ListMessages(_ context.Context, tenant domain.TenantKey, cursor *domain.Cursor, limit int) ([]domain.ChatMessage, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matching := make([]domain.ChatMessage, 0)
	for _, message := range s.messages {
		if message.TenantKey != tenant {
			continue
		}
		if cursor != nil && !after(message, *cursor) {
			continue
		}
		matching = append(matching, message)
	}
	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].SentAt.Equal(matching[j].SentAt) {
			return matching[i].ID < matching[j].ID
		}
		return matching[i].SentAt.Before(matching[j].SentAt)
	})
	if limit > 0 && len(matching) > limit {
		matching = matching[:limit]
	}

	var next *domain.Cursor
	if limit > 0 && len(matching) == limit {
		last := matching[len(matching)-1]
		next = &domain.Cursor{At: last.SentAt, ID: last.ID}
	}
	return matching, next, nil
}

func after(message domain.ChatMessage, cursor domain.Cursor) bool {
	if message.SentAt.Equal(cursor.At) {
		return message.ID > cursor.ID
	}
	return message.SentAt.After(cursor.At)
}

// CreateMessage implements domain.ChatRepository.
func (s *Store) CreateMessage(_ context.Context, tenant domain.TenantKey, message domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	message.TenantKey = tenant
	s.messages = append(s.messages, message)
	return nil
}

// ListSupplements implements domain.SupplementRepository.
func (s *Store) ListSupplements(_ context.Context, tenant domain.TenantKey) ([]domain.Supplement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]domain.Supplement, 0)
	for _, supplement := range s.supplements {
		if supplement.TenantKey == tenant {
			results = append(results, supplement)
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

// CreateSupplement implements domain.SupplementRepository.
func (s *Store) CreateSupplement(_ context.Context, tenant domain.TenantKey, supplement domain.Supplement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	supplement.TenantKey = tenant
	s.supplements = append(s.supplements, supplement)
	return nil
}
