// Package domain defines the business logic for the gym service.
package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMemberName is given to identities created by phone verification.
const DefaultMemberName = "New member"

// Service orchestrates gym workflows. Every tenant-scoped method takes the acting
// Identity and derives the tenant key from it.
type Service struct {
	repo            Repository
	now             func() time.Time
	singleOpenEntry bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for defaulted timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSingleOpenEntry rejects a check-in while the identity still has an open record.
func WithSingleOpenEntry(enabled bool) Option {
	return func(s *Service) {
		s.singleOpenEntry = enabled
	}
}

// NewService constructs a Service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Register returns the identity bound to phone, creating a pending member of the gym
// routed by subdomain when none exists. The bool reports whether it was created.
func (s *Service) Register(ctx context.Context, phone, subdomain string) (*Identity, bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, false, fmt.Errorf("%w: phone_number is required", ErrValidation)
	}

	existing, err := s.repo.FindIdentityByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	if subdomain == "" {
		return nil, false, fmt.Errorf("%w: gym is required for new registrations", ErrValidation)
	}
	gym, err := s.repo.FindGymBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, false, err
	}
	if gym == nil {
		return nil, false, fmt.Errorf("%w: gym %q", ErrNotFound, subdomain)
	}

	identity := Identity{
		ID:          uuid.NewString(),
		PhoneNumber: phone,
		Name:        DefaultMemberName,
		Role:        RoleMember,
		Status:      StatusPending,
		TenantKey:   gym.ID,
		CreatedAt:   s.clock(),
	}
	if err := s.repo.CreateIdentity(ctx, identity); err != nil {
		return nil, false, err
	}
	return &identity, true, nil
}

// Gym returns the branding of the actor's tenant. A missing gym record yields a
// placeholder carrying the default capacity.
func (s *Service) Gym(ctx context.Context, actor *Identity) (*Gym, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	gym, err := s.repo.GetGym(ctx, actor.TenantKey)
	if err != nil {
		return nil, err
	}
	if gym == nil {
		return &Gym{ID: actor.TenantKey, Capacity: DefaultCapacity}, nil
	}
	return gym, nil
}
