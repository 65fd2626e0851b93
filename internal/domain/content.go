package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ListPrograms returns the training programs of the actor's tenant ordered by date.
func (s *Service) ListPrograms(ctx context.Context, actor *Identity) ([]TrainingProgram, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	return s.repo.ListPrograms(ctx, actor.TenantKey)
}

// CreateProgram publishes a program to the actor's tenant. Admin only.
func (s *Service) CreateProgram(ctx context.Context, actor *Identity, program TrainingProgram) (*TrainingProgram, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(program.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	program.ID = uuid.NewString()
	program.TenantKey = actor.TenantKey
	program.Date = program.Date.UTC()
	program.CreatedAt = s.clock()
	if err := s.repo.CreateProgram(ctx, actor.TenantKey, program); err != nil {
		return nil, err
	}
	return &program, nil
}

// ListMessages pages through the tenant chat in timestamp order.
func (s *Service) ListMessages(ctx context.Context, actor *Identity, cursor *Cursor, limit int) ([]ChatMessage, *Cursor, error) {
	if actor == nil {
		return nil, nil, ErrUnauthenticated
	}
	return s.repo.ListMessages(ctx, actor.TenantKey, cursor, limit)
}

// SendMessage posts to the tenant chat as the actor. System and broadcast messages
// are reserved for admins.
func (s *Service) SendMessage(ctx context.Context, actor *Identity, text string, kind MessageType) (*ChatMessage, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if kind == "" {
		kind = MessageText
	}
	if kind.Privileged() {
		if err := RequireAdmin(actor); err != nil {
			return nil, err
		}
	}

	message := ChatMessage{
		ID:         uuid.NewString(),
		TenantKey:  actor.TenantKey,
		SenderID:   actor.ID,
		SenderName: actor.Name,
		Message:    text,
		Type:       kind,
		SentAt:     s.clock(),
	}
	if err := s.repo.CreateMessage(ctx, actor.TenantKey, message); err != nil {
		return nil, err
	}
	return &message, nil
}

// ListSupplements returns the tenant catalogue ordered by name.
func (s *Service) ListSupplements(ctx context.Context, actor *Identity) ([]Supplement, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	return s.repo.ListSupplements(ctx, actor.TenantKey)
}

// CreateSupplement adds a catalogue item. Admin only.
func (s *Service) CreateSupplement(ctx context.Context, actor *Identity, supplement Supplement) (*Supplement, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(supplement.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if supplement.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	supplement.ID = uuid.NewString()
	supplement.TenantKey = actor.TenantKey
	if err := s.repo.CreateSupplement(ctx, actor.TenantKey, supplement); err != nil {
		return nil, err
	}
	return &supplement, nil
}
