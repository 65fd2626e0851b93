package domain

import (
	"context"
	"fmt"
)

// ListPendingIdentities returns the actor's tenant members awaiting approval, oldest first.
func (s *Service) ListPendingIdentities(ctx context.Context, actor *Identity) ([]Identity, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.repo.ListIdentitiesByStatus(ctx, actor.TenantKey, StatusPending)
}

// ApproveIdentity moves a pending identity of the actor's tenant to approved.
func (s *Service) ApproveIdentity(ctx context.Context, actor *Identity, identityID string) (*Identity, error) {
	return s.decide(ctx, actor, identityID, StatusApproved)
}

// RejectIdentity moves a pending identity of the actor's tenant to rejected.
func (s *Service) RejectIdentity(ctx context.Context, actor *Identity, identityID string) (*Identity, error) {
	return s.decide(ctx, actor, identityID, StatusRejected)
}

func (s *Service) decide(ctx context.Context, actor *Identity, identityID string, target ApprovalStatus) (*Identity, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if identityID == "" {
		return nil, fmt.Errorf("%w: identity id is required", ErrValidation)
	}
	return s.repo.UpdateIdentity(ctx, actor.TenantKey, identityID, func(identity *Identity) (bool, error) {
		return identity.transition(target)
	})
}
