package auth

import (
	"context"
	"fmt"

	"example.com/gymassistant/internal/domain"
)

// IdentityResolver looks identities up by the reference carried in a token.
type IdentityResolver interface {
	GetIdentity(ctx context.Context, id string) (*domain.Identity, error)
}

// Gate turns a bearer credential into the acting identity.
type Gate struct {
	cfg      Config
	resolver IdentityResolver
}

// NewGate constructs a Gate.
func NewGate(cfg Config, resolver IdentityResolver) *Gate {
	return &Gate{cfg: cfg, resolver: resolver}
}

// Authenticate validates the credential and resolves its identity. Malformed or expired
// tokens and unknown identity references all fail with domain.ErrUnauthenticated.
func (g *Gate) Authenticate(ctx context.Context, credential string) (*domain.Identity, error) {
	claims, err := Parse(credential, g.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	identity, err := g.resolver.GetIdentity(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, fmt.Errorf("%w: unknown identity", domain.ErrUnauthenticated)
	}
	return identity, nil
}

// AuthorizeAdmin fails with domain.ErrForbidden unless identity is an admin.
func (g *Gate) AuthorizeAdmin(identity *domain.Identity) error {
	return domain.RequireAdmin(identity)
}
