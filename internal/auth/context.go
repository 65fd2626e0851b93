package auth

import (
	"context"

	"example.com/gymassistant/internal/domain"
)

type contextKey string

const identityKey contextKey = "gym-auth-identity"

// WithIdentity stores the resolved identity on the context.
func WithIdentity(ctx context.Context, identity *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}
