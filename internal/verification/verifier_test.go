package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/gymassistant/internal/domain"
)

func TestVerifierIssueMatchAndConsume(t *testing.T) {
	ctx := context.Background()
	verifier := NewVerifier(NewMemoryStore())

	code, err := verifier.Issue(ctx, "09121234567")
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.ErrorIs(t, verifier.Match(ctx, "09121234567", "000000x"), domain.ErrValidation)
	require.NoError(t, verifier.Match(ctx, "09121234567", code))
	require.NoError(t, verifier.Match(ctx, "09121234567", code), "matching does not consume")

	require.NoError(t, verifier.Consume(ctx, "09121234567"))
	require.ErrorIs(t, verifier.Match(ctx, "09121234567", code), domain.ErrValidation, "codes are single use")
}

func TestVerifierDemoMode(t *testing.T) {
	ctx := context.Background()
	verifier := NewVerifier(NewMemoryStore(), WithDemoMode(true))
	require.True(t, verifier.DemoMode())

	code, err := verifier.Issue(ctx, "+15550001111")
	require.NoError(t, err)
	require.Equal(t, DemoCode, code)

	require.NoError(t, verifier.Match(ctx, "+15550002222", DemoCode))
	require.ErrorIs(t, verifier.Match(ctx, "+15550002222", "654321"), domain.ErrValidation)

	strict := NewVerifier(NewMemoryStore())
	require.ErrorIs(t, strict.Match(ctx, "+15550002222", DemoCode), domain.ErrValidation)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.March, 3, 18, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, "+1", "111111", time.Minute))
	code, err := store.Load(ctx, "+1")
	require.NoError(t, err)
	require.Equal(t, "111111", code)

	now = now.Add(time.Minute)
	_, err = store.Load(ctx, "+1")
	require.ErrorIs(t, err, ErrCodeNotFound)
}
