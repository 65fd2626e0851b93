//go:build integration

package verification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "test:verification")
	_, err = store.Load(ctx, "+15550001111")
	require.ErrorIs(t, err, ErrCodeNotFound)

	require.NoError(t, store.Save(ctx, "+15550001111", "424242", time.Minute))
	code, err := store.Load(ctx, "+15550001111")
	require.NoError(t, err)
	require.Equal(t, "424242", code)

	verifier := NewVerifier(store)
	require.NoError(t, verifier.Match(ctx, "+15550001111", "424242"))
	require.NoError(t, verifier.Consume(ctx, "+15550001111"))
	_, err = store.Load(ctx, "+15550001111")
	require.ErrorIs(t, err, ErrCodeNotFound)
}
