//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"example.com/gymassistant/internal/domain"
	"example.com/gymassistant/internal/events"
	persistence "example.com/gymassistant/internal/persistence/postgres"
	"example.com/gymassistant/internal/testsupport"
)

type env struct {
	pool    *pgxpool.Pool
	repo    *persistence.Repository
	service *domain.Service
	admin   *domain.Identity
	member  *domain.Identity
	other   *domain.Identity
}

func setup(t *testing.T, opts ...domain.Option) env {
	t.Helper()
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)
	repo := persistence.NewRepository(pool)

	require.NoError(t, repo.UpsertGym(ctx, domain.Gym{ID: "gym-a", Name: "Alpha", Capacity: 10, Subdomain: "Alpha"}))
	require.NoError(t, repo.UpsertGym(ctx, domain.Gym{ID: "gym-b", Name: "Beta", Capacity: 20, Subdomain: "beta"}))

	mk := func(id, phone string, role domain.Role, tenant domain.TenantKey) *domain.Identity {
		identity := domain.Identity{ID: id, PhoneNumber: phone, Name: id, Role: role, Status: domain.StatusApproved, TenantKey: tenant, CreatedAt: time.Now().UTC()}
		require.NoError(t, repo.CreateIdentity(ctx, identity))
		return &identity
	}

	return env{
		pool:    pool,
		repo:    repo,
		service: domain.NewService(repo, opts...),
		admin:   mk("admin-a", "+10000000001", domain.RoleAdmin, "gym-a"),
		member:  mk("member-a", "+10000000002", domain.RoleMember, "gym-a"),
		other:   mk("admin-b", "+10000000003", domain.RoleAdmin, "gym-b"),
	}
}

func TestRepositoryRespectsTenantIsolation(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	record, err := e.service.RecordEntry(ctx, e.member, time.Time{})
	require.NoError(t, err)

	occupancy, err := e.service.Occupancy(ctx, e.admin)
	require.NoError(t, err)
	require.Equal(t, 1, occupancy.Current)
	require.Equal(t, 10, occupancy.Capacity)

	other, err := e.service.Occupancy(ctx, e.other)
	require.NoError(t, err)
	require.Zero(t, other.Current)

	_, err = e.service.RecordExit(ctx, e.other, record.ID, time.Time{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	entries, err := e.repo.ListEntries(ctx, "gym-b", domain.EntryFilter{})
	require.NoError(t, err)
	require.Empty(t, entries, "entries of gym-a must not leak into gym-b")
}

func TestOccupancySnapshot(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	_, err := e.service.RecordEntry(ctx, e.member, time.Time{})
	require.NoError(t, err)
	closed, err := e.service.RecordEntry(ctx, e.admin, time.Time{})
	require.NoError(t, err)
	_, err = e.service.RecordExit(ctx, e.admin, closed.ID, time.Time{})
	require.NoError(t, err)

	snapshot, err := e.repo.OccupancySnapshot(ctx, "gym-a")
	require.NoError(t, err)
	require.Equal(t, domain.OccupancySnapshot{Open: 1, Capacity: 10}, snapshot)

	missing, err := e.repo.OccupancySnapshot(ctx, "gym-unknown")
	require.NoError(t, err)
	require.Equal(t, domain.OccupancySnapshot{}, missing)
}

func TestEntryLifecycleWritesOutboxEvents(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	entered := time.Now().UTC().Truncate(time.Second)
	record, err := e.service.RecordEntry(ctx, e.member, entered)
	require.NoError(t, err)

	closed, err := e.service.RecordExit(ctx, e.member, record.ID, entered.Add(61*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 61, *closed.DurationMin)

	_, err = e.service.RecordExit(ctx, e.member, record.ID, entered.Add(2*time.Hour))
	require.ErrorIs(t, err, domain.ErrInvalidState)

	rows, err := e.pool.Query(ctx, `SELECT event_type, topic, partition_key, payload FROM outbox WHERE aggregate_id = $1 ORDER BY event_id`, record.ID)
	require.NoError(t, err)
	defer rows.Close()

	var types []string
	for rows.Next() {
		var eventType, topic, key string
		var payload []byte
		require.NoError(t, rows.Scan(&eventType, &topic, &key, &payload))
		require.Equal(t, events.TopicEntryEvents, topic)
		require.Equal(t, "gym-a:member-a", key)
		types = append(types, eventType)

		if eventType == events.TypeEntryClosed {
			var evt events.EntryClosed
			require.NoError(t, json.Unmarshal(payload, &evt))
			require.Equal(t, 61, evt.DurationMin)
		}
	}
	require.NoError(t, rows.Err())
	require.Equal(t, []string{events.TypeEntryRecorded, events.TypeEntryClosed}, types)
}

func TestSingleOpenEntryIsSerialised(t *testing.T) {
	ctx := context.Background()
	e := setup(t, domain.WithSingleOpenEntry(true))

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.service.RecordEntry(ctx, e.member, time.Time{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, domain.ErrInvalidState)
	}
	require.Equal(t, 1, succeeded)

	snapshot, err := e.repo.OccupancySnapshot(ctx, "gym-a")
	require.NoError(t, err)
	require.Equal(t, 1, snapshot.Open)
}

func TestIdentityRegistrationAndApproval(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	pending, created, err := e.service.Register(ctx, "+15550001111", "ALPHA")
	require.NoError(t, err)
	require.True(t, created)

	err = e.repo.CreateIdentity(ctx, domain.Identity{ID: uuid.NewString(), PhoneNumber: "+15550001111", Name: "dup", Role: domain.RoleMember, Status: domain.StatusPending, TenantKey: "gym-a"})
	require.ErrorIs(t, err, domain.ErrInvalidState)

	list, err := e.service.ListPendingIdentities(ctx, e.admin)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = e.service.ApproveIdentity(ctx, e.other, pending.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	approved, err := e.service.ApproveIdentity(ctx, e.admin, pending.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, approved.Status)

	stored, err := e.repo.GetIdentity(ctx, pending.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, stored.Status)

	var outboxCount int
	require.NoError(t, e.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE aggregate_id = $1 AND event_type = $2`,
		pending.ID, events.TypeIdentityStatusChanged).Scan(&outboxCount))
	require.Equal(t, 1, outboxCount)

	_, err = e.service.RejectIdentity(ctx, e.admin, pending.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestContentRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	_, err := e.service.CreateProgram(ctx, e.admin, domain.TrainingProgram{Title: "Legs", Date: time.Now().UTC(), Exercises: `[{"name":"squat"}]`})
	require.NoError(t, err)
	programs, err := e.service.ListPrograms(ctx, e.member)
	require.NoError(t, err)
	require.Len(t, programs, 1)
	require.JSONEq(t, `[{"name":"squat"}]`, programs[0].Exercises)

	otherPrograms, err := e.service.ListPrograms(ctx, e.other)
	require.NoError(t, err)
	require.Empty(t, otherPrograms)

	for i := 0; i < 3; i++ {
		_, err := e.service.SendMessage(ctx, e.member, "hello", domain.MessageText)
		require.NoError(t, err)
	}
	page, next, err := e.service.ListMessages(ctx, e.member, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	rest, next, err := e.service.ListMessages(ctx, e.member, next, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Nil(t, next)

	_, err = e.service.CreateSupplement(ctx, e.admin, domain.Supplement{Name: "Creatine", Price: 1500})
	require.NoError(t, err)
	supplements, err := e.service.ListSupplements(ctx, e.member)
	require.NoError(t, err)
	require.Len(t, supplements, 1)

	gym, err := e.service.Gym(ctx, e.member)
	require.NoError(t, err)
	require.Equal(t, "alpha", gym.Subdomain)
}

func TestMigrateDown(t *testing.T) {
	ctx := context.Background()
	pool := testsupport.StartPostgres(ctx, t)

	require.NoError(t, persistence.MigrateDown(ctx, pool))
	var exists bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass('public.gym_entries') IS NOT NULL`).Scan(&exists))
	require.False(t, exists)
}
