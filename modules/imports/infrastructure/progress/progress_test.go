package progress

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/iota-import/pkg/composables"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := composables.WithTenantID(context.Background(), uuid.New())
	batchID := uuid.New()

	_, err := store.Get(ctx, batchID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, Snapshot{BatchID: batchID, Processed: 25, Total: 60, SuccessCount: 24, ErrorCount: 1}))
	got, err := store.Get(ctx, batchID)
	require.NoError(t, err)
	require.Equal(t, 25, got.Processed)

	otherTenant := composables.WithTenantID(context.Background(), uuid.New())
	_, err = store.Get(otherTenant, batchID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := composables.WithTenantID(context.Background(), uuid.New())
	batchID := uuid.New()
	require.NoError(t, store.Save(ctx, Snapshot{BatchID: batchID}))

	store.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := store.Get(ctx, batchID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RequiresTenant(t *testing.T) {
	store := NewMemoryStore(0)
	require.ErrorIs(t, store.Save(context.Background(), Snapshot{}), composables.ErrNoTenant)
}

func TestRedisKey_IsTenantScoped(t *testing.T) {
	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	batchID := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	require.Equal(t,
		"imports:progress:v1:{00000000-0000-0000-0000-000000000001}:00000000-0000-0000-0000-000000000002",
		redisKey(tenantID, batchID))
}

func TestOpen_SelectsBackend(t *testing.T) {
	store, closeFn, err := Open("", time.Minute)
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, store)
	require.NoError(t, closeFn())

	store, closeFn, err = Open("redis://localhost:6379/2", time.Minute)
	require.NoError(t, err)
	require.IsType(t, &RedisStore{}, store)
	require.NoError(t, closeFn())

	_, _, err = Open("mysql://nope", time.Minute)
	require.Error(t, err)
}
