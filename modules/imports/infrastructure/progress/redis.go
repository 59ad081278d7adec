package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/iota-import/pkg/composables"
)

const redisPrefix = "imports:progress:v1"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(tenantID, batchID uuid.UUID) string {
	return fmt.Sprintf("%s:{%s}:%s", redisPrefix, tenantID, batchID)
}

func (r *RedisStore) Save(ctx context.Context, s Snapshot) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKey(tenantID, s.BatchID), payload, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "save progress")
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, batchID uuid.UUID) (Snapshot, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	raw, err := r.client.Get(ctx, redisKey(tenantID, batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "load progress")
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode progress")
	}
	return s, nil
}

// Open returns a Redis-backed store when redisURL is set and an in-process one otherwise.
// The returned close func releases the client.
func Open(redisURL string, ttl time.Duration) (Store, func() error, error) {
	if redisURL == "" {
		return NewMemoryStore(ttl), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "parse REDIS_URL")
	}
	client := redis.NewClient(opts)
	return NewRedisStore(client, ttl), client.Close, nil
}
