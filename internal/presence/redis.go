package presence

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sets in Redis so every gateway instance sees the same count.
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore wraps an existing client; the caller owns its lifecycle.
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Add runs SADD and SCARD in one MULTI/EXEC so the returned count belongs to this mutation.
func (s *RedisStore) Add(ctx context.Context, key, member string) (int64, error) {
	var card *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, member)
		card = pipe.SCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return card.Val(), nil
}

// Remove runs SREM and SCARD in one MULTI/EXEC. An emptied set is removed by Redis itself.
func (s *RedisStore) Remove(ctx context.Context, key, member string) (int64, error) {
	var card *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, key, member)
		card = pipe.SCard(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return card.Val(), nil
}

func (s *RedisStore) Cardinality(ctx context.Context, key string) (int64, error) {
	return s.rdb.SCard(ctx, key).Result()
}
