package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"fxgym/internal/model"
)

const redisKeyPrefix = "fxgym:bars:"

// RedisStore keeps each bar table as one msgpack value. A single SET
// replaces the value atomically.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("REDIS_ADDR must not be empty")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func redisKey(key model.CacheKey) string { return redisKeyPrefix + key.String() }

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) Close() error { return s.rdb.Close() }

func (s *RedisStore) Exists(ctx context.Context, key model.CacheKey) (bool, error) {
	n, err := s.rdb.Exists(ctx, redisKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Read(ctx context.Context, key model.CacheKey) ([]model.Bar, error) {
	data, err := s.rdb.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	var bars []model.Bar
	if err := msgpack.Unmarshal(data, &bars); err != nil {
		return nil, schemaErr("%s: %v", key, err)
	}
	return bars, nil
}

func (s *RedisStore) Write(ctx context.Context, key model.CacheKey, bars []model.Bar) error {
	data, err := msgpack.Marshal(bars)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, redisKey(key), data, 0).Err()
}
