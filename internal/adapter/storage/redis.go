package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var _ KV = (*RedisKV)(nil)

// A RedisKV keeps values without expiry under "<prefix>:<key>".
type RedisKV struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisKV(client redis.UniversalClient, prefix string) RedisKV {
	return RedisKV{client: client, prefix: prefix}
}

func (s RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "RedisKV.Get"

	if err := checkKey(key); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %q: %w", op, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: redis get failed: %w", op, err)
	}
	return data, nil
}

func (s RedisKV) Set(ctx context.Context, key string, value []byte) error {
	const op = "RedisKV.Set"

	if err := checkKey(key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%s: redis set failed: %w", op, err)
	}
	return nil
}

func (s RedisKV) Delete(ctx context.Context, key string) error {
	const op = "RedisKV.Delete"

	if err := checkKey(key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%s: redis delete failed: %w", op, err)
	}
	return nil
}

func (s RedisKV) redisKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
