package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func stateKey(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (State, error) {
	val, err := s.rdb.Get(ctx, stateKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return StateNone, nil
	}
	if err != nil {
		return StateNone, fmt.Errorf("failed to read session %d: %w", userID, err)
	}
	return State(val), nil
}

func (s *RedisStore) Set(ctx context.Context, userID int64, state State) error {
	if state == StateNone {
		return s.Clear(ctx, userID)
	}
	if err := s.rdb.Set(ctx, stateKey(userID), string(state), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session %d: %w", userID, err)
	}
	return nil
}

func markKey(key string) string {
	return "mark:" + key
}

func (s *RedisStore) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, markKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set marker %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Unmark(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, markKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release marker %s: %w", key, err)
	}
	return nil
}
