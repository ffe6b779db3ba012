package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/proctorly/examroom/internal/config"
)

// sessionTTL caps how long per-session keys outlive an abandoned session.
const sessionTTL = 24 * time.Hour

// RedisSessionStore is the production SessionStore.
type RedisSessionStore struct {
	rdb *redis.Client
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func (s *RedisSessionStore) SetStatus(ctx context.Context, sessionID, status string, ttl time.Duration) error {
	return s.rdb.Set(ctx, config.CacheKey.SessionStatusKey(sessionID), status, ttl).Err()
}

func (s *RedisSessionStore) Status(ctx context.Context, sessionID string) (string, error) {
	val, err := s.rdb.Get(ctx, config.CacheKey.SessionStatusKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get session status: %w", err)
	}
	return val, nil
}

func (s *RedisSessionStore) IncrWarnings(ctx context.Context, sessionID string) (int, error) {
	key := config.CacheKey.SessionWarningsKey(sessionID)
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr warnings: %w", err)
	}
	s.rdb.Expire(ctx, key, sessionTTL)
	return int(count), nil
}

func (s *RedisSessionStore) TryCooldown(ctx context.Context, sessionID, kind string, window time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, config.CacheKey.SessionCooldownKey(sessionID, kind), 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("claim cooldown: %w", err)
	}
	return ok, nil
}

func (s *RedisSessionStore) BumpNoiseStreak(ctx context.Context, sessionID string) (int, error) {
	key := config.CacheKey.SessionNoiseStreakKey(sessionID)
	streak, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr noise streak: %w", err)
	}
	s.rdb.Expire(ctx, key, sessionTTL)
	return int(streak), nil
}

func (s *RedisSessionStore) ResetNoiseStreak(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, config.CacheKey.SessionNoiseStreakKey(sessionID)).Err()
}

func (s *RedisSessionStore) SetResult(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, config.CacheKey.SessionResultKey(sessionID), payload, ttl).Err()
}

func (s *RedisSessionStore) Result(ctx context.Context, sessionID string) ([]byte, error) {
	payload, err := s.rdb.Get(ctx, config.CacheKey.SessionResultKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session result: %w", err)
	}
	return payload, nil
}

func (s *RedisSessionStore) QueueViolation(ctx context.Context, payload []byte) error {
	return s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err()
}
