package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/terminal-bench/paygate/internal/checkout"
)

const keyPrefix = "paygate:session:"

// RedisStore persists checkout contexts in Redis so gateway replicas can
// share sessions.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps a Redis client. Contexts expire after ttl of
// inactivity; ttl <= 0 disables expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get returns the context for a session.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (checkout.Context, error) {
	data, err := s.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return checkout.Context{}, ErrNotFound
	}
	if err != nil {
		return checkout.Context{}, fmt.Errorf("failed to load session: %w", err)
	}

	var c checkout.Context
	if err := json.Unmarshal(data, &c); err != nil {
		return checkout.Context{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return c, nil
}

// Put stores the context under its session id, refreshing the TTL.
func (s *RedisStore) Put(ctx context.Context, c checkout.Context) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+c.SessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Delete removes a session's context and its artifact.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	n, err := s.client.Del(ctx, keyPrefix+sessionID, artifactKeyPrefix+sessionID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
