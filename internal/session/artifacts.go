package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/terminal-bench/paygate/internal/artifact"
)

const artifactKeyPrefix = "paygate:artifact:"

// ArtifactStore persists the latest built artifact per session, next to the
// session itself, so a replica that did not run the evaluation can still
// serve it.
type ArtifactStore interface {
	GetArtifact(ctx context.Context, sessionID string) (artifact.Artifact, error)
	PutArtifact(ctx context.Context, sessionID string, a artifact.Artifact) error
}

// GetArtifact returns the latest artifact for a session.
func (s *MemoryStore) GetArtifact(_ context.Context, sessionID string) (artifact.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[sessionID]
	if !ok {
		return artifact.Artifact{}, ErrNotFound
	}
	return a, nil
}

// PutArtifact stores the latest artifact for a session, replacing any
// previous one.
func (s *MemoryStore) PutArtifact(_ context.Context, sessionID string, a artifact.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts[sessionID] = a
	return nil
}

// GetArtifact returns the latest artifact for a session.
func (s *RedisStore) GetArtifact(ctx context.Context, sessionID string) (artifact.Artifact, error) {
	data, err := s.client.Get(ctx, artifactKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return artifact.Artifact{}, ErrNotFound
	}
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to load artifact: %w", err)
	}

	var a artifact.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to decode artifact: %w", err)
	}
	return a, nil
}

// PutArtifact stores the latest artifact for a session under the session TTL.
func (s *RedisStore) PutArtifact(ctx context.Context, sessionID string, a artifact.Artifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := s.client.Set(ctx, artifactKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}
