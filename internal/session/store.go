// Package session isolates checkout contexts per session. Each context is
// owned by exactly one session; the stores never share state across sessions.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/terminal-bench/paygate/internal/artifact"
	"github.com/terminal-bench/paygate/internal/checkout"
)

var ErrNotFound = errors.New("session: not found")

// Store persists checkout contexts between requests.
type Store interface {
	Get(ctx context.Context, sessionID string) (checkout.Context, error)
	Put(ctx context.Context, c checkout.Context) error
	Delete(ctx context.Context, sessionID string) error
}

// MemoryStore keeps contexts and their latest artifacts in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	contexts  map[string]checkout.Context
	artifacts map[string]artifact.Artifact
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contexts:  make(map[string]checkout.Context),
		artifacts: make(map[string]artifact.Artifact),
	}
}

// Get returns the context for a session.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (checkout.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[sessionID]
	if !ok {
		return checkout.Context{}, ErrNotFound
	}
	return c, nil
}

// Put stores the context under its session id.
func (s *MemoryStore) Put(_ context.Context, c checkout.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts[c.SessionID] = c
	return nil
}

// Delete removes a session's context.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contexts[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.contexts, sessionID)
	delete(s.artifacts, sessionID)
	return nil
}
