// Package kv defines the flat key-value snapshot store the core persists
// through. Any durable or in-memory map satisfies the contract; last write
// wins, no transactional guarantees.
package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound indicates the key has no stored value.
var ErrNotFound = errors.New("kv: not found")

// Snapshot keys used by the core. Each component owns exactly one key.
const (
	KeySession     = "robodata_session"
	KeyAssignments = "robodata_clip_assignments"
	KeyReviews     = "robodata_clip_reviews"
	KeyDisabled    = "robodata_clip_disabled"
	KeyClips       = "robodata_clips_list"
	KeyOperations  = "robodata_operation_logs"
)

// Store is the persistence boundary.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Memory implements Store with an in-process map.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (s *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Memory) Set(ctx context.Context, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = cp
	return nil
}

func (s *Memory) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
