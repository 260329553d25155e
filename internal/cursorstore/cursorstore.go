// Package cursorstore abstracts the last-processed nonce per shard. An
// in-memory default is provided; callers may instead supply a Store backed
// by external persistence (a file, a KV service, a database row per shard).
package cursorstore

import (
	"context"
	"sync"
)

// Store loads and saves the last-processed nonce for a shard.
//
// LoadCursor returns (nonce, true) if a cursor is known for shardID, or
// (0, false) if this is the first observation of that shard. currentNonce
// is provided for backends that want it as a hint (the in-memory default
// ignores it).
//
// SaveCursor persists nonce as the new last-processed value for shardID.
// Both methods are suspension points when backed by external storage and
// must be awaited by the caller before the cursor is considered durable.
type Store interface {
	LoadCursor(ctx context.Context, shardID uint32, currentNonce uint64) (nonce uint64, ok bool, err error)
	SaveCursor(ctx context.Context, shardID uint32, nonce uint64) error
}

// InMemory is the process-local default Store, used when no external
// backend is configured. Cursors live for the lifetime of the process.
type InMemory struct {
	mu      sync.RWMutex
	cursors map[uint32]uint64
}

// NewInMemory returns an empty in-memory cursor store.
func NewInMemory() *InMemory {
	return &InMemory{cursors: make(map[uint32]uint64)}
}

// LoadCursor implements Store.
func (s *InMemory) LoadCursor(_ context.Context, shardID uint32, _ uint64) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.cursors[shardID]
	return n, ok, nil
}

// SaveCursor implements Store.
func (s *InMemory) SaveCursor(_ context.Context, shardID uint32, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[shardID] = nonce
	return nil
}

// Func adapts a pair of plain load/save callbacks into a Store, so the
// orchestrator only ever has to deal with one interface.
type Func struct {
	Load func(ctx context.Context, shardID uint32, currentNonce uint64) (uint64, bool, error)
	Save func(ctx context.Context, shardID uint32, nonce uint64) error
}

// LoadCursor implements Store.
func (f Func) LoadCursor(ctx context.Context, shardID uint32, currentNonce uint64) (uint64, bool, error) {
	return f.Load(ctx, shardID, currentNonce)
}

// SaveCursor implements Store.
func (f Func) SaveCursor(ctx context.Context, shardID uint32, nonce uint64) error {
	return f.Save(ctx, shardID, nonce)
}
