// Package snapshotstore keeps recent aggregation snapshots keyed by request,
// in process memory or in redis.
package snapshotstore

import (
	"context"
	"time"

	"github.com/fd1az/swap-quoter/business/quoting/app"
	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/cache"
)

const janitorInterval = time.Minute

var (
	_ app.SnapshotStore = (*Memory)(nil)
	_ app.SnapshotStore = (*Redis)(nil)
)

// Memory is a process-local store.
type Memory struct {
	cache *cache.Cache[string, *domain.AggregationSnapshot]
}

// NewMemory creates a memory store. Close stops its janitor.
func NewMemory() *Memory {
	return &Memory{cache: cache.New[string, *domain.AggregationSnapshot](janitorInterval)}
}

// Get implements app.SnapshotStore.
func (m *Memory) Get(ctx context.Context, key string) (*domain.AggregationSnapshot, bool, error) {
	snap, ok := m.cache.Get(ctx, key)
	return snap, ok, nil
}

// Put implements app.SnapshotStore.
func (m *Memory) Put(ctx context.Context, snap *domain.AggregationSnapshot, ttl time.Duration) error {
	m.cache.Set(ctx, snap.RequestKey, snap, ttl)
	return nil
}

// Len reports the number of live entries.
func (m *Memory) Len() int { return m.cache.Len() }

// Close stops the janitor.
func (m *Memory) Close() error {
	m.cache.Close()
	return nil
}
