package repository

import (
	"context"
	"errors"
	"sync"

	"shopping-assistant/internal/domain"
)

var (
	// ErrNotFound is returned when a record lookup misses.
	ErrNotFound = domain.ErrNotFound
	// ErrConflict is returned when a collection changed between load and save.
	ErrConflict = errors.New("repository: collection modified concurrently")
)

// Snapshot is the persisted form of one whole collection.
// Version is 0 for a collection that has never been saved.
type Snapshot struct {
	Body    []byte
	Version int64
}

// Backend persists whole-collection snapshots. Save must be atomic: the
// stored snapshot is either the previous one or the new one, never a mix.
// Save fails with ErrConflict when the stored version is not prevVersion.
type Backend interface {
	Load(ctx context.Context, collection string) (Snapshot, error)
	Save(ctx context.Context, collection string, body []byte, prevVersion int64) error
}

// MemoryBackend keeps snapshots in process memory. It is not persistent and is
// only suitable for development and tests.
type MemoryBackend struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{snapshots: make(map[string]Snapshot)}
}

func (m *MemoryBackend) Load(_ context.Context, collection string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshots[collection]
	return Snapshot{Body: append([]byte(nil), snap.Body...), Version: snap.Version}, nil
}

func (m *MemoryBackend) Save(_ context.Context, collection string, body []byte, prevVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.snapshots[collection].Version != prevVersion {
		return ErrConflict
	}
	m.snapshots[collection] = Snapshot{
		Body:    append([]byte(nil), body...),
		Version: prevVersion + 1,
	}
	return nil
}
