package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Collection is a keyed record set that is always read and written whole.
// Writers in one process are serialized by mu; writers in other processes are
// caught by the backend's version check and surface as ErrConflict.
type Collection[T any] struct {
	name    string
	backend Backend
	mu      sync.Mutex
}

func NewCollection[T any](name string, backend Backend) *Collection[T] {
	return &Collection[T]{name: name, backend: backend}
}

// LoadAll returns every record in stored order.
func (c *Collection[T]) LoadAll(ctx context.Context) ([]T, error) {
	records, _, err := c.load(ctx)
	return records, err
}

// ReplaceAll overwrites the collection with records.
func (c *Collection[T]) ReplaceAll(ctx context.Context, records []T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, version, err := c.load(ctx)
	if err != nil {
		return err
	}
	return c.save(ctx, records, version)
}

// Update loads the collection, applies fn and persists the result under the
// collection's writer lock. Nothing is written when fn returns an error.
func (c *Collection[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, version, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(records)
	if err != nil {
		return nil, err
	}
	if err := c.save(ctx, next, version); err != nil {
		return nil, err
	}
	return next, nil
}

func (c *Collection[T]) load(ctx context.Context) ([]T, int64, error) {
	snap, err := c.backend.Load(ctx, c.name)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: load %s: %w", c.name, err)
	}
	records := []T{}
	if len(snap.Body) == 0 {
		return records, snap.Version, nil
	}
	if err := json.Unmarshal(snap.Body, &records); err != nil {
		return nil, 0, fmt.Errorf("repository: decode %s: %w", c.name, err)
	}
	return records, snap.Version, nil
}

func (c *Collection[T]) save(ctx context.Context, records []T, version int64) error {
	if records == nil {
		records = []T{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("repository: encode %s: %w", c.name, err)
	}
	if err := c.backend.Save(ctx, c.name, body, version); err != nil {
		return fmt.Errorf("repository: save %s: %w", c.name, err)
	}
	return nil
}

// NextID returns max(existing)+1, or 1 for an empty collection.
func NextID[T any](records []T, id func(T) int64) int64 {
	var max int64
	for _, r := range records {
		if v := id(r); v > max {
			max = v
		}
	}
	return max + 1
}
