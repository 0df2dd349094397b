package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultMutateAttempts bounds read-modify-write retries on version conflicts.
const DefaultMutateAttempts = 8

// Collection is a typed view over one whole-collection document holding a JSON array.
type Collection[T any] struct {
	store       DocumentStore
	id          string
	maxAttempts int
}

func NewCollection[T any](store DocumentStore, id string) *Collection[T] {
	return &Collection[T]{store: store, id: id, maxAttempts: DefaultMutateAttempts}
}

// ID is the document id backing the collection.
func (c *Collection[T]) ID() string { return c.id }

// Load returns the items and the version they were read at. A missing document
// is an empty collection at version 0.
func (c *Collection[T]) Load(ctx context.Context) ([]T, int64, error) {
	doc, err := c.store.Read(ctx, c.id)
	if errors.Is(err, ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", c.id, err)
	}
	var items []T
	if len(doc.Data) > 0 {
		if err := json.Unmarshal(doc.Data, &items); err != nil {
			return nil, 0, fmt.Errorf("decode %s: %w", c.id, err)
		}
	}
	return items, doc.Version, nil
}

// Save writes items if the document is still at version.
func (c *Collection[T]) Save(ctx context.Context, items []T, version int64) (int64, error) {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", c.id, err)
	}
	v, err := c.store.Write(ctx, c.id, data, version)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", c.id, err)
	}
	return v, nil
}

// MutateFunc returns the new items and whether anything changed. Returning
// changed=false skips the write.
type MutateFunc[T any] func(items []T) (next []T, changed bool, err error)

// Mutate applies fn to a fresh read and writes the result, retrying from a new
// read whenever another writer got there first. fn may run more than once.
func (c *Collection[T]) Mutate(ctx context.Context, fn MutateFunc[T]) error {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		items, version, err := c.Load(ctx)
		if err != nil {
			return err
		}
		next, changed, err := fn(items)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if _, err := c.Save(ctx, next, version); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", c.id, c.maxAttempts, lastErr)
}
