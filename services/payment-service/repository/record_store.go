package repository

import (
	"context"
	"encoding/json"
)

// Keyed is implemented by every record stored in a RecordStore.
type Keyed interface {
	Key() string
}

// RecordStore keeps records unique by Key inside one collection document.
// Lookups are a linear scan over the decoded array.
type RecordStore[T Keyed] struct {
	coll *Collection[T]
}

func NewRecordStore[T Keyed](store DocumentStore, id string) *RecordStore[T] {
	return &RecordStore[T]{coll: NewCollection[T](store, id)}
}

func (s *RecordStore[T]) CollectionID() string { return s.coll.ID() }

// Find returns the record with key and whether it exists.
func (s *RecordStore[T]) Find(ctx context.Context, key string) (T, bool, error) {
	var zero T
	items, _, err := s.coll.Load(ctx)
	if err != nil {
		return zero, false, err
	}
	if i := indexOf(items, key); i >= 0 {
		return items[i], true, nil
	}
	return zero, false, nil
}

// List returns every record.
func (s *RecordStore[T]) List(ctx context.Context) ([]T, error) {
	items, _, err := s.coll.Load(ctx)
	return items, err
}

// Upsert replaces the record with the same key or appends it.
func (s *RecordStore[T]) Upsert(ctx context.Context, rec T) error {
	return s.coll.Mutate(ctx, func(items []T) ([]T, bool, error) {
		if i := indexOf(items, rec.Key()); i >= 0 {
			items[i] = rec
			return items, true, nil
		}
		return append(items, rec), true, nil
	})
}

// CreateIfAbsent appends rec unless a record with its key exists. Under
// concurrent callers exactly one observes inserted=true. When the key exists
// the stored record is returned.
func (s *RecordStore[T]) CreateIfAbsent(ctx context.Context, rec T) (T, bool, error) {
	var (
		stored   T
		inserted bool
	)
	err := s.coll.Mutate(ctx, func(items []T) ([]T, bool, error) {
		if i := indexOf(items, rec.Key()); i >= 0 {
			stored, inserted = items[i], false
			return items, false, nil
		}
		stored, inserted = rec, true
		return append(items, rec), true, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return stored, inserted, nil
}

// AppendCapped appends rec unless its key exists, then drops the oldest
// records so at most limit remain. Records are kept in arrival order.
func (s *RecordStore[T]) AppendCapped(ctx context.Context, rec T, limit int) (inserted bool, dropped int, err error) {
	err = s.coll.Mutate(ctx, func(items []T) ([]T, bool, error) {
		inserted, dropped = false, 0
		if indexOf(items, rec.Key()) >= 0 {
			return items, false, nil
		}
		items = append(items, rec)
		inserted = true
		if limit > 0 && len(items) > limit {
			dropped = len(items) - limit
			items = items[dropped:]
		}
		return items, true, nil
	})
	return inserted, dropped, err
}

// UpdateFunc edits a copy of the stored record. Returning changed=false skips the write.
type UpdateFunc[T any] func(rec *T) (changed bool, err error)

// Update applies fn to the record with key and returns the committed state
// before and after the change. found is false when no record has the key.
func (s *RecordStore[T]) Update(ctx context.Context, key string, fn UpdateFunc[T]) (before, after T, found bool, err error) {
	err = s.coll.Mutate(ctx, func(items []T) ([]T, bool, error) {
		i := indexOf(items, key)
		if i < 0 {
			found = false
			return items, false, nil
		}
		found = true
		before = items[i]
		next, err := clone(items[i])
		if err != nil {
			return nil, false, err
		}
		changed, err := fn(&next)
		if err != nil {
			return nil, false, err
		}
		after = next
		if !changed {
			return items, false, nil
		}
		items[i] = next
		return items, true, nil
	})
	return before, after, found, err
}

// UpdateOrCreate applies fn to the record with key, first creating it with
// create when absent. existed reports whether the record was already stored;
// before is the zero value when it was not.
func (s *RecordStore[T]) UpdateOrCreate(ctx context.Context, key string, create func() T, fn UpdateFunc[T]) (before, after T, existed bool, err error) {
	err = s.coll.Mutate(ctx, func(items []T) ([]T, bool, error) {
		var zero T
		i := indexOf(items, key)
		existed = i >= 0
		var next T
		if existed {
			before = items[i]
			c, err := clone(items[i])
			if err != nil {
				return nil, false, err
			}
			next = c
		} else {
			before = zero
			next = create()
		}
		changed, err := fn(&next)
		if err != nil {
			return nil, false, err
		}
		after = next
		switch {
		case existed && changed:
			items[i] = next
			return items, true, nil
		case existed:
			return items, false, nil
		default:
			return append(items, next), true, nil
		}
	})
	return before, after, existed, err
}

// Remove deletes the record with key. Removing an absent key is not an error.
func (s *RecordStore[T]) Remove(ctx context.Context, key string) (bool, error) {
	removed := false
	err := s.coll.Mutate(ctx, func(items []T) ([]T, bool, error) {
		i := indexOf(items, key)
		if i < 0 {
			removed = false
			return items, false, nil
		}
		removed = true
		return append(items[:i], items[i+1:]...), true, nil
	})
	return removed, err
}

func indexOf[T Keyed](items []T, key string) int {
	for i, item := range items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

// clone deep-copies v through its JSON form so slices in the copy do not alias the original.
func clone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
