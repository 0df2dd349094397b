package repository

import "context"

// ConfirmedStore holds durable records produced by payments.
type ConfirmedStore[T Keyed] struct {
	*RecordStore[T]
}

func NewConfirmedStore[T Keyed](store DocumentStore, id string) *ConfirmedStore[T] {
	return &ConfirmedStore[T]{RecordStore: NewRecordStore[T](store, id)}
}

// FindConfirmed returns the record for key and whether it exists.
func (s *ConfirmedStore[T]) FindConfirmed(ctx context.Context, key string) (T, bool, error) {
	return s.Find(ctx, key)
}

// UpsertConfirmed writes rec, replacing any record with the same key.
func (s *ConfirmedStore[T]) UpsertConfirmed(ctx context.Context, rec T) error {
	return s.Upsert(ctx, rec)
}
