package repository

import (
	"context"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
)

// PendingStore holds pre-payment intents of one kind.
type PendingStore[T any] struct {
	records *RecordStore[models.PendingIntent[T]]
}

func NewPendingStore[T any](store DocumentStore, id string) *PendingStore[T] {
	return &PendingStore[T]{records: NewRecordStore[models.PendingIntent[T]](store, id)}
}

// FindPending returns the intent for key, or nil when none is waiting.
func (s *PendingStore[T]) FindPending(ctx context.Context, key string) (*models.PendingIntent[T], error) {
	intent, ok, err := s.records.Find(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	return &intent, nil
}

// AddPending stores an intent. The checkout flow calls this; the pipeline never does.
func (s *PendingStore[T]) AddPending(ctx context.Context, intent models.PendingIntent[T]) error {
	return s.records.Upsert(ctx, intent)
}

// RemovePending deletes the intent for key. An already-removed key is fine.
func (s *PendingStore[T]) RemovePending(ctx context.Context, key string) error {
	_, err := s.Retire(ctx, key)
	return err
}

// Retire removes the intent for key and reports whether this call was the one
// that removed it.
func (s *PendingStore[T]) Retire(ctx context.Context, key string) (bool, error) {
	return s.records.Remove(ctx, key)
}
