package services

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
)

// DefaultFailureRetention keeps the ledger document well under the
// DynamoDB item size limit.
const DefaultFailureRetention = 500

// StoreFailureSink appends failures to the side-effect-failures collection,
// keeping only the newest retain entries.
type StoreFailureSink struct {
	store  *repository.RecordStore[models.SideEffectFailure]
	retain int
}

func NewStoreFailureSink(store *repository.RecordStore[models.SideEffectFailure]) *StoreFailureSink {
	return &StoreFailureSink{store: store, retain: DefaultFailureRetention}
}

// WithRetention overrides how many failures are kept. n <= 0 keeps the default.
func (s *StoreFailureSink) WithRetention(n int) *StoreFailureSink {
	if n > 0 {
		s.retain = n
	}
	return s
}

func (s *StoreFailureSink) RecordFailure(ctx context.Context, f models.SideEffectFailure) error {
	_, _, err := s.store.AppendCapped(ctx, f, s.retain)
	return err
}

// List returns failures newest first, optionally filtered by natural key.
func (s *StoreFailureSink) List(ctx context.Context, naturalKey string, limit int) ([]models.SideEffectFailure, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.SideEffectFailure, 0, len(all))
	for _, f := range all {
		if naturalKey == "" || f.NaturalKey == naturalKey {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MessageSender is satisfied by the SQS client.
type MessageSender interface {
	SendMessage(ctx context.Context, body string) error
}

// QueueFailureSink forwards failures to a queue for operators.
type QueueFailureSink struct {
	queue MessageSender
}

func NewQueueFailureSink(queue MessageSender) *QueueFailureSink {
	return &QueueFailureSink{queue: queue}
}

func (s *QueueFailureSink) RecordFailure(ctx context.Context, f models.SideEffectFailure) error {
	body, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.queue.SendMessage(ctx, string(body))
}
