package services

import (
	"context"
	"errors"
	"time"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
)

// Contact is what a payment knows about the customer.
type Contact struct {
	Email string
	Name  string
	Phone string
}

// ClientDirectory upserts client profiles and appends account history.
type ClientDirectory interface {
	Upsert(ctx context.Context, contact Contact, entry *models.ClientHistoryEntry) error
}

// StoreClientDirectory keeps profiles in the clients collection keyed by email.
type StoreClientDirectory struct {
	clients *repository.RecordStore[models.ClientProfile]
	now     func() time.Time
}

func NewStoreClientDirectory(clients *repository.RecordStore[models.ClientProfile]) *StoreClientDirectory {
	return &StoreClientDirectory{clients: clients, now: time.Now}
}

// Upsert fills missing contact fields and appends entry unless an entry of the
// same kind for the same record is already present.
func (d *StoreClientDirectory) Upsert(ctx context.Context, contact Contact, entry *models.ClientHistoryEntry) error {
	key := models.NormalizeEmail(contact.Email)
	if key == "" {
		return errors.New("client email is empty")
	}
	now := d.now().UTC()
	_, _, _, err := d.clients.UpdateOrCreate(ctx, key,
		func() models.ClientProfile {
			return models.ClientProfile{Email: key, FirstSeen: now}
		},
		func(p *models.ClientProfile) (bool, error) {
			changed := false
			if p.Name == "" && contact.Name != "" {
				p.Name, changed = contact.Name, true
			}
			if p.Phone == "" && contact.Phone != "" {
				p.Phone, changed = contact.Phone, true
			}
			if entry != nil && !p.HasHistory(entry.Kind, entry.NaturalKey) {
				e := *entry
				if e.At.IsZero() {
					e.At = now
				}
				p.History = append(p.History, e)
				changed = true
			}
			if changed {
				p.UpdatedAt = now
			}
			return changed, nil
		},
	)
	return err
}
