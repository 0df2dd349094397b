package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
)

var (
	ErrGiftCardNotFound     = errors.New("gift card not found")
	ErrGiftCardExpired      = errors.New("gift card expired")
	ErrGiftCardInsufficient = errors.New("gift card balance too low")
)

// GiftCardLedger debits gift cards. Redeem is idempotent per refID.
type GiftCardLedger interface {
	Redeem(ctx context.Context, code string, amountMinor int64, refID string) error
}

// StoreGiftCardLedger keeps balances on the gift-card records themselves.
type StoreGiftCardLedger struct {
	cards *repository.ConfirmedStore[models.GiftCardGrant]
	now   func() time.Time
}

func NewStoreGiftCardLedger(cards *repository.ConfirmedStore[models.GiftCardGrant]) *StoreGiftCardLedger {
	return &StoreGiftCardLedger{cards: cards, now: time.Now}
}

func (l *StoreGiftCardLedger) Redeem(ctx context.Context, code string, amountMinor int64, refID string) error {
	code = normalizeCode(code)
	all, err := l.cards.List(ctx)
	if err != nil {
		return err
	}
	key := ""
	for _, c := range all {
		if normalizeCode(c.Code) == code {
			key = c.Key()
			break
		}
	}
	if key == "" {
		return fmt.Errorf("%w: %s", ErrGiftCardNotFound, code)
	}

	now := l.now().UTC()
	_, _, found, err := l.cards.Update(ctx, key, func(card *models.GiftCardGrant) (bool, error) {
		if card.Redeemed(refID) {
			return false, nil
		}
		if card.ExpiresAt != nil && now.After(*card.ExpiresAt) {
			return false, ErrGiftCardExpired
		}
		if card.BalanceMinor < amountMinor {
			return false, fmt.Errorf("%w: balance %d, requested %d", ErrGiftCardInsufficient, card.BalanceMinor, amountMinor)
		}
		card.BalanceMinor -= amountMinor
		card.Redemptions = append(card.Redemptions, models.GiftCardRedemption{RefID: refID, AmountMinor: amountMinor, At: now})
		return true, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrGiftCardNotFound, code)
	}
	return nil
}

// NewGiftCardCode returns a printable code such as GC-4F1A9C2B.
func NewGiftCardCode() string {
	return "GC-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
