package services

import (
	"context"
	"fmt"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
)

const giftCardValidityMonths = 12

// GiftCardHandler issues a purchased gift card. The amount comes from the
// verified transaction, never from metadata.
type GiftCardHandler struct {
	f *Fulfillment
}

func (h *GiftCardHandler) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	f := h.f
	log := f.log(ctx, ev)
	now := f.now().UTC()
	expires := now.AddDate(0, giftCardValidityMonths, 0)

	grant := models.GiftCardGrant{
		NaturalKey:     ev.NaturalKey,
		Code:           NewGiftCardCode(),
		Reference:      ev.Reference,
		Currency:       ev.Currency,
		AmountMinor:    ev.AmountMinor,
		BalanceMinor:   ev.AmountMinor,
		PurchaserName:  ev.Meta("purchaser_name"),
		PurchaserEmail: firstNonEmpty(ev.Meta("purchaser_email"), ev.CustomerEmail),
		RecipientName:  ev.Meta("recipient_name"),
		RecipientEmail: ev.Meta("recipient_email"),
		Message:        ev.Meta("message"),
		IssuedAt:       now,
		ExpiresAt:      &expires,
	}

	stored, inserted, err := f.stores.GiftCards.CreateIfAbsent(ctx, grant)
	if err != nil {
		return Result{}, fmt.Errorf("create gift card: %w", err)
	}
	if !inserted {
		log.Info("Gift card already issued for payment")
		return Result{Outcome: OutcomeReplayed}, nil
	}
	log.Info("Gift card issued")

	data := map[string]any{
		"RecipientName":  firstNonEmpty(stored.RecipientName, stored.PurchaserName),
		"PurchaserName":  stored.PurchaserName,
		"RecipientEmail": stored.RecipientEmail,
		"Message":        stored.Message,
		"Amount":         stored.AmountMinor,
		"Currency":       stored.Currency,
		"Code":           stored.Code,
		"Reference":      ev.Reference,
	}
	steps := []Step{
		f.emailStep(StepRecipientEmail, firstNonEmpty(stored.RecipientEmail, stored.PurchaserEmail), sender.TplGiftCardRecipient, data),
	}
	if stored.RecipientEmail != "" && stored.RecipientEmail != stored.PurchaserEmail {
		steps = append(steps, f.emailStep(StepReceipt, stored.PurchaserEmail, sender.TplGiftCardReceipt, data))
	}
	steps = append(steps, f.adminStep(ev, stored.PurchaserEmail, "gift card "+stored.Code))

	return Result{Outcome: OutcomeConfirmed, FailedSteps: f.orch.Run(ctx, ev, steps...)}, nil
}
