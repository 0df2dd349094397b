package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
)

// LabsWebServicesHandler marks a checkout-created shop order as paid.
type LabsWebServicesHandler struct {
	f *Fulfillment
}

func (h *LabsWebServicesHandler) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	f := h.f
	log := f.log(ctx, ev)
	now := f.now().UTC()

	before, after, found, err := f.stores.ShopOrders.Update(ctx, ev.NaturalKey, func(o *models.ShopOrder) (bool, error) {
		var added bool
		o.Payments, added = o.Payments.Record(ev.Entry(models.EntryPurchase))
		if !added {
			return false, nil
		}
		if o.Status != models.OrderStatusPaid {
			o.Status = models.OrderStatusPaid
			o.Reference = ev.Reference
			o.PaidAt = &now
		}
		return true, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("update shop order: %w", err)
	}
	if !found {
		log.Warn("No shop order found for payment")
		return Result{Outcome: OutcomeSkipped}, nil
	}
	if len(after.Payments) == len(before.Payments) {
		log.Info("Payment already recorded on shop order")
		return Result{Outcome: OutcomeReplayed}, nil
	}
	if ev.AmountMinor < after.TotalMinor {
		log.Warn("Shop order paid below its total", zap.Int64("amount", ev.AmountMinor), zap.Int64("total", after.TotalMinor))
	}

	res := Result{Outcome: OutcomeUpdated}
	if before.Status != models.OrderStatusPaid && after.Status == models.OrderStatusPaid {
		log.Info("Shop order paid")
		res.FailedSteps = f.orch.Run(ctx, ev,
			f.emailStep(StepEmail, after.CustomerEmail, sender.TplOrderPaid, map[string]any{
				"Name":     after.CustomerName,
				"Amount":   ev.AmountMinor,
				"Currency": firstNonEmpty(ev.Currency, after.Currency),
				"OrderID":  after.NaturalKey,
				"Items":    after.Items,
			}),
			f.clientStep(Contact{Email: after.CustomerEmail, Name: after.CustomerName}, history("labs_order", ev, "web services order")),
			f.adminStep(ev, after.CustomerEmail, "labs web services order"),
		)
	}
	return res, nil
}

// LabsTierHandler activates a tiered Labs membership.
type LabsTierHandler struct {
	f *Fulfillment
}

func (h *LabsTierHandler) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	f := h.f
	log := f.log(ctx, ev)
	now := f.now().UTC()
	tier := ev.Meta("tier")

	before, after, existed, err := f.stores.Subscribers.UpdateOrCreate(ctx, ev.NaturalKey,
		func() models.Subscriber { return newSubscriber(ev, models.PlanTier, now) },
		func(s *models.Subscriber) (bool, error) {
			var added bool
			s.Payments, added = s.Payments.Record(ev.Entry(models.EntryPayment))
			if !added {
				return false, nil
			}
			if tier != "" {
				s.Tier = tier
			}
			s.Status = models.SubscriberStatusActive
			if s.ActivatedAt == nil {
				s.ActivatedAt = &now
			}
			s.UpdatedAt = now
			return true, nil
		},
	)
	if err != nil {
		return Result{}, fmt.Errorf("upsert subscriber: %w", err)
	}
	res := subscriberOutcome(existed, before, after)
	if res.Outcome == OutcomeReplayed {
		log.Info("Payment already recorded on subscriber")
		return res, nil
	}

	if before.Status != models.SubscriberStatusActive && after.Status == models.SubscriberStatusActive {
		log.Info("Labs tier activated", zap.String("tier", after.Tier))
		res.FailedSteps = f.orch.Run(ctx, ev,
			f.emailStep(StepEmail, after.Email, sender.TplLabsWelcome, map[string]any{
				"Name":      firstNonEmpty(after.Name, after.Email),
				"Tier":      after.Tier,
				"ExpiresAt": "",
			}),
			f.adminStep(ev, after.Email, "labs tier "+after.Tier),
		)
	}
	return res, nil
}

// LabsYearlyHandler starts or extends a yearly Labs subscription. Each new
// payment adds one year from the later of now and the current expiry.
type LabsYearlyHandler struct {
	f *Fulfillment
}

func (h *LabsYearlyHandler) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	f := h.f
	log := f.log(ctx, ev)
	now := f.now().UTC()

	before, after, existed, err := f.stores.Subscribers.UpdateOrCreate(ctx, ev.NaturalKey,
		func() models.Subscriber { return newSubscriber(ev, models.PlanYearly, now) },
		func(s *models.Subscriber) (bool, error) {
			kind := models.EntryPayment
			if len(s.Payments) > 0 {
				kind = models.EntryRenewal
			}
			var added bool
			s.Payments, added = s.Payments.Record(ev.Entry(kind))
			if !added {
				return false, nil
			}
			base := now
			if s.ExpiresAt != nil && s.ExpiresAt.After(now) {
				base = *s.ExpiresAt
			}
			expires := base.AddDate(1, 0, 0)
			s.ExpiresAt = &expires
			s.Plan = models.PlanYearly
			s.Status = models.SubscriberStatusActive
			if s.ActivatedAt == nil {
				s.ActivatedAt = &now
			}
			s.UpdatedAt = now
			return true, nil
		},
	)
	if err != nil {
		return Result{}, fmt.Errorf("upsert subscriber: %w", err)
	}
	res := subscriberOutcome(existed, before, after)
	if res.Outcome == OutcomeReplayed {
		log.Info("Payment already recorded on subscriber")
		return res, nil
	}

	expiry := ""
	if after.ExpiresAt != nil {
		expiry = after.ExpiresAt.In(f.fx.Location).Format("2 January 2006")
	}
	kind, note := sender.TplLabsRenewal, "labs yearly renewal"
	if len(before.Payments) == 0 {
		kind, note = sender.TplLabsWelcome, "labs yearly subscription"
	}
	log.Info("Labs yearly subscription extended", zap.String("expires_at", expiry))
	res.FailedSteps = f.orch.Run(ctx, ev,
		f.emailStep(StepEmail, after.Email, kind, map[string]any{
			"Name":      firstNonEmpty(after.Name, after.Email),
			"Tier":      after.Tier,
			"ExpiresAt": expiry,
		}),
		f.adminStep(ev, after.Email, note),
	)
	return res, nil
}

func newSubscriber(ev models.PaymentEvent, plan string, now time.Time) models.Subscriber {
	return models.Subscriber{
		NaturalKey: ev.NaturalKey,
		Email:      models.NormalizeEmail(firstNonEmpty(ev.Meta("email"), ev.CustomerEmail)),
		Name:       ev.Meta("name"),
		Plan:       plan,
		Tier:       ev.Meta("tier"),
		Status:     models.SubscriberStatusPending,
		UpdatedAt:  now,
	}
}

func subscriberOutcome(existed bool, before, after models.Subscriber) Result {
	switch {
	case !existed:
		return Result{Outcome: OutcomeConfirmed}
	case len(after.Payments) == len(before.Payments):
		return Result{Outcome: OutcomeReplayed}
	default:
		return Result{Outcome: OutcomeUpdated}
	}
}
