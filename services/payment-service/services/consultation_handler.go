package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
)

// ConsultationHandler promotes a pending consultation once its fee is paid.
type ConsultationHandler struct {
	f *Fulfillment
}

func (h *ConsultationHandler) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	f := h.f
	log := f.log(ctx, ev)

	before, after, found, err := f.stores.Consultations.Update(ctx, ev.NaturalKey, func(c *models.Consultation) (bool, error) {
		var added bool
		c.Payments, added = c.Payments.Record(ev.Entry(models.EntryPayment))
		return added, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("update consultation: %w", err)
	}
	if found {
		if f.retire(ctx, ev, f.stores.PendingConsultations.Retire) {
			f.releaseSlot(ctx, ev)
			log.Warn("Recovered consultation left pending by an interrupted run")
			return Result{Outcome: OutcomeConfirmed, FailedSteps: f.orch.Run(ctx, ev, f.consultationSteps(after, ev)...)}, nil
		}
		f.releaseSlot(ctx, ev)
		if len(after.Payments) == len(before.Payments) {
			log.Info("Payment already recorded on consultation")
			return Result{Outcome: OutcomeReplayed}, nil
		}
		return Result{Outcome: OutcomeUpdated}, nil
	}

	pending, err := f.stores.PendingConsultations.FindPending(ctx, ev.NaturalKey)
	if err != nil {
		return Result{}, fmt.Errorf("find pending consultation: %w", err)
	}
	if pending == nil {
		if _, exists, err := f.stores.Consultations.FindConfirmed(ctx, ev.NaturalKey); err == nil && exists {
			return h.Handle(ctx, ev)
		}
		log.Warn("No pending consultation found for payment")
		return Result{Outcome: OutcomeSkipped}, nil
	}

	stored, inserted, err := f.stores.Consultations.CreateIfAbsent(ctx, newConsultation(*pending, ev, f.now()))
	if err != nil {
		return Result{}, fmt.Errorf("create consultation: %w", err)
	}
	if !inserted {
		log.Info("Consultation was confirmed by a concurrent delivery")
		return Result{Outcome: OutcomeReplayed}, nil
	}
	log.Info("Consultation confirmed")

	owned := f.retire(ctx, ev, f.stores.PendingConsultations.Retire)
	f.releaseSlot(ctx, ev)
	res := Result{Outcome: OutcomeConfirmed}
	if !owned {
		log.Warn("Pending consultation was retired elsewhere, skipping side effects")
		return res, nil
	}
	res.FailedSteps = f.orch.Run(ctx, ev, f.consultationSteps(stored, ev)...)
	return res, nil
}

func (f *Fulfillment) consultationSteps(c models.Consultation, ev models.PaymentEvent) []Step {
	return []Step{
		f.calendarStep(CalendarEvent{
			Summary:        "Consultation - " + c.Name,
			Description:    c.Topic,
			AttendeeEmail:  c.Email,
			IdempotencyKey: c.NaturalKey,
		}, c.Date, c.TimeSlot, c.DurationMinute, func(ctx context.Context, id string) error {
			return saveCalendarID(ctx, f.stores.Consultations, c.NaturalKey, id, func(r *models.Consultation) *string { return &r.CalendarEventID })
		}),
		f.emailStep(StepEmail, c.Email, sender.TplConsultationConfirmed, map[string]any{
			"Name":      c.Name,
			"Topic":     c.Topic,
			"Date":      c.Date,
			"TimeSlot":  c.TimeSlot,
			"Amount":    ev.AmountMinor,
			"Currency":  c.Currency,
			"Reference": ev.Reference,
		}),
		f.clientStep(Contact{Email: c.Email, Name: c.Name, Phone: c.Phone}, history("consultation", ev, c.Topic)),
		f.capacityStep(c.Date),
		f.adminStep(ev, c.Email, "consultation on "+c.Date+" "+c.TimeSlot),
	}
}

func newConsultation(p models.PendingIntent[models.ConsultationRequest], ev models.PaymentEvent, now time.Time) models.Consultation {
	req := p.Payload
	return models.Consultation{
		NaturalKey:     p.NaturalKey,
		Reference:      ev.Reference,
		Name:           req.Name,
		Email:          firstNonEmpty(req.Email, ev.CustomerEmail),
		Phone:          req.Phone,
		Topic:          req.Topic,
		Date:           req.Date,
		TimeSlot:       req.TimeSlot,
		DurationMinute: req.DurationMinute,
		Currency:       firstNonEmpty(ev.Currency, req.Currency),
		FeeMinor:       req.FeeMinor,
		Status:         models.BookingStatusConfirmed,
		Payments:       models.Ledger{ev.Entry(models.EntryPayment)},
		ConfirmedAt:    now.UTC(),
	}
}
