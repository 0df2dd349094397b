package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
)

// BookingHandler promotes a pending booking once its deposit is paid.
type BookingHandler struct {
	f *Fulfillment
}

func (h *BookingHandler) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	f := h.f
	log := f.log(ctx, ev)
	res := Result{}

	before, after, found, err := f.stores.Bookings.Update(ctx, ev.NaturalKey, recordBookingPayment(ev, models.EntryDeposit, f.now()))
	if err != nil {
		return res, fmt.Errorf("update booking: %w", err)
	}
	if found {
		// A pending intent still present here was left by a run that stopped
		// after the booking was written; its side effects never ran.
		if f.retire(ctx, ev, f.stores.PendingBookings.Retire) {
			f.releaseSlot(ctx, ev)
			log.Warn("Recovered booking left pending by an interrupted run")
			res.Outcome = OutcomeConfirmed
			res.FailedSteps = f.orch.Run(ctx, ev, f.bookingSteps(after, ev)...)
			return res, nil
		}
		f.releaseSlot(ctx, ev)
		return f.bookingPaymentApplied(ctx, ev, before, after), nil
	}

	pending, err := f.stores.PendingBookings.FindPending(ctx, ev.NaturalKey)
	if err != nil {
		return res, fmt.Errorf("find pending booking: %w", err)
	}
	if pending == nil {
		// A concurrent delivery may have promoted and retired it in between.
		if _, exists, err := f.stores.Bookings.FindConfirmed(ctx, ev.NaturalKey); err == nil && exists {
			return h.Handle(ctx, ev)
		}
		log.Warn("No pending booking found for payment")
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	booking := newBooking(*pending, ev, f.now())
	if ev.AmountMinor < pending.Payload.DepositMinor {
		log.Warn("Payment is below the requested deposit",
			zap.Int64("amount", ev.AmountMinor),
			zap.Int64("deposit", pending.Payload.DepositMinor),
		)
	}

	stored, inserted, err := f.stores.Bookings.CreateIfAbsent(ctx, booking)
	if err != nil {
		return res, fmt.Errorf("create booking: %w", err)
	}
	if !inserted {
		log.Info("Booking was confirmed by a concurrent delivery")
		res.Outcome = OutcomeReplayed
		return res, nil
	}
	res.Outcome = OutcomeConfirmed
	log.Info("Booking confirmed", zap.String("payment_status", stored.PaymentStatus))

	owned := f.retire(ctx, ev, f.stores.PendingBookings.Retire)
	f.releaseSlot(ctx, ev)
	if !owned {
		log.Warn("Pending booking was retired elsewhere, skipping side effects")
		return res, nil
	}
	res.FailedSteps = f.orch.Run(ctx, ev, f.bookingSteps(stored, ev)...)
	return res, nil
}

// BookingBalanceHandler records a further payment against a confirmed booking.
type BookingBalanceHandler struct {
	f *Fulfillment
}

func (h *BookingBalanceHandler) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	f := h.f
	before, after, found, err := f.stores.Bookings.Update(ctx, ev.NaturalKey, recordBookingPayment(ev, models.EntryBalance, f.now()))
	if err != nil {
		return Result{}, fmt.Errorf("update booking: %w", err)
	}
	if !found {
		f.log(ctx, ev).Warn("No confirmed booking found for balance payment")
		return Result{Outcome: OutcomeSkipped}, nil
	}
	return f.bookingPaymentApplied(ctx, ev, before, after), nil
}

// bookingPaymentApplied runs the paid-in-full side effects the first time a
// booking's ledger covers its price.
func (f *Fulfillment) bookingPaymentApplied(ctx context.Context, ev models.PaymentEvent, before, after models.Booking) Result {
	log := f.log(ctx, ev)
	if len(after.Payments) == len(before.Payments) {
		log.Info("Payment already recorded on booking")
		return Result{Outcome: OutcomeReplayed}
	}

	res := Result{Outcome: OutcomeUpdated}
	log.Info("Booking payment recorded",
		zap.Int64("paid", after.AmountPaid()),
		zap.Int64("price", after.PriceMinor),
		zap.String("payment_status", after.PaymentStatus),
	)
	if before.PaymentStatus != models.BookingPaymentPaidInFull && after.PaymentStatus == models.BookingPaymentPaidInFull {
		res.FailedSteps = f.orch.Run(ctx, ev,
			f.emailStep(StepReceipt, after.ClientEmail, sender.TplBookingPaidInFull, map[string]any{
				"Name":      after.ClientName,
				"Service":   after.Service,
				"Date":      after.Date,
				"Amount":    ev.AmountMinor,
				"Currency":  after.Currency,
				"Reference": ev.Reference,
			}),
			f.clientStep(Contact{Email: after.ClientEmail, Name: after.ClientName, Phone: after.ClientPhone},
				history("booking_paid_in_full", ev, after.Service)),
			f.adminStep(ev, after.ClientEmail, "booking paid in full"),
		)
	}
	return res
}

// bookingSteps redeems any gift card first so the calendar entry and the
// confirmation email show what is actually settled.
func (f *Fulfillment) bookingSteps(b models.Booking, ev models.PaymentEvent) []Step {
	cur := b
	contact := Contact{Email: b.ClientEmail, Name: b.ClientName, Phone: b.ClientPhone}

	var steps []Step
	if b.GiftCardCode != "" && b.GiftCardMinor > 0 {
		steps = append(steps, Step{Name: StepGiftCard, Run: func(ctx context.Context) error {
			if err := f.fx.GiftCards.Redeem(ctx, b.GiftCardCode, b.GiftCardMinor, b.NaturalKey); err != nil {
				return err
			}
			_, after, found, err := f.stores.Bookings.Update(ctx, b.NaturalKey, recordGiftCard(b, f.now()))
			if err != nil {
				return fmt.Errorf("record gift card on booking: %w", err)
			}
			if found {
				cur = after
			}
			return nil
		}})
	}

	steps = append(steps,
		Step{Name: StepCalendar, Run: func(ctx context.Context) error {
			return f.calendarStep(CalendarEvent{
				Summary:        fmt.Sprintf("%s - %s", cur.Service, cur.ClientName),
				Description:    fmt.Sprintf("Booking %s, %s", cur.NaturalKey, cur.PaymentStatus),
				AttendeeEmail:  cur.ClientEmail,
				IdempotencyKey: cur.NaturalKey,
			}, cur.Date, cur.TimeSlot, cur.DurationMinute, func(ctx context.Context, id string) error {
				return saveCalendarID(ctx, f.stores.Bookings, cur.NaturalKey, id, func(r *models.Booking) *string { return &r.CalendarEventID })
			}).Run(ctx)
		}},
		Step{Name: StepEmail, Run: func(ctx context.Context) error {
			return f.fx.Notifier.Send(ctx, cur.ClientEmail, sender.TplBookingConfirmed, map[string]any{
				"Name":        cur.ClientName,
				"Service":     cur.Service,
				"Date":        cur.Date,
				"TimeSlot":    cur.TimeSlot,
				"Paid":        cur.AmountPaid(),
				"Outstanding": cur.Outstanding(),
				"Currency":    cur.Currency,
				"Reference":   ev.Reference,
			})
		}},
		f.clientStep(contact, history("booking", ev, b.Service+" on "+b.Date)),
		f.referralStep(b.ClientEmail, b.ClientName),
		f.capacityStep(b.Date),
		f.adminStep(ev, b.ClientEmail, b.Service+" on "+b.Date+" "+b.TimeSlot),
	)
	return steps
}

// recordGiftCard books a redeemed gift card as a ledger entry, once per code.
func recordGiftCard(b models.Booking, now time.Time) repository.UpdateFunc[models.Booking] {
	entry := models.PaymentEntry{
		Reference:   "giftcard:" + normalizeCode(b.GiftCardCode),
		Kind:        models.EntryGiftCard,
		AmountMinor: b.GiftCardMinor,
		Currency:    b.Currency,
		PaidAt:      now.UTC(),
	}
	return func(rec *models.Booking) (bool, error) {
		var added bool
		rec.Payments, added = rec.Payments.Record(entry)
		if !added {
			return false, nil
		}
		rec.SettlePaymentStatus(now)
		return true, nil
	}
}

// recordBookingPayment appends ev to the ledger once and re-derives the payment status.
func recordBookingPayment(ev models.PaymentEvent, kind string, now time.Time) repository.UpdateFunc[models.Booking] {
	return func(b *models.Booking) (bool, error) {
		if len(b.Payments) > 0 && kind == models.EntryDeposit {
			kind = models.EntryBalance
		}
		var added bool
		b.Payments, added = b.Payments.Record(ev.Entry(kind))
		if !added {
			return false, nil
		}
		b.SettlePaymentStatus(now)
		return true, nil
	}
}

func newBooking(p models.PendingIntent[models.BookingRequest], ev models.PaymentEvent, now time.Time) models.Booking {
	req := p.Payload
	b := models.Booking{
		NaturalKey:     p.NaturalKey,
		Reference:      ev.Reference,
		ClientName:     req.ClientName,
		ClientEmail:    firstNonEmpty(req.ClientEmail, ev.CustomerEmail),
		ClientPhone:    req.ClientPhone,
		Service:        req.Service,
		Date:           req.Date,
		TimeSlot:       req.TimeSlot,
		DurationMinute: req.DurationMinute,
		Currency:       firstNonEmpty(ev.Currency, req.Currency),
		PriceMinor:     req.PriceMinor,
		DepositMinor:   req.DepositMinor,
		GiftCardCode:   req.GiftCardCode,
		GiftCardMinor:  req.GiftCardMinor,
		ReferralCode:   req.ReferralCode,
		Notes:          req.Notes,
		Status:         models.BookingStatusConfirmed,
		Payments:       models.Ledger{ev.Entry(models.EntryDeposit)},
		ConfirmedAt:    now.UTC(),
	}
	b.SettlePaymentStatus(now)
	return b
}

// saveCalendarID stores id on the record unless one is already set.
func saveCalendarID[T repository.Keyed](ctx context.Context, store *repository.ConfirmedStore[T], key, id string, field func(*T) *string) error {
	_, _, _, err := store.Update(ctx, key, func(rec *T) (bool, error) {
		p := field(rec)
		if *p != "" {
			return false, nil
		}
		*p = id
		return true, nil
	})
	return err
}
