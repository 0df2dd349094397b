package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cate-nduta/Lash-Business-sub002/services/common/logger"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
)

// Step names, as they appear in failure records.
const (
	StepCalendar       = "create_calendar_event"
	StepEmail          = "send_confirmation_email"
	StepReceipt        = "send_receipt_email"
	StepRecipientEmail = "send_recipient_email"
	StepClient         = "upsert_client"
	StepGiftCard       = "redeem_gift_card"
	StepReferral       = "issue_referral_code"
	StepCapacity       = "recompute_capacity"
	StepAdmin          = "notify_admin"
	StepRemovePending  = "remove_pending"
	StepReleaseSlot    = "release_slot"
	StepReverify       = "reverify_transaction"
	StepHandler        = "handle_payment"
)

// SideEffects are the collaborators the best-effort steps call.
type SideEffects struct {
	Calendar  CalendarClient
	Notifier  *Notifier
	Clients   ClientDirectory
	GiftCards GiftCardLedger
	Referrals ReferralIssuer
	Capacity  *Capacity
	Location  *time.Location
}

// Fulfillment is shared by every type handler.
type Fulfillment struct {
	stores *repository.Stores
	fx     SideEffects
	orch   *Orchestrator
	logger *zap.Logger
	now    func() time.Time
}

func NewFulfillment(stores *repository.Stores, fx SideEffects, orch *Orchestrator, logger *zap.Logger) *Fulfillment {
	if fx.Calendar == nil {
		fx.Calendar = NoopCalendar{}
	}
	if fx.Location == nil {
		fx.Location = time.UTC
	}
	return &Fulfillment{stores: stores, fx: fx, orch: orch, logger: logger, now: time.Now}
}

// NewHandlers builds the full handler set.
func NewHandlers(f *Fulfillment) Handlers {
	return Handlers{
		Booking:                &BookingHandler{f: f},
		BookingBalance:         &BookingBalanceHandler{f: f},
		Consultation:           &ConsultationHandler{f: f},
		Invoice:                &InvoiceHandler{f: f},
		GiftCard:               &GiftCardHandler{f: f},
		LabsWebServices:        &LabsWebServicesHandler{f: f},
		LabsTier:               &LabsTierHandler{f: f},
		LabsYearlySubscription: &LabsYearlyHandler{f: f},
		CoursePurchase:         &CoursePurchaseHandler{f: f},
	}
}

func (f *Fulfillment) log(ctx context.Context, ev models.PaymentEvent) *zap.Logger {
	return logger.With(ctx, f.logger).With(
		zap.String("payment_type", string(ev.PaymentType)),
		zap.String("natural_key", ev.NaturalKey),
		zap.String("reference", ev.Reference),
	)
}

// retire removes a pending intent after its record is durable and reports
// whether this call removed it. Only the caller that retires the intent runs
// the one-time side effects.
func (f *Fulfillment) retire(ctx context.Context, ev models.PaymentEvent, retire func(context.Context, string) (bool, error)) bool {
	removed, err := retire(ctx, ev.NaturalKey)
	if err != nil {
		f.orch.Fail(ctx, ev, StepRemovePending, err)
		return false
	}
	return removed
}

func (f *Fulfillment) releaseSlot(ctx context.Context, ev models.PaymentEvent) {
	if _, err := f.stores.Slots.Remove(ctx, ev.NaturalKey); err != nil {
		f.orch.Fail(ctx, ev, StepReleaseSlot, err)
	}
}

func (f *Fulfillment) emailStep(name, to, kind string, data map[string]any) Step {
	return Step{Name: name, Run: func(ctx context.Context) error {
		return f.fx.Notifier.Send(ctx, to, kind, data)
	}}
}

func (f *Fulfillment) clientStep(contact Contact, entry models.ClientHistoryEntry) Step {
	return Step{Name: StepClient, Run: func(ctx context.Context) error {
		return f.fx.Clients.Upsert(ctx, contact, &entry)
	}}
}

func (f *Fulfillment) adminStep(ev models.PaymentEvent, customer, note string) Step {
	return Step{Name: StepAdmin, Run: func(ctx context.Context) error {
		return f.fx.Notifier.NotifyAdmin(ctx, ev, customer, note)
	}}
}

func (f *Fulfillment) referralStep(email, name string) Step {
	return Step{Name: StepReferral, Run: func(ctx context.Context) error {
		ref, _, err := f.fx.Referrals.Issue(ctx, email, name)
		if err != nil {
			return err
		}
		return f.fx.Notifier.Send(ctx, email, sender.TplReferralCode, map[string]any{
			"Name": name,
			"Code": ref.Code,
		})
	}}
}

func (f *Fulfillment) capacityStep(date string) Step {
	return Step{Name: StepCapacity, Run: func(ctx context.Context) error {
		_, err := f.fx.Capacity.Recompute(ctx, date)
		return err
	}}
}

// calendarStep creates the event and hands the id to save. A calendar that
// returns no id is treated as not configured.
func (f *Fulfillment) calendarStep(ev CalendarEvent, date, slot string, minutes int, save func(ctx context.Context, id string) error) Step {
	return Step{Name: StepCalendar, Run: func(ctx context.Context) error {
		start, end, err := slotWindow(date, slot, minutes, f.fx.Location)
		if err != nil {
			return err
		}
		ev.Start, ev.End = start, end
		id, err := f.fx.Calendar.CreateEvent(ctx, ev)
		if err != nil || id == "" {
			return err
		}
		return save(ctx, id)
	}}
}

func history(kind string, ev models.PaymentEvent, note string) models.ClientHistoryEntry {
	return models.ClientHistoryEntry{
		Kind:        kind,
		NaturalKey:  ev.NaturalKey,
		Reference:   ev.Reference,
		AmountMinor: ev.AmountMinor,
		Currency:    ev.Currency,
		Note:        note,
		At:          ev.PaidAt,
	}
}

// firstNonEmpty returns the first non-blank value.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
