package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
)

// Outcome summarizes what one payment did to the store.
type Outcome string

const (
	OutcomeConfirmed     Outcome = "confirmed"      // a new record was created or promoted
	OutcomeUpdated       Outcome = "updated"        // an existing record took a new payment
	OutcomeReplayed      Outcome = "replayed"       // the payment was already applied
	OutcomeSkipped       Outcome = "skipped"        // nothing to promote or update
	OutcomeUnknownType   Outcome = "unknown_type"   // no handler for the payment type
	OutcomeIgnored       Outcome = "ignored"        // event type never confirms a payment
	OutcomeNotSuccessful Outcome = "not_successful" // provider reports the charge did not succeed
	OutcomeInvalid       Outcome = "invalid"        // unreadable envelope or missing natural key
	OutcomeFailed        Outcome = "failed"         // re-verification or the handler errored
)

// Result is returned for every processed payment.
type Result struct {
	Outcome     Outcome
	PaymentType models.PaymentType
	NaturalKey  string
	Reference   string
	FailedSteps []string
}

// Confirmed reports whether a durable record for the payment exists.
func (r Result) Confirmed() bool {
	switch r.Outcome {
	case OutcomeConfirmed, OutcomeUpdated, OutcomeReplayed:
		return true
	}
	return false
}

// Handler applies a verified payment to one kind of record.
type Handler interface {
	Handle(ctx context.Context, ev models.PaymentEvent) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev models.PaymentEvent) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	return f(ctx, ev)
}

// Handlers has one field per payment type so a missing handler is a compile
// or construction error rather than a silently unknown tag.
type Handlers struct {
	Booking                Handler
	BookingBalance         Handler
	Consultation           Handler
	Invoice                Handler
	GiftCard               Handler
	LabsWebServices        Handler
	LabsTier               Handler
	LabsYearlySubscription Handler
	CoursePurchase         Handler
}

func (h Handlers) registry() map[models.PaymentType]Handler {
	return map[models.PaymentType]Handler{
		models.PaymentTypeBooking:                h.Booking,
		models.PaymentTypeBookingBalance:         h.BookingBalance,
		models.PaymentTypeConsultation:           h.Consultation,
		models.PaymentTypeInvoice:                h.Invoice,
		models.PaymentTypeGiftCard:               h.GiftCard,
		models.PaymentTypeLabsWebServices:        h.LabsWebServices,
		models.PaymentTypeLabsTier:               h.LabsTier,
		models.PaymentTypeLabsYearlySubscription: h.LabsYearlySubscription,
		models.PaymentTypeCoursePurchase:         h.CoursePurchase,
	}
}

// Router dispatches payments by their payment_type tag.
type Router struct {
	handlers map[models.PaymentType]Handler
	logger   *zap.Logger
}

func NewRouter(h Handlers, logger *zap.Logger) (*Router, error) {
	reg := h.registry()
	var missing []error
	for _, t := range models.AllPaymentTypes {
		if reg[t] == nil {
			missing = append(missing, fmt.Errorf("no handler for payment type %q", t))
		}
	}
	if len(missing) > 0 {
		return nil, errors.Join(missing...)
	}
	return &Router{handlers: reg, logger: logger}, nil
}

// Route runs the handler for ev.PaymentType. An unknown type is logged and
// reported as OutcomeUnknownType, never as an error. A handler panic is
// returned as an error.
func (r *Router) Route(ctx context.Context, ev models.PaymentEvent) (res Result, err error) {
	res = Result{PaymentType: ev.PaymentType, NaturalKey: ev.NaturalKey, Reference: ev.Reference}

	h, ok := r.handlers[ev.PaymentType]
	if !ok {
		r.logger.Warn("Unknown payment type, ignoring payment",
			zap.String("payment_type", string(ev.PaymentType)),
			zap.String("reference", ev.Reference),
		)
		res.Outcome = OutcomeUnknownType
		return res, nil
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%s handler panicked: %v", ev.PaymentType, p)
			res.Outcome = OutcomeFailed
		}
	}()

	out, err := h.Handle(ctx, ev)
	out.PaymentType, out.NaturalKey, out.Reference = ev.PaymentType, ev.NaturalKey, ev.Reference
	if err != nil {
		out.Outcome = OutcomeFailed
	}
	return out, err
}
