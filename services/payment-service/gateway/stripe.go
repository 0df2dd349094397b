package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

const (
	StripeSignatureHeader = "Stripe-Signature"
	StripeEventSucceeded  = "payment_intent.succeeded"
)

// Stripe verifies Stripe-Signature headers and re-fetches PaymentIntents.
// The reference is the PaymentIntent id.
type Stripe struct {
	api        *client.API
	webhookKey string
}

// NewStripe builds a Stripe gateway. backends may be nil to use the public API.
func NewStripe(secretKey, webhookKey string, backends *stripe.Backends) *Stripe {
	return &Stripe{api: client.New(secretKey, backends), webhookKey: webhookKey}
}

func (s *Stripe) Name() string            { return "stripe" }
func (s *Stripe) SignatureHeader() string { return StripeSignatureHeader }

func (s *Stripe) VerifySignature(rawBody []byte, header string) bool {
	if s.webhookKey == "" || strings.TrimSpace(header) == "" {
		return false
	}
	_, err := webhook.ConstructEventWithOptions(rawBody, header, s.webhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	return err == nil
}

func (s *Stripe) ParseEnvelope(rawBody []byte) (Envelope, error) {
	var event stripe.Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	env := Envelope{EventType: string(event.Type)}
	if event.Type != StripeEventSucceeded || event.Data == nil {
		return env, nil
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	env.Reference = pi.ID
	env.Actionable = true
	return env, nil
}

func (s *Stripe) VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	pi, err := s.api.PaymentIntents.Get(reference, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("stripe payment intent lookup failed: %w", err)
	}
	if pi.ID != reference {
		return nil, fmt.Errorf("%w: asked for %q, got %q", ErrReferenceMismatch, reference, pi.ID)
	}
	return stripeTransaction(pi, time.Now()), nil
}

// stripeTransaction maps a PaymentIntent. PaidAt is when the latest charge
// settled; the intent itself is created at checkout, often much earlier.
func stripeTransaction(pi *stripe.PaymentIntent, now time.Time) *VerifiedTransaction {
	status := string(pi.Status)
	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		status = StatusSuccess
	}
	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	md := make(map[string]any, len(pi.Metadata))
	for k, v := range pi.Metadata {
		md[k] = v
	}

	paidAt := now.UTC()
	if pi.LatestCharge != nil && pi.LatestCharge.Created > 0 {
		paidAt = time.Unix(pi.LatestCharge.Created, 0).UTC()
	}
	email := pi.ReceiptEmail
	if email == "" && pi.LatestCharge != nil && pi.LatestCharge.BillingDetails != nil {
		email = pi.LatestCharge.BillingDetails.Email
	}

	return &VerifiedTransaction{
		Reference:     pi.ID,
		Status:        status,
		AmountMinor:   amount,
		Currency:      strings.ToUpper(string(pi.Currency)),
		CustomerEmail: email,
		PaidAt:        paidAt,
		Metadata:      md,
	}
}
