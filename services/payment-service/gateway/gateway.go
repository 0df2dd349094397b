// Package gateway verifies inbound payment notifications and re-fetches the
// transaction they refer to from the payment provider.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
)

// StatusSuccess is the normalized status of a settled charge.
const StatusSuccess = "success"

var (
	// ErrTransactionNotFound means the provider has no transaction for the reference.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrMalformedEnvelope means the webhook body could not be decoded.
	ErrMalformedEnvelope = errors.New("malformed webhook envelope")
	// ErrReferenceMismatch means the provider answered for a different transaction.
	ErrReferenceMismatch = errors.New("verified reference does not match")
)

// Envelope is the little the pipeline reads from an unverified webhook body:
// which event it is and which transaction to re-fetch.
type Envelope struct {
	EventType string
	Reference string
	// Actionable is false for event types that never confirm a payment.
	Actionable bool
}

// VerifiedTransaction is the provider's authoritative view of a transaction.
type VerifiedTransaction struct {
	Reference     string
	Status        string
	AmountMinor   int64
	Currency      string
	CustomerEmail string
	PaidAt        time.Time
	Metadata      map[string]any
}

// Succeeded reports whether the provider settled the charge.
func (t VerifiedTransaction) Succeeded() bool {
	return strings.EqualFold(t.Status, StatusSuccess)
}

// Event builds the immutable payment event the handlers consume.
func (t VerifiedTransaction) Event(eventType string) models.PaymentEvent {
	return models.NewPaymentEvent(eventType, t.Reference, t.Status, t.AmountMinor, t.Currency, t.CustomerEmail, t.PaidAt, t.Metadata)
}

// Gateway is implemented once per payment provider.
type Gateway interface {
	Name() string
	// SignatureHeader is the request header carrying the body signature.
	SignatureHeader() string
	// VerifySignature checks header against the raw body. It never panics and
	// returns false for missing or malformed headers.
	VerifySignature(rawBody []byte, header string) bool
	ParseEnvelope(rawBody []byte) (Envelope, error)
	// VerifyTransaction fetches the transaction by reference from the provider.
	VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error)
}
