package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metadata keys the checkout flow attaches to every gateway transaction.
const (
	MetaPaymentType = "payment_type"
	MetaNaturalKey  = "natural_key"
)

// PaymentEvent is the re-verified view of a successful charge. It is built only
// from the gateway's verify response and is passed by value.
type PaymentEvent struct {
	EventType     string
	Reference     string
	Status        string
	AmountMinor   int64 // smallest currency unit
	Currency      string
	CustomerEmail string
	PaidAt        time.Time
	PaymentType   PaymentType
	NaturalKey    string
	metadata      map[string]any
}

// NewPaymentEvent copies metadata so later changes to the source map are not visible.
func NewPaymentEvent(eventType, reference, status string, amountMinor int64, currency, email string, paidAt time.Time, metadata map[string]any) PaymentEvent {
	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	ev := PaymentEvent{
		EventType:     eventType,
		Reference:     reference,
		Status:        status,
		AmountMinor:   amountMinor,
		Currency:      strings.ToUpper(currency),
		CustomerEmail: email,
		PaidAt:        paidAt.UTC(),
		metadata:      md,
	}
	ev.PaymentType = PaymentType(ev.Meta(MetaPaymentType))
	ev.NaturalKey = ev.Meta(MetaNaturalKey)
	return ev
}

// Meta returns the metadata value for key rendered as a string, or "".
func (e PaymentEvent) Meta(key string) string {
	v, ok := e.metadata[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// MetaInt returns the metadata value for key as an integer, or 0.
func (e PaymentEvent) MetaInt(key string) int64 {
	n, err := strconv.ParseFloat(e.Meta(key), 64)
	if err != nil {
		return 0
	}
	return int64(n)
}

// Entry converts the event into a ledger entry of the given kind.
func (e PaymentEvent) Entry(kind string) PaymentEntry {
	return PaymentEntry{
		Reference:   e.Reference,
		Kind:        kind,
		AmountMinor: e.AmountMinor,
		Currency:    e.Currency,
		PaidAt:      e.PaidAt,
	}
}

// RecordEvent is published once a payment has produced or updated a durable record.
type RecordEvent struct {
	Type        string    `json:"type"` // "record_confirmed"
	PaymentType string    `json:"payment_type"`
	NaturalKey  string    `json:"natural_key"`
	Reference   string    `json:"reference"`
	Amount      int64     `json:"amount"`   // smallest currency unit
	Currency    string    `json:"currency"` // "KES", "USD"
	Timestamp   time.Time `json:"timestamp"`
}
