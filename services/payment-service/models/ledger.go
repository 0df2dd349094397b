package models

import "time"

const (
	EntryDeposit  = "deposit"
	EntryBalance  = "balance"
	EntryPayment  = "payment"
	EntryRenewal  = "renewal"
	EntryPurchase = "purchase"
	EntryGiftCard = "gift_card"
)

// PaymentEntry is one settled charge against a record.
type PaymentEntry struct {
	Reference   string    `json:"reference"`
	Kind        string    `json:"kind"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	PaidAt      time.Time `json:"paid_at"`
}

// Ledger is an append-only list of payments. A reference appears at most once.
type Ledger []PaymentEntry

// Has reports whether a payment with reference was already recorded.
func (l Ledger) Has(reference string) bool {
	for _, e := range l {
		if e.Reference == reference {
			return true
		}
	}
	return false
}

// Total sums every recorded payment.
func (l Ledger) Total() int64 {
	var sum int64
	for _, e := range l {
		sum += e.AmountMinor
	}
	return sum
}

// Record appends entry unless its reference is already present.
func (l Ledger) Record(entry PaymentEntry) (Ledger, bool) {
	if entry.Reference == "" || l.Has(entry.Reference) {
		return l, false
	}
	return append(l, entry), true
}
