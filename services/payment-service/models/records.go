package models

import (
	"strings"
	"time"
)

const (
	BookingStatusConfirmed = "confirmed"

	BookingPaymentDepositPaid = "deposit_paid"
	BookingPaymentPaidInFull  = "paid_in_full"

	InvoiceStatusSent          = "sent"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"

	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"

	SubscriberStatusPending = "pending"
	SubscriberStatusActive  = "active"

	PlanTier   = "tier"
	PlanYearly = "yearly"
)

// Booking is a confirmed appointment.
type Booking struct {
	NaturalKey      string     `json:"natural_key"`
	Reference       string     `json:"reference"`
	ClientName      string     `json:"client_name"`
	ClientEmail     string     `json:"client_email"`
	ClientPhone     string     `json:"client_phone,omitempty"`
	Service         string     `json:"service"`
	Date            string     `json:"date"`
	TimeSlot        string     `json:"time_slot"`
	DurationMinute  int        `json:"duration_minutes,omitempty"`
	Currency        string     `json:"currency"`
	PriceMinor      int64      `json:"price_minor"`
	DepositMinor    int64      `json:"deposit_minor"`
	GiftCardCode    string     `json:"gift_card_code,omitempty"`
	GiftCardMinor   int64      `json:"gift_card_minor,omitempty"`
	ReferralCode    string     `json:"referral_code,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	Status          string     `json:"status"`
	PaymentStatus   string     `json:"payment_status"`
	Payments        Ledger     `json:"payments"`
	CalendarEventID string     `json:"calendar_event_id,omitempty"`
	ConfirmedAt     time.Time  `json:"confirmed_at"`
	PaidInFullAt    *time.Time `json:"paid_in_full_at,omitempty"`
}

func (b Booking) Key() string { return b.NaturalKey }

// AmountPaid sums the ledger. A gift card counts once its redemption is
// recorded there; GiftCardMinor alone is only what the client asked to apply.
func (b Booking) AmountPaid() int64 { return b.Payments.Total() }

// Outstanding is what is still owed, never negative.
func (b Booking) Outstanding() int64 {
	if rest := b.PriceMinor - b.AmountPaid(); rest > 0 {
		return rest
	}
	return 0
}

// SettlePaymentStatus recomputes PaymentStatus from the ledger and stamps
// PaidInFullAt the first time the price is covered.
func (b *Booking) SettlePaymentStatus(now time.Time) {
	if b.PriceMinor > 0 && b.AmountPaid() >= b.PriceMinor {
		b.PaymentStatus = BookingPaymentPaidInFull
		if b.PaidInFullAt == nil {
			t := now.UTC()
			b.PaidInFullAt = &t
		}
		return
	}
	b.PaymentStatus = BookingPaymentDepositPaid
}

// Consultation is a confirmed paid consultation.
type Consultation struct {
	NaturalKey      string    `json:"natural_key"`
	Reference       string    `json:"reference"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone,omitempty"`
	Topic           string    `json:"topic"`
	Date            string    `json:"date"`
	TimeSlot        string    `json:"time_slot"`
	DurationMinute  int       `json:"duration_minutes,omitempty"`
	Currency        string    `json:"currency"`
	FeeMinor        int64     `json:"fee_minor"`
	Status          string    `json:"status"`
	Payments        Ledger    `json:"payments"`
	CalendarEventID string    `json:"calendar_event_id,omitempty"`
	ConfirmedAt     time.Time `json:"confirmed_at"`
}

func (c Consultation) Key() string { return c.NaturalKey }

// Invoice is issued by the studio before payment; the pipeline only settles it.
type Invoice struct {
	NaturalKey  string     `json:"natural_key"`
	Number      string     `json:"number"`
	ClientName  string     `json:"client_name"`
	ClientEmail string     `json:"client_email"`
	Currency    string     `json:"currency"`
	TotalMinor  int64      `json:"total_minor"`
	Status      string     `json:"status"`
	Payments    Ledger     `json:"payments"`
	IssuedAt    time.Time  `json:"issued_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

func (i Invoice) Key() string { return i.NaturalKey }

// Settle recomputes Status from the ledger.
func (i *Invoice) Settle(now time.Time) {
	paid := i.Payments.Total()
	switch {
	case i.TotalMinor > 0 && paid >= i.TotalMinor:
		i.Status = InvoiceStatusPaid
		if i.PaidAt == nil {
			t := now.UTC()
			i.PaidAt = &t
		}
	case paid > 0:
		i.Status = InvoiceStatusPartiallyPaid
	default:
		i.Status = InvoiceStatusSent
	}
}

// OrderItem is one line of a shop order.
type OrderItem struct {
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitMinor int64  `json:"unit_minor"`
}

// ShopOrder is a labs web-services order created at checkout in pending_payment.
type ShopOrder struct {
	NaturalKey    string      `json:"natural_key"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	Items         []OrderItem `json:"items"`
	Currency      string      `json:"currency"`
	TotalMinor    int64       `json:"total_minor"`
	Status        string      `json:"status"`
	Reference     string      `json:"reference,omitempty"`
	Payments      Ledger      `json:"payments"`
	CreatedAt     time.Time   `json:"created_at"`
	PaidAt        *time.Time  `json:"paid_at,omitempty"`
}

func (o ShopOrder) Key() string { return o.NaturalKey }

// Subscriber is a labs member on either a tier or a yearly plan.
type Subscriber struct {
	NaturalKey  string     `json:"natural_key"`
	Email       string     `json:"email"`
	Name        string     `json:"name,omitempty"`
	Plan        string     `json:"plan"`
	Tier        string     `json:"tier,omitempty"`
	Status      string     `json:"status"`
	Payments    Ledger     `json:"payments"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s Subscriber) Key() string { return s.NaturalKey }

// GiftCardRedemption is one debit against a gift card, keyed by the record it paid for.
type GiftCardRedemption struct {
	RefID       string    `json:"ref_id"`
	AmountMinor int64     `json:"amount_minor"`
	At          time.Time `json:"at"`
}

// GiftCardGrant is a purchased gift card.
type GiftCardGrant struct {
	NaturalKey     string               `json:"natural_key"`
	Code           string               `json:"code"`
	Reference      string               `json:"reference"`
	Currency       string               `json:"currency"`
	AmountMinor    int64                `json:"amount_minor"`
	BalanceMinor   int64                `json:"balance_minor"`
	PurchaserName  string               `json:"purchaser_name,omitempty"`
	PurchaserEmail string               `json:"purchaser_email"`
	RecipientName  string               `json:"recipient_name,omitempty"`
	RecipientEmail string               `json:"recipient_email,omitempty"`
	Message        string               `json:"message,omitempty"`
	Redemptions    []GiftCardRedemption `json:"redemptions,omitempty"`
	IssuedAt       time.Time            `json:"issued_at"`
	ExpiresAt      *time.Time           `json:"expires_at,omitempty"`
}

func (g GiftCardGrant) Key() string { return g.NaturalKey }

// Redeemed reports whether refID already debited this card.
func (g GiftCardGrant) Redeemed(refID string) bool {
	for _, r := range g.Redemptions {
		if r.RefID == refID {
			return true
		}
	}
	return false
}

// CoursePurchase grants access to a recorded course.
type CoursePurchase struct {
	NaturalKey  string    `json:"natural_key"`
	CourseID    string    `json:"course_id"`
	CourseTitle string    `json:"course_title,omitempty"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email"`
	AccessCode  string    `json:"access_code"`
	Reference   string    `json:"reference"`
	Currency    string    `json:"currency"`
	AmountMinor int64     `json:"amount_minor"`
	PurchasedAt time.Time `json:"purchased_at"`
}

func (c CoursePurchase) Key() string { return c.NaturalKey }

// ClientHistoryEntry is one line in a client's account history.
type ClientHistoryEntry struct {
	Kind        string    `json:"kind"`
	NaturalKey  string    `json:"natural_key"`
	Reference   string    `json:"reference,omitempty"`
	AmountMinor int64     `json:"amount_minor,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Note        string    `json:"note,omitempty"`
	At          time.Time `json:"at"`
}

// ClientProfile is the studio's view of a customer, keyed by normalized email.
type ClientProfile struct {
	Email     string               `json:"email"`
	Name      string               `json:"name,omitempty"`
	Phone     string               `json:"phone,omitempty"`
	History   []ClientHistoryEntry `json:"history,omitempty"`
	FirstSeen time.Time            `json:"first_seen"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (c ClientProfile) Key() string { return NormalizeEmail(c.Email) }

// HasHistory reports whether an entry of kind for naturalKey exists.
func (c ClientProfile) HasHistory(kind, naturalKey string) bool {
	for _, h := range c.History {
		if h.Kind == kind && h.NaturalKey == naturalKey {
			return true
		}
	}
	return false
}

// Referral is a client's personal referral code.
type Referral struct {
	Email      string    `json:"email"`
	Code       string    `json:"code"`
	IssuedAt   time.Time `json:"issued_at"`
	SentCount  int       `json:"sent_count"`
	LastSentAt time.Time `json:"last_sent_at"`
}

func (r Referral) Key() string { return NormalizeEmail(r.Email) }

// DayCapacity tracks how many slots of a day are taken.
type DayCapacity struct {
	Date        string    `json:"date"`
	Booked      int       `json:"booked"`
	Slots       int       `json:"slots"`
	FullyBooked bool      `json:"fully_booked"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (d DayCapacity) Key() string { return d.Date }

// SideEffectFailure records a best-effort step that failed after the state change committed.
type SideEffectFailure struct {
	ID          string    `json:"id"`
	Step        string    `json:"step"`
	PaymentType string    `json:"payment_type"`
	NaturalKey  string    `json:"natural_key"`
	Reference   string    `json:"reference"`
	Error       string    `json:"error"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (f SideEffectFailure) Key() string { return f.ID }

// NormalizeEmail lower-cases and trims an address for use as a key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
