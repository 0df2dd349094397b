package models

import "time"

// PendingIntent is a tentative business object created at checkout and
// awaiting payment. The pipeline only reads and removes it.
type PendingIntent[T any] struct {
	NaturalKey string    `json:"natural_key"`
	Payload    T         `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

func (p PendingIntent[T]) Key() string { return p.NaturalKey }

// BookingRequest is the payload of a pending booking.
type BookingRequest struct {
	ClientName     string `json:"client_name"`
	ClientEmail    string `json:"client_email"`
	ClientPhone    string `json:"client_phone,omitempty"`
	Service        string `json:"service"`
	Date           string `json:"date"` // YYYY-MM-DD in the business time zone
	TimeSlot       string `json:"time_slot"`
	Currency       string `json:"currency"`
	PriceMinor     int64  `json:"price_minor"`
	DepositMinor   int64  `json:"deposit_minor"`
	GiftCardCode   string `json:"gift_card_code,omitempty"`
	GiftCardMinor  int64  `json:"gift_card_minor,omitempty"`
	ReferralCode   string `json:"referral_code,omitempty"`
	Notes          string `json:"notes,omitempty"`
	DurationMinute int    `json:"duration_minutes,omitempty"`
}

// ConsultationRequest is the payload of a pending consultation.
type ConsultationRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	Topic          string `json:"topic"`
	Date           string `json:"date"`
	TimeSlot       string `json:"time_slot"`
	Currency       string `json:"currency"`
	FeeMinor       int64  `json:"fee_minor"`
	DurationMinute int    `json:"duration_minutes,omitempty"`
}

// SlotReservation holds a time slot while its booking awaits payment.
type SlotReservation struct {
	NaturalKey string    `json:"natural_key"`
	Date       string    `json:"date"`
	TimeSlot   string    `json:"time_slot"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (s SlotReservation) Key() string { return s.NaturalKey }
