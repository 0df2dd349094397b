package models

// PaymentType tags which business entity a payment settles. The gateway echoes
// it back in the transaction metadata under "payment_type".
type PaymentType string

const (
	PaymentTypeBooking                PaymentType = "booking"
	PaymentTypeBookingBalance         PaymentType = "booking_balance"
	PaymentTypeConsultation           PaymentType = "consultation"
	PaymentTypeInvoice                PaymentType = "invoice"
	PaymentTypeGiftCard               PaymentType = "gift_card"
	PaymentTypeLabsWebServices        PaymentType = "labs_web_services"
	PaymentTypeLabsTier               PaymentType = "labs_tier"
	PaymentTypeLabsYearlySubscription PaymentType = "labs_yearly_subscription"
	PaymentTypeCoursePurchase         PaymentType = "course_purchase"
)

// AllPaymentTypes lists every known tag in registry order.
var AllPaymentTypes = []PaymentType{
	PaymentTypeBooking,
	PaymentTypeBookingBalance,
	PaymentTypeConsultation,
	PaymentTypeInvoice,
	PaymentTypeGiftCard,
	PaymentTypeLabsWebServices,
	PaymentTypeLabsTier,
	PaymentTypeLabsYearlySubscription,
	PaymentTypeCoursePurchase,
}

// ParsePaymentType reports whether s is one of the known tags.
func ParsePaymentType(s string) (PaymentType, bool) {
	for _, t := range AllPaymentTypes {
		if string(t) == s {
			return t, true
		}
	}
	return PaymentType(s), false
}

func (t PaymentType) String() string { return string(t) }
