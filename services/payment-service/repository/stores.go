package repository

import "github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"

// Collection document ids.
const (
	CollPendingBookings      = "pending-bookings"
	CollBookings             = "bookings"
	CollSlotReservations     = "slot-reservations"
	CollPendingConsultations = "pending-consultations"
	CollConsultations        = "consultations"
	CollInvoices             = "invoices"
	CollShopOrders           = "shop-orders"
	CollSubscribers          = "subscribers"
	CollGiftCards            = "gift-cards"
	CollCoursePurchases      = "course-purchases"
	CollClients              = "clients"
	CollReferrals            = "referrals"
	CollAvailability         = "availability"
	CollSideEffectFailures   = "side-effect-failures"
)

// AllCollections lists every document id the service owns.
var AllCollections = []string{
	CollPendingBookings, CollBookings, CollSlotReservations,
	CollPendingConsultations, CollConsultations, CollInvoices,
	CollShopOrders, CollSubscribers, CollGiftCards, CollCoursePurchases,
	CollClients, CollReferrals, CollAvailability, CollSideEffectFailures,
}

// Stores bundles the typed views over one DocumentStore.
type Stores struct {
	PendingBookings      *PendingStore[models.BookingRequest]
	Bookings             *ConfirmedStore[models.Booking]
	Slots                *RecordStore[models.SlotReservation]
	PendingConsultations *PendingStore[models.ConsultationRequest]
	Consultations        *ConfirmedStore[models.Consultation]
	Invoices             *ConfirmedStore[models.Invoice]
	ShopOrders           *ConfirmedStore[models.ShopOrder]
	Subscribers          *ConfirmedStore[models.Subscriber]
	GiftCards            *ConfirmedStore[models.GiftCardGrant]
	CoursePurchases      *ConfirmedStore[models.CoursePurchase]
	Clients              *RecordStore[models.ClientProfile]
	Referrals            *RecordStore[models.Referral]
	Availability         *RecordStore[models.DayCapacity]
	Failures             *RecordStore[models.SideEffectFailure]
}

func NewStores(doc DocumentStore) *Stores {
	return &Stores{
		PendingBookings:      NewPendingStore[models.BookingRequest](doc, CollPendingBookings),
		Bookings:             NewConfirmedStore[models.Booking](doc, CollBookings),
		Slots:                NewRecordStore[models.SlotReservation](doc, CollSlotReservations),
		PendingConsultations: NewPendingStore[models.ConsultationRequest](doc, CollPendingConsultations),
		Consultations:        NewConfirmedStore[models.Consultation](doc, CollConsultations),
		Invoices:             NewConfirmedStore[models.Invoice](doc, CollInvoices),
		ShopOrders:           NewConfirmedStore[models.ShopOrder](doc, CollShopOrders),
		Subscribers:          NewConfirmedStore[models.Subscriber](doc, CollSubscribers),
		GiftCards:            NewConfirmedStore[models.GiftCardGrant](doc, CollGiftCards),
		CoursePurchases:      NewConfirmedStore[models.CoursePurchase](doc, CollCoursePurchases),
		Clients:              NewRecordStore[models.ClientProfile](doc, CollClients),
		Referrals:            NewRecordStore[models.Referral](doc, CollReferrals),
		Availability:         NewRecordStore[models.DayCapacity](doc, CollAvailability),
		Failures:             NewRecordStore[models.SideEffectFailure](doc, CollSideEffectFailures),
	}
}
