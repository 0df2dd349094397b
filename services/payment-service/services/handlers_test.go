package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
)

func TestBookingHandler_ConcurrentDeliveriesRunSideEffectsOnce(t *testing.T) {
	h := newHarness(t)
	addPendingBooking(t, h, "bk-1", sampleBookingRequest())
	ev := paymentEvent(models.PaymentTypeBooking, "bk-1", "ref-1", 200000, nil)

	const deliveries = 4
	outcomes := make([]Outcome, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.router.Route(context.Background(), ev)
			assert.NoError(t, err)
			outcomes[i] = res.Outcome
		}(i)
	}
	wg.Wait()

	confirmed := 0
	for _, o := range outcomes {
		if o == OutcomeConfirmed {
			confirmed++
		} else {
			assert.Equal(t, OutcomeReplayed, o)
		}
	}
	assert.GreaterOrEqual(t, confirmed, 1)
	assert.Equal(t, 1, h.calendar.count())
	assert.Len(t, h.email.to(adminEmail), 1)

	bookings, err := h.stores.Bookings.List(context.Background())
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Len(t, bookings[0].Payments, 1)
}

func TestConsultationHandler_PromotesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.stores.PendingConsultations.AddPending(ctx, models.PendingIntent[models.ConsultationRequest]{
		NaturalKey: "cs-1",
		Payload: models.ConsultationRequest{
			Name:     "Wanjiku",
			Email:    "wanjiku@lash.test",
			Topic:    "Lash lift aftercare",
			Date:     "2025-03-15",
			TimeSlot: "2:30 PM",
			Currency: "KES",
			FeeMinor: 150000,
		},
	}))
	ev := paymentEvent(models.PaymentTypeConsultation, "cs-1", "ref-cs", 150000, nil)

	first := h.route(t, ev)
	second := h.route(t, ev)

	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.Equal(t, OutcomeReplayed, second.Outcome)
	c, ok, err := h.stores.Consultations.FindConfirmed(ctx, "cs-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cal-cs-1", c.CalendarEventID)
	assert.Equal(t, 1, h.calendar.count())
	assert.Len(t, h.email.to("wanjiku@lash.test"), 1)

	pending, err := h.stores.PendingConsultations.FindPending(ctx, "cs-1")
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestConsultationHandler_FillsDayCapacity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, key := range []string{"bk-1", "bk-2", "bk-3"} {
		require.NoError(t, h.stores.Bookings.UpsertConfirmed(ctx, models.Booking{
			NaturalKey: key,
			Date:       "2025-03-15",
			Status:     models.BookingStatusConfirmed,
		}))
	}
	require.NoError(t, h.stores.PendingConsultations.AddPending(ctx, models.PendingIntent[models.ConsultationRequest]{
		NaturalKey: "cs-1",
		Payload: models.ConsultationRequest{
			Name:     "Wanjiku",
			Email:    "wanjiku@lash.test",
			Date:     "2025-03-15",
			TimeSlot: "2:30 PM",
			FeeMinor: 150000,
		},
	}))

	res := h.route(t, paymentEvent(models.PaymentTypeConsultation, "cs-1", "ref-cs", 150000, nil))
	assert.Empty(t, res.FailedSteps)

	day, ok, err := h.stores.Availability.Find(ctx, "2025-03-15")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, day.Booked)
	assert.True(t, day.FullyBooked)
}

func TestInvoiceHandler_PartialThenPaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.stores.Invoices.UpsertConfirmed(ctx, models.Invoice{
		NaturalKey:  "inv-7",
		Number:      "INV-0007",
		ClientName:  "Njeri",
		ClientEmail: "njeri@lash.test",
		Currency:    "KES",
		TotalMinor:  500000,
		Status:      models.InvoiceStatusSent,
	}))

	partial := h.route(t, paymentEvent(models.PaymentTypeInvoice, "inv-7", "ref-a", 200000, nil))
	assert.Equal(t, OutcomeUpdated, partial.Outcome)
	inv, _, err := h.stores.Invoices.FindConfirmed(ctx, "inv-7")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, inv.Status)
	assert.Empty(t, h.email.to("njeri@lash.test"))

	paid := h.route(t, paymentEvent(models.PaymentTypeInvoice, "inv-7", "ref-b", 300000, nil))
	assert.Equal(t, OutcomeUpdated, paid.Outcome)
	inv, _, err = h.stores.Invoices.FindConfirmed(ctx, "inv-7")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
	assert.NotNil(t, inv.PaidAt)
	assert.Len(t, h.email.to("njeri@lash.test"), 1)

	replay := h.route(t, paymentEvent(models.PaymentTypeInvoice, "inv-7", "ref-b", 300000, nil))
	assert.Equal(t, OutcomeReplayed, replay.Outcome)
	assert.Len(t, h.email.to("njeri@lash.test"), 1)
}

func TestGiftCardHandler_IssuesOnceAndEmailsBothParties(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ev := paymentEvent(models.PaymentTypeGiftCard, "gc-order-1", "ref-gc", 300000, map[string]any{
		"purchaser_name":  "Achieng",
		"purchaser_email": "achieng@lash.test",
		"recipient_name":  "Mum",
		"recipient_email": "mum@lash.test",
		"message":         "Happy birthday",
	})

	first := h.route(t, ev)
	second := h.route(t, ev)

	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.Equal(t, OutcomeReplayed, second.Outcome)
	card, ok, err := h.stores.GiftCards.FindConfirmed(ctx, "gc-order-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(300000), card.BalanceMinor)
	require.NotNil(t, card.ExpiresAt)
	assert.Equal(t, testNow.AddDate(0, 12, 0), *card.ExpiresAt)
	assert.Len(t, h.email.to("mum@lash.test"), 1)
	assert.Len(t, h.email.to("achieng@lash.test"), 1)
}

func TestLabsWebServicesHandler_MarksOrderPaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.stores.ShopOrders.UpsertConfirmed(ctx, models.ShopOrder{
		NaturalKey:    "ord-1",
		CustomerName:  "Kamau",
		CustomerEmail: "kamau@lash.test",
		Items:         []models.OrderItem{{Name: "Landing page", Quantity: 1, UnitMinor: 900000}},
		Currency:      "KES",
		TotalMinor:    900000,
		Status:        models.OrderStatusPendingPayment,
	}))

	res := h.route(t, paymentEvent(models.PaymentTypeLabsWebServices, "ord-1", "ref-o", 900000, nil))
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	order, _, err := h.stores.ShopOrders.FindConfirmed(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "ref-o", order.Reference)

	replay := h.route(t, paymentEvent(models.PaymentTypeLabsWebServices, "ord-1", "ref-o", 900000, nil))
	assert.Equal(t, OutcomeReplayed, replay.Outcome)
	assert.Len(t, h.email.to("kamau@lash.test"), 1)

	missing := h.route(t, paymentEvent(models.PaymentTypeLabsWebServices, "ord-404", "ref-x", 1, nil))
	assert.Equal(t, OutcomeSkipped, missing.Outcome)
}

func TestLabsTierHandler_ActivatesOnce(t *testing.T) {
	h := newHarness(t)
	ev := paymentEvent(models.PaymentTypeLabsTier, "sub-1", "ref-t", 250000, map[string]any{
		"email": "Zawadi@Lash.test",
		"name":  "Zawadi",
		"tier":  "pro",
	})

	first := h.route(t, ev)
	second := h.route(t, ev)

	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.Equal(t, OutcomeReplayed, second.Outcome)
	sub, ok, err := h.stores.Subscribers.FindConfirmed(context.Background(), "sub-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.SubscriberStatusActive, sub.Status)
	assert.Equal(t, "pro", sub.Tier)
	assert.Equal(t, "zawadi@lash.test", sub.Email)
	assert.Len(t, h.email.to("zawadi@lash.test"), 1)
}

func TestLabsYearlyHandler_ExtendsFromLaterOfNowAndExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	extra := map[string]any{"email": "imani@lash.test", "name": "Imani"}

	first := h.route(t, paymentEvent(models.PaymentTypeLabsYearlySubscription, "sub-y", "ref-y1", 1200000, extra))
	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	sub, _, err := h.stores.Subscribers.FindConfirmed(ctx, "sub-y")
	require.NoError(t, err)
	require.NotNil(t, sub.ExpiresAt)
	assert.Equal(t, testNow.AddDate(1, 0, 0), *sub.ExpiresAt)

	renewal := h.route(t, paymentEvent(models.PaymentTypeLabsYearlySubscription, "sub-y", "ref-y2", 1200000, extra))
	assert.Equal(t, OutcomeUpdated, renewal.Outcome)
	sub, _, err = h.stores.Subscribers.FindConfirmed(ctx, "sub-y")
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(2, 0, 0), *sub.ExpiresAt)
	assert.Equal(t, models.EntryRenewal, sub.Payments[1].Kind)

	replay := h.route(t, paymentEvent(models.PaymentTypeLabsYearlySubscription, "sub-y", "ref-y2", 1200000, extra))
	assert.Equal(t, OutcomeReplayed, replay.Outcome)
	sub, _, err = h.stores.Subscribers.FindConfirmed(ctx, "sub-y")
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(2, 0, 0), *sub.ExpiresAt)

	emails := h.email.to("imani@lash.test")
	require.Len(t, emails, 2)
	assert.Contains(t, emails[0].Subject, "Welcome")
	assert.Contains(t, emails[1].Subject, "renewed")
}

func TestLabsYearlyHandler_LapsedSubscriptionRestartsFromNow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lapsed := testNow.Add(-30 * 24 * time.Hour)
	require.NoError(t, h.stores.Subscribers.UpsertConfirmed(ctx, models.Subscriber{
		NaturalKey: "sub-old",
		Email:      "old@lash.test",
		Plan:       models.PlanYearly,
		Status:     models.SubscriberStatusActive,
		Payments:   models.Ledger{{Reference: "ref-2024", AmountMinor: 1000, Kind: models.EntryPayment}},
		ExpiresAt:  &lapsed,
	}))

	res := h.route(t, paymentEvent(models.PaymentTypeLabsYearlySubscription, "sub-old", "ref-2025", 1200000, nil))
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	sub, _, err := h.stores.Subscribers.FindConfirmed(ctx, "sub-old")
	require.NoError(t, err)
	assert.Equal(t, testNow.AddDate(1, 0, 0), *sub.ExpiresAt)
}

func TestCoursePurchaseHandler_GrantsAccessOnce(t *testing.T) {
	h := newHarness(t)
	ev := paymentEvent(models.PaymentTypeCoursePurchase, "course-1:fatuma@lash.test", "ref-c", 450000, map[string]any{
		"course_id":    "lash-101",
		"course_title": "Lash Artistry 101",
		"email":        "fatuma@lash.test",
		"name":         "Fatuma",
	})

	first := h.route(t, ev)
	second := h.route(t, ev)

	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.Equal(t, OutcomeReplayed, second.Outcome)
	purchase, ok, err := h.stores.CoursePurchases.FindConfirmed(context.Background(), "course-1:fatuma@lash.test")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Regexp(t, `^CRS-[0-9A-F]{10}$`, purchase.AccessCode)
	assert.Len(t, h.email.to("fatuma@lash.test"), 1)
}
