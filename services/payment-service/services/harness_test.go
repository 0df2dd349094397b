package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
)

const adminEmail = "studio@lash.test"

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// --- Fakes ---

type sentEmail struct {
	To      string
	Subject string
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sentEmail
	failTo   map[string]bool
	panicFor string
}

func (s *fakeSender) SendEmail(_ context.Context, to, subject, _ string) (sender.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicFor != "" && to == s.panicFor {
		panic("smtp exploded")
	}
	if s.failTo[to] {
		return sender.SendResult{}, errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, sentEmail{To: to, Subject: subject})
	return sender.SendResult{MessageID: "msg", SentAt: testNow}, nil
}

func (s *fakeSender) to(addr string) []sentEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentEmail
	for _, e := range s.sent {
		if e.To == addr {
			out = append(out, e)
		}
	}
	return out
}

type fakeCalendar struct {
	mu     sync.Mutex
	events []CalendarEvent
	err    error
}

func (c *fakeCalendar) CreateEvent(_ context.Context, ev CalendarEvent) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", c.err
	}
	c.events = append(c.events, ev)
	return "cal-" + ev.IdempotencyKey, nil
}

func (c *fakeCalendar) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.RecordEvent
}

func (p *fakePublisher) PublishRecordEvent(_ context.Context, ev models.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type memorySink struct {
	mu       sync.Mutex
	failures []models.SideEffectFailure
}

func (s *memorySink) RecordFailure(_ context.Context, f models.SideEffectFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
	return nil
}

func (s *memorySink) steps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, f := range s.failures {
		out = append(out, f.Step)
	}
	return out
}

// faultyStore fails writes to one document while armed.
type faultyStore struct {
	repository.DocumentStore
	mu     sync.Mutex
	failID string
}

func (s *faultyStore) arm(id string) {
	s.mu.Lock()
	s.failID = id
	s.mu.Unlock()
}

func (s *faultyStore) Write(ctx context.Context, id string, data []byte, expectedVersion int64) (int64, error) {
	s.mu.Lock()
	fail := s.failID != "" && s.failID == id
	s.mu.Unlock()
	if fail {
		return 0, errors.New("store unavailable")
	}
	return s.DocumentStore.Write(ctx, id, data, expectedVersion)
}

// --- Harness ---

type harness struct {
	doc      *faultyStore
	stores   *repository.Stores
	email    *fakeSender
	calendar *fakeCalendar
	events   *fakePublisher
	sink     *memorySink
	router   *Router
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	doc := &faultyStore{DocumentStore: repository.NewMemoryStore()}
	stores := repository.NewStores(doc)
	tpls, err := sender.LoadTemplates()
	require.NoError(t, err)

	h := &harness{
		doc:      doc,
		stores:   stores,
		email:    &fakeSender{failTo: map[string]bool{}},
		calendar: &fakeCalendar{},
		events:   &fakePublisher{},
		sink:     &memorySink{},
	}
	logger := zap.NewNop()
	h.orch = NewOrchestrator(logger, nil, h.sink)
	h.orch.now = func() time.Time { return testNow }

	f := NewFulfillment(stores, SideEffects{
		Calendar:  h.calendar,
		Notifier:  NewNotifier(h.email, tpls, adminEmail, h.events),
		Clients:   NewStoreClientDirectory(stores.Clients),
		GiftCards: NewStoreGiftCardLedger(stores.GiftCards),
		Referrals: NewStoreReferralIssuer(stores.Referrals),
		Capacity:  NewCapacity(stores, 4),
	}, h.orch, logger)
	f.now = func() time.Time { return testNow }

	h.router, err = NewRouter(NewHandlers(f), logger)
	require.NoError(t, err)
	return h
}

func (h *harness) route(t *testing.T, ev models.PaymentEvent) Result {
	t.Helper()
	res, err := h.router.Route(context.Background(), ev)
	require.NoError(t, err)
	return res
}

func paymentEvent(paymentType models.PaymentType, key, ref string, amount int64, extra map[string]any) models.PaymentEvent {
	md := map[string]any{
		models.MetaPaymentType: string(paymentType),
		models.MetaNaturalKey:  key,
	}
	for k, v := range extra {
		md[k] = v
	}
	return models.NewPaymentEvent("charge.success", ref, "success", amount, "kes", "payer@lash.test", testNow, md)
}

func addPendingBooking(t *testing.T, h *harness, key string, req models.BookingRequest) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.stores.PendingBookings.AddPending(ctx, models.PendingIntent[models.BookingRequest]{
		NaturalKey: key,
		Payload:    req,
		CreatedAt:  testNow.Add(-time.Hour),
	}))
	require.NoError(t, h.stores.Slots.Upsert(ctx, models.SlotReservation{
		NaturalKey: key,
		Date:       req.Date,
		TimeSlot:   req.TimeSlot,
		ExpiresAt:  testNow.Add(time.Hour),
	}))
}

func sampleBookingRequest() models.BookingRequest {
	return models.BookingRequest{
		ClientName:   "Amina Wanjiru",
		ClientEmail:  "amina@lash.test",
		ClientPhone:  "+254700000001",
		Service:      "Classic Full Set",
		Date:         "2025-03-14",
		TimeSlot:     "10:00",
		Currency:     "KES",
		PriceMinor:   600000,
		DepositMinor: 200000,
	}
}

func containsSubject(emails []sentEmail, fragment string) bool {
	for _, e := range emails {
		if strings.Contains(e.Subject, fragment) {
			return true
		}
	}
	return false
}
