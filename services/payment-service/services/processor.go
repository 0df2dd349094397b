package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	awspkg "github.com/cate-nduta/Lash-Business-sub002/pkg/aws"
	"github.com/cate-nduta/Lash-Business-sub002/services/common/logger"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/gateway"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
)

// Archiver stores raw webhook bodies for audit.
type Archiver interface {
	Put(ctx context.Context, key string, body []byte) error
}

// ProcessorDeps wires a Processor. Locker, Archive and Metrics are optional.
type ProcessorDeps struct {
	Gateway      gateway.Gateway
	Router       *Router
	Orchestrator *Orchestrator
	Locker       KeyLocker
	LockTTL      time.Duration
	Archive      Archiver
	Metrics      MetricsRecorder
	Logger       *zap.Logger
}

// Processor turns a payment reference into a confirmed record:
// re-verify with the provider, take the per-key lease, route to the handler.
type Processor struct {
	gateway gateway.Gateway
	router  *Router
	orch    *Orchestrator
	locker  KeyLocker
	lockTTL time.Duration
	archive Archiver
	metrics MetricsRecorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewProcessor(d ProcessorDeps) *Processor {
	if d.LockTTL <= 0 {
		d.LockTTL = 30 * time.Second
	}
	return &Processor{
		gateway: d.Gateway,
		router:  d.Router,
		orch:    d.Orchestrator,
		locker:  d.Locker,
		lockTTL: d.LockTTL,
		archive: d.Archive,
		metrics: d.Metrics,
		logger:  d.Logger,
		now:     time.Now,
	}
}

// SignatureHeader is the header the gateway signs webhooks with.
func (p *Processor) SignatureHeader() string { return p.gateway.SignatureHeader() }

// VerifySignature checks a webhook body before anything else reads it.
func (p *Processor) VerifySignature(ctx context.Context, rawBody []byte, header string) bool {
	if p.gateway.VerifySignature(rawBody, header) {
		return true
	}
	p.count(ctx, awspkg.MetricWebhookRejected, map[string]string{"Gateway": p.gateway.Name()})
	return false
}

// HandleWebhook processes an already signature-checked webhook body.
func (p *Processor) HandleWebhook(ctx context.Context, rawBody []byte) Result {
	log := logger.With(ctx, p.logger)

	env, err := p.gateway.ParseEnvelope(rawBody)
	if err != nil {
		log.Warn("Unreadable webhook body", zap.Error(err))
		return Result{Outcome: OutcomeInvalid}
	}
	p.archiveBody(ctx, env.Reference, rawBody)

	if !env.Actionable {
		log.Info("Webhook event does not confirm a payment", zap.String("event_type", env.EventType))
		p.count(ctx, awspkg.MetricPaymentIgnored, map[string]string{"Reason": "event_type"})
		return Result{Outcome: OutcomeIgnored, Reference: env.Reference}
	}
	if env.Reference == "" {
		log.Warn("Webhook event has no transaction reference", zap.String("event_type", env.EventType))
		return Result{Outcome: OutcomeInvalid}
	}
	return p.Process(ctx, env.Reference, env.EventType)
}

// Process re-verifies reference with the provider and applies it. It never
// returns an error; every failure is logged, counted and reported in Result.
func (p *Processor) Process(ctx context.Context, reference, eventType string) Result {
	start := p.now()
	log := logger.With(ctx, p.logger).With(zap.String("reference", reference))

	tx, err := p.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		log.Error("Transaction re-verification failed", zap.Error(err))
		p.count(ctx, awspkg.MetricReverifyFailed, nil)
		p.orch.Fail(ctx, models.PaymentEvent{Reference: reference}, StepReverify, err)
		return Result{Outcome: OutcomeFailed, Reference: reference}
	}
	if !tx.Succeeded() {
		log.Info("Transaction is not successful, nothing to confirm", zap.String("status", tx.Status))
		p.count(ctx, awspkg.MetricPaymentIgnored, map[string]string{"Reason": "status"})
		return Result{Outcome: OutcomeNotSuccessful, Reference: reference}
	}

	ev := tx.Event(eventType)
	log = log.With(zap.String("payment_type", string(ev.PaymentType)), zap.String("natural_key", ev.NaturalKey))
	if _, known := models.ParsePaymentType(string(ev.PaymentType)); known && ev.NaturalKey == "" {
		log.Warn("Verified transaction carries no natural key")
		p.count(ctx, awspkg.MetricPaymentSkipped, map[string]string{"PaymentType": string(ev.PaymentType)})
		return Result{Outcome: OutcomeInvalid, PaymentType: ev.PaymentType, Reference: reference}
	}

	release := p.lease(ctx, ev, log)
	res, err := p.router.Route(ctx, ev)
	release()
	if err != nil {
		log.Error("Payment handler failed", zap.Error(err))
		p.orch.Fail(ctx, ev, StepHandler, err)
	}

	p.observe(ctx, res, p.now().Sub(start))
	log.Info("Payment processed",
		zap.String("outcome", string(res.Outcome)),
		zap.Strings("failed_steps", res.FailedSteps),
	)
	return res
}

// lease takes the per-key lease. When it cannot be had in time the payment
// proceeds without it; the store's version check still prevents double promotion.
func (p *Processor) lease(ctx context.Context, ev models.PaymentEvent, log *zap.Logger) func() {
	if p.locker == nil || ev.NaturalKey == "" {
		return func() {}
	}
	release, err := p.locker.Acquire(ctx, string(ev.PaymentType)+":"+ev.NaturalKey, p.lockTTL)
	if err != nil {
		log.Warn("Proceeding without key lease", zap.Error(err))
		return func() {}
	}
	return release
}

func (p *Processor) observe(ctx context.Context, res Result, took time.Duration) {
	dims := map[string]string{"PaymentType": string(res.PaymentType)}
	switch res.Outcome {
	case OutcomeConfirmed, OutcomeUpdated:
		p.count(ctx, awspkg.MetricPaymentConfirmed, dims)
	case OutcomeReplayed:
		p.count(ctx, awspkg.MetricPaymentReplayed, dims)
	case OutcomeSkipped, OutcomeUnknownType:
		p.count(ctx, awspkg.MetricPaymentSkipped, dims)
	}
	if p.metrics != nil {
		_ = p.metrics.RecordLatency(ctx, awspkg.MetricProcessingDuration, took, dims)
	}
}

func (p *Processor) count(ctx context.Context, metric string, dims map[string]string) {
	if p.metrics != nil {
		_ = p.metrics.RecordCount(ctx, metric, dims)
	}
}

func (p *Processor) archiveBody(ctx context.Context, reference string, body []byte) {
	if p.archive == nil {
		return
	}
	if err := p.archive.Put(ctx, ArchiveKey(reference, p.now()), body); err != nil {
		logger.With(ctx, p.logger).Warn("Failed to archive webhook body", zap.String("reference", reference), zap.Error(err))
	}
}

// ArchiveKey is the object key a webhook body is archived under.
func ArchiveKey(reference string, at time.Time) string {
	if reference == "" {
		reference = "unknown"
	}
	reference = strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(reference)
	at = at.UTC()
	return fmt.Sprintf("webhooks/%04d/%02d/%02d/%s-%d.json", at.Year(), int(at.Month()), at.Day(), reference, at.UnixNano())
}
