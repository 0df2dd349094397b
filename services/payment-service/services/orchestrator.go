package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	awspkg "github.com/cate-nduta/Lash-Business-sub002/pkg/aws"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
)

// Step is one best-effort side effect.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// FailureSink receives every failed step. Sinks are best-effort too.
type FailureSink interface {
	RecordFailure(ctx context.Context, f models.SideEffectFailure) error
}

// MetricsRecorder is the slice of the CloudWatch client the pipeline uses.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// Orchestrator runs side-effect steps in order. A step that errors or panics
// is recorded and the remaining steps still run; nothing is rolled back.
type Orchestrator struct {
	sinks   []FailureSink
	metrics MetricsRecorder
	logger  *zap.Logger
	now     func() time.Time
}

func NewOrchestrator(logger *zap.Logger, metrics MetricsRecorder, sinks ...FailureSink) *Orchestrator {
	return &Orchestrator{sinks: sinks, metrics: metrics, logger: logger, now: time.Now}
}

// Run executes steps for the record identified by ev and returns the names of
// the steps that failed.
func (o *Orchestrator) Run(ctx context.Context, ev models.PaymentEvent, steps ...Step) []string {
	var failed []string
	for _, step := range steps {
		if err := o.runStep(ctx, step); err != nil {
			failed = append(failed, step.Name)
			o.Fail(ctx, ev, step.Name, err)
		}
	}
	return failed
}

func (o *Orchestrator) runStep(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Side effect panicked", zap.String("step", step.Name), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Run(ctx)
}

// Fail logs a failed step with enough context to redo it by hand and hands it to every sink.
func (o *Orchestrator) Fail(ctx context.Context, ev models.PaymentEvent, step string, cause error) {
	failure := models.SideEffectFailure{
		ID:          uuid.NewString(),
		Step:        step,
		PaymentType: string(ev.PaymentType),
		NaturalKey:  ev.NaturalKey,
		Reference:   ev.Reference,
		Error:       cause.Error(),
		OccurredAt:  o.now().UTC(),
	}
	o.logger.Error("Side effect failed",
		zap.String("failure_id", failure.ID),
		zap.String("step", step),
		zap.String("payment_type", failure.PaymentType),
		zap.String("natural_key", failure.NaturalKey),
		zap.String("reference", failure.Reference),
		zap.Error(cause),
	)
	if o.metrics != nil {
		_ = o.metrics.RecordCount(ctx, awspkg.MetricSideEffectFailed, map[string]string{"Step": step})
	}
	for _, sink := range o.sinks {
		if err := sink.RecordFailure(ctx, failure); err != nil {
			o.logger.Warn("Failed to record side effect failure",
				zap.String("failure_id", failure.ID),
				zap.Error(err),
			)
		}
	}
}
