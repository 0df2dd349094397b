package controllers

import (
	"context"

	"go.uber.org/zap"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/services"
)

// maxWebhookBody caps how much of a webhook body is read.
const maxWebhookBody = 1 << 20

// Pipeline is the part of services.Processor the HTTP layer drives.
type Pipeline interface {
	SignatureHeader() string
	VerifySignature(ctx context.Context, rawBody []byte, header string) bool
	HandleWebhook(ctx context.Context, rawBody []byte) services.Result
	Process(ctx context.Context, reference, eventType string) services.Result
}

// FailureLister reads the side-effect failure ledger.
type FailureLister interface {
	List(ctx context.Context, naturalKey string, limit int) ([]models.SideEffectFailure, error)
}

type PaymentController struct {
	Pipeline Pipeline
	Failures FailureLister
	Logger   *zap.Logger
}

func NewPaymentController(pipeline Pipeline, failures FailureLister, logger *zap.Logger) *PaymentController {
	return &PaymentController{Pipeline: pipeline, Failures: failures, Logger: logger}
}
