package controllers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/cate-nduta/Lash-Business-sub002/services/common/errors"
	"github.com/cate-nduta/Lash-Business-sub002/services/common/logger"
)

// Webhook receives gateway notifications. Once the signature checks out the
// response is always 200 so the gateway stops retrying; pipeline failures are
// recorded, never returned.
func (pc *PaymentController) Webhook(c *gin.Context) {
	log := logger.With(c, pc.Logger)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		pc.respondError(c, apperrors.ErrBadRequest.Wrap(err))
		return
	}

	if !pc.Pipeline.VerifySignature(c.Request.Context(), body, c.GetHeader(pc.Pipeline.SignatureHeader())) {
		log.Warn("Webhook signature verification failed", zap.String("client_ip", c.ClientIP()))
		pc.respondError(c, apperrors.ErrInvalidSignature)
		return
	}

	// The gateway may hang up early; the pipeline still finishes.
	res := pc.Pipeline.HandleWebhook(context.WithoutCancel(c.Request.Context()), body)
	log.Info("Webhook handled",
		zap.String("outcome", string(res.Outcome)),
		zap.String("reference", res.Reference),
		zap.String("natural_key", res.NaturalKey),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// VerifyPayment runs the pipeline for a reference the storefront reports after
// the customer returns from the gateway.
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	if reference == "" {
		pc.respondError(c, apperrors.New(http.StatusBadRequest, "reference is required", nil))
		return
	}

	res := pc.Pipeline.Process(context.WithoutCancel(c.Request.Context()), reference, "callback")
	c.JSON(http.StatusOK, verifyResponse{
		Confirmed:   res.Confirmed(),
		Outcome:     string(res.Outcome),
		NaturalKey:  res.NaturalKey,
		PaymentType: string(res.PaymentType),
	})
}

// ListFailures returns recorded side-effect failures, newest first.
func (pc *PaymentController) ListFailures(c *gin.Context) {
	q, err := bindFailureQuery(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	failures, err := pc.Failures.List(c.Request.Context(), q.NaturalKey, q.Limit)
	if err != nil {
		logger.With(c, pc.Logger).Error("Failed to list side effect failures", zap.Error(err))
		_ = c.Error(apperrors.ErrStoreUnavailable.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"failures": failures, "count": len(failures)})
}
