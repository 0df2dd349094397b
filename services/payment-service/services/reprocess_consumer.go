package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	awspkg "github.com/cate-nduta/Lash-Business-sub002/pkg/aws"
)

// ReprocessRequest asks for a reference to be run through the pipeline again.
type ReprocessRequest struct {
	Reference string `json:"reference"`
}

// Poller is satisfied by the SQS client.
type Poller interface {
	StartPolling(ctx context.Context, handler awspkg.MessageHandler) error
}

// ReprocessConsumer replays references an operator queued after fixing a failure.
type ReprocessConsumer struct {
	queue     Poller
	processor *Processor
	logger    *zap.Logger
}

func NewReprocessConsumer(queue Poller, processor *Processor, logger *zap.Logger) *ReprocessConsumer {
	return &ReprocessConsumer{queue: queue, processor: processor, logger: logger}
}

func (c *ReprocessConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting ReprocessConsumer (SQS)")

	err := c.queue.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("SQS consumer error", zap.Error(err))
	}
}

// HandleMessage processes one queue message. Messages are always acknowledged;
// a malformed one is logged and dropped.
func (c *ReprocessConsumer) HandleMessage(ctx context.Context, body string) error {
	var req ReprocessRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		c.logger.Warn("Invalid reprocess request JSON", zap.Error(err))
		return nil
	}
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Reference == "" {
		c.logger.Warn("Reprocess request without reference")
		return nil
	}

	res := c.processor.Process(ctx, req.Reference, "reprocess")
	c.logger.Info("Reprocessed payment",
		zap.String("reference", req.Reference),
		zap.String("outcome", string(res.Outcome)),
		zap.String("natural_key", res.NaturalKey),
	)
	return nil
}
