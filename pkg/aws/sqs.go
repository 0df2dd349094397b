package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient sends to and long-polls a single queue.
type SQSClient struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
	backoff  time.Duration
}

func NewSQSClient(cfg aws.Config, queueURL string) *SQSClient {
	return newSQSClient(sqs.NewFromConfig(cfg), queueURL)
}

func newSQSClient(api sqsAPI, queueURL string) *SQSClient {
	return &SQSClient{client: api, queueURL: queueURL, logger: zap.NewNop(), backoff: 2 * time.Second}
}

// WithLogger sets the logger used by StartPolling.
func (c *SQSClient) WithLogger(logger *zap.Logger) *SQSClient {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// MessageHandler processes one message body. A nil return deletes the message.
type MessageHandler func(ctx context.Context, body string) error

// StartPolling long-polls until ctx is cancelled and returns ctx.Err().
func (c *SQSClient) StartPolling(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting SQS polling", zap.String("queue", c.queueURL))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.pollOnce(ctx, handler); err != nil && ctx.Err() == nil {
			c.logger.Warn("SQS receive failed", zap.String("queue", c.queueURL), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
		}
	}
}

func (c *SQSClient) pollOnce(ctx context.Context, handler MessageHandler) error {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   60,
	})
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range result.Messages {
		if msg.Body == nil {
			continue
		}
		if err := handler(ctx, *msg.Body); err != nil {
			// becomes visible again after the visibility timeout
			c.logger.Warn("SQS message not processed", zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
			continue
		}
		if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(c.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			c.logger.Warn("SQS delete failed", zap.String("message_id", aws.ToString(msg.MessageId)), zap.Error(err))
		}
	}
	return nil
}

// SendMessage sends a single message to the queue.
func (c *SQSClient) SendMessage(ctx context.Context, body string) error {
	if _, err := c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(body),
	}); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}
