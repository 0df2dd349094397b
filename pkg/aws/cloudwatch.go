package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

const (
	logBatchSize     = 50
	logFlushInterval = 5 * time.Second
	logRetentionDays = 90
)

type logsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	PutRetentionPolicy(ctx context.Context, params *cloudwatchlogs.PutRetentionPolicyInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchLogsClient is a zap sink that ships JSON log lines to one
// CloudWatch stream. Lines are buffered and sent in batches; Sync sends
// whatever is pending.
type CloudWatchLogsClient struct {
	mu      sync.Mutex
	client  logsAPI
	group   string
	stream  string
	enabled bool
	pending []types.InputLogEvent
	oldest  time.Time
	now     func() time.Time
}

// NewCloudWatchLogsClient is disabled unless CLOUDWATCH_ENABLED=true, in
// which case the log group and a per-process stream are created up front.
func NewCloudWatchLogsClient(ctx context.Context, serviceName string) (*CloudWatchLogsClient, error) {
	enabled := os.Getenv("CLOUDWATCH_ENABLED") == "true"

	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	group := os.Getenv("CLOUDWATCH_LOG_GROUP")
	if group == "" {
		group = "/lash-studio/payments"
	}
	stream := fmt.Sprintf("%s-%d", serviceName, time.Now().Unix())

	c := newCloudWatchLogsClient(cloudwatchlogs.NewFromConfig(cfg), group, stream, enabled)
	if enabled {
		if err := c.setup(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func newCloudWatchLogsClient(api logsAPI, group, stream string, enabled bool) *CloudWatchLogsClient {
	return &CloudWatchLogsClient{
		client:  api,
		group:   group,
		stream:  stream,
		enabled: enabled,
		now:     time.Now,
	}
}

func (c *CloudWatchLogsClient) setup(ctx context.Context) error {
	_, err := c.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(c.group),
	})
	var exists *types.ResourceAlreadyExistsException
	if err != nil && !errors.As(err, &exists) {
		return fmt.Errorf("failed to create log group: %w", err)
	}

	// payment incidents are investigated from these logs; keep a quarter
	if _, err := c.client.PutRetentionPolicy(ctx, &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    aws.String(c.group),
		RetentionInDays: aws.Int32(logRetentionDays),
	}); err != nil {
		return fmt.Errorf("failed to set retention policy: %w", err)
	}

	if _, err := c.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(c.group),
		LogStreamName: aws.String(c.stream),
	}); err != nil {
		return fmt.Errorf("failed to create log stream: %w", err)
	}
	return nil
}

// Write buffers one encoded log line. Shipping errors go to stderr and never
// fail the write.
func (c *CloudWatchLogsClient) Write(p []byte) (int, error) {
	if !c.enabled {
		return len(p), nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.pending) == 0 {
		c.oldest = now
	}
	c.pending = append(c.pending, types.InputLogEvent{
		Message:   aws.String(string(bytes.TrimRight(p, "\n"))),
		Timestamp: aws.Int64(now.UnixMilli()),
	})

	if len(c.pending) >= logBatchSize || now.Sub(c.oldest) >= logFlushInterval {
		if err := c.flushLocked(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "CloudWatch write error: %v\n", err)
		}
	}
	return len(p), nil
}

// Sync sends buffered lines. zap calls it on logger.Sync.
func (c *CloudWatchLogsClient) Sync() error {
	if !c.enabled {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(context.Background())
}

func (c *CloudWatchLogsClient) flushLocked(ctx context.Context) error {
	if len(c.pending) == 0 {
		return nil
	}
	batch := c.pending
	c.pending = nil

	_, err := c.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(c.group),
		LogStreamName: aws.String(c.stream),
		LogEvents:     batch,
	})
	if err != nil {
		return fmt.Errorf("failed to put %d log events: %w", len(batch), err)
	}
	return nil
}

// IsEnabled returns whether CloudWatch logging is enabled
func (c *CloudWatchLogsClient) IsEnabled() bool {
	return c != nil && c.enabled
}
