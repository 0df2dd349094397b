package aws

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogs struct {
	batches [][]string
}

func (f *fakeLogs) CreateLogGroup(context.Context, *cloudwatchlogs.CreateLogGroupInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeLogs) PutRetentionPolicy(context.Context, *cloudwatchlogs.PutRetentionPolicyInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutRetentionPolicyOutput, error) {
	return &cloudwatchlogs.PutRetentionPolicyOutput{}, nil
}

func (f *fakeLogs) CreateLogStream(context.Context, *cloudwatchlogs.CreateLogStreamInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	var lines []string
	for _, e := range in.LogEvents {
		lines = append(lines, sdkaws.ToString(e.Message))
	}
	f.batches = append(f.batches, lines)
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func TestCloudWatchLogsClient_BatchesUntilSync(t *testing.T) {
	api := &fakeLogs{}
	c := newCloudWatchLogsClient(api, "/lash-studio/payments", "payment-service-1", true)
	require.NoError(t, c.setup(context.Background()))

	_, err := c.Write([]byte(`{"msg":"one"}` + "\n"))
	require.NoError(t, err)
	_, err = c.Write([]byte(`{"msg":"two"}` + "\n"))
	require.NoError(t, err)
	assert.Empty(t, api.batches)

	require.NoError(t, c.Sync())
	require.Len(t, api.batches, 1)
	assert.Equal(t, []string{`{"msg":"one"}`, `{"msg":"two"}`}, api.batches[0])

	require.NoError(t, c.Sync())
	assert.Len(t, api.batches, 1)
}

func TestCloudWatchLogsClient_FlushesFullBatch(t *testing.T) {
	api := &fakeLogs{}
	c := newCloudWatchLogsClient(api, "g", "s", true)
	for i := 0; i < logBatchSize; i++ {
		_, _ = io.WriteString(c, "line\n")
	}
	require.Len(t, api.batches, 1)
	assert.Len(t, api.batches[0], logBatchSize)
}

func TestCloudWatchLogsClient_FlushesStaleBatch(t *testing.T) {
	api := &fakeLogs{}
	c := newCloudWatchLogsClient(api, "g", "s", true)
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, _ = c.Write([]byte("first"))
	now = now.Add(logFlushInterval)
	_, _ = c.Write([]byte("second"))

	require.Len(t, api.batches, 1)
	assert.Equal(t, []string{"first", "second"}, api.batches[0])
}

func TestCloudWatchLogsClient_DisabledDropsLines(t *testing.T) {
	api := &fakeLogs{}
	c := newCloudWatchLogsClient(api, "g", "s", false)
	n, err := c.Write([]byte("ignored"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, c.Sync())
	assert.Empty(t, api.batches)
	assert.False(t, c.IsEnabled())
}

type fakeMetricsAPI struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeMetricsAPI) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsClient_PutSendsOneCall(t *testing.T) {
	api := &fakeMetricsAPI{}
	m := newMetricsClient(api, "LashStudio/Payments", true)

	dims := map[string]string{"PaymentType": "booking", "Gateway": "paystack"}
	require.NoError(t, m.Put(context.Background(),
		Count(MetricPaymentConfirmed, dims),
		Latency(MetricProcessingDuration, 1500*time.Millisecond, dims),
	))

	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, "LashStudio/Payments", sdkaws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 2)
	assert.Equal(t, cwtypes.StandardUnitCount, in.MetricData[0].Unit)
	assert.Equal(t, 1500.0, sdkaws.ToFloat64(in.MetricData[1].Value))

	require.Len(t, in.MetricData[0].Dimensions, 2)
	assert.Equal(t, "Gateway", sdkaws.ToString(in.MetricData[0].Dimensions[0].Name))
	assert.Equal(t, "PaymentType", sdkaws.ToString(in.MetricData[0].Dimensions[1].Name))
}

func TestMetricsClient_DisabledOrNil(t *testing.T) {
	api := &fakeMetricsAPI{}
	require.NoError(t, newMetricsClient(api, "ns", false).RecordCount(context.Background(), MetricPaymentSkipped, nil))
	assert.Empty(t, api.inputs)

	var nilClient *MetricsClient
	assert.NoError(t, nilClient.RecordCount(context.Background(), MetricPaymentSkipped, nil))
	assert.False(t, nilClient.IsEnabled())
}

type fakeSNS struct {
	in *sns.PublishInput
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	return &sns.PublishOutput{}, nil
}

func TestSNSClient_PublishAttributes(t *testing.T) {
	api := &fakeSNS{}
	c := &SNSClient{client: api}

	err := c.Publish(context.Background(), "arn:aws:sns:af-south-1:1:payments", []byte(`{}`),
		map[string]string{"payment_type": "gift_card", "empty": ""})
	require.NoError(t, err)
	assert.Equal(t, `{}`, sdkaws.ToString(api.in.Message))
	require.Contains(t, api.in.MessageAttributes, "payment_type")
	assert.Equal(t, "gift_card", sdkaws.ToString(api.in.MessageAttributes["payment_type"].StringValue))
	assert.NotContains(t, api.in.MessageAttributes, "empty")

	assert.Error(t, c.Publish(context.Background(), "", []byte(`{}`), nil))
}

type fakeSecrets struct {
	calls  int
	values map[string]string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[sdkaws.ToString(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String(v)}, nil
}

func TestSecretsClient_GetSecretMap(t *testing.T) {
	api := &fakeSecrets{values: map[string]string{
		"payment/GATEWAY_CREDENTIALS": `{"PAYSTACK_SECRET_KEY":"sk_live"}`,
		"payment/BROKEN":              `not json`,
	}}
	c := newSecretsClient(api)
	ctx := context.Background()

	m, err := c.GetSecretMap(ctx, "payment/GATEWAY_CREDENTIALS")
	require.NoError(t, err)
	assert.Equal(t, "sk_live", m["PAYSTACK_SECRET_KEY"])

	_, err = c.GetSecretMap(ctx, "payment/GATEWAY_CREDENTIALS")
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)

	_, err = c.GetSecretMap(ctx, "payment/BROKEN")
	assert.Error(t, err)
	_, err = c.GetSecretMap(ctx, "payment/MISSING")
	assert.Error(t, err)
}

type fakeSQS struct {
	mu       sync.Mutex
	queue    []sqstypes.Message
	deleted  []string
	sent     []string
	received chan struct{}
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	msgs := f.queue
	f.queue = nil
	f.mu.Unlock()
	if len(msgs) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	defer func() { f.received <- struct{}{} }()
	return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, sdkaws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, sdkaws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{}, nil
}

func TestSQSClient_PollDeletesHandledMessages(t *testing.T) {
	api := &fakeSQS{
		received: make(chan struct{}, 1),
		queue: []sqstypes.Message{
			{Body: sdkaws.String(`{"reference":"ok"}`), ReceiptHandle: sdkaws.String("rh-1")},
			{Body: sdkaws.String(`{"reference":"bad"}`), ReceiptHandle: sdkaws.String("rh-2")},
			{ReceiptHandle: sdkaws.String("rh-3")},
		},
	}
	c := newSQSClient(api, "https://sqs.local/reprocess")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.StartPolling(ctx, func(_ context.Context, body string) error {
			if body == `{"reference":"bad"}` {
				return errors.New("not yet")
			}
			return nil
		})
	}()

	<-api.received
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []string{"rh-1"}, api.deleted)
}

func TestSQSClient_SendMessage(t *testing.T) {
	api := &fakeSQS{}
	c := newSQSClient(api, "https://sqs.local/failures")
	require.NoError(t, c.SendMessage(context.Background(), `{"step":"send_email"}`))
	assert.Equal(t, []string{`{"step":"send_email"}`}, api.sent)
}

// fakeS3 satisfies manager.UploadAPIClient; small bodies only use PutObject.
type fakeS3 struct {
	key, bucket, body string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.key, f.bucket = sdkaws.ToString(in.Key), sdkaws.ToString(in.Bucket)
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, errors.New("unexpected multipart upload")
}

func TestS3Archiver_Put(t *testing.T) {
	api := &fakeS3{}
	a := &S3Archiver{uploader: manager.NewUploader(api), bucket: "webhook-archive"}
	require.NoError(t, a.Put(context.Background(), "webhooks/2025/03/10/ref-1.json", []byte(`{"event":"charge.success"}`)))
	assert.Equal(t, "webhook-archive", api.bucket)
	assert.Equal(t, "webhooks/2025/03/10/ref-1.json", api.key)
	assert.Equal(t, `{"event":"charge.success"}`, api.body)
}

func TestLoadAWSConfig_EndpointOverride(t *testing.T) {
	t.Setenv("AWS_ENDPOINT_URL", "")
	t.Setenv("AWS_ENDPOINT", "http://localstack:4566")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	cfg, err := LoadAWSConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "http://localstack:4566", sdkaws.ToString(cfg.BaseEndpoint))
	assert.Equal(t, "af-south-1", cfg.Region)
}

func TestLoadAWSConfig_LocalstackCredentials(t *testing.T) {
	t.Setenv("AWS_ENDPOINT_URL", "http://localstack:4566")
	t.Setenv("AWS_REGION", "af-south-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_PROFILE", "")

	cfg, err := LoadAWSConfig(context.Background())
	require.NoError(t, err)
	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)
	assert.Equal(t, "test", creds.SecretAccessKey)
}
