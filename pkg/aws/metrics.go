package aws

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type metricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Datum is one data point for Put.
type Datum struct {
	Name       string
	Value      float64
	Unit       types.StandardUnit
	Dimensions map[string]string
}

// MetricsClient publishes pipeline and HTTP metrics to one CloudWatch
// namespace. A nil or disabled client drops every call.
type MetricsClient struct {
	client    metricsAPI
	namespace string
	enabled   bool
	now       func() time.Time
}

func NewMetricsClient(ctx context.Context) (*MetricsClient, error) {
	cfg, err := LoadAWSConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	namespace := os.Getenv("CLOUDWATCH_NAMESPACE")
	if namespace == "" {
		namespace = "LashStudio/Payments"
	}
	return newMetricsClient(cloudwatch.NewFromConfig(cfg), namespace, os.Getenv("CLOUDWATCH_ENABLED") == "true"), nil
}

func newMetricsClient(api metricsAPI, namespace string, enabled bool) *MetricsClient {
	return &MetricsClient{client: api, namespace: namespace, enabled: enabled, now: time.Now}
}

// Put sends every datum in a single PutMetricData call.
func (m *MetricsClient) Put(ctx context.Context, data ...Datum) error {
	if !m.IsEnabled() || len(data) == 0 {
		return nil
	}

	ts := m.now()
	out := make([]types.MetricDatum, 0, len(data))
	for _, d := range data {
		out = append(out, types.MetricDatum{
			MetricName: aws.String(d.Name),
			Value:      aws.Float64(d.Value),
			Unit:       d.Unit,
			Timestamp:  aws.Time(ts),
			Dimensions: dimensionList(d.Dimensions),
		})
	}

	if _, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: out,
	}); err != nil {
		return fmt.Errorf("failed to put %d metrics: %w", len(out), err)
	}
	return nil
}

// RecordCount adds one to a counter.
func (m *MetricsClient) RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error {
	return m.Put(ctx, Count(metricName, dimensions))
}

// RecordLatency records duration in milliseconds.
func (m *MetricsClient) RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error {
	return m.Put(ctx, Latency(metricName, duration, dimensions))
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

// Count is a datum adding one to metricName.
func Count(metricName string, dimensions map[string]string) Datum {
	return Datum{Name: metricName, Value: 1, Unit: types.StandardUnitCount, Dimensions: dimensions}
}

// Latency is a millisecond datum for metricName.
func Latency(metricName string, d time.Duration, dimensions map[string]string) Datum {
	return Datum{Name: metricName, Value: float64(d.Milliseconds()), Unit: types.StandardUnitMilliseconds, Dimensions: dimensions}
}

// dimensionList sorts by name so the same set always maps to one series.
func dimensionList(dims map[string]string) []types.Dimension {
	names := make([]string, 0, len(dims))
	for k := range dims {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]types.Dimension, 0, len(names))
	for _, k := range names {
		out = append(out, types.Dimension{Name: aws.String(k), Value: aws.String(dims[k])})
	}
	return out
}

// Metric names emitted by the payment pipeline.
const (
	// HTTP metrics
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	// Webhook outcomes
	MetricWebhookRejected    = "WebhookRejected"
	MetricPaymentConfirmed   = "PaymentConfirmed"
	MetricPaymentReplayed    = "PaymentReplayed"
	MetricPaymentSkipped     = "PaymentSkipped"
	MetricPaymentIgnored     = "PaymentIgnored"
	MetricReverifyFailed     = "ReverifyFailed"
	MetricSideEffectFailed   = "SideEffectFailed"
	MetricProcessingDuration = "PaymentProcessingDuration"
)
