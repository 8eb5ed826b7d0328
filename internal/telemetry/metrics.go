// Package telemetry publishes pipeline stage metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"weatherscape/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchStageMetrics implements types.StageMetrics by emitting metrics
// to AWS CloudWatch.
//
// Metrics emitted:
//   - BatchSuccess / BatchFailure: Dims {Stage} -- per consumed batch
//   - QueueLag: Dims {Stage} -- delay between enqueue and processing start
//
// Metric publication never fails a batch: errors are logged and swallowed.
//
// Compile-time assertion that CloudWatchStageMetrics implements StageMetrics.
var _ types.StageMetrics = (*CloudWatchStageMetrics)(nil)

type CloudWatchStageMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchStageMetrics creates a publisher for the given namespace.
func NewCloudWatchStageMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchStageMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchStageMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordBatch reports one batch's success/failure split for a stage.
func (m *CloudWatchStageMetrics) RecordBatch(ctx context.Context, stage types.Stage, success, failure int) {
	stageDim := cwtypes.Dimension{
		Name:  aws.String(types.DimStage),
		Value: aws.String(string(stage)),
	}
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricBatchSuccess),
				Value:      aws.Float64(float64(success)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{stageDim},
			},
			{
				MetricName: aws.String(types.MetricBatchFailure),
				Value:      aws.Float64(float64(failure)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{stageDim},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record batch metrics",
			"error", err.Error(),
			"stage", string(stage),
		)
	}
}

// RecordQueueLag reports the time between message enqueue and processing
// start, in milliseconds.
func (m *CloudWatchStageMetrics) RecordQueueLag(ctx context.Context, stage types.Stage, lag time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricQueueLag),
				Value:      aws.Float64(float64(lag.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(types.DimStage),
						Value: aws.String(string(stage)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record queue lag",
			"error", err.Error(),
			"stage", string(stage),
		)
	}
}
