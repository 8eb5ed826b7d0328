package types

import (
	"context"
	"time"
)

// Telemetry metric names for CloudWatch.
// All stages MUST use these constants.
const (
	// Metric Names
	MetricBatchSuccess = "BatchSuccess"
	MetricBatchFailure = "BatchFailure"
	MetricQueueLag     = "QueueLag"
	MetricStageLatency = "StageLatency"

	// Dimension Keys
	DimStage  = "Stage"
	DimFormat = "Format"

	// Metric Namespace
	MetricNamespace = "Weatherscape"
)

// StageMetrics is the telemetry sink each stage reports to at the end of a
// batch. Implemented by telemetry.CloudWatchStageMetrics in production and by
// NoopStageMetrics where telemetry is disabled. Implementations must never
// fail the batch: metric publication errors are logged and swallowed.
type StageMetrics interface {
	// RecordBatch reports the success/failure split of one consumed batch.
	RecordBatch(ctx context.Context, stage Stage, success, failure int)
	// RecordQueueLag reports the delay between message enqueue and the start
	// of processing, the pipeline's only end-to-end backlog signal.
	RecordQueueLag(ctx context.Context, stage Stage, lag time.Duration)
}

// NoopStageMetrics discards all metrics. Used when telemetry is disabled and
// as the default in tests.
type NoopStageMetrics struct{}

func (NoopStageMetrics) RecordBatch(context.Context, Stage, int, int)         {}
func (NoopStageMetrics) RecordQueueLag(context.Context, Stage, time.Duration) {}
