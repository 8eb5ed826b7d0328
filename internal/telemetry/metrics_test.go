package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"weatherscape/internal/types"
)

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.inputs = append(m.inputs, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

func TestRecordBatchEmitsBothCounters(t *testing.T) {
	mock := &mockCloudWatch{}
	m := NewCloudWatchStageMetrics(mock, "Weatherscape", quietLogger())

	m.RecordBatch(context.Background(), types.StageFetcher, 7, 2)

	if len(mock.inputs) != 1 {
		t.Fatalf("expected 1 put, got %d", len(mock.inputs))
	}
	data := mock.inputs[0].MetricData
	if len(data) != 2 {
		t.Fatalf("expected 2 datums, got %d", len(data))
	}
	if *data[0].MetricName != types.MetricBatchSuccess || *data[0].Value != 7 {
		t.Errorf("success datum wrong: %v", data[0])
	}
	if *data[1].MetricName != types.MetricBatchFailure || *data[1].Value != 2 {
		t.Errorf("failure datum wrong: %v", data[1])
	}
	if *data[0].Dimensions[0].Value != "weather_fetcher" {
		t.Errorf("stage dimension = %s", *data[0].Dimensions[0].Value)
	}
}

func TestRecordQueueLagMilliseconds(t *testing.T) {
	mock := &mockCloudWatch{}
	m := NewCloudWatchStageMetrics(mock, "", quietLogger())

	m.RecordQueueLag(context.Background(), types.StageGenerator, 2500*time.Millisecond)

	if *mock.inputs[0].Namespace != types.MetricNamespace {
		t.Errorf("namespace default not applied: %s", *mock.inputs[0].Namespace)
	}
	if *mock.inputs[0].MetricData[0].Value != 2500 {
		t.Errorf("lag value = %f", *mock.inputs[0].MetricData[0].Value)
	}
}

func TestPublishErrorsAreSwallowed(t *testing.T) {
	mock := &mockCloudWatch{err: fmt.Errorf("cloudwatch down")}
	m := NewCloudWatchStageMetrics(mock, "Weatherscape", quietLogger())

	// Must not panic or propagate.
	m.RecordBatch(context.Background(), types.StageScheduler, 1, 0)
	m.RecordQueueLag(context.Background(), types.StageScheduler, time.Second)
}
