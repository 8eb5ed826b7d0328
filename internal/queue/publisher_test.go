package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"weatherscape/internal/config"
	"weatherscape/internal/types"
)

// mockSQSSender records SendMessage calls for verification.
type mockSQSSender struct {
	inputs  []*sqs.SendMessageInput
	failNow bool
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if m.failNow {
		return nil, fmt.Errorf("simulated SQS failure")
	}
	m.inputs = append(m.inputs, params)
	return &sqs.SendMessageOutput{}, nil
}

func testAWSConfig() config.AWSConfig {
	return config.AWSConfig{
		FetchJobsQueue:     "https://sqs.test/fetch-jobs",
		WeatherReadyQueue:  "https://sqs.test/weather-ready",
		LandscapeJobsQueue: "https://sqs.test/landscape-jobs",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSendFetchJobRoutesToFetchQueue(t *testing.T) {
	mock := &mockSQSSender{}
	pub := NewPublisher(mock, testAWSConfig(), testLogger())

	job := types.FetchJob{Zip: "78729", ScheduledAt: time.Now().UTC(), Trace: types.NewTrace()}
	if err := pub.SendFetchJob(context.Background(), job); err != nil {
		t.Fatalf("SendFetchJob failed: %v", err)
	}

	if len(mock.inputs) != 1 {
		t.Fatalf("expected 1 send, got %d", len(mock.inputs))
	}
	input := mock.inputs[0]
	if *input.QueueUrl != "https://sqs.test/fetch-jobs" {
		t.Errorf("wrong queue: %s", *input.QueueUrl)
	}

	var decoded types.FetchJob
	if err := json.Unmarshal([]byte(*input.MessageBody), &decoded); err != nil {
		t.Fatalf("body is not a FetchJob: %v", err)
	}
	if decoded.Zip != "78729" || decoded.Trace.TraceID != job.Trace.TraceID {
		t.Errorf("body round trip lost fields: %+v", decoded)
	}

	attr, ok := input.MessageAttributes["trace_id"]
	if !ok || *attr.StringValue != job.Trace.TraceID {
		t.Error("trace_id message attribute missing or wrong")
	}
}

func TestSendWeatherReadyRoutesToReadyQueue(t *testing.T) {
	mock := &mockSQSSender{}
	pub := NewPublisher(mock, testAWSConfig(), testLogger())

	ev := types.WeatherReadyEvent{
		Zip: "78729", Lat: 30.4548, Lon: -97.7568,
		FetchedAt: time.Now().UTC(), Trace: types.NewTrace(),
	}
	if err := pub.SendWeatherReady(context.Background(), ev); err != nil {
		t.Fatalf("SendWeatherReady failed: %v", err)
	}
	if *mock.inputs[0].QueueUrl != "https://sqs.test/weather-ready" {
		t.Errorf("wrong queue: %s", *mock.inputs[0].QueueUrl)
	}
}

func TestSendGenerationJobRoutesToLandscapeQueue(t *testing.T) {
	mock := &mockSQSSender{}
	pub := NewPublisher(mock, testAWSConfig(), testLogger())

	job := types.GenerationJob{
		Zip: "78729", Format: types.FormatBW, Lat: 30.4548, Lon: -97.7568,
		EnqueuedAt: time.Now().UTC(), Trace: types.NewTrace(),
	}
	if err := pub.SendGenerationJob(context.Background(), job); err != nil {
		t.Fatalf("SendGenerationJob failed: %v", err)
	}
	if *mock.inputs[0].QueueUrl != "https://sqs.test/landscape-jobs" {
		t.Errorf("wrong queue: %s", *mock.inputs[0].QueueUrl)
	}
}

func TestSendFailureMapsToEnqueueError(t *testing.T) {
	mock := &mockSQSSender{failNow: true}
	pub := NewPublisher(mock, testAWSConfig(), testLogger())

	err := pub.SendFetchJob(context.Background(), types.FetchJob{
		Zip: "78729", ScheduledAt: time.Now().UTC(), Trace: types.NewTrace(),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	appErr, ok := err.(*types.AppError)
	if !ok || appErr.Code != types.ErrCodePipelineEnqueue {
		t.Errorf("expected pipeline_enqueue_failed, got %v", err)
	}
}
