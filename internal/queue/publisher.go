// Package queue provides SQS-based message producers for dispatching fetch
// jobs, weather-ready events, and generation jobs to downstream workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"weatherscape/internal/config"
	"weatherscape/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends the three pipeline message types to their queues. Each
// message is serialized to JSON and tagged with its trace ID as a message
// attribute so queue tooling can correlate without parsing bodies.
type Publisher struct {
	client           SQSSender
	fetchJobsURL     string
	weatherReadyURL  string
	landscapeJobsURL string
	logger           *slog.Logger
}

// NewPublisher creates a Publisher with the given SQS client and
// configuration. It reads queue URLs from the AWSConfig.
func NewPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:           client,
		fetchJobsURL:     awsCfg.FetchJobsQueue,
		weatherReadyURL:  awsCfg.WeatherReadyQueue,
		landscapeJobsURL: awsCfg.LandscapeJobsQueue,
		logger:           logger,
	}
}

// SendFetchJob enqueues a FetchJob on the fetch-jobs queue
// (Scheduler -> Weather Fetcher).
func (p *Publisher) SendFetchJob(ctx context.Context, job types.FetchJob) error {
	return p.send(ctx, p.fetchJobsURL, "FetchJob", job, job.Trace,
		"zip_code", job.Zip)
}

// SendWeatherReady enqueues a WeatherReadyEvent on the weather-ready queue
// (Weather Fetcher -> Job Dispatcher).
func (p *Publisher) SendWeatherReady(ctx context.Context, ev types.WeatherReadyEvent) error {
	return p.send(ctx, p.weatherReadyURL, "WeatherReadyEvent", ev, ev.Trace,
		"zip_code", ev.Zip)
}

// SendGenerationJob enqueues a GenerationJob on the landscape-jobs queue
// (Job Dispatcher -> Landscape Generator).
func (p *Publisher) SendGenerationJob(ctx context.Context, job types.GenerationJob) error {
	return p.send(ctx, p.landscapeJobsURL, "GenerationJob", job, job.Trace,
		"zip_code", job.Zip, "format", string(job.Format))
}

// send serializes the message to JSON and dispatches it to the given queue.
func (p *Publisher) send(ctx context.Context, queueURL, kind string, msg any, trace types.TraceContext, logAttrs ...any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(types.ErrCodePipelineEnqueue,
			fmt.Sprintf("failed to marshal %s", kind), err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"trace_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(trace.TraceID),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodePipelineEnqueue,
			fmt.Sprintf("failed to send %s to %s", kind, queueURL), err)
	}

	attrs := append([]any{
		"queue_url", queueURL,
		"message_kind", kind,
		"trace_id", trace.TraceID,
		"span_id", trace.SpanID,
	}, logAttrs...)
	p.logger.InfoContext(ctx, "pipeline message sent", attrs...)

	return nil
}
