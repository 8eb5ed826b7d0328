// Package dispatcher implements the third pipeline stage: consume
// WeatherReadyEvents and fan each one out into one GenerationJob per format
// configured for that ZIP.
//
// Fan-out is all-or-retry: an event is acked only after every derived job is
// enqueued. SQS redelivery of a partially fanned-out event re-enqueues jobs
// that already went through; the generator is idempotent per (zip, format),
// so duplicates converge on the same artifact.
package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"golang.org/x/sync/errgroup"

	"weatherscape/internal/queue"
	"weatherscape/internal/types"
)

const defaultConcurrency = 4

// FormatSource provides the per-ZIP format list. Implemented by
// db.ZipRepository.
type FormatSource interface {
	Formats(ctx context.Context, zip string) ([]types.FormatID, error)
}

// JobSender enqueues GenerationJobs. Implemented by queue.Publisher.
type JobSender interface {
	SendGenerationJob(ctx context.Context, job types.GenerationJob) error
}

// StatusWriter persists per-stage run summaries. Implemented by
// db.StatusRepository.
type StatusWriter interface {
	PutStatus(ctx context.Context, stage types.Stage, rec types.StatusRecord) error
}

// Dispatcher consumes WeatherReadyEvent batches from SQS.
type Dispatcher struct {
	formats     FormatSource
	sender      JobSender
	status      StatusWriter
	metrics     types.StageMetrics
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Config holds the dependencies for creating a Dispatcher.
type Config struct {
	Formats     FormatSource
	Sender      JobSender
	Status      StatusWriter
	Metrics     types.StageMetrics
	Concurrency int
	Logger      *slog.Logger
}

// New creates a Dispatcher with the given configuration.
func New(cfg Config) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = types.NoopStageMetrics{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Dispatcher{
		formats:     cfg.Formats,
		sender:      cfg.Sender,
		status:      cfg.Status,
		metrics:     metrics,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// HandleBatch processes one SQS batch and returns the partial batch response.
func (d *Dispatcher) HandleBatch(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	startedAt := d.now().UTC()
	outcome := &queue.BatchOutcome{}

	if len(event.Records) > 0 {
		if lag, ok := queue.MessageLag(event.Records[0], d.now()); ok {
			d.metrics.RecordQueueLag(ctx, types.StageDispatcher, lag)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, record := range event.Records {
		record := record
		g.Go(func() error {
			d.processRecord(gctx, record, outcome)
			return nil
		})
	}
	_ = g.Wait()

	rec := outcome.StatusRecord(startedAt, len(event.Records))
	if err := d.status.PutStatus(ctx, types.StageDispatcher, rec); err != nil {
		d.logger.WarnContext(ctx, "failed to write dispatcher status", "error", err)
	}
	d.metrics.RecordBatch(ctx, types.StageDispatcher, rec.SuccessCount, rec.ErrorCount)

	d.logger.InfoContext(ctx, "dispatch batch completed",
		"total", len(event.Records),
		"succeeded", rec.SuccessCount,
		"errors", rec.ErrorCount,
	)
	return outcome.Response(), nil
}

// processRecord fans one WeatherReadyEvent out into its generation jobs.
func (d *Dispatcher) processRecord(ctx context.Context, record events.SQSMessage, outcome *queue.BatchOutcome) {
	var ev types.WeatherReadyEvent
	if err := json.Unmarshal([]byte(record.Body), &ev); err != nil {
		d.logger.ErrorContext(ctx, "discarding unparseable weather-ready event",
			"message_id", record.MessageId, "error", err)
		outcome.AckMalformed(err)
		return
	}
	if err := types.ValidateMessage(ev); err != nil {
		d.logger.ErrorContext(ctx, "discarding invalid weather-ready event",
			"message_id", record.MessageId, "zip_code", ev.Zip, "error", err)
		outcome.AckMalformed(err)
		return
	}

	logger := d.logger.With(
		"zip_code", ev.Zip,
		"trace_id", ev.Trace.TraceID,
	)

	formats, err := d.formats.Formats(ctx, ev.Zip)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read format list", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}

	enqueuedAt := d.now().UTC()
	for _, format := range formats {
		job := types.GenerationJob{
			Zip:        ev.Zip,
			Format:     format,
			Lat:        ev.Lat,
			Lon:        ev.Lon,
			EnqueuedAt: enqueuedAt,
			Trace:      ev.Trace.Child(),
		}
		if err := d.sender.SendGenerationJob(ctx, job); err != nil {
			// Partial fan-out: keep the event for redelivery. Already
			// enqueued jobs are duplicated on the retry and absorbed by
			// the generator's idempotency.
			logger.ErrorContext(ctx, "failed to enqueue generation job",
				"format", string(format), "error", err)
			outcome.Retry(record.MessageId, err)
			return
		}
	}

	outcome.Ack()
	logger.InfoContext(ctx, "weather-ready event dispatched", "formats", len(formats))
}
