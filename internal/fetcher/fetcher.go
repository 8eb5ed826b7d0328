// Package fetcher implements the second pipeline stage: consume FetchJobs,
// resolve coordinates, pull current + forecast weather from the provider,
// cache the bundle, and announce readiness downstream.
//
// Delivery semantics per message:
//   - Unparseable or schema-invalid jobs are acked and counted as errors;
//     redelivery cannot fix a malformed body.
//   - Any provider, cache-write, or enqueue failure leaves the message in the
//     partial batch response so SQS redelivers only that message.
//   - A message is acked only after the WeatherReadyEvent is enqueued.
//
// Missing provider credentials are a batch-level condition: nothing is
// processed and the entire batch is redelivered untouched.
package fetcher

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

// defaultConcurrency bounds in-batch parallelism. The provider rate limiter
// is the real throttle; this just keeps goroutine count sane.
const defaultConcurrency = 4

// WeatherProvider is the upstream weather API. Implemented by weather.Client.
type WeatherProvider interface {
	HasCredentials() bool
	GeocodeZip(ctx context.Context, zip string) (types.GeocodeEntry, error)
	CurrentWeather(ctx context.Context, lat, lon float64) (json.RawMessage, error)
	Forecast(ctx context.Context, lat, lon float64) (json.RawMessage, error)
}

// WeatherCache is the geocode + weather-bundle cache. Implemented by
// db.WeatherRepository.
type WeatherCache interface {
	GetGeocode(ctx context.Context, zip string) (types.GeocodeEntry, bool, error)
	PutGeocode(ctx context.Context, entry types.GeocodeEntry) error
	PutWeather(ctx context.Context, zip string, bundle types.WeatherBundle, ttl time.Duration) error
}

// ReadySender enqueues WeatherReadyEvents. Implemented by queue.Publisher.
type ReadySender interface {
	SendWeatherReady(ctx context.Context, ev types.WeatherReadyEvent) error
}

// StatusWriter persists per-stage run summaries. Implemented by
// db.StatusRepository.
type StatusWriter interface {
	PutStatus(ctx context.Context, stage types.Stage, rec types.StatusRecord) error
}

// Fetcher consumes FetchJob batches from SQS.
type Fetcher struct {
	provider    WeatherProvider
	cache       WeatherCache
	sender      ReadySender
	status      StatusWriter
	metrics     types.StageMetrics
	cacheTTL    time.Duration
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Config holds the dependencies for creating a Fetcher.
type Config struct {
	Provider WeatherProvider
	Cache    WeatherCache
	Sender   ReadySender
	Status   StatusWriter
	Metrics  types.StageMetrics
	// CacheTTL bounds the weather bundle's lifetime. Must exceed the
	// scheduling interval so a bundle never expires before its consumers run.
	CacheTTL    time.Duration
	Concurrency int
	Logger      *slog.Logger
}

// New creates a Fetcher with the given configuration.
func New(cfg Config) *Fetcher {
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
	return &Fetcher{
		provider:    cfg.Provider,
		cache:       cfg.Cache,
		sender:      cfg.Sender,
		status:      cfg.Status,
		metrics:     metrics,
		cacheTTL:    cfg.CacheTTL,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// HandleBatch processes one SQS batch and returns the partial batch response.
func (f *Fetcher) HandleBatch(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	startedAt := f.now().UTC()
	outcome := &queue.BatchOutcome{}

	if !f.provider.HasCredentials() {
		err := types.NewAppError(types.ErrCodeConfigMissingCredentials,
			"weather provider API key is not configured", nil)
		f.logger.ErrorContext(ctx, "refusing batch without provider credentials",
			"batch_size", len(event.Records))
		outcome.RetryAll(event.Records, err)
		f.finishBatch(ctx, outcome, startedAt, len(event.Records))
		return outcome.Response(), nil
	}

	if len(event.Records) > 0 {
		if lag, ok := queue.MessageLag(event.Records[0], f.now()); ok {
			f.metrics.RecordQueueLag(ctx, types.StageFetcher, lag)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for _, record := range event.Records {
		record := record
		g.Go(func() error {
			f.processRecord(gctx, record, outcome)
			return nil
		})
	}
	_ = g.Wait()

	f.finishBatch(ctx, outcome, startedAt, len(event.Records))
	return outcome.Response(), nil
}

// processRecord handles one FetchJob and records its outcome.
func (f *Fetcher) processRecord(ctx context.Context, record events.SQSMessage, outcome *queue.BatchOutcome) {
	var job types.FetchJob
	if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
		f.logger.ErrorContext(ctx, "discarding unparseable fetch job",
			"message_id", record.MessageId, "error", err)
		outcome.AckMalformed(err)
		return
	}
	if err := types.ValidateMessage(job); err != nil {
		f.logger.ErrorContext(ctx, "discarding invalid fetch job",
			"message_id", record.MessageId, "zip_code", job.Zip, "error", err)
		outcome.AckMalformed(err)
		return
	}

	// The fetcher's own span: child of the scheduler's.
	span := job.Trace.Child()
	logger := f.logger.With(
		"zip_code", job.Zip,
		"trace_id", span.TraceID,
		"span_id", span.SpanID,
	)

	geo, err := f.resolveCoordinates(ctx, job.Zip, logger)
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve coordinates", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}

	current, err := f.provider.CurrentWeather(ctx, geo.Lat, geo.Lon)
	if err != nil {
		logger.ErrorContext(ctx, "failed to fetch current weather", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}
	forecast, err := f.provider.Forecast(ctx, geo.Lat, geo.Lon)
	if err != nil {
		logger.ErrorContext(ctx, "failed to fetch forecast", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}

	fetchedAt := f.now().UTC()
	bundle := types.WeatherBundle{Current: current, Forecast: forecast}
	if err := f.cache.PutWeather(ctx, job.Zip, bundle, f.cacheTTL); err != nil {
		logger.ErrorContext(ctx, "failed to cache weather bundle", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}

	ev := types.WeatherReadyEvent{
		Zip:       job.Zip,
		Lat:       geo.Lat,
		Lon:       geo.Lon,
		FetchedAt: fetchedAt,
		Trace:     span.Child(),
	}
	if err := f.sender.SendWeatherReady(ctx, ev); err != nil {
		logger.ErrorContext(ctx, "failed to enqueue weather-ready event", "error", err)
		outcome.Retry(record.MessageId, err)
		return
	}

	outcome.Ack()
	logger.InfoContext(ctx, "weather refreshed",
		"lat", geo.Lat, "lon", geo.Lon, "fetched_at", fetchedAt)
}

// resolveCoordinates is the cache-aside geocode lookup: read the permanent
// cache, fall through to the provider on a miss, write back on success. A
// write-back failure is logged but not fatal; the coordinates are in hand and
// the next miss re-geocodes.
func (f *Fetcher) resolveCoordinates(ctx context.Context, zip string, logger *slog.Logger) (types.GeocodeEntry, error) {
	entry, ok, err := f.cache.GetGeocode(ctx, zip)
	if err != nil {
		return types.GeocodeEntry{}, err
	}
	if ok {
		return entry, nil
	}

	entry, err = f.provider.GeocodeZip(ctx, zip)
	if err != nil {
		return types.GeocodeEntry{}, err
	}
	if err := f.cache.PutGeocode(ctx, entry); err != nil {
		logger.WarnContext(ctx, "failed to persist geocode entry", "error", err)
	}
	return entry, nil
}

// finishBatch writes the status record and batch metrics. Both are
// observability, not control flow.
func (f *Fetcher) finishBatch(ctx context.Context, outcome *queue.BatchOutcome, startedAt time.Time, total int) {
	rec := outcome.StatusRecord(startedAt, total)
	if err := f.status.PutStatus(ctx, types.StageFetcher, rec); err != nil {
		f.logger.WarnContext(ctx, "failed to write fetcher status", "error", err)
	}
	f.metrics.RecordBatch(ctx, types.StageFetcher, rec.SuccessCount, rec.ErrorCount)

	f.logger.InfoContext(ctx, "fetch batch completed",
		"total", total,
		"succeeded", rec.SuccessCount,
		"errors", rec.ErrorCount,
	)
}
