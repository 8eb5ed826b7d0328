// Package scheduler implements the entry stage of the pipeline: on each cron
// tick it fans the active-ZIP set out into one FetchJob per ZIP, minting a
// fresh trace for each ZIP's run.
//
// Key behaviors:
//   - Enqueue failure for one ZIP is logged and counted but never aborts the
//     remaining ZIPs (best-effort fan-out, no cross-ZIP transaction).
//   - No retries at this stage; the next cron tick naturally re-attempts.
//   - A StatusRecord with {totalZips, enqueued} is written at the end of
//     every tick, best-effort.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"weatherscape/internal/types"
)

// ZipSource provides the active-ZIP set. Implemented by db.ZipRepository.
type ZipSource interface {
	ActiveZips(ctx context.Context) ([]string, error)
}

// FetchJobSender enqueues FetchJobs. Implemented by queue.Publisher.
type FetchJobSender interface {
	SendFetchJob(ctx context.Context, job types.FetchJob) error
}

// StatusWriter persists per-stage run summaries. Implemented by
// db.StatusRepository.
type StatusWriter interface {
	PutStatus(ctx context.Context, stage types.Stage, rec types.StatusRecord) error
}

// Scheduler reads the active-ZIP set and enqueues one FetchJob per ZIP.
type Scheduler struct {
	zips    ZipSource
	sender  FetchJobSender
	status  StatusWriter
	metrics types.StageMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// Config holds the dependencies for creating a Scheduler.
type Config struct {
	Zips    ZipSource
	Sender  FetchJobSender
	Status  StatusWriter
	Metrics types.StageMetrics
	Logger  *slog.Logger
}

// New creates a Scheduler with the given configuration.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = types.NoopStageMetrics{}
	}
	return &Scheduler{
		zips:    cfg.Zips,
		sender:  cfg.Sender,
		status:  cfg.Status,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Tick runs one scheduling pass. It returns the StatusRecord it wrote so the
// Lambda entrypoint can report the summary.
//
// Reading the active-ZIP set is the only operation that can fail the whole
// tick; everything after that degrades per ZIP.
func (s *Scheduler) Tick(ctx context.Context) (types.StatusRecord, error) {
	startedAt := s.now().UTC()
	s.logger.InfoContext(ctx, "scheduler tick started", "started_at", startedAt)

	zips, err := s.zips.ActiveZips(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to read active ZIP set", "error", err)
		return types.StatusRecord{}, err
	}

	rec := types.StatusRecord{
		LastRunAt: startedAt,
		Totals:    len(zips),
	}

	for _, zip := range zips {
		trace := types.NewTrace()
		job := types.FetchJob{
			Zip:         zip,
			ScheduledAt: s.now().UTC(),
			Trace:       trace,
		}

		logger := s.logger.With(
			"zip_code", zip,
			"trace_id", trace.TraceID,
			"span_id", trace.SpanID,
		)

		if err := s.sender.SendFetchJob(ctx, job); err != nil {
			rec.ErrorCount++
			rec.Errors = append(rec.Errors, err.Error())
			logger.ErrorContext(ctx, "failed to enqueue fetch job", "error", err)
			continue
		}
		rec.SuccessCount++
		logger.InfoContext(ctx, "scheduled ZIP for refresh")
	}

	// Status is observability, not control flow: a write failure is logged
	// and the tick still counts as done.
	if err := s.status.PutStatus(ctx, types.StageScheduler, rec); err != nil {
		s.logger.WarnContext(ctx, "failed to write scheduler status", "error", err)
	}
	s.metrics.RecordBatch(ctx, types.StageScheduler, rec.SuccessCount, rec.ErrorCount)

	s.logger.InfoContext(ctx, "scheduler tick completed",
		"total_zips", rec.Totals,
		"enqueued", rec.SuccessCount,
		"errors", rec.ErrorCount,
	)
	return rec, nil
}
