package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"weatherscape/internal/types"
)

// --- Test Doubles ---

type mockFormatSource struct {
	formats map[string][]types.FormatID
	err     error
}

func (m *mockFormatSource) Formats(_ context.Context, zip string) ([]types.FormatID, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.formats[zip], nil
}

type mockJobSender struct {
	mu        sync.Mutex
	jobs      []types.GenerationJob
	failAfter int // fail the Nth send (1-based); 0 disables
}

func (m *mockJobSender) SendGenerationJob(_ context.Context, job types.GenerationJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAfter > 0 && len(m.jobs)+1 == m.failAfter {
		return fmt.Errorf("simulated enqueue failure")
	}
	m.jobs = append(m.jobs, job)
	return nil
}

type mockStatusWriter struct {
	mu      sync.Mutex
	records map[types.Stage]types.StatusRecord
}

func (m *mockStatusWriter) PutStatus(_ context.Context, stage types.Stage, rec types.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[types.Stage]types.StatusRecord)
	}
	m.records[stage] = rec
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

func newTestDispatcher(formats *mockFormatSource, sender *mockJobSender, status *mockStatusWriter) *Dispatcher {
	return New(Config{Formats: formats, Sender: sender, Status: status, Logger: quietLogger()})
}

func readyRecord(t *testing.T, id, zip string) (events.SQSMessage, types.WeatherReadyEvent) {
	t.Helper()
	ev := types.WeatherReadyEvent{
		Zip:       zip,
		Lat:       30.4548,
		Lon:       -97.7919,
		FetchedAt: time.Now().UTC(),
		Trace:     types.NewTrace().Child(),
	}
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}, ev
}

func TestHandleBatchFansOutOneJobPerFormat(t *testing.T) {
	formats := &mockFormatSource{formats: map[string][]types.FormatID{
		"78729": {types.FormatRGBLight, types.FormatBW, types.FormatEInk},
	}}
	sender := &mockJobSender{}
	status := &mockStatusWriter{}
	d := newTestDispatcher(formats, sender, status)

	record, ev := readyRecord(t, "m1", "78729")
	resp, err := d.HandleBatch(context.Background(), events.SQSEvent{Records: []events.SQSMessage{record}})
	if err != nil {
		t.Fatal(err)
	}

	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("expected clean batch, got %v", resp.BatchItemFailures)
	}
	if len(sender.jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(sender.jobs))
	}
	seen := make(map[types.FormatID]bool)
	for _, job := range sender.jobs {
		seen[job.Format] = true
		if job.Zip != "78729" || job.Lat != ev.Lat || job.Lon != ev.Lon {
			t.Errorf("job did not inherit event coordinates: %+v", job)
		}
		if job.EnqueuedAt.IsZero() {
			t.Error("job missing enqueue timestamp")
		}
	}
	if len(seen) != 3 {
		t.Errorf("formats not all covered: %v", seen)
	}
	rec := status.records[types.StageDispatcher]
	if rec.Totals != 1 || rec.SuccessCount != 1 {
		t.Errorf("unexpected status: %+v", rec)
	}
}

func TestHandleBatchDerivedJobsShareTraceWithFreshSpans(t *testing.T) {
	formats := &mockFormatSource{formats: map[string][]types.FormatID{
		"78729": {types.FormatRGBLight, types.FormatBW},
	}}
	sender := &mockJobSender{}
	d := newTestDispatcher(formats, sender, &mockStatusWriter{})

	record, ev := readyRecord(t, "m1", "78729")
	if _, err := d.HandleBatch(context.Background(), events.SQSEvent{Records: []events.SQSMessage{record}}); err != nil {
		t.Fatal(err)
	}

	spans := make(map[string]bool)
	for _, job := range sender.jobs {
		if job.Trace.TraceID != ev.Trace.TraceID {
			t.Error("derived job must inherit the event's trace ID")
		}
		if job.Trace.ParentSpanID != ev.Trace.SpanID {
			t.Error("derived job's parent must be the event's span")
		}
		if spans[job.Trace.SpanID] {
			t.Error("each derived job needs its own span ID")
		}
		spans[job.Trace.SpanID] = true
	}
}

func TestHandleBatchPartialFanOutRetriesWholeEvent(t *testing.T) {
	formats := &mockFormatSource{formats: map[string][]types.FormatID{
		"78729": {types.FormatRGBLight, types.FormatBW, types.FormatEInk},
	}}
	sender := &mockJobSender{failAfter: 2}
	status := &mockStatusWriter{}
	d := newTestDispatcher(formats, sender, status)

	record, _ := readyRecord(t, "m1", "78729")
	resp, err := d.HandleBatch(context.Background(), events.SQSEvent{Records: []events.SQSMessage{record}})
	if err != nil {
		t.Fatal(err)
	}

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m1" {
		t.Fatalf("partial fan-out must retry the event, got %v", resp.BatchItemFailures)
	}
	if status.records[types.StageDispatcher].ErrorCount != 1 {
		t.Errorf("unexpected status: %+v", status.records[types.StageDispatcher])
	}
}

func TestHandleBatchFormatLookupFailureRetries(t *testing.T) {
	formats := &mockFormatSource{err: fmt.Errorf("kv down")}
	d := newTestDispatcher(formats, &mockJobSender{}, &mockStatusWriter{})

	record, _ := readyRecord(t, "m1", "78729")
	resp, err := d.HandleBatch(context.Background(), events.SQSEvent{Records: []events.SQSMessage{record}})
	if err != nil {
		t.Fatal(err)
	}

	if len(resp.BatchItemFailures) != 1 {
		t.Fatal("format lookup failure must request redelivery")
	}
}

func TestHandleBatchMalformedEventAckedNotRetried(t *testing.T) {
	formats := &mockFormatSource{formats: map[string][]types.FormatID{}}
	status := &mockStatusWriter{}
	d := newTestDispatcher(formats, &mockJobSender{}, status)

	resp, err := d.HandleBatch(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "bad", Body: "not json"},
		{MessageId: "bad-lat", Body: `{"zip_code":"78729","lat":200,"lon":0,"fetched_at":"2026-08-25T12:00:00Z","_trace":{}}`},
	}})
	if err != nil {
		t.Fatal(err)
	}

	if len(resp.BatchItemFailures) != 0 {
		t.Fatalf("malformed events must be acked, got %v", resp.BatchItemFailures)
	}
	rec := status.records[types.StageDispatcher]
	if rec.ErrorCount != 2 || rec.SuccessCount != 0 {
		t.Errorf("unexpected status: %+v", rec)
	}
}

func TestHandleBatchZipWithNoFormatsAcksCleanly(t *testing.T) {
	// A ZIP deactivated between fetch and dispatch resolves to an empty
	// format list; the event completes with zero jobs.
	formats := &mockFormatSource{formats: map[string][]types.FormatID{}}
	sender := &mockJobSender{}
	d := newTestDispatcher(formats, sender, &mockStatusWriter{})

	record, _ := readyRecord(t, "m1", "99999")
	resp, err := d.HandleBatch(context.Background(), events.SQSEvent{Records: []events.SQSMessage{record}})
	if err != nil {
		t.Fatal(err)
	}

	if len(resp.BatchItemFailures) != 0 {
		t.Fatal("empty fan-out must still ack")
	}
	if len(sender.jobs) != 0 {
		t.Errorf("expected no jobs, got %d", len(sender.jobs))
	}
}
