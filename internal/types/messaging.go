// Package types defines the shared domain model of the weatherscape pipeline:
// queue message schemas, trace context, the format registry, cache entries,
// and the common error type. All four pipeline stages and the web surface
// depend on this package and nothing in it depends on infrastructure.
package types

import (
	"time"

	"github.com/google/uuid"
)

// TraceContext is the causal identifier set attached to every queue message.
// A fresh TraceID is minted once per ZIP per scheduler tick; every downstream
// message inherits it and records the sender's SpanID as its ParentSpanID.
// JSON tags use snake_case under the "_trace" envelope key to match the
// message schema consumed by the workers.
type TraceContext struct {
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
}

// NewTrace mints a fresh trace for one ZIP's pipeline run: a new TraceID,
// a new root SpanID, and no parent.
func NewTrace() TraceContext {
	return TraceContext{
		TraceID: newTraceID(),
		SpanID:  newSpanID(),
	}
}

// Child derives the trace context for a downstream message: same TraceID,
// new SpanID, and this context's SpanID as the parent.
func (t TraceContext) Child() TraceContext {
	return TraceContext{
		TraceID:      t.TraceID,
		SpanID:       newSpanID(),
		ParentSpanID: t.SpanID,
	}
}

// IsZero reports whether the context carries no trace at all (e.g., a message
// produced by an out-of-band tool that predates tracing).
func (t TraceContext) IsZero() bool {
	return t.TraceID == ""
}

// newTraceID returns a UUID4 in hex form without hyphens.
func newTraceID() string {
	u := uuid.New()
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 32)
	for i, b := range u {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0x0f]
	}
	return string(buf)
}

// newSpanID returns a shorter 16-hex-char span identifier.
func newSpanID() string {
	return newTraceID()[:16]
}

// FetchJob is the Scheduler -> Weather Fetcher message: refresh this ZIP.
type FetchJob struct {
	Zip         string       `json:"zip_code" validate:"required,len=5,numeric"`
	ScheduledAt time.Time    `json:"scheduled_at" validate:"required"`
	Trace       TraceContext `json:"_trace"`
}

// WeatherReadyEvent is the Weather Fetcher -> Job Dispatcher message: weather
// for this ZIP is in the cache and coordinates are resolved.
type WeatherReadyEvent struct {
	Zip       string       `json:"zip_code" validate:"required,len=5,numeric"`
	Lat       float64      `json:"lat" validate:"gte=-90,lte=90"`
	Lon       float64      `json:"lon" validate:"gte=-180,lte=180"`
	FetchedAt time.Time    `json:"fetched_at" validate:"required"`
	Trace     TraceContext `json:"_trace"`
}

// GenerationJob is the Job Dispatcher -> Landscape Generator message: render
// one (zip, format) artifact from the cached weather data.
type GenerationJob struct {
	Zip        string       `json:"zip_code" validate:"required,len=5,numeric"`
	Format     FormatID     `json:"format_name" validate:"required"`
	Lat        float64      `json:"lat" validate:"gte=-90,lte=90"`
	Lon        float64      `json:"lon" validate:"gte=-180,lte=180"`
	EnqueuedAt time.Time    `json:"enqueued_at" validate:"required"`
	Trace      TraceContext `json:"_trace"`
}
