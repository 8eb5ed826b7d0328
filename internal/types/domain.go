package types

import (
	"encoding/json"
	"time"
)

// Stage names the four pipeline stages. Used as the key suffix for status
// records and as the metric dimension for per-stage telemetry.
type Stage string

const (
	StageScheduler  Stage = "zip_scheduler"
	StageFetcher    Stage = "weather_fetcher"
	StageDispatcher Stage = "job_dispatcher"
	StageGenerator  Stage = "landscape_generator"
)

// GeocodeEntry is the permanent ZIP -> coordinates cache entry. Geocoding a
// ZIP is time-invariant, so entries never expire.
type GeocodeEntry struct {
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Zip      string    `json:"zip"`
	CachedAt time.Time `json:"cached_at"`
}

// WeatherBundle is the pair of raw provider payloads cached per ZIP between
// the fetch stage and the render stage. The payload shapes belong to the
// provider; the pipeline carries them opaquely and never patches them --
// a bundle is always overwritten wholesale on the next cycle.
type WeatherBundle struct {
	Current  json.RawMessage `json:"current"`
	Forecast json.RawMessage `json:"forecast"`
}

// ArtifactMetadata describes one generated image. It is stored both as S3
// object metadata and as a parallel KV record for the status surface.
// JSON tags are camelCase to match the stored metadata document.
type ArtifactMetadata struct {
	GeneratedAt   time.Time `json:"generatedAt"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	ZipCode       string    `json:"zipCode"`
	ByteSize      int       `json:"fileSize"`
	FormatVariant FormatID  `json:"variant"`
}

// StatusRecord is the per-stage run summary written at the end of each batch
// (or each scheduler tick) and read by the status/admin surface.
type StatusRecord struct {
	LastRunAt    time.Time `json:"last_run_at"`
	Totals       int       `json:"totals"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
	Errors       []string  `json:"errors,omitempty"`
}
