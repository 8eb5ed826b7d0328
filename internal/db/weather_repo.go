package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"weatherscape/internal/types"
)

const (
	keyGeoPrefix     = "geo:"
	keyWeatherPrefix = "weather:"
)

// WeatherRepository manages the two weather-related caches: the permanent
// geocode cache and the time-bounded weather-data cache.
//
// Weather bundles carry two raw provider payloads; a forecast body runs tens
// of KB of JSON, so bundles are zstd-compressed before storage and
// transparently decompressed on read. Geocode entries are tiny and stored
// as plain JSON.
type WeatherRepository struct {
	kv      KV
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewWeatherRepository creates a WeatherRepository over the given KV store.
func NewWeatherRepository(kv KV) (*WeatherRepository, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("db: failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("db: failed to create zstd decoder: %w", err)
	}
	return &WeatherRepository{kv: kv, encoder: enc, decoder: dec}, nil
}

// GetGeocode returns the cached coordinates for zip, or ok=false when the
// ZIP has never been geocoded.
func (r *WeatherRepository) GetGeocode(ctx context.Context, zip string) (types.GeocodeEntry, bool, error) {
	raw, ok, err := r.kv.Get(ctx, keyGeoPrefix+zip)
	if err != nil || !ok {
		return types.GeocodeEntry{}, false, err
	}

	var entry types.GeocodeEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return types.GeocodeEntry{}, false, types.NewAppError(types.ErrCodeInternalKV,
			fmt.Sprintf("corrupt geocode entry for %s", zip), err)
	}
	return entry, true, nil
}

// PutGeocode stores a geocode entry permanently. Geocoding a ZIP is
// time-invariant, so entries never expire.
func (r *WeatherRepository) PutGeocode(ctx context.Context, entry types.GeocodeEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalKV, "failed to encode geocode entry", err)
	}
	return r.kv.Put(ctx, keyGeoPrefix+entry.Zip, raw, 0)
}

// GetWeather returns the cached weather bundle for zip, or ok=false when no
// bundle exists or its TTL has elapsed.
func (r *WeatherRepository) GetWeather(ctx context.Context, zip string) (types.WeatherBundle, bool, error) {
	compressed, ok, err := r.kv.Get(ctx, keyWeatherPrefix+zip)
	if err != nil || !ok {
		return types.WeatherBundle{}, false, err
	}

	raw, err := r.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return types.WeatherBundle{}, false, types.NewAppError(types.ErrCodeInternalKV,
			fmt.Sprintf("corrupt weather bundle for %s", zip), err)
	}

	var bundle types.WeatherBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return types.WeatherBundle{}, false, types.NewAppError(types.ErrCodeInternalKV,
			fmt.Sprintf("corrupt weather bundle for %s", zip), err)
	}
	return bundle, true, nil
}

// PutWeather overwrites the weather bundle for zip with the given TTL.
// The bundle is immutable once written: the next cycle replaces it wholesale.
func (r *WeatherRepository) PutWeather(ctx context.Context, zip string, bundle types.WeatherBundle, ttl time.Duration) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalKV, "failed to encode weather bundle", err)
	}
	compressed := r.encoder.EncodeAll(raw, nil)
	return r.kv.Put(ctx, keyWeatherPrefix+zip, compressed, ttl)
}
