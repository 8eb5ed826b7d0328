package db

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"weatherscape/internal/types"
)

// KV key layout for ZIP configuration. Shared with nothing outside this
// package; callers go through the repositories.
const (
	keyActiveZips   = "active_zips"
	keyFormatPrefix = "formats:"
)

// ZipRepository manages the active-ZIP set and the per-ZIP enabled-format
// lists. Mutations come from the admin surface; the Scheduler and the Job
// Dispatcher only read.
type ZipRepository struct {
	kv         KV
	defaultZip string
}

// NewZipRepository creates a ZipRepository. defaultZip seeds the active set
// on first read when no set has ever been stored.
func NewZipRepository(kv KV, defaultZip string) *ZipRepository {
	return &ZipRepository{kv: kv, defaultZip: defaultZip}
}

// ActiveZips returns the ordered active-ZIP set. If no set has been stored
// yet, it seeds the store with the default ZIP and returns that singleton,
// so a fresh deployment schedules work on its first tick.
func (r *ZipRepository) ActiveZips(ctx context.Context) ([]string, error) {
	raw, ok, err := r.kv.Get(ctx, keyActiveZips)
	if err != nil {
		return nil, err
	}
	if !ok {
		seed := []string{r.defaultZip}
		if err := r.putZips(ctx, seed); err != nil {
			return nil, err
		}
		return seed, nil
	}

	var zips []string
	if err := json.Unmarshal(raw, &zips); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalKV, "corrupt active_zips entry", err)
	}
	return zips, nil
}

// Activate adds zip to the active set and returns the updated set.
// Adding an already-active ZIP is a no-op.
func (r *ZipRepository) Activate(ctx context.Context, zip string) ([]string, error) {
	if !types.IsValidZip(zip) {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidZip,
			fmt.Sprintf("invalid ZIP code %q", zip), nil)
	}

	zips, err := r.ActiveZips(ctx)
	if err != nil {
		return nil, err
	}
	if slices.Contains(zips, zip) {
		return zips, nil
	}
	zips = append(zips, zip)
	if err := r.putZips(ctx, zips); err != nil {
		return nil, err
	}
	return zips, nil
}

// Deactivate removes zip from the active set and returns the updated set.
// Removing an inactive ZIP is a no-op. Deactivation does not delete the
// ZIP's format list or artifacts; re-activating restores prior behavior.
func (r *ZipRepository) Deactivate(ctx context.Context, zip string) ([]string, error) {
	zips, err := r.ActiveZips(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.Index(zips, zip)
	if idx < 0 {
		return zips, nil
	}
	zips = slices.Delete(zips, idx, idx+1)
	if err := r.putZips(ctx, zips); err != nil {
		return nil, err
	}
	return zips, nil
}

func (r *ZipRepository) putZips(ctx context.Context, zips []string) error {
	raw, err := json.Marshal(zips)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalKV, "failed to encode active_zips", err)
	}
	return r.kv.Put(ctx, keyActiveZips, raw, 0)
}

// Formats returns the enabled-format list for zip. The default format is
// always present and always first; a ZIP with no stored list gets just the
// default.
func (r *ZipRepository) Formats(ctx context.Context, zip string) ([]types.FormatID, error) {
	raw, ok, err := r.kv.Get(ctx, keyFormatPrefix+zip)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []types.FormatID{types.DefaultFormat}, nil
	}

	var formats []types.FormatID
	if err := json.Unmarshal(raw, &formats); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalKV,
			fmt.Sprintf("corrupt format list for %s", zip), err)
	}
	if !slices.Contains(formats, types.DefaultFormat) {
		formats = append([]types.FormatID{types.DefaultFormat}, formats...)
	}
	return formats, nil
}

// AddFormat enables format for zip and returns the updated list.
func (r *ZipRepository) AddFormat(ctx context.Context, zip string, format types.FormatID) ([]types.FormatID, error) {
	if !format.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationUnknownFormat,
			fmt.Sprintf("unknown format %q", format), nil)
	}

	formats, err := r.Formats(ctx, zip)
	if err != nil {
		return nil, err
	}
	if slices.Contains(formats, format) {
		return formats, nil
	}
	formats = append(formats, format)
	if err := r.putFormats(ctx, zip, formats); err != nil {
		return nil, err
	}
	return formats, nil
}

// RemoveFormat disables format for zip and returns the updated list.
// The default format can never be removed.
func (r *ZipRepository) RemoveFormat(ctx context.Context, zip string, format types.FormatID) ([]types.FormatID, error) {
	if format == types.DefaultFormat {
		return nil, types.NewAppError(types.ErrCodeValidationDefaultFormat,
			fmt.Sprintf("cannot remove default format %s", types.DefaultFormat), nil)
	}

	formats, err := r.Formats(ctx, zip)
	if err != nil {
		return nil, err
	}
	idx := slices.Index(formats, format)
	if idx < 0 {
		return formats, nil
	}
	formats = slices.Delete(formats, idx, idx+1)
	if err := r.putFormats(ctx, zip, formats); err != nil {
		return nil, err
	}
	return formats, nil
}

func (r *ZipRepository) putFormats(ctx context.Context, zip string, formats []types.FormatID) error {
	raw, err := json.Marshal(formats)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalKV, "failed to encode format list", err)
	}
	return r.kv.Put(ctx, keyFormatPrefix+zip, raw, 0)
}
