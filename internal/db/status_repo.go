package db

import (
	"context"
	"encoding/json"
	"fmt"

	"weatherscape/internal/types"
)

const (
	keyStatusPrefix   = "status:"
	keyMetadataPrefix = "metadata:"
)

// StatusRepository stores the per-stage run summaries and the artifact
// metadata mirror that the status/admin surface reads.
type StatusRepository struct {
	kv KV
}

// NewStatusRepository creates a StatusRepository over the given KV store.
func NewStatusRepository(kv KV) *StatusRepository {
	return &StatusRepository{kv: kv}
}

// PutStatus overwrites the run summary for stage. Status records are
// best-effort observability: callers log write failures but never fail a
// batch over them.
func (r *StatusRepository) PutStatus(ctx context.Context, stage types.Stage, rec types.StatusRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalKV, "failed to encode status record", err)
	}
	return r.kv.Put(ctx, keyStatusPrefix+string(stage), raw, 0)
}

// GetStatus returns the latest run summary for stage, or ok=false if the
// stage has never run.
func (r *StatusRepository) GetStatus(ctx context.Context, stage types.Stage) (types.StatusRecord, bool, error) {
	raw, ok, err := r.kv.Get(ctx, keyStatusPrefix+string(stage))
	if err != nil || !ok {
		return types.StatusRecord{}, false, err
	}
	var rec types.StatusRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.StatusRecord{}, false, types.NewAppError(types.ErrCodeInternalKV,
			fmt.Sprintf("corrupt status record for %s", stage), err)
	}
	return rec, true, nil
}

// PutArtifactMeta mirrors one artifact's metadata into the KV store under
// "metadata:{zip}:{format}" so the status surface can report generation
// times without touching the blob store.
func (r *StatusRepository) PutArtifactMeta(ctx context.Context, meta types.ArtifactMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalKV, "failed to encode artifact metadata", err)
	}
	key := fmt.Sprintf("%s%s:%s", keyMetadataPrefix, meta.ZipCode, meta.FormatVariant)
	return r.kv.Put(ctx, key, raw, 0)
}

// GetArtifactMeta returns the metadata mirror for one (zip, format) pair,
// or ok=false if no artifact has ever been generated for it.
func (r *StatusRepository) GetArtifactMeta(ctx context.Context, zip string, format types.FormatID) (types.ArtifactMetadata, bool, error) {
	key := fmt.Sprintf("%s%s:%s", keyMetadataPrefix, zip, format)
	raw, ok, err := r.kv.Get(ctx, key)
	if err != nil || !ok {
		return types.ArtifactMetadata{}, false, err
	}
	var meta types.ArtifactMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return types.ArtifactMetadata{}, false, types.NewAppError(types.ErrCodeInternalKV,
			fmt.Sprintf("corrupt artifact metadata for %s/%s", zip, format), err)
	}
	return meta, true, nil
}
