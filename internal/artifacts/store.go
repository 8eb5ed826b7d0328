// Package artifacts implements the durable blob store for generated
// landscape images: one S3 object per (zip, format) at the canonical key
// "{zip}/{format}{ext}", carrying per-object metadata. Later writes replace
// earlier ones; there is no versioning.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"weatherscape/internal/types"
)

// S3API abstracts the S3 operations the store needs for testability.
// Production code uses the *s3.Client from aws-sdk-go-v2.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Object is a fetched artifact: its bytes plus the response content type.
type Object struct {
	Body        []byte
	ContentType string
}

// Store reads and writes image artifacts in one S3 bucket.
type Store struct {
	client S3API
	bucket string
	logger *slog.Logger
}

// NewStore creates a Store for the given bucket.
func NewStore(client S3API, bucket string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, bucket: bucket, logger: logger}
}

// Put uploads an artifact at the canonical key for (meta.ZipCode,
// meta.FormatVariant), overwriting any previous object. Content type comes
// from the format registry; the artifact metadata is attached as S3 object
// metadata with lowercase kebab-case keys.
func (s *Store) Put(ctx context.Context, body []byte, spec types.FormatSpec, meta types.ArtifactMetadata) (string, error) {
	key := types.ArtifactKey(meta.ZipCode, spec.ID)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(spec.MIMEType),
		Metadata: map[string]string{
			"generated-at": meta.GeneratedAt.UTC().Format(time.RFC3339),
			"latitude":     strconv.FormatFloat(meta.Latitude, 'f', -1, 64),
			"longitude":    strconv.FormatFloat(meta.Longitude, 'f', -1, 64),
			"zip-code":     meta.ZipCode,
			"file-size":    strconv.Itoa(meta.ByteSize),
			"variant":      string(meta.FormatVariant),
		},
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", types.NewAppError(types.ErrCodeArtifactUpload,
			fmt.Sprintf("failed to upload %s", key), err)
	}

	s.logger.InfoContext(ctx, "artifact uploaded",
		"key", key,
		"bucket", s.bucket,
		"byte_size", meta.ByteSize,
		"variant", string(meta.FormatVariant),
	)
	return key, nil
}

// Get fetches the artifact at key. A missing object maps to
// not_found_artifact so the web surface can answer 404 without inspecting
// SDK error types.
func (s *Store) Get(ctx context.Context, key string) (Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return Object{}, types.NewAppError(types.ErrCodeNotFoundArtifact,
				fmt.Sprintf("no artifact at %s", key), err)
		}
		return Object{}, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("failed to fetch %s", key), err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Object{}, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("failed to read %s", key), err)
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}
	return Object{Body: body, ContentType: contentType}, nil
}

// ListKeys returns every object key in the bucket, following continuation
// tokens. The web surface parses the canonical keys out of this listing to
// discover which ZIPs and formats exist.
func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var continuation *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			ContinuationToken: continuation,
		})
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
				"failed to list artifacts", err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			return keys, nil
		}
		continuation = out.NextContinuationToken
	}
}

// ZipFormats scans the bucket and returns, per ZIP, the formats that have a
// live artifact, default format first then lexical. Keys that do not match
// the canonical convention are skipped.
func (s *Store) ZipFormats(ctx context.Context) (map[string][]types.FormatID, error) {
	keys, err := s.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	found := make(map[string]map[types.FormatID]bool)
	for _, key := range keys {
		zip, format, ok := types.ParseArtifactKey(key)
		if !ok {
			continue
		}
		if found[zip] == nil {
			found[zip] = make(map[types.FormatID]bool)
		}
		found[zip][format] = true
	}

	result := make(map[string][]types.FormatID, len(found))
	for zip, formats := range found {
		ordered := make([]types.FormatID, 0, len(formats))
		for _, spec := range types.AllFormats() {
			if formats[spec.ID] {
				ordered = append(ordered, spec.ID)
			}
		}
		result[zip] = ordered
	}
	return result, nil
}
