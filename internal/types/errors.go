package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All stages and handlers MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationInvalidZip     ErrorCode = "validation_invalid_zip"
	ErrCodeValidationUnknownFormat  ErrorCode = "validation_unknown_format"
	ErrCodeValidationDefaultFormat  ErrorCode = "validation_default_format_required"
	ErrCodeValidationInvalidMessage ErrorCode = "validation_invalid_message"

	// Auth (401)
	ErrCodeAuthAdminKeyMissing ErrorCode = "auth_admin_key_missing"
	ErrCodeAuthAdminKeyInvalid ErrorCode = "auth_admin_key_invalid"

	// Not Found (404)
	ErrCodeNotFoundArtifact ErrorCode = "not_found_artifact"
	ErrCodeNotFoundStatus   ErrorCode = "not_found_status"

	// Configuration (500)
	ErrCodeConfigMissingCredentials ErrorCode = "config_missing_credentials"

	// Pipeline (500)
	ErrCodePipelineStaleWeather ErrorCode = "pipeline_stale_weather"
	ErrCodePipelineEnqueue      ErrorCode = "pipeline_enqueue_failed"

	// Internal/Upstream (500/502)
	ErrCodeInternalKV          ErrorCode = "internal_kv_error"
	ErrCodeInternalRender      ErrorCode = "internal_render_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeArtifactUpload      ErrorCode = "internal_artifact_upload_failed"
	ErrCodeUpstreamGeocode     ErrorCode = "upstream_geocode_failed"
	ErrCodeUpstreamWeather     ErrorCode = "upstream_weather_failed"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the web surface to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the pipeline.
// All stage and handler errors should be expressed as AppError to enable
// consistent error formatting, retry classification, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
