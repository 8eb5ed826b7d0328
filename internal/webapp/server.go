// Package webapp is the HTTP front door for the pipeline: it serves the
// latest generated artifacts, lists what exists, and exposes the admin
// surface that mutates the active-ZIP set and per-ZIP format lists. The
// pipeline itself never depends on this package; everything here reads or
// writes through the same repositories the stages use.
package webapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"weatherscape/internal/artifacts"
	"weatherscape/internal/types"
)

// ArtifactReader reads generated images. Implemented by artifacts.Store.
type ArtifactReader interface {
	Get(ctx context.Context, key string) (artifacts.Object, error)
	ZipFormats(ctx context.Context) (map[string][]types.FormatID, error)
}

// ZipAdmin mutates and reads the ZIP/format configuration. Implemented by
// db.ZipRepository.
type ZipAdmin interface {
	ActiveZips(ctx context.Context) ([]string, error)
	Activate(ctx context.Context, zip string) ([]string, error)
	Deactivate(ctx context.Context, zip string) ([]string, error)
	Formats(ctx context.Context, zip string) ([]types.FormatID, error)
	AddFormat(ctx context.Context, zip string, format types.FormatID) ([]types.FormatID, error)
	RemoveFormat(ctx context.Context, zip string, format types.FormatID) ([]types.FormatID, error)
}

// StatusReader reads stage run summaries. Implemented by db.StatusRepository.
type StatusReader interface {
	GetStatus(ctx context.Context, stage types.Stage) (types.StatusRecord, bool, error)
}

// FetchJobSender enqueues out-of-band fetch jobs. Implemented by
// queue.Publisher.
type FetchJobSender interface {
	SendFetchJob(ctx context.Context, job types.FetchJob) error
}

// Server is the HTTP handler set for the web surface.
type Server struct {
	artifacts ArtifactReader
	zips      ZipAdmin
	status    StatusReader
	sender    FetchJobSender
	adminKey  types.SecretString
	logger    *slog.Logger
	now       func() time.Time
}

// Config holds the dependencies for creating a Server.
type Config struct {
	Artifacts ArtifactReader
	Zips      ZipAdmin
	Status    StatusReader
	Sender    FetchJobSender
	AdminKey  types.SecretString
	Logger    *slog.Logger
}

// New creates a Server with the given configuration.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		artifacts: cfg.Artifacts,
		zips:      cfg.Zips,
		status:    cfg.Status,
		sender:    cfg.Sender,
		adminKey:  cfg.AdminKey,
		logger:    logger,
		now:       time.Now,
	}
}

// Router builds the chi router. Static routes register before the /{zip}
// wildcards, so /forecasts and /admin/* always win the match.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/forecasts", s.handleForecasts)

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdminKey)
		r.Get("/status", s.handleStatus)
		r.Post("/activate", s.handleActivate)
		r.Post("/deactivate", s.handleDeactivate)
		r.Get("/formats", s.handleListFormats)
		r.Post("/formats/add", s.handleAddFormat)
		r.Post("/formats/remove", s.handleRemoveFormat)
		r.Post("/generate", s.handleGenerate)
	})

	r.Get("/{zip}", s.handleImage)
	r.Get("/{zip}/{format}", s.handleImage)

	return r
}

// handleImage serves the latest artifact for a ZIP. The format comes from the
// path segment or ?format= hint; with no hint the default format is served.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	zip := chi.URLParam(r, "zip")
	if !types.IsValidZip(zip) {
		s.respondError(w, r, types.NewAppError(types.ErrCodeValidationInvalidZip,
			fmt.Sprintf("invalid ZIP code %q", zip), nil))
		return
	}

	format := types.DefaultFormat
	if hinted, ok := ParseFormatHint(chi.URLParam(r, "format"), r.URL.Query()); ok {
		format = hinted
	} else if raw := chi.URLParam(r, "format"); raw != "" {
		s.respondError(w, r, types.NewAppError(types.ErrCodeValidationUnknownFormat,
			fmt.Sprintf("unknown format %q", raw), nil))
		return
	}

	obj, err := s.artifacts.Get(r.Context(), types.ArtifactKey(zip, format))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Body)
}

// handleForecasts lists every ZIP with live artifacts and its formats.
func (s *Server) handleForecasts(w http.ResponseWriter, r *http.Request) {
	zipFormats, err := s.artifacts.ZipFormats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	type forecastEntry struct {
		Zip     string           `json:"zip"`
		Formats []types.FormatID `json:"formats"`
	}
	entries := make([]forecastEntry, 0, len(zipFormats))
	for _, spec := range sortedZips(zipFormats) {
		entries = append(entries, forecastEntry{Zip: spec, Formats: zipFormats[spec]})
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"forecasts": entries})
}

// handleStatus reports the latest run summary of every stage. Stages that
// have never run are omitted.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stages := []types.Stage{
		types.StageScheduler,
		types.StageFetcher,
		types.StageDispatcher,
		types.StageGenerator,
	}

	out := make(map[string]types.StatusRecord, len(stages))
	for _, stage := range stages {
		rec, ok, err := s.status.GetStatus(r.Context(), stage)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if ok {
			out[string(stage)] = rec
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"stages": out})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	zips, err := s.zips.Activate(r.Context(), r.URL.Query().Get("zip"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"active_zips": zips})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	zips, err := s.zips.Deactivate(r.Context(), r.URL.Query().Get("zip"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"active_zips": zips})
}

func (s *Server) handleListFormats(w http.ResponseWriter, r *http.Request) {
	zip := r.URL.Query().Get("zip")
	if !types.IsValidZip(zip) {
		s.respondError(w, r, types.NewAppError(types.ErrCodeValidationInvalidZip,
			fmt.Sprintf("invalid ZIP code %q", zip), nil))
		return
	}
	formats, err := s.zips.Formats(r.Context(), zip)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"zip": zip, "formats": formats})
}

func (s *Server) handleAddFormat(w http.ResponseWriter, r *http.Request) {
	s.mutateFormats(w, r, s.zips.AddFormat)
}

func (s *Server) handleRemoveFormat(w http.ResponseWriter, r *http.Request) {
	s.mutateFormats(w, r, s.zips.RemoveFormat)
}

func (s *Server) mutateFormats(w http.ResponseWriter, r *http.Request, op func(context.Context, string, types.FormatID) ([]types.FormatID, error)) {
	zip := r.URL.Query().Get("zip")
	if !types.IsValidZip(zip) {
		s.respondError(w, r, types.NewAppError(types.ErrCodeValidationInvalidZip,
			fmt.Sprintf("invalid ZIP code %q", zip), nil))
		return
	}
	formats, err := op(r.Context(), zip, types.FormatID(r.URL.Query().Get("format")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"zip": zip, "formats": formats})
}

// handleGenerate enqueues an out-of-band FetchJob for one ZIP with a fresh
// trace, bypassing the cron schedule.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	zip := r.URL.Query().Get("zip")
	if !types.IsValidZip(zip) {
		s.respondError(w, r, types.NewAppError(types.ErrCodeValidationInvalidZip,
			fmt.Sprintf("invalid ZIP code %q", zip), nil))
		return
	}

	job := types.FetchJob{
		Zip:         zip,
		ScheduledAt: s.now().UTC(),
		Trace:       types.NewTrace(),
	}
	if err := s.sender.SendFetchJob(r.Context(), job); err != nil {
		s.respondError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "manual fetch requested",
		"zip_code", zip, "trace_id", job.Trace.TraceID)
	s.respondJSON(w, http.StatusAccepted, map[string]any{
		"zip":      zip,
		"trace_id": job.Trace.TraceID,
	})
}

// respondJSON writes a JSON response with the given status.
func (s *Server) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError translates an error into {error, message} JSON with the status
// from the error taxonomy. Non-AppError failures become opaque 500s.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		appErr = types.NewAppError(types.ErrCodeInternalUnexpected, "internal error", err)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path, "code", string(appErr.Code), "error", err)
	}
	s.respondJSON(w, status, map[string]any{
		"error":   string(appErr.Code),
		"message": appErr.Message,
	})
}

// sortedZips returns the map keys in lexical order for stable listings.
func sortedZips(m map[string][]types.FormatID) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
