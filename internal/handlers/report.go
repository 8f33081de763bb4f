// Package handlers contains HTTP request handlers for the report API.
// Handlers parse requests, call services, and return JSON responses.
// A nil entity from a state-machine transition uniformly becomes a 404.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/apperr"
	"github.com/civicware/report-server/internal/middleware"
	"github.com/civicware/report-server/internal/models"
	"github.com/civicware/report-server/internal/services"
)

// ReportHandler handles report lifecycle endpoints
type ReportHandler struct {
	reportSvc *services.ReportService
	logger    *zap.SugaredLogger
}

// NewReportHandler creates a new report handler
func NewReportHandler(rs *services.ReportService, logger *zap.SugaredLogger) *ReportHandler {
	return &ReportHandler{reportSvc: rs, logger: logger}
}

// Create handles POST /api/v1/reports
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.CreateReportInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	in.ReporterID = middleware.UserID(r.Context())

	report, err := h.reportSvc.Create(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, "create report", err)
		return
	}

	respondJSON(w, http.StatusCreated, report)
}

// Get handles GET /api/v1/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.reportSvc.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get report", err)
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "Report not found")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// List handles GET /api/v1/reports?status=assigned,in_progress
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "status query parameter required")
		return
	}

	var statuses []models.ReportStatus
	for _, s := range strings.Split(raw, ",") {
		statuses = append(statuses, models.ReportStatus(strings.TrimSpace(s)))
	}

	reports, err := h.reportSvc.ListByStatus(r.Context(), statuses)
	if err != nil {
		h.respondServiceError(w, "list reports", err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// Mine handles GET /api/v1/reports/mine
func (h *ReportHandler) Mine(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reportSvc.ListByReporter(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.respondServiceError(w, "list own reports", err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// Review handles POST /api/v1/reports/{id}/review
func (h *ReportHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var in models.ReviewInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.respondTransition(w, "review")(h.reportSvc.Review(r.Context(), id, in))
}

// Start handles POST /api/v1/reports/{id}/start
func (h *ReportHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "start", h.reportSvc.Start)
}

// Finish handles POST /api/v1/reports/{id}/finish
func (h *ReportHandler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "finish", h.reportSvc.Finish)
}

// Suspend handles POST /api/v1/reports/{id}/suspend
func (h *ReportHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "suspend", h.reportSvc.Suspend)
}

// Resume handles POST /api/v1/reports/{id}/resume
func (h *ReportHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume", h.reportSvc.Resume)
}

// AssignExternal handles POST /api/v1/reports/{id}/assign-external
func (h *ReportHandler) AssignExternal(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "assign-external", h.reportSvc.AssignToExternalMaintainer)
}

// ExternalStart handles POST /api/v1/reports/{id}/external/start
func (h *ReportHandler) ExternalStart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "external-start", h.reportSvc.ExternalStart)
}

// ExternalFinish handles POST /api/v1/reports/{id}/external/finish
func (h *ReportHandler) ExternalFinish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "external-finish", h.reportSvc.ExternalFinish)
}

// ExternalSuspend handles POST /api/v1/reports/{id}/external/suspend
func (h *ReportHandler) ExternalSuspend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "external-suspend", h.reportSvc.ExternalSuspend)
}

// ExternalResume handles POST /api/v1/reports/{id}/external/resume
func (h *ReportHandler) ExternalResume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "external-resume", h.reportSvc.ExternalResume)
}

// transition runs one (reportID, actorID) transition with the authenticated
// user as the actor.
func (h *ReportHandler) transition(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, reportID, actorID int64) (*models.Report, error)) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.respondTransition(w, op)(fn(r.Context(), id, middleware.UserID(r.Context())))
}

// respondTransition maps a transition result: nil report means 404.
func (h *ReportHandler) respondTransition(w http.ResponseWriter, op string) func(*models.Report, error) {
	return func(report *models.Report, err error) {
		if err != nil {
			h.respondServiceError(w, op, err)
			return
		}
		if report == nil {
			respondError(w, http.StatusNotFound, "Report not found")
			return
		}
		respondJSON(w, http.StatusOK, report)
	}
}

// respondServiceError maps typed service errors to status codes.
func (h *ReportHandler) respondServiceError(w http.ResponseWriter, op string, err error) {
	respondMapped(w, h.logger, op, err)
}

// pathID parses an integer id path parameter, answering 400 itself on junk.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// respondMapped is shared by all handlers in this package.
func respondMapped(w http.ResponseWriter, logger *zap.SugaredLogger, op string, err error) {
	var notFound *apperr.NotFoundError
	var badRequest *apperr.BadRequestError
	var conflict *apperr.ConflictError
	var forbidden *apperr.InsufficientRightsError

	switch {
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &badRequest):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &forbidden):
		respondError(w, http.StatusForbidden, err.Error())
	default:
		logger.Errorw("Request failed", "op", op, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
