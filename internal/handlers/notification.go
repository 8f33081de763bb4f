package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/middleware"
	"github.com/civicware/report-server/internal/services"
)

// NotificationHandler handles the authenticated user's notification feed
type NotificationHandler struct {
	notificationSvc *services.NotificationService
	logger          *zap.SugaredLogger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(ns *services.NotificationService, logger *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{notificationSvc: ns, logger: logger}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notificationSvc.ListForUser(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondMapped(w, h.logger, "list notifications", err)
		return
	}
	respondJSON(w, http.StatusOK, notes)
}

// MarkRead handles POST /api/v1/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	updated, err := h.notificationSvc.MarkRead(r.Context(), id, middleware.UserID(r.Context()))
	if err != nil {
		respondMapped(w, h.logger, "mark notification read", err)
		return
	}
	if !updated {
		respondError(w, http.StatusNotFound, "Notification not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.notificationSvc.UnreadCount(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondMapped(w, h.logger, "unread count", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"unread": count})
}
