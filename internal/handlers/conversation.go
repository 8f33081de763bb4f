package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/middleware"
	"github.com/civicware/report-server/internal/models"
	"github.com/civicware/report-server/internal/services"
)

// MessageBroadcaster is the live fan-out consumed by the HTTP message path.
type MessageBroadcaster interface {
	Broadcast(ctx context.Context, conversationID int64, msg *models.Message)
}

// ConversationHandler handles thread and message endpoints
type ConversationHandler struct {
	conversationSvc *services.ConversationService
	emitter         *services.Emitter
	broadcaster     MessageBroadcaster
	logger          *zap.SugaredLogger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(cs *services.ConversationService, em *services.Emitter, b MessageBroadcaster, logger *zap.SugaredLogger) *ConversationHandler {
	return &ConversationHandler{conversationSvc: cs, emitter: em, broadcaster: b, logger: logger}
}

// ListForReport handles GET /api/v1/reports/{id}/conversations
func (h *ConversationHandler) ListForReport(w http.ResponseWriter, r *http.Request) {
	reportID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	convs, err := h.conversationSvc.ListForReport(r.Context(), reportID)
	if err != nil {
		respondMapped(w, h.logger, "list conversations", err)
		return
	}
	respondJSON(w, http.StatusOK, convs)
}

// Messages handles GET /api/v1/conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	msgs, err := h.conversationSvc.Messages(r.Context(), conversationID)
	if err != nil {
		respondMapped(w, h.logger, "list messages", err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

// AddParticipant handles POST /api/v1/conversations/{id}/participants
func (h *ConversationHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == 0 {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.conversationSvc.AddParticipant(r.Context(), conversationID, body.UserID); err != nil {
		respondMapped(w, h.logger, "add participant", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

// PostMessage handles POST /api/v1/conversations/{id}/messages, the HTTP
// fallback for clients without a live connection. The message still fans out
// to everyone connected.
func (h *ConversationHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	senderID := middleware.UserID(r.Context())
	msg, err := h.emitter.EmitUser(r.Context(), conversationID, senderID, body.Content)
	if err != nil {
		respondMapped(w, h.logger, "post message", err)
		return
	}
	h.broadcaster.Broadcast(r.Context(), conversationID, msg)

	respondJSON(w, http.StatusCreated, msg)
}
