package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/civicware/report-server/internal/services"
)

// AuthHandler handles login
type AuthHandler struct {
	authSvc *services.AuthService
	logger  *zap.SugaredLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(as *services.AuthService, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{authSvc: as, logger: logger}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, user, err := h.authSvc.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		respondMapped(w, h.logger, "login", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}
