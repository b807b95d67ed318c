package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"cashledger/internal/auth"
	"cashledger/internal/middleware"
	"cashledger/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "credentials_required", "username and password are required")
		return
	}
	user, err := h.users.GetByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.logger.Error("login lookup failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}
	if user.Status != models.StatusActive {
		respondError(w, http.StatusForbidden, "user_inactive", "user is not active")
		return
	}
	client := clientInfo(r)
	if err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.audit.Log(r.Context(), tx, user.ID, "login", "user", user.ID, models.Metadata{
			"ip":         client.IP,
			"user_agent": client.UserAgent,
		})
	}); err != nil {
		h.logger.Error("login audit failed", zap.String("user_id", user.ID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, auth.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
		BranchID: user.BranchID,
	}, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    userView(user, nil),
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	user, err := h.users.Lookup(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user_not_found", "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userView(user, nil),
	})
}
