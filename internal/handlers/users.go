package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"cashledger/internal/auth"
	"cashledger/internal/middleware"
	"cashledger/internal/models"
	"cashledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (h *Handler) ListCashiers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.users.ListCashiers(r.Context(), strings.TrimSpace(r.URL.Query().Get("branchId")))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, userView(row.User, row.BranchName))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"cashiers": out,
	})
}

type createCashierRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	BranchID string `json:"branchId"`
}

func (h *Handler) CreateCashier(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	var req createCashierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	branchID := strings.TrimSpace(req.BranchID)
	if err := validator.ValidateCashier(username, req.Password, branchID); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_cashier", err.Error())
		return
	}
	branch, err := h.branches.Lookup(r.Context(), branchID)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "branch_not_found", "branch not found")
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	_, err = h.users.GetByUsername(r.Context(), username)
	switch {
	case err == nil:
		respondError(w, http.StatusConflict, "username_taken", "username already exists")
		return
	case !errors.Is(err, sql.ErrNoRows):
		h.respondServiceError(w, r, err)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to secure password")
		return
	}
	user := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleCashier,
		Status:       models.StatusActive,
		BranchID:     &branch.ID,
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.users.Create(r.Context(), tx, user); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, actorID, "create_cashier", "user", user.ID, models.Metadata{
			"username":  user.Username,
			"branch_id": branch.ID,
		})
	})
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, "username_taken", "username already exists")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"cashier": userView(user, &branch.Name),
	})
}
