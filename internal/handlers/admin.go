package handlers

import (
	"errors"
	"net/http"
	"strings"

	"cashledger/internal/middleware"
	"cashledger/internal/models"
	"cashledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.branches.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(branches))
	for _, branch := range branches {
		out = append(out, branchView(branch))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"branches": out,
	})
}

type createBranchRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	var req createBranchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := validator.ValidateBranchName(name); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_branch", err.Error())
		return
	}
	exists, err := h.branches.ExistsByName(r.Context(), name)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if exists {
		respondError(w, http.StatusConflict, "branch_exists", "a branch with this name already exists")
		return
	}
	branch := models.Branch{
		ID:       uuid.NewString(),
		Name:     name,
		Address:  strings.TrimSpace(req.Address),
		IsActive: true,
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.branches.Create(r.Context(), tx, branch); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, actorID, "create_branch", "branch", branch.ID, models.Metadata{"name": branch.Name})
	})
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusConflict, "branch_exists", "a branch with this name already exists")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"branch":  branchView(branch),
	})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	entries, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if entries == nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": true, "entries": []any{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"entries": entries,
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
