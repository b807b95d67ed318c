package handlers

import (
	"net/http"

	"cashledger/internal/money"
	"cashledger/internal/services"
)

type cashCountRequest struct {
	UserID         string      `json:"userId"`
	BranchID       string      `json:"branchId"`
	AccountID      string      `json:"accountId"`
	ReportedAmount money.Input `json:"reportedAmount"`
	Comments       string      `json:"comments"`
}

// PerformCashCount records an arqueo: the counted cash against the system
// balance of one till.
func (h *Handler) PerformCashCount(w http.ResponseWriter, r *http.Request) {
	var req cashCountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, ok := h.actor(w, r, req.UserID)
	if !ok {
		return
	}
	reported, err := parseAmount(req.ReportedAmount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	result, err := h.ledger.PerformCashCount(r.Context(), services.CashCountRequest{
		UserID:    userID,
		BranchID:  branchFor(r, req.BranchID),
		AccountID: req.AccountID,
		Reported:  reported,
		Comments:  req.Comments,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"cashCount": cashCountView(result.CashCount),
		"status":    result.Status,
		"message":   result.Message,
	})
}

func (h *Handler) ListCashCounts(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.ListCashCounts(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, cashCountRowView(row))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"cashCounts": out,
	})
}

func (h *Handler) ClosurePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.ledger.Preview(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"preview": previewView(preview),
	})
}

type closureRequest struct {
	UserID               string      `json:"userId"`
	Notes                string      `json:"notes"`
	CapitalizeAmount     money.Input `json:"capitalizeAmount"`
	SourceAccountID      string      `json:"sourceAccountId"`
	DestinationAccountID string      `json:"destinationAccountId"`
}

func (h *Handler) PerformClosure(w http.ResponseWriter, r *http.Request) {
	var req closureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, ok := h.actor(w, r, req.UserID)
	if !ok {
		return
	}
	capitalize, err := parseOptionalAmount(req.CapitalizeAmount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	result, err := h.ledger.PerformClosure(r.Context(), services.ClosureRequest{
		UserID:               userID,
		Notes:                req.Notes,
		CapitalizeAmount:     capitalize,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Client:               clientInfo(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	payload := map[string]any{
		"success": true,
		"closure": closureView(result.Closure),
	}
	if result.Capitalization != nil {
		payload["capitalization"] = operationView(*result.Capitalization)
	}
	respondJSON(w, http.StatusCreated, payload)
}
