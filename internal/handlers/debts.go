package handlers

import (
	"net/http"

	"cashledger/internal/money"
	"cashledger/internal/services"
)

type loanRequest struct {
	UserID        string      `json:"userId"`
	BranchID      string      `json:"branchId"`
	CashAccountID string      `json:"cashAccountId"`
	DebtorName    string      `json:"debtorName"`
	Amount        money.Input `json:"amount"`
	Description   string      `json:"description"`
}

func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, ok := h.actor(w, r, req.UserID)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	result, err := h.ledger.CreateLoan(r.Context(), services.LoanRequest{
		UserID:        userID,
		BranchID:      branchFor(r, req.BranchID),
		CashAccountID: req.CashAccountID,
		DebtorName:    req.DebtorName,
		Amount:        amount,
		Description:   req.Description,
		Client:        clientInfo(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, debtResultView(result))
}

type paymentRequest struct {
	UserID        string      `json:"userId"`
	BranchID      string      `json:"branchId"`
	CashAccountID string      `json:"cashAccountId"`
	DebtID        string      `json:"debtId"`
	Amount        money.Input `json:"amount"`
}

func (h *Handler) PayDebt(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, ok := h.actor(w, r, req.UserID)
	if !ok {
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	result, err := h.ledger.PayDebt(r.Context(), services.PaymentRequest{
		UserID:        userID,
		BranchID:      branchFor(r, req.BranchID),
		CashAccountID: req.CashAccountID,
		DebtID:        req.DebtID,
		Amount:        amount,
		Client:        clientInfo(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, debtResultView(result))
}

func (h *Handler) ListPendingDebts(w http.ResponseWriter, r *http.Request) {
	debts, err := h.ledger.ListPendingDebts(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(debts))
	for _, debt := range debts {
		out = append(out, debtView(debt))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"debts":   out,
	})
}

func debtResultView(result services.DebtResult) map[string]any {
	view := operationView(result.OperationResult)
	view["debt"] = debtView(result.Debt)
	return view
}
