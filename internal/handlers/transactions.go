package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cashledger/internal/models"
	"cashledger/internal/money"
	"cashledger/internal/report"
	"cashledger/internal/services"
	"cashledger/internal/store"
)

type operationRequest struct {
	UserID        string                 `json:"userId"`
	BranchID      string                 `json:"branchId"`
	Type          models.TransactionType `json:"type"`
	AccountID     string                 `json:"accountId"`
	BankAccountID string                 `json:"bankAccountId"`
	CashAccountID string                 `json:"cashAccountId"`
	Amount        money.Input            `json:"amount"`
	Commission    money.Input            `json:"commission"`
	Description   string                 `json:"description"`
}

// CreateOperation answers with balances keyed by role, bank and cash, rather
// than the list the other operations return.
func (h *Handler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
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
	commission, err := parseOptionalAmount(req.Commission)
	if err != nil {
		h.respondServiceError(w, r, fmt.Errorf("%w: %v", services.ErrInvalidCommission, err))
		return
	}
	result, err := h.ledger.CreateOperation(r.Context(), services.OperationRequest{
		UserID:        userID,
		BranchID:      branchFor(r, req.BranchID),
		Type:          req.Type,
		BankAccountID: defaultString(req.BankAccountID, req.AccountID),
		CashAccountID: req.CashAccountID,
		Amount:        amount,
		Commission:    commission,
		Description:   req.Description,
		Client:        clientInfo(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	view := operationView(result)
	view["balances"] = roleBalancesView(result)
	respondJSON(w, http.StatusCreated, view)
}

type rebalanceRequest struct {
	UserID               string      `json:"userId"`
	BranchID             string      `json:"branchId"`
	SourceAccountID      string      `json:"sourceAccountId"`
	DestinationAccountID string      `json:"destinationAccountId"`
	Amount               money.Input `json:"amount"`
	Description          string      `json:"description"`
}

func (h *Handler) Rebalance(w http.ResponseWriter, r *http.Request) {
	var req rebalanceRequest
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
	result, err := h.ledger.Rebalance(r.Context(), services.RebalanceRequest{
		UserID:               userID,
		BranchID:             branchFor(r, req.BranchID),
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               amount,
		Description:          req.Description,
		Client:               clientInfo(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, operationView(result))
}

type injectRequest struct {
	UserID               string      `json:"userId"`
	BranchID             string      `json:"branchId"`
	DestinationAccountID string      `json:"destinationAccountId"`
	AccountID            string      `json:"accountId"`
	Amount               money.Input `json:"amount"`
	FundSource           string      `json:"fundSource"`
	Description          string      `json:"description"`
}

func (h *Handler) InjectCapital(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
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
	accountID := req.DestinationAccountID
	if accountID == "" {
		accountID = req.AccountID
	}
	result, err := h.ledger.InjectCapital(r.Context(), services.InjectCapitalRequest{
		UserID:      userID,
		BranchID:    branchFor(r, req.BranchID),
		AccountID:   accountID,
		Amount:      amount,
		FundSource:  req.FundSource,
		Description: req.Description,
		Client:      clientInfo(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, operationView(result))
}

type expenseRequest struct {
	UserID          string                 `json:"userId"`
	BranchID        string                 `json:"branchId"`
	SourceAccountID string                 `json:"sourceAccountId"`
	Type            models.TransactionType `json:"type"`
	Amount          money.Input            `json:"amount"`
	Category        string                 `json:"category"`
	Description     string                 `json:"description"`
}

func (h *Handler) RegisterExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
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
	result, err := h.ledger.RegisterExpense(r.Context(), services.ExpenseRequest{
		UserID:      userID,
		BranchID:    branchFor(r, req.BranchID),
		AccountID:   req.SourceAccountID,
		Type:        req.Type,
		Amount:      amount,
		Category:    req.Category,
		Description: req.Description,
		Client:      clientInfo(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, operationView(result))
}

type annulRequest struct {
	TransactionID string `json:"transactionId"`
	UserID        string `json:"userId"`
	Reason        string `json:"reason"`
}

func (h *Handler) Annul(w http.ResponseWriter, r *http.Request) {
	var req annulRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, ok := h.actor(w, r, req.UserID)
	if !ok {
		return
	}
	result, err := h.ledger.Annul(r.Context(), services.AnnulRequest{
		TransactionID: strings.TrimSpace(req.TransactionID),
		UserID:        userID,
		Reason:        req.Reason,
		Client:        clientInfo(r),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, operationView(result))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilter(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	page, err := h.ledger.History(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	rows := make([]map[string]any, 0, len(page.Transactions))
	for _, row := range page.Transactions {
		rows = append(rows, historyRowView(row))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"transactions": rows,
		"pagination":   page.Pagination,
	})
}

func (h *Handler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := historyFilter(r)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	rows, err := h.ledger.ExportHistory(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := report.WriteHistoryXLSX(&buf, rows); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	filename := fmt.Sprintf("transactions-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// historyFilter reads the query string. Dates accept RFC 3339 or a plain
// YYYY-MM-DD; a plain end date covers the whole day.
func historyFilter(r *http.Request) (store.HistoryFilter, error) {
	q := r.URL.Query()
	filter := store.HistoryFilter{
		UserID:    q.Get("userId"),
		BranchID:  q.Get("branchId"),
		AccountID: q.Get("accountId"),
		Type:      models.TransactionType(q.Get("type")),
		Status:    models.TransactionStatus(strings.ToUpper(q.Get("status"))),
		Limit:     queryInt(r, "limit", 0),
		Offset:    queryInt(r, "offset", 0),
	}
	if raw := q.Get("startDate"); raw != "" {
		start, _, err := parseDate(raw)
		if err != nil {
			return filter, err
		}
		filter.StartDate = timePtr(start)
	}
	if raw := q.Get("endDate"); raw != "" {
		end, dateOnly, err := parseDate(raw)
		if err != nil {
			return filter, err
		}
		if dateOnly {
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
		filter.EndDate = timePtr(end)
	}
	return filter, nil
}

func parseDate(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q is not a date", services.ErrInvalidDateRange, raw)
	}
	return t, true, nil
}
