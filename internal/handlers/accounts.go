package handlers

import (
	"net/http"
	"strings"

	"cashledger/internal/middleware"
	"cashledger/internal/models"
	"cashledger/internal/money"
	"cashledger/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAll(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		view := accountView(account.Account)
		view["ownerUsername"] = account.OwnerUsername
		view["branchName"] = account.BranchName
		out = append(out, view)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"accounts": out,
	})
}

type createAccountRequest struct {
	Name          string             `json:"name"`
	Type          models.AccountKind `json:"type"`
	AccountNumber string             `json:"accountNumber"`
	BankName      string             `json:"bankName"`
	Balance       money.Input        `json:"balance"`
	UserID        string             `json:"userId"`
	BranchID      string             `json:"branchId"`
}

// CreateAccount opens an account. An opening balance is allowed here and only
// here; afterwards balances move through ledger operations.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if err := validator.ValidateAccount(name, req.Type); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_account", err.Error())
		return
	}
	balance, err := parseOptionalAmount(req.Balance)
	if err != nil || balance.IsNegative() {
		respondError(w, http.StatusBadRequest, "invalid_amount", "opening balance must be a non-negative amount")
		return
	}
	exists, err := h.accounts.ExistsByName(r.Context(), name)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if exists {
		respondError(w, http.StatusBadRequest, "account_exists", "an account with this name already exists")
		return
	}

	account := models.Account{
		ID:            uuid.NewString(),
		Name:          name,
		AccountNumber: defaultString(req.AccountNumber, "S/N"),
		Kind:          req.Type,
		Balance:       balance.Round(money.Scale),
		BankName:      defaultString(req.BankName, name),
		Status:        models.StatusActive,
		UserID:        optionalString(req.UserID),
		BranchID:      optionalString(req.BranchID),
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.Create(r.Context(), tx, account); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, actorID, "create_account", "account", account.ID, models.Metadata{
			"name":            account.Name,
			"type":            string(account.Kind),
			"opening_balance": money.Format(account.Balance),
		})
	})
	if err != nil {
		if isUniqueViolation(err) {
			respondError(w, http.StatusBadRequest, "account_exists", "an account with this name already exists")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"account": accountView(account),
	})
}

func defaultString(value, fallback string) string {
	if value = strings.TrimSpace(value); value == "" {
		return fallback
	}
	return value
}

func optionalString(value string) *string {
	if value = strings.TrimSpace(value); value == "" {
		return nil
	}
	return &value
}
