package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"cashledger/internal/auth"
	"cashledger/internal/models"
	"cashledger/internal/services"
	"cashledger/internal/store"

	"github.com/shopspring/decimal"
)

func TestCreateOperationSuccess(t *testing.T) {
	var got services.OperationRequest
	h := newTestHandler(Deps{
		Ledger: stubLedger{
			createOperationFn: func(_ context.Context, req services.OperationRequest) (services.OperationResult, error) {
				got = req
				return services.OperationResult{
					Transaction: models.Transaction{
						ID:         "tx-1",
						Type:       req.Type,
						Amount:     req.Amount,
						Commission: req.Commission,
						Status:     models.TxCompleted,
						UserID:     req.UserID,
						AccountID:  req.BankAccountID,
					},
					Balances: []services.BalanceChange{
						{AccountID: "bank-1", AccountName: "Banco", Previous: decimal.RequireFromString("500"), Current: decimal.RequireFromString("399.5")},
						{AccountID: "cash-1", AccountName: "Caja", Previous: decimal.RequireFromString("100"), Current: decimal.RequireFromString("201.5")},
					},
				}, nil
			},
		},
	})

	rr := serve(t, h, http.MethodPost, "/transactions/operation", `{"type":"deposit","bankAccountId":"bank-1","cashAccountId":"cash-1","amount":100.50,"commission":"1"}`, cashierIdentity())
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.UserID != "user-1" || got.BranchID == nil || *got.BranchID != "branch-1" {
		t.Fatalf("expected actor and branch from token, got %+v", got)
	}
	if !got.Amount.Equal(decimal.RequireFromString("100.5")) || !got.Commission.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("unexpected amounts: %s %s", got.Amount, got.Commission)
	}

	body := decodeBody(t, rr)
	tx := body["transaction"].(map[string]any)
	if tx["amount"] != "100.50" || tx["commission"] != "1.00" {
		t.Fatalf("amounts must carry two decimals: %v", tx)
	}
	balances := body["balances"].(map[string]any)
	if balances["bank"].(map[string]any)["current"] != "399.50" || balances["cash"].(map[string]any)["current"] != "201.50" {
		t.Fatalf("unexpected balances: %v", balances)
	}
}

func TestCreateOperationAcceptsAccountID(t *testing.T) {
	var got services.OperationRequest
	h := newTestHandler(Deps{
		Ledger: stubLedger{
			createOperationFn: func(_ context.Context, req services.OperationRequest) (services.OperationResult, error) {
				got = req
				return services.OperationResult{}, nil
			},
		},
	})
	rr := serve(t, h, http.MethodPost, "/transactions/operation", `{"type":"withdrawal","accountId":"bank-2","amount":"5"}`, cashierIdentity())
	if rr.Code != http.StatusCreated || got.BankAccountID != "bank-2" || got.CashAccountID != "" {
		t.Fatalf("expected accountId to name the bank account, got %d %+v", rr.Code, got)
	}
}

func TestCreateOperationErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"insufficient funds", `{"type":"withdrawal","bankAccountId":"b","cashAccountId":"c","amount":"10"}`, services.ErrInsufficientFunds, http.StatusConflict, "insufficient_funds"},
		{"account missing", `{"type":"deposit","bankAccountId":"b","cashAccountId":"c","amount":"10"}`, fmt.Errorf("%w: b", services.ErrAccountNotFound), http.StatusNotFound, "account_not_found"},
		{"missing amount", `{"type":"deposit","bankAccountId":"b","cashAccountId":"c"}`, nil, http.StatusBadRequest, "invalid_amount"},
		{"bad amount", `{"type":"deposit","bankAccountId":"b","cashAccountId":"c","amount":"ten"}`, nil, http.StatusBadRequest, "invalid_amount"},
		{"bad commission", `{"type":"deposit","bankAccountId":"b","cashAccountId":"c","amount":"10","commission":"x"}`, nil, http.StatusBadRequest, "invalid_commission"},
		{"malformed json", `{"type":`, nil, http.StatusBadRequest, "invalid_payload"},
		{"user mismatch", `{"userId":"someone-else","type":"deposit","bankAccountId":"b","cashAccountId":"c","amount":"10"}`, nil, http.StatusForbidden, "user_mismatch"},
		{"unexpected failure", `{"type":"deposit","bankAccountId":"b","cashAccountId":"c","amount":"10"}`, errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := newTestHandler(Deps{
				Ledger: stubLedger{
					createOperationFn: func(context.Context, services.OperationRequest) (services.OperationResult, error) {
						called = true
						return services.OperationResult{}, tc.err
					},
				},
			})
			rr := serve(t, h, http.MethodPost, "/transactions/operation", tc.body, cashierIdentity())
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if body["success"] != false || body["code"] != tc.code {
				t.Fatalf("unexpected envelope: %v", body)
			}
			if tc.err == nil && called {
				t.Fatalf("ledger must not be called for a rejected request")
			}
			if tc.code == "internal_error" && strings.Contains(rr.Body.String(), "boom") {
				t.Fatalf("internal errors must not leak: %s", rr.Body.String())
			}
		})
	}
}

func TestOperationRequiresToken(t *testing.T) {
	h := newTestHandler(Deps{})
	rr := serve(t, h, http.MethodPost, "/transactions/operation", `{}`, auth.Identity{})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestRoleGuards(t *testing.T) {
	cashier := stubUserStore{
		lookupFn: func(_ context.Context, userID string) (models.User, error) {
			return models.User{ID: userID, Role: models.RoleCashier, Status: models.StatusActive}, nil
		},
	}
	h := newTestHandler(Deps{Users: cashier})
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/transactions/rebalance"},
		{http.MethodPost, "/transactions/inject"},
		{http.MethodPost, "/transactions/annul"},
		{http.MethodGet, "/transactions/history/export"},
		{http.MethodGet, "/closure/preview"},
		{http.MethodPost, "/closure/close"},
		{http.MethodPost, "/accounts"},
		{http.MethodGet, "/admin/branches"},
	} {
		rr := serve(t, h, route.method, route.path, `{}`, cashierIdentity())
		if rr.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403 for a cashier, got %d", route.method, route.path, rr.Code)
		}
	}

	inactive := newTestHandler(Deps{Users: stubUserStore{
		lookupFn: func(_ context.Context, userID string) (models.User, error) {
			return models.User{ID: userID, Role: models.RoleAdmin, Status: models.StatusInactive}, nil
		},
	}})
	rr := serve(t, inactive, http.MethodGet, "/transactions/history", nil, adminIdentity())
	if rr.Code != http.StatusForbidden || decodeBody(t, rr)["code"] != "user_inactive" {
		t.Fatalf("expected inactive user to be rejected, got %d", rr.Code)
	}
}

func TestRebalanceAndAnnulForSupervisor(t *testing.T) {
	supervisor := stubUserStore{
		lookupFn: func(_ context.Context, userID string) (models.User, error) {
			return models.User{ID: userID, Role: models.RoleSupervisor, Status: models.StatusActive}, nil
		},
	}
	var rebalance services.RebalanceRequest
	var annul services.AnnulRequest
	h := newTestHandler(Deps{
		Users: supervisor,
		Ledger: stubLedger{
			rebalanceFn: func(_ context.Context, req services.RebalanceRequest) (services.OperationResult, error) {
				rebalance = req
				return services.OperationResult{Transaction: models.Transaction{ID: "tx-2", Amount: req.Amount}}, nil
			},
			annulFn: func(_ context.Context, req services.AnnulRequest) (services.OperationResult, error) {
				annul = req
				return services.OperationResult{Transaction: models.Transaction{ID: req.TransactionID, Status: models.TxAnnulled}}, nil
			},
		},
	})
	identity := auth.Identity{UserID: "sup-1", Role: string(models.RoleSupervisor)}

	rr := serve(t, h, http.MethodPost, "/transactions/rebalance", `{"sourceAccountId":"a","destinationAccountId":"b","amount":"25"}`, identity)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if rebalance.SourceAccountID != "a" || rebalance.DestinationAccountID != "b" || rebalance.BranchID != nil {
		t.Fatalf("unexpected rebalance request: %+v", rebalance)
	}

	rr = serve(t, h, http.MethodPost, "/transactions/annul", `{"transactionId":" tx-1 ","reason":"typo"}`, identity)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if annul.TransactionID != "tx-1" || annul.UserID != "sup-1" || annul.Reason != "typo" {
		t.Fatalf("unexpected annul request: %+v", annul)
	}
	if decodeBody(t, rr)["transaction"].(map[string]any)["status"] != "ANNULLED" {
		t.Fatalf("expected annulled status in response")
	}
}

func TestInjectCapitalAcceptsAccountIDFallback(t *testing.T) {
	var got services.InjectCapitalRequest
	h := newTestHandler(Deps{
		Ledger: stubLedger{
			injectCapitalFn: func(_ context.Context, req services.InjectCapitalRequest) (services.OperationResult, error) {
				got = req
				return services.OperationResult{}, nil
			},
		},
	})
	rr := serve(t, h, http.MethodPost, "/transactions/inject", `{"accountId":"vault","amount":"1000","fundSource":"owner"}`, adminIdentity())
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if got.AccountID != "vault" || got.FundSource != "owner" {
		t.Fatalf("unexpected inject request: %+v", got)
	}
}

func TestRegisterExpense(t *testing.T) {
	var got services.ExpenseRequest
	h := newTestHandler(Deps{
		Ledger: stubLedger{
			registerExpenseFn: func(_ context.Context, req services.ExpenseRequest) (services.OperationResult, error) {
				got = req
				return services.OperationResult{}, nil
			},
		},
	})
	rr := serve(t, h, http.MethodPost, "/transactions/expense", `{"sourceAccountId":"cash-1","type":"payroll","amount":"300","category":"staff"}`, cashierIdentity())
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if got.AccountID != "cash-1" || got.Type != models.TypePayroll || got.Category != "staff" {
		t.Fatalf("unexpected expense request: %+v", got)
	}
}

func TestHistoryFilters(t *testing.T) {
	var got store.HistoryFilter
	h := newTestHandler(Deps{
		Ledger: stubLedger{
			historyFn: func(_ context.Context, filter store.HistoryFilter) (services.HistoryPage, error) {
				got = filter
				return services.HistoryPage{
					Transactions: []models.TransactionView{{
						Transaction: models.Transaction{ID: "tx-1", Amount: decimal.NewFromInt(5)},
						Username:    stringPtr("ana"),
					}},
					Pagination: services.Pagination{Total: 1, Limit: 10, Offset: 0},
				}, nil
			},
		},
	})

	query := url.Values{}
	query.Set("type", "deposit")
	query.Set("status", "completed")
	query.Set("startDate", "2024-03-01")
	query.Set("endDate", "2024-03-31")
	query.Set("limit", "10")
	rr := serve(t, h, http.MethodGet, "/transactions/history?"+query.Encode(), nil, cashierIdentity())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.Type != models.TypeDeposit || got.Status != models.TxCompleted || got.Limit != 10 {
		t.Fatalf("unexpected filter: %+v", got)
	}
	wantEnd := time.Date(2024, 3, 31, 23, 59, 59, 999999999, time.UTC)
	if got.StartDate == nil || !got.StartDate.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || got.EndDate == nil || !got.EndDate.Equal(wantEnd) {
		t.Fatalf("unexpected date range: %v %v", got.StartDate, got.EndDate)
	}

	body := decodeBody(t, rr)
	rows := body["transactions"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["amount"] != "5.00" || rows[0].(map[string]any)["username"] != "ana" {
		t.Fatalf("unexpected rows: %v", rows)
	}
	if body["pagination"].(map[string]any)["total"] != float64(1) {
		t.Fatalf("unexpected pagination: %v", body["pagination"])
	}
}

func TestHistoryRejectsBadDate(t *testing.T) {
	h := newTestHandler(Deps{})
	rr := serve(t, h, http.MethodGet, "/transactions/history?startDate=yesterday", nil, cashierIdentity())
	if rr.Code != http.StatusBadRequest || decodeBody(t, rr)["code"] != "invalid_date_range" {
		t.Fatalf("expected 400 invalid_date_range, got %d", rr.Code)
	}
}

func TestExportHistoryWritesWorkbook(t *testing.T) {
	h := newTestHandler(Deps{
		Ledger: stubLedger{
			exportHistoryFn: func(context.Context, store.HistoryFilter) ([]models.TransactionView, error) {
				return []models.TransactionView{{Transaction: models.Transaction{ID: "tx-1", Amount: decimal.NewFromInt(7)}}}, nil
			},
		},
	})
	rr := serve(t, h, http.MethodGet, "/transactions/history/export", nil, adminIdentity())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, ".xlsx") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Fatalf("expected a zip container")
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(Deps{})
	rr := serve(t, h, http.MethodGet, "/health", nil, auth.Identity{})
	if rr.Code != http.StatusOK || decodeBody(t, rr)["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %s", rr.Code, rr.Body.String())
	}
}
