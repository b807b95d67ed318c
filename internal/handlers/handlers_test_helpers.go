package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"cashledger/internal/auth"
	"cashledger/internal/config"
	"cashledger/internal/models"
	"cashledger/internal/services"
	"cashledger/internal/store"
	"cashledger/internal/websocket"

	"github.com/jmoiron/sqlx"
)

const testSecret = "secret"

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn        func(ctx context.Context, tx store.Execer, user models.User) error
	getByUsernameFn func(ctx context.Context, username string) (models.User, error)
	lookupFn        func(ctx context.Context, userID string) (models.User, error)
	listCashiersFn  func(ctx context.Context, branchID string) ([]store.CashierRow, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, user models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, user)
}

func (s stubUserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	if s.getByUsernameFn == nil {
		return models.User{}, sql.ErrNoRows
	}
	return s.getByUsernameFn(ctx, username)
}

// Lookup defaults to an active admin so that role guards pass unless a test
// says otherwise.
func (s stubUserStore) Lookup(ctx context.Context, userID string) (models.User, error) {
	if s.lookupFn == nil {
		return models.User{ID: userID, Username: "admin", Role: models.RoleAdmin, Status: models.StatusActive}, nil
	}
	return s.lookupFn(ctx, userID)
}

func (s stubUserStore) ListCashiers(ctx context.Context, branchID string) ([]store.CashierRow, error) {
	if s.listCashiersFn == nil {
		return nil, nil
	}
	return s.listCashiersFn(ctx, branchID)
}

type stubBranchStore struct {
	createFn       func(ctx context.Context, tx store.Execer, branch models.Branch) error
	lookupFn       func(ctx context.Context, branchID string) (models.Branch, error)
	existsByNameFn func(ctx context.Context, name string) (bool, error)
	listFn         func(ctx context.Context) ([]models.Branch, error)
}

func (s stubBranchStore) Create(ctx context.Context, tx store.Execer, branch models.Branch) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, branch)
}

func (s stubBranchStore) Lookup(ctx context.Context, branchID string) (models.Branch, error) {
	if s.lookupFn == nil {
		return models.Branch{}, sql.ErrNoRows
	}
	return s.lookupFn(ctx, branchID)
}

func (s stubBranchStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	if s.existsByNameFn == nil {
		return false, nil
	}
	return s.existsByNameFn(ctx, name)
}

func (s stubBranchStore) List(ctx context.Context) ([]models.Branch, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

type stubAccountStore struct {
	createFn       func(ctx context.Context, tx store.Execer, account models.Account) error
	listAllFn      func(ctx context.Context) ([]store.AccountWithOwner, error)
	existsByNameFn func(ctx context.Context, name string) (bool, error)
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Execer, account models.Account) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, account)
}

func (s stubAccountStore) ListAll(ctx context.Context) ([]store.AccountWithOwner, error) {
	if s.listAllFn == nil {
		return nil, nil
	}
	return s.listAllFn(ctx)
}

func (s stubAccountStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	if s.existsByNameFn == nil {
		return false, nil
	}
	return s.existsByNameFn(ctx, name)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data models.Metadata) error
	listFn func(ctx context.Context, limit, offset int) ([]store.AuditEntry, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data models.Metadata) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]store.AuditEntry, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubLedger struct {
	createOperationFn  func(ctx context.Context, req services.OperationRequest) (services.OperationResult, error)
	rebalanceFn        func(ctx context.Context, req services.RebalanceRequest) (services.OperationResult, error)
	injectCapitalFn    func(ctx context.Context, req services.InjectCapitalRequest) (services.OperationResult, error)
	registerExpenseFn  func(ctx context.Context, req services.ExpenseRequest) (services.OperationResult, error)
	annulFn            func(ctx context.Context, req services.AnnulRequest) (services.OperationResult, error)
	historyFn          func(ctx context.Context, filter store.HistoryFilter) (services.HistoryPage, error)
	exportHistoryFn    func(ctx context.Context, filter store.HistoryFilter) ([]models.TransactionView, error)
	createLoanFn       func(ctx context.Context, req services.LoanRequest) (services.DebtResult, error)
	payDebtFn          func(ctx context.Context, req services.PaymentRequest) (services.DebtResult, error)
	listPendingDebtsFn func(ctx context.Context) ([]models.Debt, error)
	performCashCountFn func(ctx context.Context, req services.CashCountRequest) (services.CashCountResult, error)
	listCashCountsFn   func(ctx context.Context, limit int) ([]store.CashCountView, error)
	previewFn          func(ctx context.Context) (services.ClosurePreview, error)
	performClosureFn   func(ctx context.Context, req services.ClosureRequest) (services.ClosureResult, error)
}

func (s stubLedger) CreateOperation(ctx context.Context, req services.OperationRequest) (services.OperationResult, error) {
	if s.createOperationFn == nil {
		return services.OperationResult{}, nil
	}
	return s.createOperationFn(ctx, req)
}

func (s stubLedger) Rebalance(ctx context.Context, req services.RebalanceRequest) (services.OperationResult, error) {
	if s.rebalanceFn == nil {
		return services.OperationResult{}, nil
	}
	return s.rebalanceFn(ctx, req)
}

func (s stubLedger) InjectCapital(ctx context.Context, req services.InjectCapitalRequest) (services.OperationResult, error) {
	if s.injectCapitalFn == nil {
		return services.OperationResult{}, nil
	}
	return s.injectCapitalFn(ctx, req)
}

func (s stubLedger) RegisterExpense(ctx context.Context, req services.ExpenseRequest) (services.OperationResult, error) {
	if s.registerExpenseFn == nil {
		return services.OperationResult{}, nil
	}
	return s.registerExpenseFn(ctx, req)
}

func (s stubLedger) Annul(ctx context.Context, req services.AnnulRequest) (services.OperationResult, error) {
	if s.annulFn == nil {
		return services.OperationResult{}, nil
	}
	return s.annulFn(ctx, req)
}

func (s stubLedger) History(ctx context.Context, filter store.HistoryFilter) (services.HistoryPage, error) {
	if s.historyFn == nil {
		return services.HistoryPage{}, nil
	}
	return s.historyFn(ctx, filter)
}

func (s stubLedger) ExportHistory(ctx context.Context, filter store.HistoryFilter) ([]models.TransactionView, error) {
	if s.exportHistoryFn == nil {
		return nil, nil
	}
	return s.exportHistoryFn(ctx, filter)
}

func (s stubLedger) CreateLoan(ctx context.Context, req services.LoanRequest) (services.DebtResult, error) {
	if s.createLoanFn == nil {
		return services.DebtResult{}, nil
	}
	return s.createLoanFn(ctx, req)
}

func (s stubLedger) PayDebt(ctx context.Context, req services.PaymentRequest) (services.DebtResult, error) {
	if s.payDebtFn == nil {
		return services.DebtResult{}, nil
	}
	return s.payDebtFn(ctx, req)
}

func (s stubLedger) ListPendingDebts(ctx context.Context) ([]models.Debt, error) {
	if s.listPendingDebtsFn == nil {
		return nil, nil
	}
	return s.listPendingDebtsFn(ctx)
}

func (s stubLedger) PerformCashCount(ctx context.Context, req services.CashCountRequest) (services.CashCountResult, error) {
	if s.performCashCountFn == nil {
		return services.CashCountResult{}, nil
	}
	return s.performCashCountFn(ctx, req)
}

func (s stubLedger) ListCashCounts(ctx context.Context, limit int) ([]store.CashCountView, error) {
	if s.listCashCountsFn == nil {
		return nil, nil
	}
	return s.listCashCountsFn(ctx, limit)
}

func (s stubLedger) Preview(ctx context.Context) (services.ClosurePreview, error) {
	if s.previewFn == nil {
		return services.ClosurePreview{}, nil
	}
	return s.previewFn(ctx)
}

func (s stubLedger) PerformClosure(ctx context.Context, req services.ClosureRequest) (services.ClosureResult, error) {
	if s.performClosureFn == nil {
		return services.ClosureResult{}, nil
	}
	return s.performClosureFn(ctx, req)
}

// newTestHandler fills every dependency with a no-op stub; callers override
// the ones under test.
func newTestHandler(deps Deps) *Handler {
	if deps.TxRunner == nil {
		deps.TxRunner = fakeTxRunner{}
	}
	if deps.Users == nil {
		deps.Users = stubUserStore{}
	}
	if deps.Branches == nil {
		deps.Branches = stubBranchStore{}
	}
	if deps.Accounts == nil {
		deps.Accounts = stubAccountStore{}
	}
	if deps.Audit == nil {
		deps.Audit = stubAuditStore{}
	}
	if deps.Ledger == nil {
		deps.Ledger = stubLedger{}
	}
	if deps.Hub == nil {
		deps.Hub = websocket.NewHub()
	}
	deps.Config = config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(deps)
}

func testToken(t *testing.T, identity auth.Identity) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, identity, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// serve sends a request through the full router as the given identity. An
// empty UserID sends the request without a token.
func serve(t *testing.T, h *Handler, method, path string, body any, identity auth.Identity) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch value := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(value))
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if identity.UserID != "" {
		req.Header.Set("Authorization", "Bearer "+testToken(t, identity))
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func cashierIdentity() auth.Identity {
	branch := "branch-1"
	return auth.Identity{UserID: "user-1", Username: "ana", Role: string(models.RoleCashier), BranchID: &branch}
}

func adminIdentity() auth.Identity {
	return auth.Identity{UserID: "admin-1", Username: "root", Role: string(models.RoleAdmin)}
}

func stringPtr(value string) *string {
	return &value
}
