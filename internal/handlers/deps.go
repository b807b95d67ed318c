package handlers

import (
	"context"

	"cashledger/internal/models"
	"cashledger/internal/services"
	"cashledger/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, user models.User) error
	GetByUsername(ctx context.Context, username string) (models.User, error)
	Lookup(ctx context.Context, userID string) (models.User, error)
	ListCashiers(ctx context.Context, branchID string) ([]store.CashierRow, error)
}

type BranchStore interface {
	Create(ctx context.Context, tx store.Execer, branch models.Branch) error
	Lookup(ctx context.Context, branchID string) (models.Branch, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]models.Branch, error)
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.Account) error
	ListAll(ctx context.Context) ([]store.AccountWithOwner, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data models.Metadata) error
	List(ctx context.Context, limit, offset int) ([]store.AuditEntry, error)
}

// Ledger is the subset of services.LedgerService used over HTTP.
type Ledger interface {
	CreateOperation(ctx context.Context, req services.OperationRequest) (services.OperationResult, error)
	Rebalance(ctx context.Context, req services.RebalanceRequest) (services.OperationResult, error)
	InjectCapital(ctx context.Context, req services.InjectCapitalRequest) (services.OperationResult, error)
	RegisterExpense(ctx context.Context, req services.ExpenseRequest) (services.OperationResult, error)
	Annul(ctx context.Context, req services.AnnulRequest) (services.OperationResult, error)
	History(ctx context.Context, filter store.HistoryFilter) (services.HistoryPage, error)
	ExportHistory(ctx context.Context, filter store.HistoryFilter) ([]models.TransactionView, error)
	CreateLoan(ctx context.Context, req services.LoanRequest) (services.DebtResult, error)
	PayDebt(ctx context.Context, req services.PaymentRequest) (services.DebtResult, error)
	ListPendingDebts(ctx context.Context) ([]models.Debt, error)
	PerformCashCount(ctx context.Context, req services.CashCountRequest) (services.CashCountResult, error)
	ListCashCounts(ctx context.Context, limit int) ([]store.CashCountView, error)
	Preview(ctx context.Context) (services.ClosurePreview, error)
	PerformClosure(ctx context.Context, req services.ClosureRequest) (services.ClosureResult, error)
}
