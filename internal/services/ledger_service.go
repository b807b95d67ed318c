package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cashledger/internal/db"
	"cashledger/internal/models"
	"cashledger/internal/money"
	"cashledger/internal/store"
	"cashledger/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AccountStore interface {
	GetByID(ctx context.Context, q store.Getter, accountID string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	UpdateBalance(ctx context.Context, tx store.Execer, accountID string, balance decimal.Decimal) error
	ListPhysicalByUser(ctx context.Context, q store.Selecter, userID string) ([]models.Account, error)
	ListPhysicalByBranch(ctx context.Context, q store.Selecter, branchID string) ([]models.Account, error)
}

type UserStore interface {
	GetByID(ctx context.Context, q store.Getter, userID string) (models.User, error)
}

type BranchStore interface {
	GetByID(ctx context.Context, q store.Getter, branchID string) (models.Branch, error)
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, t models.Transaction) error
	GetForUpdate(ctx context.Context, tx store.Getter, transactionID string) (models.Transaction, error)
	MarkAnnulled(ctx context.Context, tx store.Execer, transactionID, description string, metadata models.Metadata) error
	SumByTypeSince(ctx context.Context, q store.Selecter, since time.Time) ([]store.TypeTotal, error)
	List(ctx context.Context, filter store.HistoryFilter) ([]models.TransactionView, int, error)
}

type DebtStore interface {
	Create(ctx context.Context, tx store.Execer, debt models.Debt) error
	GetForUpdate(ctx context.Context, tx store.Getter, debtID string) (models.Debt, error)
	UpdateBalance(ctx context.Context, tx store.Execer, debtID string, balance decimal.Decimal, status models.DebtStatus) error
	ListPending(ctx context.Context) ([]models.Debt, error)
}

type ClosureStore interface {
	LockTimeline(ctx context.Context, tx store.Execer) error
	Latest(ctx context.Context, q store.Getter) (models.PeriodClosure, error)
	Create(ctx context.Context, tx store.Execer, closure models.PeriodClosure) error
}

type CashCountStore interface {
	Create(ctx context.Context, tx store.Execer, count models.CashCount) error
	ListRecent(ctx context.Context, limit int) ([]store.CashCountView, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data models.Metadata) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// Stores groups the persistence handles the ledger needs.
type Stores struct {
	Accounts     AccountStore
	Users        UserStore
	Branches     BranchStore
	Transactions TransactionStore
	Debts        DebtStore
	Closures     ClosureStore
	CashCounts   CashCountStore
	Audit        AuditStore
}

// LedgerService owns every balance mutation. Each exported operation is a
// single unit of work run through txRunner.
type LedgerService struct {
	txRunner     db.TxRunner
	reader       store.Querier
	accounts     AccountStore
	users        UserStore
	branches     BranchStore
	transactions TransactionStore
	debts        DebtStore
	closures     ClosureStore
	cashCounts   CashCountStore
	audit        AuditStore
	hub          BalanceHub
	logger       *zap.Logger
	now          func() time.Time
}

func NewLedgerService(txRunner db.TxRunner, reader store.Querier, stores Stores, hub BalanceHub, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		txRunner:     txRunner,
		reader:       reader,
		accounts:     stores.Accounts,
		users:        stores.Users,
		branches:     stores.Branches,
		transactions: stores.Transactions,
		debts:        stores.Debts,
		closures:     stores.Closures,
		cashCounts:   stores.CashCounts,
		audit:        stores.Audit,
		hub:          hub,
		logger:       logger,
		now:          time.Now,
	}
}

// ClientInfo is request context recorded in transaction metadata.
type ClientInfo struct {
	IP        string
	UserAgent string
}

func (c ClientInfo) metadata() models.Metadata {
	m := models.Metadata{}
	if c.IP != "" {
		m["ip"] = c.IP
	}
	if c.UserAgent != "" {
		m["user_agent"] = c.UserAgent
	}
	return m
}

// OperationResult is returned by every balance-mutating operation.
type OperationResult struct {
	Transaction models.Transaction `json:"transaction"`
	Balances    []BalanceChange    `json:"balances"`
}

func (s *LedgerService) activeUser(ctx context.Context, q store.Getter, userID string) (models.User, error) {
	user, err := s.users.GetByID(ctx, q, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	if err != nil {
		return models.User{}, err
	}
	if user.Status != models.StatusActive {
		return models.User{}, fmt.Errorf("%w: %s", ErrUserInactive, user.Username)
	}
	return user, nil
}

func (s *LedgerService) checkBranch(ctx context.Context, q store.Getter, branchID *string) error {
	if branchID == nil || *branchID == "" {
		return nil
	}
	_, err := s.branches.GetByID(ctx, q, *branchID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, *branchID)
	}
	return err
}

// lockAccounts takes row locks in ascending id order so that two operations
// touching the same accounts can never wait on each other in a cycle.
func (s *LedgerService) lockAccounts(ctx context.Context, tx store.Getter, ids ...string) (map[string]models.Account, error) {
	locked, err := s.lockAccountRows(ctx, tx, ids...)
	if err != nil {
		return nil, err
	}
	for _, acc := range locked {
		if !acc.Active() {
			return nil, fmt.Errorf("%w: %s", ErrAccountInactive, acc.Name)
		}
	}
	return locked, nil
}

// lockAccountRows is lockAccounts without the active check; reversals must
// still be able to restore balances on accounts deactivated since.
func (s *LedgerService) lockAccountRows(ctx context.Context, tx store.Getter, ids ...string) (map[string]models.Account, error) {
	ordered := orderedIDs(ids...)
	locked := make(map[string]models.Account, len(ordered))
	for _, id := range ordered {
		acc, err := s.accounts.GetForUpdate(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		locked[id] = acc
	}
	return locked, nil
}

func orderedIDs(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var reserveMarkers = []string{"bóveda", "boveda", "reserva", "vault", "reserve"}

func isReserveName(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range reserveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// resolveCashAccount picks the physical till an operation settles against:
// the explicit account when it is physical, else the user's own till (vaults
// and reserves last), else the branch till.
func (s *LedgerService) resolveCashAccount(ctx context.Context, q store.Querier, explicitID, userID string, branchID *string) (string, error) {
	if explicitID != "" {
		acc, err := s.accounts.GetByID(ctx, q, explicitID)
		switch {
		case err == nil && acc.Kind == models.KindPhysical:
			return acc.ID, nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return "", err
		}
	}
	owned, err := s.accounts.ListPhysicalByUser(ctx, q, userID)
	if err != nil {
		return "", err
	}
	for _, acc := range owned {
		if !isReserveName(acc.Name) {
			return acc.ID, nil
		}
	}
	if len(owned) > 0 {
		return owned[0].ID, nil
	}
	if branchID != nil && *branchID != "" {
		branchTills, err := s.accounts.ListPhysicalByBranch(ctx, q, *branchID)
		if err != nil {
			return "", err
		}
		if len(branchTills) > 0 {
			return branchTills[0].ID, nil
		}
	}
	return "", ErrNoCashAccountAvailable
}

func (s *LedgerService) saveBalances(ctx context.Context, tx store.Execer, changes []BalanceChange) error {
	for _, change := range changes {
		if err := s.accounts.UpdateBalance(ctx, tx, change.AccountID, change.Current); err != nil {
			return err
		}
	}
	return nil
}

// broadcast pushes committed balances to the acting user and to each account
// owner.
func (s *LedgerService) broadcast(actorID, transactionID string, changes []BalanceChange) {
	if s.hub == nil {
		return
	}
	for _, change := range changes {
		update := websocket.BalanceUpdate{
			AccountID:     change.AccountID,
			AccountName:   change.AccountName,
			Balance:       money.Format(change.Current),
			TransactionID: transactionID,
		}
		s.hub.BroadcastBalance(actorID, update)
		if change.ownerID != nil && *change.ownerID != actorID {
			s.hub.BroadcastBalance(*change.ownerID, update)
		}
	}
}

func balanceMetadata(m models.Metadata, prefix string, changes []BalanceChange) models.Metadata {
	for i, change := range changes {
		key := fmt.Sprintf("%s_%d", prefix, i)
		m = m.With(
			key+"_account", change.AccountID,
			key+"_before", money.Format(change.Previous),
			key+"_after", money.Format(change.Current),
		)
	}
	return m
}

func newID() string {
	return uuid.NewString()
}

func branchOrNil(branchID *string) *string {
	if branchID == nil || *branchID == "" {
		return nil
	}
	return branchID
}

func stringPtr(value string) *string {
	return &value
}

// validateCommission allows zero, but otherwise holds a commission to the same
// cent precision and ceiling as an amount.
func validateCommission(commission decimal.Decimal) error {
	if commission.IsNegative() {
		return ErrInvalidCommission
	}
	if !commission.Equal(commission.Truncate(money.Scale)) {
		return fmt.Errorf("%w: %s", ErrInvalidCommission, money.ErrTooManyDecimals)
	}
	if commission.GreaterThanOrEqual(money.Limit) {
		return fmt.Errorf("%w: %s", ErrInvalidCommission, money.ErrAmountTooLarge)
	}
	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(money.Scale)) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, money.ErrTooManyDecimals)
	}
	if amount.GreaterThanOrEqual(money.Limit) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, money.ErrAmountTooLarge)
	}
	return nil
}
