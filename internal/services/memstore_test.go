package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"cashledger/internal/models"
	"cashledger/internal/store"
	"cashledger/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// memLedger is an in-memory stand-in for the PostgreSQL schema. memRunner
// serialises units of work on mu and restores a snapshot when fn fails, which
// gives the same all-or-nothing behaviour as a real transaction.
type memLedger struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	users    map[string]models.User
	branches map[string]models.Branch
	txs      map[string]models.Transaction
	debts    map[string]models.Debt
	closures []models.PeriodClosure
	counts   []models.CashCount
	audits   []string
	lockLog  []string
	// held is the set of account rows locked by the unit of work in flight.
	held map[string]bool
}

func newMemLedger() *memLedger {
	return &memLedger{
		accounts: map[string]models.Account{},
		users:    map[string]models.User{},
		branches: map[string]models.Branch{},
		txs:      map[string]models.Transaction{},
		debts:    map[string]models.Debt{},
	}
}

type memSnapshot struct {
	accounts map[string]models.Account
	txs      map[string]models.Transaction
	debts    map[string]models.Debt
	closures []models.PeriodClosure
	counts   []models.CashCount
	audits   []string
}

func (l *memLedger) snapshot() memSnapshot {
	snap := memSnapshot{
		accounts: make(map[string]models.Account, len(l.accounts)),
		txs:      make(map[string]models.Transaction, len(l.txs)),
		debts:    make(map[string]models.Debt, len(l.debts)),
		closures: append([]models.PeriodClosure(nil), l.closures...),
		counts:   append([]models.CashCount(nil), l.counts...),
		audits:   append([]string(nil), l.audits...),
	}
	for k, v := range l.accounts {
		snap.accounts[k] = v
	}
	for k, v := range l.txs {
		snap.txs[k] = v
	}
	for k, v := range l.debts {
		snap.debts[k] = v
	}
	return snap
}

func (l *memLedger) restore(snap memSnapshot) {
	l.accounts = snap.accounts
	l.txs = snap.txs
	l.debts = snap.debts
	l.closures = snap.closures
	l.counts = snap.counts
	l.audits = snap.audits
}

func (l *memLedger) balance(id string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[id].Balance.StringFixed(2)
}

func (l *memLedger) setBalance(id, value string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc := l.accounts[id]
	acc.Balance = decimal.RequireFromString(value)
	l.accounts[id] = acc
}

func (l *memLedger) transaction(id string) models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txs[id]
}

func (l *memLedger) transactionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txs)
}

func (l *memLedger) totalBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := decimal.Zero
	for _, acc := range l.accounts {
		total = total.Add(acc.Balance)
	}
	return total
}

var errUnlockedWrite = errors.New("unlocked write")

type memRunner struct {
	l *memLedger
}

func (r memRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	r.l.held = map[string]bool{}
	defer func() { r.l.held = nil }()
	snap := r.l.snapshot()
	if err := fn(nil); err != nil {
		r.l.restore(snap)
		return err
	}
	return nil
}

type memAccounts struct{ l *memLedger }

func (m memAccounts) GetByID(_ context.Context, _ store.Getter, id string) (models.Account, error) {
	acc, ok := m.l.accounts[id]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return acc, nil
}

func (m memAccounts) GetForUpdate(ctx context.Context, q store.Getter, id string) (models.Account, error) {
	m.l.lockLog = append(m.l.lockLog, id)
	if m.l.held != nil {
		m.l.held[id] = true
	}
	return m.GetByID(ctx, q, id)
}

// UpdateBalance refuses writes to rows the unit of work never locked, the way
// a lost update would slip past a real database.
func (m memAccounts) UpdateBalance(_ context.Context, _ store.Execer, id string, balance decimal.Decimal) error {
	if !m.l.held[id] {
		return fmt.Errorf("%w: balance of %s written without a row lock", errUnlockedWrite, id)
	}
	acc := m.l.accounts[id]
	acc.Balance = balance
	m.l.accounts[id] = acc
	return nil
}

func (m memAccounts) physical(match func(models.Account) bool) []models.Account {
	var out []models.Account
	for _, acc := range m.l.accounts {
		if acc.Kind == models.KindPhysical && acc.Active() && match(acc) {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m memAccounts) ListPhysicalByUser(_ context.Context, _ store.Selecter, userID string) ([]models.Account, error) {
	return m.physical(func(a models.Account) bool { return a.UserID != nil && *a.UserID == userID }), nil
}

func (m memAccounts) ListPhysicalByBranch(_ context.Context, _ store.Selecter, id string) ([]models.Account, error) {
	return m.physical(func(a models.Account) bool { return a.BranchID != nil && *a.BranchID == id }), nil
}

type memUsers struct{ l *memLedger }

func (m memUsers) GetByID(_ context.Context, _ store.Getter, id string) (models.User, error) {
	user, ok := m.l.users[id]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return user, nil
}

type memBranches struct{ l *memLedger }

func (m memBranches) GetByID(_ context.Context, _ store.Getter, id string) (models.Branch, error) {
	branch, ok := m.l.branches[id]
	if !ok {
		return models.Branch{}, sql.ErrNoRows
	}
	return branch, nil
}

type memTransactions struct {
	l          *memLedger
	lastFilter *store.HistoryFilter
}

func (m *memTransactions) Create(_ context.Context, _ store.Execer, t models.Transaction) error {
	m.l.txs[t.ID] = t
	return nil
}

func (m *memTransactions) GetForUpdate(_ context.Context, _ store.Getter, id string) (models.Transaction, error) {
	t, ok := m.l.txs[id]
	if !ok {
		return models.Transaction{}, sql.ErrNoRows
	}
	return t, nil
}

func (m *memTransactions) MarkAnnulled(_ context.Context, _ store.Execer, id, description string, metadata models.Metadata) error {
	t := m.l.txs[id]
	t.Status = models.TxAnnulled
	t.Description = description
	t.Metadata = metadata
	m.l.txs[id] = t
	return nil
}

func (m *memTransactions) SumByTypeSince(_ context.Context, _ store.Selecter, since time.Time) ([]store.TypeTotal, error) {
	byType := map[models.TransactionType]*store.TypeTotal{}
	for _, t := range m.l.txs {
		if t.Status != models.TxCompleted || !t.CreatedAt.After(since) {
			continue
		}
		total, ok := byType[t.Type]
		if !ok {
			total = &store.TypeTotal{Type: t.Type, Total: decimal.Zero}
			byType[t.Type] = total
		}
		total.Total = total.Total.Add(t.Amount)
		total.Count++
	}
	out := make([]store.TypeTotal, 0, len(byType))
	for _, total := range byType {
		out = append(out, *total)
	}
	return out, nil
}

func (m *memTransactions) List(_ context.Context, filter store.HistoryFilter) ([]models.TransactionView, int, error) {
	m.lastFilter = &filter
	var rows []models.TransactionView
	for _, t := range m.l.txs {
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		rows = append(rows, models.TransactionView{Transaction: t})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	total := len(rows)
	if filter.Offset >= len(rows) {
		return nil, total, nil
	}
	rows = rows[filter.Offset:]
	if len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return rows, total, nil
}

type memDebts struct{ l *memLedger }

func (m memDebts) Create(_ context.Context, _ store.Execer, debt models.Debt) error {
	m.l.debts[debt.ID] = debt
	return nil
}

func (m memDebts) GetForUpdate(_ context.Context, _ store.Getter, id string) (models.Debt, error) {
	debt, ok := m.l.debts[id]
	if !ok {
		return models.Debt{}, sql.ErrNoRows
	}
	return debt, nil
}

func (m memDebts) UpdateBalance(_ context.Context, _ store.Execer, id string, balance decimal.Decimal, status models.DebtStatus) error {
	debt := m.l.debts[id]
	debt.CurrentBalance = balance
	debt.Status = status
	m.l.debts[id] = debt
	return nil
}

func (m memDebts) ListPending(context.Context) ([]models.Debt, error) {
	var out []models.Debt
	for _, debt := range m.l.debts {
		if debt.Status == models.DebtPending {
			out = append(out, debt)
		}
	}
	return out, nil
}

type memClosures struct{ l *memLedger }

func (m memClosures) LockTimeline(context.Context, store.Execer) error {
	return nil
}

func (m memClosures) Latest(context.Context, store.Getter) (models.PeriodClosure, error) {
	if len(m.l.closures) == 0 {
		return models.PeriodClosure{}, sql.ErrNoRows
	}
	return m.l.closures[len(m.l.closures)-1], nil
}

func (m memClosures) Create(_ context.Context, _ store.Execer, c models.PeriodClosure) error {
	m.l.closures = append(m.l.closures, c)
	return nil
}

type memCashCounts struct{ l *memLedger }

func (m memCashCounts) Create(_ context.Context, _ store.Execer, c models.CashCount) error {
	m.l.counts = append(m.l.counts, c)
	return nil
}

func (m memCashCounts) ListRecent(_ context.Context, limit int) ([]store.CashCountView, error) {
	var out []store.CashCountView
	for i := len(m.l.counts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, store.CashCountView{CashCount: m.l.counts[i]})
	}
	return out, nil
}

type memAudit struct{ l *memLedger }

func (m memAudit) Log(_ context.Context, _ store.Execer, _, action, _, _ string, _ models.Metadata) error {
	m.l.audits = append(m.l.audits, action)
	return nil
}

type recordingHub struct {
	mu    sync.Mutex
	calls map[string][]websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(userID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.calls == nil {
		h.calls = map[string][]websocket.BalanceUpdate{}
	}
	h.calls[userID] = append(h.calls[userID], update)
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type ledgerFixture struct {
	svc *LedgerService
	l   *memLedger
	txs   *memTransactions
	hub   *recordingHub
	clock *stepClock
}

const (
	adminID      = "user-admin"
	superID      = "user-super"
	cashierID    = "user-cashier"
	idleID       = "user-idle"
	branchCentro = "branch-1"
	accBank      = "acc-bank"
	accPlat      = "acc-plat"
	accCash      = "acc-cash"
	accVault     = "acc-vault"
	accTill      = "acc-till"
)

// newLedgerFixture seeds one branch, four users and five accounts:
// bank 1000, platform 300, cashier till 500, cashier vault 10000 and a
// branch till 50.
func newLedgerFixture(t *testing.T) ledgerFixture {
	t.Helper()
	l := newMemLedger()
	owner := cashierID
	branch := branchCentro
	l.branches[branchCentro] = models.Branch{ID: branchCentro, Name: "Centro", IsActive: true}
	l.users[adminID] = models.User{ID: adminID, Username: "admin", Role: models.RoleAdmin, Status: models.StatusActive}
	l.users[superID] = models.User{ID: superID, Username: "super", Role: models.RoleSupervisor, Status: models.StatusActive}
	l.users[cashierID] = models.User{ID: cashierID, Username: "cajero", Role: models.RoleCashier, Status: models.StatusActive, BranchID: &branch}
	l.users[idleID] = models.User{ID: idleID, Username: "idle", Role: models.RoleAdmin, Status: models.StatusInactive}
	add := func(id, name string, kind models.AccountKind, balance string, user, br *string) {
		l.accounts[id] = models.Account{
			ID: id, Name: name, Kind: kind, Status: models.StatusActive,
			Balance: decimal.RequireFromString(balance), UserID: user, BranchID: br,
		}
	}
	add(accBank, "Banco Pichincha", models.KindBank, "1000", nil, nil)
	add(accPlat, "Plataforma", models.KindPlatform, "300", nil, nil)
	add(accCash, "Caja 1", models.KindPhysical, "500", &owner, nil)
	add(accVault, "Bóveda principal", models.KindPhysical, "10000", &owner, nil)
	add(accTill, "Caja local", models.KindPhysical, "50", nil, &branch)

	txs := &memTransactions{l: l}
	hub := &recordingHub{}
	svc := NewLedgerService(memRunner{l: l}, nil, Stores{
		Accounts:     memAccounts{l: l},
		Users:        memUsers{l: l},
		Branches:     memBranches{l: l},
		Transactions: txs,
		Debts:        memDebts{l: l},
		Closures:     memClosures{l: l},
		CashCounts:   memCashCounts{l: l},
		Audit:        memAudit{l: l},
	}, hub, nil)
	clock := &stepClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return ledgerFixture{svc: svc, l: l, txs: txs, hub: hub, clock: clock}
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
