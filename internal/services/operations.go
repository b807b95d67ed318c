package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cashledger/internal/models"
	"cashledger/internal/money"
	"cashledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var defaultDescriptions = map[models.TransactionType]string{
	models.TypeDeposit:           "Deposit",
	models.TypeWithdrawal:        "Withdrawal",
	models.TypeSale:              "Sale",
	models.TypeServicePayment:    "Service payment",
	models.TypeExpense:           "Expense",
	models.TypePayroll:           "Payroll",
	models.TypePurchase:          "Purchase",
	models.TypeLoanGiven:         "Loan given",
	models.TypeDebtPayment:       "Debt payment",
	models.TypeInternalTransfer:  "Internal transfer",
	models.TypeCapitalInjection:  "Capital injection",
	models.TypeUtilityWithdrawal: "Profit capitalization",
}

// posting is one forward application of an effect plus the rows it writes.
type posting struct {
	actorID     string
	branchID    *string
	txType      models.TransactionType
	amount      decimal.Decimal
	commission  decimal.Decimal
	sourceID    string
	destID      string
	description string
	metadata    models.Metadata
	// check runs against the locked rows before any balance moves.
	check func(source models.Account, dest *models.Account) error
}

func (s *LedgerService) post(ctx context.Context, tx *sqlx.Tx, p posting) (OperationResult, error) {
	eff, err := effectOf(p.txType)
	if err != nil {
		return OperationResult{}, err
	}
	if eff.needsDestAcc && p.destID == "" {
		return OperationResult{}, fmt.Errorf("%w: destination", ErrMissingAccount)
	}
	if p.destID != "" && p.destID == p.sourceID {
		return OperationResult{}, ErrSameAccount
	}
	locked, err := s.lockAccounts(ctx, tx, p.sourceID, p.destID)
	if err != nil {
		return OperationResult{}, err
	}
	source := locked[p.sourceID]
	var dest *models.Account
	if p.destID != "" {
		d := locked[p.destID]
		dest = &d
	}
	if p.check != nil {
		if err := p.check(source, dest); err != nil {
			return OperationResult{}, err
		}
	}

	changes, err := applyLegs(eff.forward, &source, dest, p.amount, p.commission, ErrInsufficientFunds)
	if err != nil {
		return OperationResult{}, err
	}
	if err := s.saveBalances(ctx, tx, changes); err != nil {
		return OperationResult{}, err
	}

	createdAt, err := s.postingTime(ctx, tx)
	if err != nil {
		return OperationResult{}, err
	}
	description := p.description
	if description == "" {
		description = defaultDescriptions[p.txType]
	}
	record := models.Transaction{
		ID:          newID(),
		CreatedAt:   createdAt,
		Type:        p.txType,
		Amount:      p.amount,
		Commission:  p.commission,
		Description: description,
		Status:      models.TxCompleted,
		UserID:      p.actorID,
		BranchID:    branchOrNil(p.branchID),
		AccountID:   source.ID,
		Metadata:    balanceMetadata(p.metadata, "balance", changes),
	}
	if dest != nil {
		record.DestinationAccountID = stringPtr(dest.ID)
	}
	if err := s.transactions.Create(ctx, tx, record); err != nil {
		return OperationResult{}, err
	}
	if err := s.audit.Log(ctx, tx, p.actorID, string(p.txType), "transaction", record.ID, models.Metadata{
		"amount":     money.Format(p.amount),
		"commission": money.Format(p.commission),
		"account_id": source.ID,
	}); err != nil {
		return OperationResult{}, err
	}
	return OperationResult{Transaction: record, Balances: changes}, nil
}

// postingTime stamps a new transaction strictly after the latest closure.
// Reading the closure timeline here puts every posting in conflict with a
// concurrent closure under SERIALIZABLE, so one of the two is retried and no
// row can fall between two periods.
func (s *LedgerService) postingTime(ctx context.Context, q store.Getter) (time.Time, error) {
	now := s.now().UTC()
	latest, err := s.closures.Latest(ctx, q)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return now, nil
	case err != nil:
		return time.Time{}, err
	}
	if closing := latest.ClosingDate.UTC(); !now.After(closing) {
		now = closing.Add(time.Microsecond)
	}
	return now, nil
}

// run executes fn as one unit of work and, after commit, logs and broadcasts
// the resulting balances.
func (s *LedgerService) run(ctx context.Context, actorID string, fn func(tx *sqlx.Tx) (OperationResult, error)) (OperationResult, error) {
	var result OperationResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		r, err := fn(tx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return OperationResult{}, err
	}
	s.logger.Info("ledger operation committed",
		zap.String("transaction_id", result.Transaction.ID),
		zap.String("type", string(result.Transaction.Type)),
		zap.String("amount", money.Format(result.Transaction.Amount)),
		zap.String("status", string(result.Transaction.Status)),
		zap.String("actor_id", actorID),
	)
	s.broadcast(actorID, result.Transaction.ID, result.Balances)
	return result, nil
}

type OperationRequest struct {
	UserID        string
	BranchID      *string
	Type          models.TransactionType
	BankAccountID string
	CashAccountID string
	Amount        decimal.Decimal
	Commission    decimal.Decimal
	Description   string
	Client        ClientInfo
}

// CreateOperation records a counter operation between a bank (or platform)
// account and a physical till.
func (s *LedgerService) CreateOperation(ctx context.Context, req OperationRequest) (OperationResult, error) {
	if !req.Type.IsClientOperation() {
		return OperationResult{}, fmt.Errorf("%w: %s", ErrInvalidOperationType, req.Type)
	}
	if err := validateAmount(req.Amount); err != nil {
		return OperationResult{}, err
	}
	if err := validateCommission(req.Commission); err != nil {
		return OperationResult{}, err
	}
	if req.BankAccountID == "" {
		return OperationResult{}, fmt.Errorf("%w: bank account", ErrMissingAccount)
	}
	return s.run(ctx, req.UserID, func(tx *sqlx.Tx) (OperationResult, error) {
		if _, err := s.activeUser(ctx, tx, req.UserID); err != nil {
			return OperationResult{}, err
		}
		if err := s.checkBranch(ctx, tx, req.BranchID); err != nil {
			return OperationResult{}, err
		}
		cashID, err := s.resolveCashAccount(ctx, tx, req.CashAccountID, req.UserID, req.BranchID)
		if err != nil {
			return OperationResult{}, err
		}
		return s.post(ctx, tx, posting{
			actorID:     req.UserID,
			branchID:    req.BranchID,
			txType:      req.Type,
			amount:      req.Amount,
			commission:  req.Commission,
			sourceID:    req.BankAccountID,
			destID:      cashID,
			description: req.Description,
			metadata:    req.Client.metadata(),
			check: func(bank models.Account, cash *models.Account) error {
				if bank.Kind != models.KindBank && bank.Kind != models.KindPlatform {
					return fmt.Errorf("%w: %s is %s", ErrInvalidAccountKind, bank.Name, bank.Kind)
				}
				if cash.Kind != models.KindPhysical {
					return fmt.Errorf("%w: %s is %s", ErrInvalidAccountKind, cash.Name, cash.Kind)
				}
				return nil
			},
		})
	})
}

type RebalanceRequest struct {
	UserID               string
	BranchID             *string
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	Description          string
	Client               ClientInfo
}

// Rebalance moves money between two internal accounts.
func (s *LedgerService) Rebalance(ctx context.Context, req RebalanceRequest) (OperationResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return OperationResult{}, err
	}
	if req.SourceAccountID == "" || req.DestinationAccountID == "" {
		return OperationResult{}, ErrMissingAccount
	}
	if req.SourceAccountID == req.DestinationAccountID {
		return OperationResult{}, ErrSameAccount
	}
	return s.run(ctx, req.UserID, func(tx *sqlx.Tx) (OperationResult, error) {
		if _, err := s.activeUser(ctx, tx, req.UserID); err != nil {
			return OperationResult{}, err
		}
		if err := s.checkBranch(ctx, tx, req.BranchID); err != nil {
			return OperationResult{}, err
		}
		return s.post(ctx, tx, posting{
			actorID:     req.UserID,
			branchID:    req.BranchID,
			txType:      models.TypeInternalTransfer,
			amount:      req.Amount,
			sourceID:    req.SourceAccountID,
			destID:      req.DestinationAccountID,
			description: req.Description,
			metadata:    req.Client.metadata(),
		})
	})
}

type InjectCapitalRequest struct {
	UserID      string
	BranchID    *string
	AccountID   string
	Amount      decimal.Decimal
	FundSource  string
	Description string
	Client      ClientInfo
}

// InjectCapital adds external money to an account. The receiving account is
// stored as the transaction's source account.
func (s *LedgerService) InjectCapital(ctx context.Context, req InjectCapitalRequest) (OperationResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return OperationResult{}, err
	}
	if req.AccountID == "" {
		return OperationResult{}, ErrMissingAccount
	}
	return s.run(ctx, req.UserID, func(tx *sqlx.Tx) (OperationResult, error) {
		if _, err := s.activeUser(ctx, tx, req.UserID); err != nil {
			return OperationResult{}, err
		}
		if err := s.checkBranch(ctx, tx, req.BranchID); err != nil {
			return OperationResult{}, err
		}
		meta := req.Client.metadata()
		if req.FundSource != "" {
			meta = meta.With("fund_source", req.FundSource)
		}
		return s.post(ctx, tx, posting{
			actorID:     req.UserID,
			branchID:    req.BranchID,
			txType:      models.TypeCapitalInjection,
			amount:      req.Amount,
			sourceID:    req.AccountID,
			description: req.Description,
			metadata:    meta,
		})
	})
}

type ExpenseRequest struct {
	UserID      string
	BranchID    *string
	AccountID   string
	Type        models.TransactionType
	Amount      decimal.Decimal
	Category    string
	Description string
	Client      ClientInfo
}

// RegisterExpense debits an expense, payroll or purchase from one account.
// Without an explicit account the acting user's till is used.
func (s *LedgerService) RegisterExpense(ctx context.Context, req ExpenseRequest) (OperationResult, error) {
	txType := req.Type
	if txType == "" {
		txType = models.TypeExpense
	}
	if !txType.IsExpense() {
		return OperationResult{}, fmt.Errorf("%w: %s", ErrInvalidOperationType, txType)
	}
	if err := validateAmount(req.Amount); err != nil {
		return OperationResult{}, err
	}
	return s.run(ctx, req.UserID, func(tx *sqlx.Tx) (OperationResult, error) {
		if _, err := s.activeUser(ctx, tx, req.UserID); err != nil {
			return OperationResult{}, err
		}
		if err := s.checkBranch(ctx, tx, req.BranchID); err != nil {
			return OperationResult{}, err
		}
		accountID := req.AccountID
		if accountID == "" {
			resolved, err := s.resolveCashAccount(ctx, tx, "", req.UserID, req.BranchID)
			if err != nil {
				return OperationResult{}, err
			}
			accountID = resolved
		}
		meta := req.Client.metadata()
		if req.Category != "" {
			meta = meta.With("category", req.Category)
		}
		return s.post(ctx, tx, posting{
			actorID:     req.UserID,
			branchID:    req.BranchID,
			txType:      txType,
			amount:      req.Amount,
			sourceID:    accountID,
			description: req.Description,
			metadata:    meta,
		})
	})
}
