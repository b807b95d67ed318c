package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"cashledger/internal/models"
	"cashledger/internal/money"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type LoanRequest struct {
	UserID        string
	BranchID      *string
	CashAccountID string
	DebtorName    string
	Amount        decimal.Decimal
	Description   string
	Client        ClientInfo
}

type DebtResult struct {
	Debt models.Debt `json:"debt"`
	OperationResult
}

// CreateLoan lends cash from a till and opens a pending debt for the debtor.
func (s *LedgerService) CreateLoan(ctx context.Context, req LoanRequest) (DebtResult, error) {
	debtor := strings.TrimSpace(req.DebtorName)
	if debtor == "" {
		return DebtResult{}, ErrDebtorNameRequired
	}
	if err := validateAmount(req.Amount); err != nil {
		return DebtResult{}, err
	}
	var debt models.Debt
	result, err := s.run(ctx, req.UserID, func(tx *sqlx.Tx) (OperationResult, error) {
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

		now := s.now().UTC()
		debt = models.Debt{
			ID:             newID(),
			DebtorName:     debtor,
			Description:    req.Description,
			OriginalAmount: req.Amount,
			CurrentBalance: req.Amount,
			Status:         models.DebtPending,
			CreatedBy:      req.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		description := req.Description
		if description == "" {
			description = "Loan to " + debtor
		}
		out, err := s.post(ctx, tx, posting{
			actorID:     req.UserID,
			branchID:    req.BranchID,
			txType:      models.TypeLoanGiven,
			amount:      req.Amount,
			sourceID:    cashID,
			description: description,
			metadata:    req.Client.metadata().With("debt_id", debt.ID, "debtor_name", debtor),
		})
		if err != nil {
			return OperationResult{}, err
		}
		if err := s.debts.Create(ctx, tx, debt); err != nil {
			return OperationResult{}, err
		}
		return out, nil
	})
	if err != nil {
		return DebtResult{}, err
	}
	return DebtResult{Debt: debt, OperationResult: result}, nil
}

type PaymentRequest struct {
	UserID        string
	BranchID      *string
	CashAccountID string
	DebtID        string
	Amount        decimal.Decimal
	Client        ClientInfo
}

// PayDebt records a repayment into a till. The debt flips to PAID when the
// outstanding balance reaches exactly zero; paying more is rejected.
func (s *LedgerService) PayDebt(ctx context.Context, req PaymentRequest) (DebtResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return DebtResult{}, err
	}
	if req.DebtID == "" {
		return DebtResult{}, ErrDebtNotFound
	}
	var debt models.Debt
	result, err := s.run(ctx, req.UserID, func(tx *sqlx.Tx) (OperationResult, error) {
		if _, err := s.activeUser(ctx, tx, req.UserID); err != nil {
			return OperationResult{}, err
		}
		if err := s.checkBranch(ctx, tx, req.BranchID); err != nil {
			return OperationResult{}, err
		}
		current, err := s.debts.GetForUpdate(ctx, tx, req.DebtID)
		if errors.Is(err, sql.ErrNoRows) {
			return OperationResult{}, fmt.Errorf("%w: %s", ErrDebtNotFound, req.DebtID)
		}
		if err != nil {
			return OperationResult{}, err
		}
		if current.Status == models.DebtPaid {
			return OperationResult{}, ErrDebtAlreadyPaid
		}
		if req.Amount.GreaterThan(current.CurrentBalance) {
			return OperationResult{}, fmt.Errorf("%w: outstanding %s", ErrOverpaymentRejected, money.Format(current.CurrentBalance))
		}

		cashID, err := s.resolveCashAccount(ctx, tx, req.CashAccountID, req.UserID, req.BranchID)
		if err != nil {
			return OperationResult{}, err
		}

		remaining := current.CurrentBalance.Sub(req.Amount)
		status := models.DebtPending
		if !remaining.IsPositive() {
			remaining = decimal.Zero
			status = models.DebtPaid
		}
		if err := s.debts.UpdateBalance(ctx, tx, current.ID, remaining, status); err != nil {
			return OperationResult{}, err
		}
		out, err := s.post(ctx, tx, posting{
			actorID:     req.UserID,
			branchID:    req.BranchID,
			txType:      models.TypeDebtPayment,
			amount:      req.Amount,
			sourceID:    cashID,
			description: "Payment from " + current.DebtorName,
			metadata: req.Client.metadata().With(
				"debt_id", current.ID,
				"debtor_name", current.DebtorName,
				"debt_balance_after", money.Format(remaining),
			),
		})
		if err != nil {
			return OperationResult{}, err
		}
		current.CurrentBalance = remaining
		current.Status = status
		current.UpdatedAt = s.now().UTC()
		debt = current
		return out, nil
	})
	if err != nil {
		return DebtResult{}, err
	}
	return DebtResult{Debt: debt, OperationResult: result}, nil
}

func (s *LedgerService) ListPendingDebts(ctx context.Context) ([]models.Debt, error) {
	debts, err := s.debts.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if debts == nil {
		debts = []models.Debt{}
	}
	return debts, nil
}
