package services

import (
	"context"
	"fmt"

	"cashledger/internal/models"
	"cashledger/internal/money"
	"cashledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	CountBalanced = "balanced"
	CountShortage = "shortage"
	CountSurplus  = "surplus"

	defaultCountHistory = 10
	maxCountHistory     = 100
)

type CashCountRequest struct {
	UserID    string
	BranchID  *string
	AccountID string
	Reported  decimal.Decimal
	Comments  string
}

type CashCountResult struct {
	CashCount models.CashCount `json:"cashCount"`
	Status    string           `json:"status"`
	Message   string           `json:"message"`
}

// PerformCashCount compares a physically counted amount with the system
// balance of the account. Balances are never adjusted.
func (s *LedgerService) PerformCashCount(ctx context.Context, req CashCountRequest) (CashCountResult, error) {
	if req.AccountID == "" {
		return CashCountResult{}, ErrMissingAccount
	}
	if req.Reported.IsNegative() {
		return CashCountResult{}, fmt.Errorf("%w: reported amount must not be negative", ErrInvalidAmount)
	}
	if !req.Reported.Equal(req.Reported.Truncate(money.Scale)) {
		return CashCountResult{}, fmt.Errorf("%w: %s", ErrInvalidAmount, money.ErrTooManyDecimals)
	}

	var count models.CashCount
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.activeUser(ctx, tx, req.UserID); err != nil {
			return err
		}
		if err := s.checkBranch(ctx, tx, req.BranchID); err != nil {
			return err
		}
		locked, err := s.lockAccountRows(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		account := locked[req.AccountID]
		count = models.CashCount{
			ID:              newID(),
			CreatedAt:       s.now().UTC(),
			ExpectedBalance: account.Balance,
			ReportedBalance: req.Reported,
			Difference:      req.Reported.Sub(account.Balance),
			Comments:        req.Comments,
			UserID:          req.UserID,
			BranchID:        branchOrNil(req.BranchID),
			AccountID:       account.ID,
		}
		if err := s.cashCounts.Create(ctx, tx, count); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.UserID, "cash_count", "account", account.ID, models.Metadata{
			"expected":   money.Format(count.ExpectedBalance),
			"reported":   money.Format(count.ReportedBalance),
			"difference": money.Format(count.Difference),
		})
	})
	if err != nil {
		return CashCountResult{}, err
	}

	status, message := describeDifference(count.Difference)
	s.logger.Info("cash count recorded",
		zap.String("cash_count_id", count.ID),
		zap.String("account_id", count.AccountID),
		zap.String("difference", money.Format(count.Difference)),
		zap.String("status", status),
	)
	return CashCountResult{CashCount: count, Status: status, Message: message}, nil
}

func describeDifference(diff decimal.Decimal) (string, string) {
	switch {
	case diff.IsNegative():
		return CountShortage, fmt.Sprintf("cash shortage of %s", money.Format(diff.Abs()))
	case diff.IsPositive():
		return CountSurplus, fmt.Sprintf("cash surplus of %s", money.Format(diff))
	default:
		return CountBalanced, "cash count is balanced"
	}
}

func (s *LedgerService) ListCashCounts(ctx context.Context, limit int) ([]store.CashCountView, error) {
	if limit <= 0 {
		limit = defaultCountHistory
	}
	if limit > maxCountHistory {
		limit = maxCountHistory
	}
	rows, err := s.cashCounts.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []store.CashCountView{}
	}
	return rows, nil
}
