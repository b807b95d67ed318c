package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cashledger/internal/models"
	"cashledger/internal/money"
	"cashledger/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ClosurePreview is the aggregate of the open period.
type ClosurePreview struct {
	StartDate        time.Time                                  `json:"startDate"`
	EndDate          time.Time                                  `json:"endDate"`
	TotalIncome      decimal.Decimal                            `json:"totalIncome"`
	TotalExpense     decimal.Decimal                            `json:"totalExpense"`
	NetResult        decimal.Decimal                            `json:"netResult"`
	TransactionCount int                                        `json:"transactionCount"`
	ByType           map[models.TransactionType]decimal.Decimal `json:"byType"`
	LastClosure      *models.PeriodClosure                      `json:"lastClosure,omitempty"`
}

// Preview aggregates the period since the last closure. It writes nothing.
func (s *LedgerService) Preview(ctx context.Context) (ClosurePreview, error) {
	return s.preview(ctx, s.reader)
}

func (s *LedgerService) preview(ctx context.Context, q store.Querier) (ClosurePreview, error) {
	out := ClosurePreview{
		StartDate:    time.Unix(0, 0).UTC(),
		EndDate:      s.now().UTC(),
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		ByType:       map[models.TransactionType]decimal.Decimal{},
	}
	latest, err := s.closures.Latest(ctx, q)
	switch {
	case err == nil:
		out.StartDate = latest.ClosingDate.UTC()
		out.LastClosure = &latest
	case !errors.Is(err, sql.ErrNoRows):
		return ClosurePreview{}, err
	}

	totals, err := s.transactions.SumByTypeSince(ctx, q, out.StartDate)
	if err != nil {
		return ClosurePreview{}, err
	}
	for _, total := range totals {
		out.TransactionCount += total.Count
		out.ByType[total.Type] = total.Total
		switch {
		case total.Type.IsIncome():
			out.TotalIncome = out.TotalIncome.Add(total.Total)
		case total.Type.IsExpense():
			out.TotalExpense = out.TotalExpense.Add(total.Total)
		}
	}
	out.NetResult = out.TotalIncome.Sub(out.TotalExpense)
	return out, nil
}

type ClosureRequest struct {
	UserID               string
	Notes                string
	CapitalizeAmount     decimal.Decimal
	SourceAccountID      string
	DestinationAccountID string
	Client               ClientInfo
}

type ClosureResult struct {
	Closure        models.PeriodClosure `json:"closure"`
	Capitalization *OperationResult     `json:"capitalization,omitempty"`
}

// PerformClosure closes the open period, optionally withdrawing part of the
// profit as a utility_withdrawal between two accounts.
func (s *LedgerService) PerformClosure(ctx context.Context, req ClosureRequest) (ClosureResult, error) {
	capitalize := req.CapitalizeAmount
	if capitalize.IsNegative() {
		return ClosureResult{}, ErrInvalidAmount
	}
	if capitalize.IsPositive() {
		if err := validateAmount(capitalize); err != nil {
			return ClosureResult{}, err
		}
	}

	var result ClosureResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = ClosureResult{}
		if _, err := s.activeUser(ctx, tx, req.UserID); err != nil {
			return err
		}
		if err := s.closures.LockTimeline(ctx, tx); err != nil {
			return err
		}
		period, err := s.preview(ctx, tx)
		if err != nil {
			return err
		}

		if capitalize.IsPositive() {
			if capitalize.GreaterThan(period.NetResult) {
				return ErrCapitalizationExceedsProfit
			}
			if req.SourceAccountID == "" || req.DestinationAccountID == "" {
				return ErrCapitalizationAccountsRequired
			}
			moved, err := s.post(ctx, tx, posting{
				actorID:     req.UserID,
				txType:      models.TypeUtilityWithdrawal,
				amount:      capitalize,
				sourceID:    req.SourceAccountID,
				destID:      req.DestinationAccountID,
				description: "Profit capitalization",
				metadata:    req.Client.metadata(),
			})
			if err != nil {
				return err
			}
			result.Capitalization = &moved
		}

		closing := s.now().UTC()
		if !closing.After(period.StartDate) {
			closing = period.StartDate.Add(time.Microsecond)
		}
		if result.Capitalization != nil && !closing.After(result.Capitalization.Transaction.CreatedAt) {
			closing = result.Capitalization.Transaction.CreatedAt.Add(time.Microsecond)
		}
		closure := models.PeriodClosure{
			ID:                newID(),
			ClosingDate:       closing,
			StartDate:         period.StartDate,
			TotalIncome:       period.TotalIncome,
			TotalExpense:      period.TotalExpense,
			NetResult:         period.NetResult,
			CapitalizedAmount: capitalize,
			CarriedOverAmount: period.NetResult.Sub(capitalize),
			Notes:             req.Notes,
			UserID:            req.UserID,
		}
		if err := s.closures.Create(ctx, tx, closure); err != nil {
			return err
		}
		if err := s.audit.Log(ctx, tx, req.UserID, "period_closure", "period_closure", closure.ID, models.Metadata{
			"net_result":  money.Format(closure.NetResult),
			"capitalized": money.Format(closure.CapitalizedAmount),
			"carried":     money.Format(closure.CarriedOverAmount),
		}); err != nil {
			return err
		}
		result.Closure = closure
		return nil
	})
	if err != nil {
		return ClosureResult{}, err
	}

	s.logger.Info("period closed",
		zap.String("closure_id", result.Closure.ID),
		zap.Time("start", result.Closure.StartDate),
		zap.Time("closing", result.Closure.ClosingDate),
		zap.String("net_result", money.Format(result.Closure.NetResult)),
		zap.String("capitalized", money.Format(result.Closure.CapitalizedAmount)),
		zap.String("actor_id", req.UserID),
	)
	if result.Capitalization != nil {
		s.broadcast(req.UserID, result.Capitalization.Transaction.ID, result.Capitalization.Balances)
	}
	return result, nil
}
