package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cashledger/internal/models"
	"cashledger/internal/money"

	"github.com/jmoiron/sqlx"
)

type AnnulRequest struct {
	TransactionID string
	UserID        string
	Reason        string
	Client        ClientInfo
}

// Annul reverses a completed transaction by applying the inverse of its
// effect. COMPLETED -> ANNULLED is the only transition and it is terminal.
func (s *LedgerService) Annul(ctx context.Context, req AnnulRequest) (OperationResult, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return OperationResult{}, ErrReasonRequired
	}
	if req.TransactionID == "" {
		return OperationResult{}, ErrTransactionNotFound
	}
	return s.run(ctx, req.UserID, func(tx *sqlx.Tx) (OperationResult, error) {
		actor, err := s.activeUser(ctx, tx, req.UserID)
		if err != nil {
			return OperationResult{}, err
		}
		if !actor.Role.CanAnnul() {
			return OperationResult{}, fmt.Errorf("%w: %s cannot annul transactions", ErrForbidden, actor.Role)
		}

		original, err := s.transactions.GetForUpdate(ctx, tx, req.TransactionID)
		if errors.Is(err, sql.ErrNoRows) {
			return OperationResult{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, req.TransactionID)
		}
		if err != nil {
			return OperationResult{}, err
		}
		switch original.Status {
		case models.TxAnnulled:
			return OperationResult{}, ErrAlreadyAnnulled
		case models.TxCompleted:
		default:
			return OperationResult{}, fmt.Errorf("%w: %s", ErrNotAnnullable, original.Status)
		}

		eff, err := effectOf(original.Type)
		if err != nil {
			return OperationResult{}, err
		}
		if !eff.reversible {
			return OperationResult{}, fmt.Errorf("%w: %s", ErrNotReversible, original.Type)
		}

		destID := ""
		if original.DestinationAccountID != nil {
			destID = *original.DestinationAccountID
		}
		locked, err := s.lockAccountRows(ctx, tx, original.AccountID, destID)
		if err != nil {
			return OperationResult{}, err
		}
		source := locked[original.AccountID]
		var dest *models.Account
		if destID != "" {
			d := locked[destID]
			dest = &d
		}

		changes, err := applyLegs(eff.inverse(), &source, dest, original.Amount, original.Commission, ErrInsufficientFundsForReversal)
		if err != nil {
			return OperationResult{}, err
		}
		if err := s.saveBalances(ctx, tx, changes); err != nil {
			return OperationResult{}, err
		}

		at := s.now().UTC().Format(time.RFC3339)
		description := fmt.Sprintf("%s | ANNULLED by %s (%s) at %s: %s", original.Description, actor.Username, actor.ID, at, reason)
		metadata := original.Metadata.With(
			"annulled_by", actor.ID,
			"annulled_at", at,
			"annul_reason", reason,
		)
		for k, v := range req.Client.metadata() {
			metadata = metadata.With("annul_"+k, v)
		}
		metadata = balanceMetadata(metadata, "reversal", changes)
		if err := s.transactions.MarkAnnulled(ctx, tx, original.ID, description, metadata); err != nil {
			return OperationResult{}, err
		}
		if err := s.audit.Log(ctx, tx, actor.ID, "annul", "transaction", original.ID, models.Metadata{
			"type":   string(original.Type),
			"amount": money.Format(original.Amount),
			"reason": reason,
		}); err != nil {
			return OperationResult{}, err
		}

		original.Status = models.TxAnnulled
		original.Description = description
		original.Metadata = metadata
		return OperationResult{Transaction: original, Balances: changes}, nil
	})
}
