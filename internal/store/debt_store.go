package store

import (
	"context"

	"cashledger/internal/models"

	"github.com/shopspring/decimal"
)

type DebtStore struct {
	db DB
}

const debtColumns = `id, debtor_name, description, original_amount, current_balance, status, created_by, created_at, updated_at`

func NewDebtStore(db DB) *DebtStore {
	return &DebtStore{db: db}
}

func (s *DebtStore) Create(ctx context.Context, tx Execer, debt models.Debt) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO debts (id, debtor_name, description, original_amount, current_balance, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, debt.ID, debt.DebtorName, debt.Description, debt.OriginalAmount, debt.CurrentBalance, debt.Status,
		debt.CreatedBy, debt.CreatedAt, debt.UpdatedAt)
	return err
}

func (s *DebtStore) GetForUpdate(ctx context.Context, tx Getter, debtID string) (models.Debt, error) {
	var row models.Debt
	err := tx.GetContext(ctx, &row, `SELECT `+debtColumns+` FROM debts WHERE id = $1 FOR UPDATE`, debtID)
	if err != nil {
		return models.Debt{}, err
	}
	return row, nil
}

func (s *DebtStore) UpdateBalance(ctx context.Context, tx Execer, debtID string, balance decimal.Decimal, status models.DebtStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE debts
		SET current_balance = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, balance, status, debtID)
	return err
}

func (s *DebtStore) ListPending(ctx context.Context) ([]models.Debt, error) {
	var rows []models.Debt
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+debtColumns+`
		FROM debts
		WHERE status = $1
		ORDER BY created_at DESC
	`, models.DebtPending)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
