package store

import (
	"context"

	"cashledger/internal/models"
)

type CashCountStore struct {
	db DB
}

// CashCountView is a cash count joined with the user and account names.
type CashCountView struct {
	models.CashCount
	Username    *string `db:"username" json:"username,omitempty"`
	AccountName *string `db:"account_name" json:"accountName,omitempty"`
}

func NewCashCountStore(db DB) *CashCountStore {
	return &CashCountStore{db: db}
}

func (s *CashCountStore) Create(ctx context.Context, tx Execer, c models.CashCount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cash_counts (id, created_at, expected_balance, reported_balance, difference, comments,
		                         user_id, branch_id, account_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.CreatedAt, c.ExpectedBalance, c.ReportedBalance, c.Difference, c.Comments,
		c.UserID, c.BranchID, c.AccountID)
	return err
}

func (s *CashCountStore) ListRecent(ctx context.Context, limit int) ([]CashCountView, error) {
	var rows []CashCountView
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.created_at, c.expected_balance, c.reported_balance, c.difference, c.comments,
		       c.user_id, c.branch_id, c.account_id, u.username, a.name AS account_name
		FROM cash_counts c
		LEFT JOIN users u ON u.id = c.user_id
		LEFT JOIN accounts a ON a.id = c.account_id
		ORDER BY c.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
