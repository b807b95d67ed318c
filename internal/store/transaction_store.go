package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cashledger/internal/models"

	"github.com/shopspring/decimal"
)

type TransactionStore struct {
	db DB
}

// HistoryFilter narrows the transaction history. Zero values mean "any".
type HistoryFilter struct {
	UserID    string
	BranchID  string
	AccountID string
	Type      models.TransactionType
	Status    models.TransactionStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// TypeTotal is the aggregate of completed transactions of one type.
type TypeTotal struct {
	Type  models.TransactionType `db:"type"`
	Total decimal.Decimal        `db:"total"`
	Count int                    `db:"count"`
}

const transactionColumns = `id, created_at, type, amount, commission, description, status, user_id,
	branch_id, account_id, destination_account_id, metadata`

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(ctx context.Context, tx Execer, t models.Transaction) error {
	query := `
		INSERT INTO transactions (id, created_at, type, amount, commission, description, status, user_id,
		                          branch_id, account_id, destination_account_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := tx.ExecContext(ctx, query,
		t.ID, t.CreatedAt, t.Type, t.Amount, t.Commission, t.Description, t.Status, t.UserID,
		t.BranchID, t.AccountID, t.DestinationAccountID, t.Metadata,
	)
	return err
}

func (s *TransactionStore) GetForUpdate(ctx context.Context, tx Getter, transactionID string) (models.Transaction, error) {
	var row models.Transaction
	err := tx.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, transactionID)
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

func (s *TransactionStore) MarkAnnulled(ctx context.Context, tx Execer, transactionID, description string, metadata models.Metadata) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, description = $2, metadata = $3
		WHERE id = $4
	`, models.TxAnnulled, description, metadata, transactionID)
	return err
}

// SumByTypeSince aggregates completed transactions created strictly after since.
func (s *TransactionStore) SumByTypeSince(ctx context.Context, q Selecter, since time.Time) ([]TypeTotal, error) {
	var rows []TypeTotal
	err := q.SelectContext(ctx, &rows, `
		SELECT type, COALESCE(SUM(amount), 0) AS total, COUNT(1) AS count
		FROM transactions
		WHERE created_at > $1 AND status = $2
		GROUP BY type
	`, since, models.TxCompleted)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) List(ctx context.Context, filter HistoryFilter) ([]models.TransactionView, int, error) {
	where, args := buildHistoryWhere(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM transactions t`+where, args...); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT t.id, t.created_at, t.type, t.amount, t.commission, t.description, t.status, t.user_id,
		       t.branch_id, t.account_id, t.destination_account_id, t.metadata,
		       u.username, b.name AS branch_name, a.name AS account_name, d.name AS destination_account_name
		FROM transactions t
		LEFT JOIN users u ON u.id = t.user_id
		LEFT JOIN branches b ON b.id = t.branch_id
		LEFT JOIN accounts a ON a.id = t.account_id
		LEFT JOIN accounts d ON d.id = t.destination_account_id` + where +
		fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	var rows []models.TransactionView
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func buildHistoryWhere(filter HistoryFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}
	if filter.UserID != "" {
		add("t.user_id = ?", filter.UserID)
	}
	if filter.BranchID != "" {
		add("t.branch_id = ?", filter.BranchID)
	}
	if filter.AccountID != "" {
		add("(t.account_id = ? OR t.destination_account_id = ?)", filter.AccountID)
	}
	if filter.Type != "" {
		add("t.type = ?", filter.Type)
	}
	if filter.Status != "" {
		add("t.status = ?", filter.Status)
	}
	if filter.StartDate != nil {
		add("t.created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("t.created_at <= ?", *filter.EndDate)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
