package store

import (
	"context"

	"cashledger/internal/models"
)

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

// CashierRow is a user joined with its branch name for admin listings.
type CashierRow struct {
	models.User
	BranchName *string `db:"branch_name" json:"branchName"`
}

const userColumns = `id, username, password_hash, role, status, branch_id, created_at`

func (s *UserStore) Create(ctx context.Context, tx Execer, user models.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, role, status, branch_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query, user.ID, user.Username, user.PasswordHash, user.Role, user.Status, user.BranchID)
	return err
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) GetByID(ctx context.Context, q Getter, userID string) (models.User, error) {
	var row models.User
	err := q.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err != nil {
		return models.User{}, err
	}
	return row, nil
}

func (s *UserStore) ListCashiers(ctx context.Context, branchID string) ([]CashierRow, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, u.role, u.status, u.branch_id, u.created_at,
		       b.name AS branch_name
		FROM users u
		LEFT JOIN branches b ON b.id = u.branch_id
		WHERE u.role = 'cashier'
	`
	args := []any{}
	if branchID != "" {
		query += " AND u.branch_id = $1"
		args = append(args, branchID)
	}
	query += " ORDER BY u.username"
	var rows []CashierRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// Lookup reads a user outside of any unit of work.
func (s *UserStore) Lookup(ctx context.Context, userID string) (models.User, error) {
	return s.GetByID(ctx, s.db, userID)
}
