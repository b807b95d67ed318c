package store

import (
	"context"

	"cashledger/internal/models"

	"github.com/shopspring/decimal"
)

type AccountStore struct {
	db DB
}

type AccountWithOwner struct {
	models.Account
	OwnerUsername *string `db:"owner_username"`
	BranchName    *string `db:"branch_name"`
}

const accountColumns = `id, name, account_number, kind, balance, bank_name, status, user_id, branch_id, created_at`

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, account models.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (id, name, account_number, kind, balance, bank_name, status, user_id, branch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, account.ID, account.Name, account.AccountNumber, account.Kind, account.Balance, account.BankName,
		account.Status, account.UserID, account.BranchID)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, q Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := q.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

// GetForUpdate reads the account and holds a row lock until the surrounding
// transaction ends.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) UpdateBalance(ctx context.Context, tx Execer, accountID string, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
	`, balance, accountID)
	return err
}

// ListPhysicalByUser returns the user's active physical accounts ordered by
// name so that the cash-account cascade stays deterministic.
func (s *AccountStore) ListPhysicalByUser(ctx context.Context, q Selecter, userID string) ([]models.Account, error) {
	var rows []models.Account
	err := q.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1 AND kind = 'physical' AND status = 'active'
		ORDER BY name, id
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) ListPhysicalByBranch(ctx context.Context, q Selecter, branchID string) ([]models.Account, error) {
	var rows []models.Account
	err := q.SelectContext(ctx, &rows, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE branch_id = $1 AND kind = 'physical' AND status = 'active'
		ORDER BY created_at, id
	`, branchID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) ListAll(ctx context.Context) ([]AccountWithOwner, error) {
	var rows []AccountWithOwner
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id, a.name, a.account_number, a.kind, a.balance, a.bank_name, a.status,
		       a.user_id, a.branch_id, a.created_at,
		       u.username AS owner_username, b.name AS branch_name
		FROM accounts a
		LEFT JOIN users u ON u.id = a.user_id
		LEFT JOIN branches b ON b.id = a.branch_id
		ORDER BY a.kind, a.name
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *AccountStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM accounts WHERE name = $1`, name)
	return count > 0, err
}
