package store

import (
	"context"

	"cashledger/internal/models"
)

type BranchStore struct {
	db DB
}

func NewBranchStore(db DB) *BranchStore {
	return &BranchStore{db: db}
}

func (s *BranchStore) Create(ctx context.Context, tx Execer, branch models.Branch) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO branches (id, name, address, is_active)
		VALUES ($1, $2, $3, $4)
	`, branch.ID, branch.Name, branch.Address, branch.IsActive)
	return err
}

func (s *BranchStore) GetByID(ctx context.Context, q Getter, branchID string) (models.Branch, error) {
	var row models.Branch
	err := q.GetContext(ctx, &row, `
		SELECT id, name, address, is_active, created_at
		FROM branches
		WHERE id = $1
	`, branchID)
	if err != nil {
		return models.Branch{}, err
	}
	return row, nil
}

func (s *BranchStore) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM branches WHERE name = $1`, name)
	return count > 0, err
}

func (s *BranchStore) List(ctx context.Context) ([]models.Branch, error) {
	var rows []models.Branch
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, address, is_active, created_at
		FROM branches
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *BranchStore) Lookup(ctx context.Context, branchID string) (models.Branch, error) {
	return s.GetByID(ctx, s.db, branchID)
}
