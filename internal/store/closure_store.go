package store

import (
	"context"

	"cashledger/internal/models"
)

// closureTimelineLock is the pg_advisory_xact_lock key that serialises
// period closures.
const closureTimelineLock int64 = 0x636c6f73

type ClosureStore struct {
	db DB
}

const closureColumns = `id, closing_date, start_date, total_income, total_expense, net_result,
	capitalized_amount, carried_over_amount, notes, user_id`

func NewClosureStore(db DB) *ClosureStore {
	return &ClosureStore{db: db}
}

// LockTimeline blocks until no other closure is in flight. The lock is
// released when the surrounding transaction ends.
func (s *ClosureStore) LockTimeline(ctx context.Context, tx Execer) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, closureTimelineLock)
	return err
}

// Latest returns sql.ErrNoRows when no closure exists yet.
func (s *ClosureStore) Latest(ctx context.Context, q Getter) (models.PeriodClosure, error) {
	var row models.PeriodClosure
	err := q.GetContext(ctx, &row, `
		SELECT `+closureColumns+`
		FROM period_closures
		ORDER BY closing_date DESC
		LIMIT 1
	`)
	if err != nil {
		return models.PeriodClosure{}, err
	}
	return row, nil
}

func (s *ClosureStore) Create(ctx context.Context, tx Execer, c models.PeriodClosure) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO period_closures (id, closing_date, start_date, total_income, total_expense, net_result,
		                             capitalized_amount, carried_over_amount, notes, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.ClosingDate, c.StartDate, c.TotalIncome, c.TotalExpense, c.NetResult,
		c.CapitalizedAmount, c.CarriedOverAmount, c.Notes, c.UserID)
	return err
}
