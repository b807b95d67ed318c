package services

import (
	"context"
	"fmt"

	"cashledger/internal/models"
	"cashledger/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	exportLimit         = 10000
)

type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type HistoryPage struct {
	Transactions []models.TransactionView `json:"transactions"`
	Pagination   Pagination               `json:"pagination"`
}

// History lists transactions newest first.
func (s *LedgerService) History(ctx context.Context, filter store.HistoryFilter) (HistoryPage, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return HistoryPage{}, err
	}
	rows, total, err := s.transactions.List(ctx, filter)
	if err != nil {
		return HistoryPage{}, err
	}
	if rows == nil {
		rows = []models.TransactionView{}
	}
	return HistoryPage{
		Transactions: rows,
		Pagination:   Pagination{Total: total, Limit: filter.Limit, Offset: filter.Offset},
	}, nil
}

// ExportHistory returns every row matching the filter, ignoring pagination, up
// to a fixed ceiling.
func (s *LedgerService) ExportHistory(ctx context.Context, filter store.HistoryFilter) ([]models.TransactionView, error) {
	filter.Limit = exportLimit
	filter.Offset = 0
	if err := checkDateRange(filter); err != nil {
		return nil, err
	}
	rows, _, err := s.transactions.List(ctx, filter)
	return rows, err
}

func normalizeFilter(filter store.HistoryFilter) (store.HistoryFilter, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultHistoryLimit
	}
	if filter.Limit > maxHistoryLimit {
		filter.Limit = maxHistoryLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Type != "" {
		if _, ok := models.ParseTransactionType(string(filter.Type)); !ok {
			return filter, fmt.Errorf("%w: %s", ErrInvalidOperationType, filter.Type)
		}
	}
	return filter, checkDateRange(filter)
}

func checkDateRange(filter store.HistoryFilter) error {
	if filter.StartDate != nil && filter.EndDate != nil && filter.StartDate.After(*filter.EndDate) {
		return ErrInvalidDateRange
	}
	return nil
}
