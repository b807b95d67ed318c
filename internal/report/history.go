// Package report renders transaction history as spreadsheets.
package report

import (
	"fmt"
	"io"

	"cashledger/internal/models"
	"cashledger/internal/money"

	"github.com/xuri/excelize/v2"
)

const historySheet = "Transactions"

var historyHeaders = []string{
	"Date", "Type", "Status", "Amount", "Commission", "Description",
	"User", "Branch", "Account", "Destination account", "Transaction ID",
}

// WriteHistoryXLSX writes one row per transaction, newest first as given.
// Amounts are written as text with two decimals so spreadsheet software does
// not reformat them through floating point.
func WriteHistoryXLSX(w io.Writer, rows []models.TransactionView) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(historySheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	header := make([]any, len(historyHeaders))
	for i, h := range historyHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			row.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			string(row.Type),
			string(row.Status),
			money.Format(row.Amount),
			money.Format(row.Commission),
			row.Description,
			deref(row.Username),
			deref(row.BranchName),
			deref(row.AccountName),
			deref(row.DestinationAccountName),
			row.ID,
		}
		if err := f.SetSheetRow(historySheet, cell, &values); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(historySheet, "A", "A", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(historySheet, "F", "F", 48); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
