package report

import (
	"bytes"
	"testing"
	"time"

	"cashledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteHistoryXLSX(t *testing.T) {
	user := "cajero"
	account := "Caja 1"
	rows := []models.TransactionView{
		{
			Transaction: models.Transaction{
				ID:         "tx-1",
				CreatedAt:  time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC),
				Type:       models.TypeDeposit,
				Status:     models.TxCompleted,
				Amount:     decimal.RequireFromString("100.5"),
				Commission: decimal.Zero,
			},
			Username:    &user,
			AccountName: &account,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHistoryXLSX(&buf, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, []string{historySheet}, f.GetSheetList())
	got, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Date", got[0][0])
	require.Equal(t, "2026-05-01 08:30:00", got[1][0])
	require.Equal(t, "deposit", got[1][1])
	require.Equal(t, "100.50", got[1][3])
	require.Equal(t, "0.00", got[1][4])
	require.Equal(t, "cajero", got[1][6])
	require.Equal(t, "Caja 1", got[1][8])
	require.Equal(t, "tx-1", got[1][10])
}

func TestWriteHistoryXLSXEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryXLSX(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	got, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
