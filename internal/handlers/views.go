package handlers

import (
	"time"

	"cashledger/internal/models"
	"cashledger/internal/money"
	"cashledger/internal/services"
	"cashledger/internal/store"
)

// The functions below turn domain values into response maps. Every amount is
// rendered with money.Format so clients always see two fractional digits.

func transactionView(t models.Transaction) map[string]any {
	metadata := t.Metadata
	if metadata == nil {
		metadata = models.Metadata{}
	}
	return map[string]any{
		"id":                   t.ID,
		"createdAt":            t.CreatedAt,
		"type":                 t.Type,
		"amount":               money.Format(t.Amount),
		"commission":           money.Format(t.Commission),
		"description":          t.Description,
		"status":               t.Status,
		"userId":               t.UserID,
		"branchId":             t.BranchID,
		"accountId":            t.AccountID,
		"destinationAccountId": t.DestinationAccountID,
		"metadata":             metadata,
	}
}

func historyRowView(row models.TransactionView) map[string]any {
	view := transactionView(row.Transaction)
	view["username"] = row.Username
	view["branchName"] = row.BranchName
	view["accountName"] = row.AccountName
	view["destinationAccountName"] = row.DestinationAccountName
	return view
}

func balancesView(changes []services.BalanceChange) []map[string]any {
	out := make([]map[string]any, 0, len(changes))
	for _, change := range changes {
		out = append(out, map[string]any{
			"accountId":       change.AccountID,
			"accountName":     change.AccountName,
			"previousBalance": money.Format(change.Previous),
			"currentBalance":  money.Format(change.Current),
		})
	}
	return out
}

// roleBalancesView keys the balances of a bank/cash operation by role. The
// transaction's source account is the bank side.
func roleBalancesView(result services.OperationResult) map[string]any {
	out := map[string]any{}
	for _, change := range result.Balances {
		role := "cash"
		if change.AccountID == result.Transaction.AccountID {
			role = "bank"
		}
		out[role] = map[string]any{
			"accountId":       change.AccountID,
			"accountName":     change.AccountName,
			"previousBalance": money.Format(change.Previous),
			"currentBalance":  money.Format(change.Current),
			"current":         money.Format(change.Current),
		}
	}
	return out
}

func operationView(result services.OperationResult) map[string]any {
	return map[string]any{
		"success":     true,
		"transaction": transactionView(result.Transaction),
		"balances":    balancesView(result.Balances),
	}
}

func debtView(d models.Debt) map[string]any {
	return map[string]any{
		"id":             d.ID,
		"debtorName":     d.DebtorName,
		"description":    d.Description,
		"originalAmount": money.Format(d.OriginalAmount),
		"currentBalance": money.Format(d.CurrentBalance),
		"status":         d.Status,
		"createdBy":      d.CreatedBy,
		"createdAt":      d.CreatedAt,
		"updatedAt":      d.UpdatedAt,
	}
}

func closureView(c models.PeriodClosure) map[string]any {
	return map[string]any{
		"id":                c.ID,
		"closingDate":       c.ClosingDate,
		"startDate":         c.StartDate,
		"totalIncome":       money.Format(c.TotalIncome),
		"totalExpense":      money.Format(c.TotalExpense),
		"netResult":         money.Format(c.NetResult),
		"capitalizedAmount": money.Format(c.CapitalizedAmount),
		"carriedOverAmount": money.Format(c.CarriedOverAmount),
		"notes":             c.Notes,
		"userId":            c.UserID,
	}
}

func previewView(p services.ClosurePreview) map[string]any {
	byType := make(map[string]string, len(p.ByType))
	for txType, total := range p.ByType {
		byType[string(txType)] = money.Format(total)
	}
	var last any
	if p.LastClosure != nil {
		last = closureView(*p.LastClosure)
	}
	return map[string]any{
		"startDate":        p.StartDate,
		"endDate":          p.EndDate,
		"totalIncome":      money.Format(p.TotalIncome),
		"totalExpense":     money.Format(p.TotalExpense),
		"netResult":        money.Format(p.NetResult),
		"transactionCount": p.TransactionCount,
		"byType":           byType,
		"lastClosure":      last,
	}
}

func cashCountView(c models.CashCount) map[string]any {
	return map[string]any{
		"id":              c.ID,
		"createdAt":       c.CreatedAt,
		"expectedBalance": money.Format(c.ExpectedBalance),
		"reportedBalance": money.Format(c.ReportedBalance),
		"difference":      money.Format(c.Difference),
		"comments":        c.Comments,
		"userId":          c.UserID,
		"branchId":        c.BranchID,
		"accountId":       c.AccountID,
	}
}

func cashCountRowView(row store.CashCountView) map[string]any {
	view := cashCountView(row.CashCount)
	view["username"] = row.Username
	view["accountName"] = row.AccountName
	return view
}

func accountView(a models.Account) map[string]any {
	return map[string]any{
		"id":            a.ID,
		"name":          a.Name,
		"accountNumber": a.AccountNumber,
		"type":          a.Kind,
		"balance":       money.Format(a.Balance),
		"bankName":      a.BankName,
		"status":        a.Status,
		"userId":        a.UserID,
		"branchId":      a.BranchID,
		"createdAt":     a.CreatedAt,
	}
}

func userView(u models.User, branchName *string) map[string]any {
	return map[string]any{
		"id":         u.ID,
		"username":   u.Username,
		"role":       u.Role,
		"status":     u.Status,
		"branchId":   u.BranchID,
		"branchName": branchName,
	}
}

func branchView(b models.Branch) map[string]any {
	return map[string]any{
		"id":        b.ID,
		"name":      b.Name,
		"address":   b.Address,
		"isActive":  b.IsActive,
		"createdAt": b.CreatedAt,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
