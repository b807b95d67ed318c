package models

type TransactionType string

const (
	TypeDeposit           TransactionType = "deposit"
	TypeWithdrawal        TransactionType = "withdrawal"
	TypeSale              TransactionType = "sale"
	TypeServicePayment    TransactionType = "service_payment"
	TypeExpense           TransactionType = "expense"
	TypePayroll           TransactionType = "payroll"
	TypePurchase          TransactionType = "purchase"
	TypeLoanGiven         TransactionType = "loan_given"
	TypeDebtPayment       TransactionType = "debt_payment"
	TypeInternalTransfer  TransactionType = "internal_transfer"
	TypeCapitalInjection  TransactionType = "capital_injection"
	TypeUtilityWithdrawal TransactionType = "utility_withdrawal"
)

// TransactionTypes lists every member of the closed set, in declaration order.
var TransactionTypes = []TransactionType{
	TypeDeposit,
	TypeWithdrawal,
	TypeSale,
	TypeServicePayment,
	TypeExpense,
	TypePayroll,
	TypePurchase,
	TypeLoanGiven,
	TypeDebtPayment,
	TypeInternalTransfer,
	TypeCapitalInjection,
	TypeUtilityWithdrawal,
}

func ParseTransactionType(raw string) (TransactionType, bool) {
	for _, t := range TransactionTypes {
		if string(t) == raw {
			return t, true
		}
	}
	return "", false
}

// IsClientOperation reports whether the type is a counter operation that
// moves money between a bank account and a physical till.
func (t TransactionType) IsClientOperation() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeSale, TypeServicePayment:
		return true
	}
	return false
}

func (t TransactionType) IsExpense() bool {
	switch t {
	case TypeExpense, TypePayroll, TypePurchase:
		return true
	}
	return false
}

// IsIncome reports whether the type counts as income for period closures.
func (t TransactionType) IsIncome() bool {
	switch t {
	case TypeDeposit, TypeSale, TypeDebtPayment:
		return true
	}
	return false
}
