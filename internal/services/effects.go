package services

import (
	"fmt"

	"cashledger/internal/models"
	"cashledger/internal/money"

	"github.com/shopspring/decimal"
)

type legSide int

const (
	sideSource legSide = iota
	sideDestination
)

type legOp int

const (
	opDebit legOp = iota
	opCredit
)

type legAmount int

const (
	amountBase legAmount = iota
	amountCommission
	amountBasePlusCommission
)

type leg struct {
	side   legSide
	op     legOp
	amount legAmount
}

// effect is the balance movement of one transaction type. The inverse used by
// annulment is derived from forward, so the two can never drift apart.
type effect struct {
	forward      []leg
	reversible   bool
	needsDestAcc bool
}

var effects = map[models.TransactionType]effect{
	models.TypeDeposit:        clientCredit,
	models.TypeSale:           clientCredit,
	models.TypeServicePayment: clientCredit,
	models.TypeWithdrawal: {
		forward: []leg{
			{side: sideSource, op: opCredit, amount: amountBase},
			{side: sideDestination, op: opDebit, amount: amountBase},
			{side: sideDestination, op: opCredit, amount: amountCommission},
		},
		reversible:   true,
		needsDestAcc: true,
	},
	models.TypeInternalTransfer:  transfer,
	// Capitalization belongs to the closure that posted it.
	models.TypeUtilityWithdrawal: {
		forward:      transfer.forward,
		needsDestAcc: true,
	},
	models.TypeCapitalInjection: {
		forward:    []leg{{side: sideSource, op: opCredit, amount: amountBase}},
		reversible: true,
	},
	models.TypeExpense:  singleDebit,
	models.TypePayroll:  singleDebit,
	models.TypePurchase: singleDebit,
	models.TypeLoanGiven: {
		forward: []leg{{side: sideSource, op: opDebit, amount: amountBase}},
	},
	models.TypeDebtPayment: {
		forward: []leg{{side: sideSource, op: opCredit, amount: amountBase}},
	},
}

var (
	clientCredit = effect{
		forward: []leg{
			{side: sideSource, op: opDebit, amount: amountBase},
			{side: sideDestination, op: opCredit, amount: amountBasePlusCommission},
		},
		reversible:   true,
		needsDestAcc: true,
	}
	transfer = effect{
		forward: []leg{
			{side: sideSource, op: opDebit, amount: amountBase},
			{side: sideDestination, op: opCredit, amount: amountBase},
		},
		reversible:   true,
		needsDestAcc: true,
	}
	singleDebit = effect{
		forward:    []leg{{side: sideSource, op: opDebit, amount: amountBase}},
		reversible: true,
	}
)

func effectOf(t models.TransactionType) (effect, error) {
	eff, ok := effects[t]
	if !ok {
		return effect{}, fmt.Errorf("%w: %s", ErrInvalidOperationType, t)
	}
	return eff, nil
}

// inverse mirrors the forward legs: reverse order, debits become credits.
func (e effect) inverse() []leg {
	out := make([]leg, 0, len(e.forward))
	for i := len(e.forward) - 1; i >= 0; i-- {
		l := e.forward[i]
		if l.op == opDebit {
			l.op = opCredit
		} else {
			l.op = opDebit
		}
		out = append(out, l)
	}
	return out
}

// BalanceChange echoes one account's balance before and after an operation.
type BalanceChange struct {
	AccountID   string          `json:"accountId"`
	AccountName string          `json:"accountName"`
	Previous    decimal.Decimal `json:"previousBalance"`
	Current     decimal.Decimal `json:"currentBalance"`
	ownerID     *string
}

// applyLegs runs legs against the in-memory balances of source and dest. A
// debit requires the balance before it to cover the debit; short is the
// error reported otherwise. Nothing is persisted here.
func applyLegs(legs []leg, source, dest *models.Account, amount, commission decimal.Decimal, short *Error) ([]BalanceChange, error) {
	changes := make([]BalanceChange, 0, 2)
	indexOf := map[legSide]int{}
	for _, l := range legs {
		acc := source
		if l.side == sideDestination {
			acc = dest
		}
		if acc == nil {
			return nil, fmt.Errorf("%w: destination account missing", ErrMissingAccount)
		}
		if _, seen := indexOf[l.side]; !seen {
			indexOf[l.side] = len(changes)
			changes = append(changes, BalanceChange{
				AccountID:   acc.ID,
				AccountName: acc.Name,
				Previous:    acc.Balance,
				ownerID:     acc.UserID,
			})
		}

		value := legValue(l.amount, amount, commission)
		switch l.op {
		case opDebit:
			if acc.Balance.LessThan(value) {
				return nil, fmt.Errorf("%w: %s has %s, needs %s", short, acc.Name, money.Format(acc.Balance), money.Format(value))
			}
			acc.Balance = acc.Balance.Sub(value)
		case opCredit:
			next := acc.Balance.Add(value)
			if next.GreaterThanOrEqual(money.Limit) {
				return nil, fmt.Errorf("%w: %s", ErrBalanceOverflow, acc.Name)
			}
			acc.Balance = next
		}
		changes[indexOf[l.side]].Current = acc.Balance
	}
	return changes, nil
}

func legValue(kind legAmount, amount, commission decimal.Decimal) decimal.Decimal {
	switch kind {
	case amountCommission:
		return commission
	case amountBasePlusCommission:
		return amount.Add(commission)
	default:
		return amount
	}
}
