package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleSupervisor UserRole = "supervisor"
	RoleCashier    UserRole = "cashier"
)

// CanAnnul reports whether the role may reverse completed transactions.
func (r UserRole) CanAnnul() bool {
	return r == RoleAdmin || r == RoleSupervisor
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type AccountKind string

const (
	KindPhysical AccountKind = "physical"
	KindBank     AccountKind = "bank"
	KindPlatform AccountKind = "platform"
	KindVirtual  AccountKind = "virtual"
)

func (k AccountKind) Valid() bool {
	switch k {
	case KindPhysical, KindBank, KindPlatform, KindVirtual:
		return true
	}
	return false
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	Status       Status    `db:"status" json:"status"`
	BranchID     *string   `db:"branch_id" json:"branchId,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type Branch struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Account struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	AccountNumber string          `db:"account_number" json:"accountNumber"`
	Kind          AccountKind     `db:"kind" json:"kind"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	BankName      string          `db:"bank_name" json:"bankName"`
	Status        Status          `db:"status" json:"status"`
	UserID        *string         `db:"user_id" json:"userId,omitempty"`
	BranchID      *string         `db:"branch_id" json:"branchId,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

func (a Account) Active() bool {
	return a.Status == StatusActive
}

type TransactionStatus string

const (
	TxCompleted TransactionStatus = "COMPLETED"
	TxAnnulled  TransactionStatus = "ANNULLED"
	TxPending   TransactionStatus = "PENDING"
)

type Transaction struct {
	ID                   string            `db:"id" json:"id"`
	CreatedAt            time.Time         `db:"created_at" json:"createdAt"`
	Type                 TransactionType   `db:"type" json:"type"`
	Amount               decimal.Decimal   `db:"amount" json:"amount"`
	Commission           decimal.Decimal   `db:"commission" json:"commission"`
	Description          string            `db:"description" json:"description"`
	Status               TransactionStatus `db:"status" json:"status"`
	UserID               string            `db:"user_id" json:"userId"`
	BranchID             *string           `db:"branch_id" json:"branchId,omitempty"`
	AccountID            string            `db:"account_id" json:"accountId"`
	DestinationAccountID *string           `db:"destination_account_id" json:"destinationAccountId,omitempty"`
	Metadata             Metadata          `db:"metadata" json:"metadata"`
}

// TransactionView is a history row joined with display names.
type TransactionView struct {
	Transaction
	Username               *string `db:"username" json:"username,omitempty"`
	BranchName             *string `db:"branch_name" json:"branchName,omitempty"`
	AccountName            *string `db:"account_name" json:"accountName,omitempty"`
	DestinationAccountName *string `db:"destination_account_name" json:"destinationAccountName,omitempty"`
}

type DebtStatus string

const (
	DebtPending DebtStatus = "PENDING"
	DebtPaid    DebtStatus = "PAID"
)

type Debt struct {
	ID             string          `db:"id" json:"id"`
	DebtorName     string          `db:"debtor_name" json:"debtorName"`
	Description    string          `db:"description" json:"description"`
	OriginalAmount decimal.Decimal `db:"original_amount" json:"originalAmount"`
	CurrentBalance decimal.Decimal `db:"current_balance" json:"currentBalance"`
	Status         DebtStatus      `db:"status" json:"status"`
	CreatedBy      string          `db:"created_by" json:"createdBy"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

type PeriodClosure struct {
	ID                string          `db:"id" json:"id"`
	ClosingDate       time.Time       `db:"closing_date" json:"closingDate"`
	StartDate         time.Time       `db:"start_date" json:"startDate"`
	TotalIncome       decimal.Decimal `db:"total_income" json:"totalIncome"`
	TotalExpense      decimal.Decimal `db:"total_expense" json:"totalExpense"`
	NetResult         decimal.Decimal `db:"net_result" json:"netResult"`
	CapitalizedAmount decimal.Decimal `db:"capitalized_amount" json:"capitalizedAmount"`
	CarriedOverAmount decimal.Decimal `db:"carried_over_amount" json:"carriedOverAmount"`
	Notes             string          `db:"notes" json:"notes"`
	UserID            string          `db:"user_id" json:"userId"`
}

type CashCount struct {
	ID              string          `db:"id" json:"id"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	ExpectedBalance decimal.Decimal `db:"expected_balance" json:"expectedBalance"`
	ReportedBalance decimal.Decimal `db:"reported_balance" json:"reportedBalance"`
	Difference      decimal.Decimal `db:"difference" json:"difference"`
	Comments        string          `db:"comments" json:"comments"`
	UserID          string          `db:"user_id" json:"userId"`
	BranchID        *string         `db:"branch_id" json:"branchId,omitempty"`
	AccountID       string          `db:"account_id" json:"accountId"`
}

// Metadata is an opaque audit side channel attached to a transaction. It is
// stored as JSONB and never consulted by balance logic.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(m))
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("metadata: unsupported source type")
	}
	parsed := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return err
		}
	}
	*m = parsed
	return nil
}

// With returns a copy of m extended with the given key/value pairs.
func (m Metadata) With(pairs ...string) Metadata {
	out := make(Metadata, len(m)+len(pairs)/2)
	for k, v := range m {
		out[k] = v
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = pairs[i+1]
	}
	return out
}
