package services

import "errors"

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
	KindConflict   ErrorKind = "conflict"
)

// Error is a domain failure with a stable machine code. Sentinels below are
// compared with errors.Is; wrap them with fmt.Errorf("%w: ...") for detail.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidAmount        = newError(KindValidation, "invalid_amount", "amount must be greater than zero")
	ErrInvalidCommission    = newError(KindValidation, "invalid_commission", "commission must not be negative")
	ErrInvalidOperationType = newError(KindValidation, "invalid_operation_type", "operation type is not allowed here")
	ErrInvalidAccountKind   = newError(KindValidation, "invalid_account_kind", "account kind is not allowed for this operation")
	ErrSameAccount          = newError(KindValidation, "same_account", "source and destination accounts must differ")
	ErrReasonRequired       = newError(KindValidation, "reason_required", "an annulment reason is required")
	ErrDebtorNameRequired   = newError(KindValidation, "debtor_name_required", "debtor name is required")
	ErrMissingAccount       = newError(KindValidation, "account_required", "account id is required")
	ErrAccountInactive      = newError(KindValidation, "account_inactive", "account is not active")
	ErrUserInactive         = newError(KindForbidden, "user_inactive", "user is not active")
	ErrBalanceOverflow      = newError(KindValidation, "balance_overflow", "resulting balance exceeds the supported range")
	ErrInvalidDateRange     = newError(KindValidation, "invalid_date_range", "startDate must not be after endDate")

	ErrCapitalizationAccountsRequired = newError(KindValidation, "capitalization_accounts_required", "source and destination accounts are required to capitalize")

	ErrAccountNotFound        = newError(KindNotFound, "account_not_found", "account not found")
	ErrUserNotFound           = newError(KindNotFound, "user_not_found", "user not found")
	ErrBranchNotFound         = newError(KindNotFound, "branch_not_found", "branch not found")
	ErrTransactionNotFound    = newError(KindNotFound, "transaction_not_found", "transaction not found")
	ErrDebtNotFound           = newError(KindNotFound, "debt_not_found", "debt not found")
	ErrNoCashAccountAvailable = newError(KindNotFound, "no_cash_account", "no physical cash account available")

	ErrForbidden    = newError(KindForbidden, "forbidden", "not allowed for this role")
	ErrUserMismatch = newError(KindForbidden, "user_mismatch", "userId does not match the authenticated user")

	ErrInsufficientFunds            = newError(KindConflict, "insufficient_funds", "insufficient funds")
	ErrInsufficientFundsForReversal = newError(KindConflict, "insufficient_funds_for_reversal", "insufficient funds to reverse the transaction")
	ErrAlreadyAnnulled              = newError(KindConflict, "already_annulled", "transaction is already annulled")
	ErrNotAnnullable                = newError(KindConflict, "not_annullable", "transaction cannot be annulled in its current status")
	ErrNotReversible                = newError(KindConflict, "not_reversible", "transaction type is settled through the debt ledger and cannot be annulled")
	ErrDebtAlreadyPaid              = newError(KindConflict, "debt_already_paid", "debt is already paid")
	ErrOverpaymentRejected          = newError(KindConflict, "overpayment_rejected", "payment exceeds the outstanding balance")
	ErrCapitalizationExceedsProfit  = newError(KindConflict, "capitalization_exceeds_profit", "capitalized amount exceeds the period net result")
)

// AsError extracts the domain error from err, if any.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
