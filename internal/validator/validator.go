package validator

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"cashledger/internal/models"
)

var (
	ErrInvalidUsername    = errors.New("username must be 3-30 letters, digits, dots or underscores")
	ErrInvalidPassword    = errors.New("password must have at least 6 characters")
	ErrInvalidBranchName  = errors.New("branch name must have at least 2 characters")
	ErrInvalidAccountName = errors.New("account name is required")
	ErrInvalidAccountKind = errors.New("account type must be physical, bank, platform or virtual")
	ErrBranchRequired     = errors.New("branchId is required")
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,30}$`)

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < 6 {
		return ErrInvalidPassword
	}
	return nil
}

func ValidateBranchName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < 2 {
		return ErrInvalidBranchName
	}
	return nil
}

func ValidateAccount(name string, kind models.AccountKind) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidAccountName
	}
	if !kind.Valid() {
		return ErrInvalidAccountKind
	}
	return nil
}

func ValidateCashier(username, password, branchID string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if err := ValidatePassword(password); err != nil {
		return err
	}
	if strings.TrimSpace(branchID) == "" {
		return ErrBranchRequired
	}
	return nil
}
