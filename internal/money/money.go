package money

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const Scale = 2

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrAmountTooLarge  = errors.New("amount exceeds 12 digits")
)

// Limit is the first value that no longer fits a NUMERIC(12,2) column.
var Limit = decimal.New(1, 10)

// Parse reads a plain decimal amount ([+-]digits[.digits]) with at most two
// significant fractional digits. Exponent notation is refused. This is
// the only place where rounding of external input is decided: anything
// finer than a cent is rejected rather than rounded.
func Parse(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	sign := ""
	switch trimmed[0] {
	case '-':
		sign = "-"
		trimmed = trimmed[1:]
	case '+':
		trimmed = trimmed[1:]
	}
	wholePart, fracPart, _ := strings.Cut(trimmed, ".")
	if wholePart == "" && fracPart == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if !isDigits(wholePart) || (fracPart != "" && !isDigits(fracPart)) {
		return decimal.Zero, ErrInvalidAmount
	}
	// Trailing zeros past the cent are harmless; any other digit there is not.
	if len(strings.TrimRight(fracPart, "0")) > Scale {
		return decimal.Zero, ErrTooManyDecimals
	}
	if len(strings.TrimLeft(wholePart, "0")) > 10 {
		return decimal.Zero, ErrAmountTooLarge
	}
	if len(fracPart) > Scale {
		fracPart = fracPart[:Scale]
	}
	if fracPart == "" {
		fracPart = "0"
	}
	value, err := decimal.NewFromString(sign + wholePart + "." + fracPart)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return value.Round(Scale), nil
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return value != ""
}

// ParsePositive is Parse restricted to values strictly greater than zero.
func ParsePositive(input string) (decimal.Decimal, error) {
	value, err := Parse(input)
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

// ParseNonNegative is Parse restricted to values greater than or equal to zero.
func ParseNonNegative(input string) (decimal.Decimal, error) {
	value, err := Parse(input)
	if err != nil {
		return decimal.Zero, err
	}
	if value.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

func Format(value decimal.Decimal) string {
	return value.StringFixed(Scale)
}

// Input is a JSON amount that may arrive either as a number or as a string.
// The raw text is kept so that no float conversion ever happens.
type Input string

func (i *Input) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = Input(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidAmount
	}
	*i = Input(n.String())
	return nil
}

func (i Input) IsZero() bool {
	return strings.TrimSpace(string(i)) == ""
}
