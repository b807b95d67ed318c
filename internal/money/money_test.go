package money

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  string
		err   error
	}{
		{input: "10", want: "10.00"},
		{input: " 10.5 ", want: "10.50"},
		{input: "0.01", want: "0.01"},
		{input: "-3.25", want: "-3.25"},
		{input: "10.500", want: "10.50"},
		{input: "9999999999.99", want: "9999999999.99"},
		{input: "", err: ErrInvalidAmount},
		{input: "abc", err: ErrInvalidAmount},
		{input: "1.001", err: ErrTooManyDecimals},
		{input: "10000000000", err: ErrAmountTooLarge},
		{input: "-10000000000.00", err: ErrAmountTooLarge},
		{input: "00000000000001.5", want: "1.50"},
		{input: ".5", want: "0.50"},
		{input: "+7", want: "7.00"},
		{input: ".", err: ErrInvalidAmount},
		{input: "-", err: ErrInvalidAmount},
		{input: "1.2.3", err: ErrInvalidAmount},
		{input: "1e3", err: ErrInvalidAmount},
		{input: "5E1", err: ErrInvalidAmount},
		{input: "1e20000000", err: ErrInvalidAmount},
		{input: "1.5e-1", err: ErrInvalidAmount},
	}
	for _, tc := range cases {
		got, err := Parse(tc.input)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("Parse(%q): expected %v, got %v", tc.input, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error %v", tc.input, err)
		}
		if Format(got) != tc.want {
			t.Fatalf("Parse(%q) = %s, want %s", tc.input, Format(got), tc.want)
		}
	}
}

func TestParseRejectsExponentQuickly(t *testing.T) {
	start := time.Now()
	if _, err := Parse("1e20000000"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected exponent to be rejected, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("rejecting an exponent took %s", elapsed)
	}
}

func TestParsePositive(t *testing.T) {
	if _, err := ParsePositive("0"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected zero to be rejected, got %v", err)
	}
	if _, err := ParsePositive("-1"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected negative to be rejected, got %v", err)
	}
	if v, err := ParsePositive("0.10"); err != nil || Format(v) != "0.10" {
		t.Fatalf("unexpected result %s / %v", Format(v), err)
	}
}

func TestParseNonNegative(t *testing.T) {
	if v, err := ParseNonNegative("0"); err != nil || !v.IsZero() {
		t.Fatalf("expected zero to be accepted, got %v", err)
	}
	if _, err := ParseNonNegative("-0.01"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected negative to be rejected, got %v", err)
	}
}

func TestInputAcceptsNumbersAndStrings(t *testing.T) {
	var payload struct {
		A Input `json:"a"`
		B Input `json:"b"`
		C Input `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.34, "b": "56.7", "c": null}`), &payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.A != "12.34" || payload.B != "56.7" || !payload.C.IsZero() {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if err := json.Unmarshal([]byte(`{"a": true}`), &payload); err == nil {
		t.Fatal("expected boolean amount to fail")
	}
}
