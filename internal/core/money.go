// Package core provides money parsing and handling utilities.
//
// Amounts are kept in integer cents. Float conversions only happen at the
// edges: JSON encoding, display and statistical models.
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToCents converts a decimal string to cents with proper rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and performs
// half-up rounding on the third decimal place. The result is always positive cents.
// Returns an error for invalid formats, negative values, or zero amounts.
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234, nil
//	ParseDecimalToCents("12,34") -> 1234, nil
//	ParseDecimalToCents("12.345") -> 1235, nil (half-up)
//	ParseDecimalToCents("12.344") -> 1234, nil
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "€"))
	if s == "" {
		return 0, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// ParseAmountOrZero is the lenient variant used for fixed expenses:
// anything unparsable becomes zero.
func ParseAmountOrZero(s string) Money {
	c, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}
	}
	return Money{Cents: c}
}

// FromEuros rounds a float euro value to the nearest cent.
func FromEuros(v float64) Money {
	return Money{Cents: int64(math.Round(v * 100))}
}

// Euros returns the euro value as a float64.
// Use cents for sums to avoid floating-point drift.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// String formats m as "12.34 €".
func (m Money) String() string {
	return FormatCurrency(m.Euros())
}

// FormatCurrency renders a euro amount with two decimals and the euro sign.
func FormatCurrency(v float64) string {
	return fmt.Sprintf("%.2f €", v)
}

// MarshalJSON encodes m as a decimal euro number, the shape used by exports.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(m.Euros(), 'f', -1, 64)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		var s string
		if err2 := json.Unmarshal(b, &s); err2 != nil {
			return ErrInvalidAmount
		}
		if s == "" {
			*m = Money{}
			return nil
		}
		c, perr := ParseDecimalToCents(s)
		if perr != nil {
			return perr
		}
		*m = Money{Cents: c}
		return nil
	}
	*m = FromEuros(v)
	return nil
}

func (m Money) MarshalYAML() (interface{}, error) {
	return m.Euros(), nil
}

func (m *Money) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v float64
	if err := unmarshal(&v); err != nil {
		return ErrInvalidAmount
	}
	*m = FromEuros(v)
	return nil
}
