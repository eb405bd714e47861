package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	AmountScale = 4
	RateScale   = 8
)

var (
	currencyMarks = []string{"MMK", "mmk", "Ks", "ks", "THB", "thb", "฿", "Baht", "baht"}
	plainNumber   = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

// ParseAmount accepts user formatted amounts such as
// "20,000", "MMK 20,000", "฿ -1,500.50" or "Ks 20000".
// Anything left after dropping separators and currency marks must be a
// plain number, so "12abc34" or "5 or 6" are rejected.
func ParseAmount(v string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(v, ",", "")
	for _, mark := range currencyMarks {
		s = strings.ReplaceAll(s, mark, "")
	}
	s = strings.Join(strings.Fields(s), "")
	if !plainNumber.MatchString(s) {
		return decimal.Zero, NewValidationError("invalid amount %q", v)
	}
	return decimal.NewFromString(s)
}

// RequirePositive rounds d to scale and rejects values that are not at
// least one unit of that scale.
func RequirePositive(field string, d decimal.Decimal, scale int32) (decimal.Decimal, error) {
	rounded := d.Round(scale)
	if !rounded.IsPositive() {
		return decimal.Zero, NewValidationError("%s must be at least %s", field, decimal.New(1, -scale).String())
	}
	return rounded, nil
}

// Amount is a request-side decimal that binds from JSON numbers or
// formatted strings.
type Amount decimal.Decimal

func (a Amount) Decimal() decimal.Decimal {
	return decimal.Decimal(a)
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Amount(decimal.Zero)
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*a = Amount(d)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid amount %s", string(b))
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return err
	}
	*a = Amount(d)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return decimal.Decimal(a).MarshalJSON()
}

// RoundAmount rounds money to storage precision.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(RateScale)
}

// ParseDecimal converts a plain decimal string.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, fmt.Errorf("empty decimal string")
	}
	return decimal.NewFromString(value)
}
