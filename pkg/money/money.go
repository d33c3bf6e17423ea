// Package money converts between integer minor units and decimal text.
// Amounts never pass through float64.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseDollars converts "5", "5.00" or "$5.00" to minor units (500).
// More than two fractional digits is an error rather than a silent rounding.
func ParseDollars(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.ReplaceAll(raw, ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid dollar amount %q: %w", s, err)
	}
	cents := d.Mul(hundred)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("invalid dollar amount %q: more than two decimal places", s)
	}
	return cents.IntPart(), nil
}

// ParseAmount reads a settings value that is either minor units ("500") or a
// dollar amount ("$5.00", "5.00").
func ParseAmount(s string) (int64, error) {
	raw := strings.TrimSpace(s)
	if strings.ContainsAny(raw, "$.") {
		return ParseDollars(raw)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return d.IntPart(), nil
}

// FormatCents renders minor units for display, e.g. 1550 -> "$15.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + "$" + decimal.New(cents, -2).StringFixed(2)
}

// ParseRate validates a positive decimal conversion rate.
func ParseRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid conversion rate %q: %w", s, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("conversion rate must be positive, got %s", rate)
	}
	return rate, nil
}

// Convert returns floor(amount * rate).
func Convert(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Floor().IntPart()
}
