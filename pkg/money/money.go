// Package money holds the currency vocabulary and fixed-point amount helpers.
// All monetary arithmetic in the service goes through decimal.Decimal; floats
// are never used for money.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is an ISO-4217 style currency code.
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	CHF Currency = "CHF"
	GBP Currency = "GBP"
)

// AllCurrencies returns every supported currency.
func AllCurrencies() []Currency {
	return []Currency{EUR, USD, CHF, GBP}
}

// IsValid reports whether the currency is one of the supported codes.
func (c Currency) IsValid() bool {
	switch c {
	case EUR, USD, CHF, GBP:
		return true
	}
	return false
}

// String returns the currency code.
func (c Currency) String() string {
	return string(c)
}

// ParseCurrency parses a currency code, accepting any letter case.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unsupported currency: %q", s)
	}
	return c, nil
}

// FormatAmount renders an amount with two decimal places for API responses.
// Internal arithmetic keeps full precision; only the rendering is fixed.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// IsPositive reports whether the amount is strictly greater than zero.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}
