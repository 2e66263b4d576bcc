package format

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

var symbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"JPY": "¥",
}

// Money formats amount in the currency's standard precision with thousands separators.
// Example: Money(decimal.RequireFromString("1299.99"), "EUR") => "€1,299.99"
func Money(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
	}

	neg := amount.IsNegative()
	fixed := amount.Abs().StringFixed(int32(scale))
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if neg {
		b.WriteString("-")
	}
	if symbol, ok := symbols[code]; ok {
		b.WriteString(symbol)
	} else if code != "" {
		b.WriteString(code + " ")
	}
	b.WriteString(thousandSep(whole))
	if frac != "" {
		b.WriteString("." + frac)
	}
	return b.String()
}

// Decimal renders amount with two decimals for machine-readable payloads.
func Decimal(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func thousandSep(digits string) string {
	var b strings.Builder
	for i, c := range digits {
		if i != 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}
