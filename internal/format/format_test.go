package format

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoney(t *testing.T) {
	cases := []struct {
		amount string
		code   string
		want   string
	}{
		{"1299.99", "EUR", "€1,299.99"},
		{"0", "eur", "€0.00"},
		{"49.9", "USD", "$49.90"},
		{"1234567.891", "GBP", "£1,234,567.89"},
		{"-5", "EUR", "-€5.00"},
		{"1299.99", "CHF", "CHF 1,299.99"},
	}
	for _, tc := range cases {
		got := Money(decimal.RequireFromString(tc.amount), tc.code)
		if got != tc.want {
			t.Errorf("Money(%s, %s) = %q, want %q", tc.amount, tc.code, got, tc.want)
		}
	}
}

func TestDecimal(t *testing.T) {
	if got := Decimal(decimal.RequireFromString("199.9")); got != "199.90" {
		t.Fatalf("unexpected %q", got)
	}
}
