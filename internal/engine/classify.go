package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Phrases that mark a row as a card payment or transfer rather than a
// spend. Matched case-insensitively against the raw category and
// description fields.
var paymentPhrases = []string{
	"payment thank you",
	"autopay",
	"online payment",
	"card payment",
	"transfer to",
	"transfer from",
	"direct debit payment received",
}

// isPaymentText reports whether raw text looks like a payment/transfer row.
func isPaymentText(raw string) bool {
	lower := strings.ToLower(raw)
	for _, p := range paymentPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// parseAmount converts raw amount text to a decimal, tolerating currency
// symbols, thousands separators and parenthesized negatives. Unparseable
// text yields zero: amount problems are review state, not errors.
func parseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Neg()
	}
	return d
}
