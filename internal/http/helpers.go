package http

import (
	"strings"

	"github.com/shopspring/decimal"
)

// sanitizeInput removes control characters except tab, newline and
// carriage return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// percent renders a 0-100 share with two decimals.
func percent(d decimal.Decimal) string {
	return d.StringFixed(2)
}
