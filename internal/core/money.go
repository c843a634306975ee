// Package core provides amount parsing and handling utilities.
//
// Amounts are whole currency units stored as int64. Fractional amounts are
// rejected rather than rounded.
package core

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	groupedAmount  = regexp.MustCompile(`^\d{1,3}([.,]\d{3})+$`)
	plainAmount    = regexp.MustCompile(`^\d+$`)
	trailingZeroes = regexp.MustCompile(`^(\d+)[.,]0+$`)
)

// ParseAmount converts a user or sheet supplied string into whole units.
//
// It accepts an optional leading sign and currency symbol, thousands
// separators (dot or comma, in groups of three) and a zero fractional part.
//
// Examples:
//
//	ParseAmount("1500")      -> 1500, nil
//	ParseAmount("$1.500.000") -> 1500000, nil
//	ParseAmount("2,000")     -> 2000, nil
//	ParseAmount("1500.00")   -> 1500, nil
//	ParseAmount("12.5")      -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(s[1:])
	} else if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}

	var digits string
	switch {
	case plainAmount.MatchString(s):
		digits = s
	case groupedAmount.MatchString(s):
		digits = strings.NewReplacer(".", "", ",", "").Replace(s)
	case trailingZeroes.MatchString(s):
		digits = trailingZeroes.FindStringSubmatch(s)[1]
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if neg {
		v = -v
	}
	return v, nil
}

// AmountFromCell converts a raw cell value into whole units. Numeric cells
// must hold an integral value.
func AmountFromCell(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: empty cell", ErrInvalidAmount)
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v is not a whole amount", ErrInvalidAmount, n)
		}
		if n >= 1<<63 || n < -(1<<63) {
			return 0, fmt.Errorf("%w: %v out of range", ErrInvalidAmount, n)
		}
		return int64(n), nil
	case string:
		return ParseAmount(n)
	default:
		return ParseAmount(fmt.Sprint(n))
	}
}

// FormatAmount renders whole units with dot thousands separators, e.g.
// 1500000 -> "$1.500.000".
func FormatAmount(n int64) string {
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-(n + 1)) + 1
	}
	digits := strconv.FormatUint(u, 10)

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
