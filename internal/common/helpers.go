// Package common — helpers.go: formatting utilities shared by handlers.
package common

import (
	"fmt"
	"strconv"
	"time"
)

// FormatCoins renders an amount with the right plural: "1 moneda", "5 monedas".
func FormatCoins(amount int64) string {
	return fmt.Sprintf("%d %s", amount, PluralizeCoins(amount))
}

// PluralizeCoins returns the currency noun for the given amount.
func PluralizeCoins(amount int64) string {
	if amount == 1 || amount == -1 {
		return "moneda"
	}
	return "monedas"
}

// FormatDateTime renders a timestamp the way the bot shows dates to users.
func FormatDateTime(t time.Time) string {
	return t.Format("02/01/2006 15:04")
}

// IsNumeric reports whether s is a non-empty string of ASCII digits.
// Identifier resolution treats numeric input as an id, never as a name,
// so a belén or item literally named "2024" is unreachable by name.
func IsNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseID parses a numeric identifier into an int64 id.
func ParseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
