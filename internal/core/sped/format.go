// internal/core/sped/format.go
package sped

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// formatDate rewrites an ISO date (YYYY-MM-DD, optionally followed by a time)
// as DDMMYYYY. Anything shorter than a full date yields "".
func formatDate(iso string) string {
	if len(iso) < 10 {
		return ""
	}
	return iso[8:10] + iso[5:7] + iso[0:4]
}

// FormatValue renders v with two decimals, rounded half away from zero, and a
// comma separator. Every monetary or quantity field written next to the ledger
// goes through it.
func FormatValue(v float64) string {
	return strings.Replace(decimal.NewFromFloat(v).StringFixed(2), ".", ",", 1)
}

// sanitizeField keeps a value on one line and inside its own field: line
// breaks, tabs, other control characters and the field delimiter become
// spaces, surrounding whitespace is trimmed.
func sanitizeField(s string) string {
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size

		if r == '|' || unicode.IsControl(r) {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func orPlaceholder(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}
