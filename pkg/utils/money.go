package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyStripper = strings.NewReplacer(
		"$", "", "€", "", "£", "", "CLP", "", "clp", "",
		" ", "", "\u00a0", "", "'", "",
	)

	// A lone separator followed by groups of exactly three digits is a
	// thousands separator: 119.000 and 119,000 both mean 119000.
	thousandsDot   = regexp.MustCompile(`^[1-9]\d{0,2}(\.\d{3})+$`)
	thousandsComma = regexp.MustCompile(`^[1-9]\d{0,2}(,\d{3})+$`)

	// Only plain digits with an optional decimal mark survive normalisation.
	// Exponent forms like 1e9999999 are rejected before they reach decimal.
	plainNumber = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

	nullTokens = map[string]bool{"": true, "nan": true, "none": true, "null": true, "nat": true, "-": true}
)

// ParseAmount converts a ledger cell to a decimal amount. It never fails:
// anything it cannot read is zero.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if nullTokens[strings.ToLower(s)] {
		return decimal.Zero
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = currencyStripper.Replace(s)
	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}

	s = normalizeSeparators(s)
	if !plainNumber.MatchString(s) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return d
}

// normalizeSeparators rewrites s so that '.' is the only decimal mark and no
// grouping characters remain.
func normalizeSeparators(s string) string {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			// 1.234.567,89
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		// 1,234,567.89
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		if thousandsComma.MatchString(s) {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case dot >= 0:
		if thousandsDot.MatchString(s) {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// ParseTypeCode reads a document type code the way a spreadsheet exports it
// ("33", "33.0", " 61 "). Unreadable, fractional or out of range values are 0.
func ParseTypeCode(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int(n)
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0
	}
	return int(f)
}

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// FormatCLP renders an amount for people: $1,234 / $1.50 M / $2.00 MM
func FormatCLP(amount decimal.Decimal) string {
	if amount.IsZero() {
		return "$0"
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	abs := amount.Abs()

	switch {
	case abs.GreaterThanOrEqual(billion):
		return sign + "$" + groupThousands(abs.Div(billion).StringFixed(2)) + " MM"
	case abs.GreaterThanOrEqual(million):
		return sign + "$" + groupThousands(abs.Div(million).StringFixed(2)) + " M"
	case abs.GreaterThanOrEqual(thousand):
		return sign + "$" + groupThousands(abs.StringFixed(0))
	default:
		return sign + "$" + abs.StringFixed(2)
	}
}

// groupThousands inserts ',' every three digits of the integer part
func groupThousands(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + frac
}
