package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	rutPattern   = regexp.MustCompile(`^(\d{1,8})-?([\dkK])$`)
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// NormalizeRUT strips dots and spaces and upper-cases the check digit:
// "76.123.456-k" -> "76123456-K"
func NormalizeRUT(rut string) string {
	s := strings.ToUpper(strings.TrimSpace(rut))
	s = strings.NewReplacer(".", "", " ", "").Replace(s)
	if m := rutPattern.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + m[2]
	}
	return s
}

// ValidateRUT validates a Chilean tax ID (RUT) with its mod-11 check digit
func ValidateRUT(rut string) error {
	s := NormalizeRUT(rut)
	m := rutPattern.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("invalid RUT format: %s", rut)
	}

	body, _ := strconv.Atoi(m[1])
	if want := rutCheckDigit(body); want != m[2] {
		return fmt.Errorf("invalid RUT check digit: %s (expected %s)", rut, want)
	}
	return nil
}

func rutCheckDigit(body int) string {
	sum, factor := 0, 2
	for ; body > 0; body /= 10 {
		sum += (body % 10) * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch dv := 11 - sum%11; dv {
	case 11:
		return "0"
	case 10:
		return "K"
	default:
		return strconv.Itoa(dv)
	}
}

// SanitizeString removes control characters from free text taken from a ledger
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}
