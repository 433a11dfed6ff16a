package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key returns the bucket key of a date: "2025-01", "2025-T1" or "2025".
// An unknown granularity is read as monthly.
func Key(date time.Time, g Granularity) string {
	year, month := date.Year(), int(date.Month())
	switch g {
	case Quarterly:
		return fmt.Sprintf("%d-T%d", year, (month-1)/3+1)
	case Annual:
		return strconv.Itoa(year)
	default:
		return fmt.Sprintf("%d-%02d", year, month)
	}
}

// ParseKey decomposes a bucket key of any granularity. month and quarter
// are 0 when the key does not carry them.
func ParseKey(key string) (year, month, quarter int, ok bool) {
	head, tail, found := strings.Cut(key, "-")

	year, err := strconv.Atoi(head)
	if err != nil || len(head) != 4 {
		return 0, 0, 0, false
	}
	if !found {
		return year, 0, 0, true
	}

	if q, isQuarter := strings.CutPrefix(tail, "T"); isQuarter {
		quarter, err = strconv.Atoi(q)
		if err != nil || quarter < 1 || quarter > 4 {
			return 0, 0, 0, false
		}
		return year, 0, quarter, true
	}

	month, err = strconv.Atoi(tail)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, 0, false
	}
	return year, month, 0, true
}

// keyLess orders keys chronologically. Keys that do not parse sort last,
// in string order.
func keyLess(a, b string) bool {
	ay, am, aq, aok := ParseKey(a)
	by, bm, bq, bok := ParseKey(b)
	switch {
	case aok != bok:
		return aok
	case !aok:
		return a < b
	case ay != by:
		return ay < by
	case am != bm:
		return am < bm
	case aq != bq:
		return aq < bq
	}
	return a < b
}
