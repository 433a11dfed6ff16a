package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Day-first layouts are tried before month-first ones; Chilean exports are day-first.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"20060102",
	"02.01.2006",
	"2006/01/02",
	"01/02/2006",
}

var excelSerial = regexp.MustCompile(`^\d{5}(\.\d+)?$`)

// ParseDate resolves a document date in any of the formats seen in SII
// exports. ok is false when nothing matches.
func ParseDate(raw string) (t time.Time, ok bool) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "nan", "nat", "none", "null":
		return time.Time{}, false
	}

	// drop a time-of-day suffix: "2024-01-15 00:00:00", "2024-01-15T10:00:00Z"
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if excelSerial.MatchString(s) {
		if serial, err := strconv.ParseFloat(s, 64); err == nil {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				y, m, d := t.Date()
				return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
			}
		}
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) >= 8 {
		if t, err := time.Parse("20060102", digits[:8]); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
