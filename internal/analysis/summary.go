package analysis

import (
	"time"

	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/garyjia/sii-reconciler/internal/period"
	"github.com/shopspring/decimal"
)

// FileSummary describes the dated, valid documents of one file. The
// predominant month is the one most documents fall in, so a user can spot
// a file uploaded under the wrong period.
type FileSummary struct {
	Documents        int             `json:"documents"`
	PredominantMonth string          `json:"predominant_month,omitempty"` // YYYY-MM
	PredominantCount int             `json:"predominant_count"`
	PredominantShare decimal.Decimal `json:"predominant_share_pct"`
	FirstDate        *time.Time      `json:"first_date,omitempty"`
	LastDate         *time.Time      `json:"last_date,omitempty"`
	Total            decimal.Decimal `json:"total"`
}

// Summarize builds the FileSummary of a set of normalized documents.
// Ties between months go to the earliest one.
func Summarize(docs []models.NormalizedDocument) FileSummary {
	s := FileSummary{Documents: len(docs)}
	if len(docs) == 0 {
		return s
	}

	counts := make(map[string]int)
	first, last := docs[0].Date, docs[0].Date
	for _, doc := range docs {
		counts[period.Key(doc.Date, period.Monthly)]++
		s.Total = s.Total.Add(doc.Total)
		if doc.Date.Before(first) {
			first = doc.Date
		}
		if doc.Date.After(last) {
			last = doc.Date
		}
	}

	for month, n := range counts {
		if n > s.PredominantCount || (n == s.PredominantCount && month < s.PredominantMonth) {
			s.PredominantMonth, s.PredominantCount = month, n
		}
	}
	s.PredominantShare = period.Percent(decimal.NewFromInt(int64(s.PredominantCount)), decimal.NewFromInt(int64(len(docs))))
	s.FirstDate, s.LastDate = &first, &last
	return s
}
