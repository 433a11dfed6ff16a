package period

import (
	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// Statistics counts credit notes per ledger and averages the tax-inclusive
// total of each ledger's documents.
func Statistics(docs []models.NormalizedDocument) models.Statistics {
	var (
		s                    models.Statistics
		saleSum, purchaseSum = decimal.Zero, decimal.Zero
	)
	for _, doc := range docs {
		switch doc.Category {
		case models.CategorySale:
			s.SaleCount++
			saleSum = saleSum.Add(doc.Total)
			if doc.IsCreditNote() {
				s.CreditNotesSale++
			}
		case models.CategoryPurchase:
			s.PurchaseCount++
			purchaseSum = purchaseSum.Add(doc.Total)
			if doc.IsCreditNote() {
				s.CreditNotesPurchase++
			}
		}
	}
	s.AvgSaleAmount = average(saleSum, s.SaleCount)
	s.AvgPurchaseAmount = average(purchaseSum, s.PurchaseCount)
	return s
}

func average(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(2)
}

// Summary is everything one aggregation pass produces
type Summary struct {
	Granularity Granularity           `json:"granularity"`
	View        View                  `json:"view"`
	Rows        []models.PeriodResult `json:"periods"`
	Totals      models.Totals         `json:"totals"`
	Statistics  models.Statistics     `json:"statistics"`
}

// Summarize aggregates docs and derives rows, totals and statistics
func Summarize(docs []models.NormalizedDocument, g Granularity, view View) Summary {
	buckets := Aggregate(docs, g, view)
	return Summary{
		Granularity: g,
		View:        view,
		Rows:        SortedRows(buckets),
		Totals:      Totals(buckets),
		Statistics:  Statistics(docs),
	}
}
