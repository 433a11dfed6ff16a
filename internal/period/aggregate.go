package period

import (
	"sort"

	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Bucket accumulates the documents of one period
type Bucket struct {
	Key               string
	Income            decimal.Decimal
	Expense           decimal.Decimal
	SaleDocuments     int
	PurchaseDocuments int
}

// Aggregate routes every document into the bucket of its date. Sales feed
// income and purchases feed expense, read through the given view. Buckets
// only exist for periods that received at least one document.
func Aggregate(docs []models.NormalizedDocument, g Granularity, view View) map[string]*Bucket {
	buckets := make(map[string]*Bucket)
	bucket := func(key string) *Bucket {
		b, ok := buckets[key]
		if !ok {
			b = &Bucket{Key: key}
			buckets[key] = b
		}
		return b
	}

	for _, doc := range docs {
		switch doc.Category {
		case models.CategorySale:
			b := bucket(Key(doc.Date, g))
			b.Income = b.Income.Add(incomeAmount(doc, view))
			b.SaleDocuments++
		case models.CategoryPurchase:
			b := bucket(Key(doc.Date, g))
			b.Expense = b.Expense.Add(expenseAmount(doc, view))
			b.PurchaseDocuments++
		}
	}
	return buckets
}

func incomeAmount(doc models.NormalizedDocument, view View) decimal.Decimal {
	if view == CashMovement {
		return doc.Total
	}
	return doc.Net
}

func expenseAmount(doc models.NormalizedDocument, view View) decimal.Decimal {
	if view == CashMovement {
		return doc.Total
	}
	if doc.HasCostReal {
		return doc.CostReal
	}
	return doc.Net
}

// Margin is result as a percentage of income. It is zero when there is no
// income.
func Margin(result, income decimal.Decimal) decimal.Decimal {
	return Percent(result, income)
}

// Percent returns part/whole*100 rounded to two decimals, or zero when
// whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}

// SortedRows turns buckets into period rows in chronological order
func SortedRows(buckets map[string]*Bucket) []models.PeriodResult {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	rows := make([]models.PeriodResult, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		result := b.Income.Sub(b.Expense)
		rows = append(rows, models.PeriodResult{
			Period:            k,
			Income:            b.Income,
			Expense:           b.Expense,
			Result:            result,
			MarginPct:         Margin(result, b.Income),
			SaleDocuments:     b.SaleDocuments,
			PurchaseDocuments: b.PurchaseDocuments,
		})
	}
	return rows
}

// Totals sums every bucket
func Totals(buckets map[string]*Bucket) models.Totals {
	var t models.Totals
	for _, b := range buckets {
		t.Income = t.Income.Add(b.Income)
		t.Expense = t.Expense.Add(b.Expense)
		t.SaleDocuments += b.SaleDocuments
		t.PurchaseDocuments += b.PurchaseDocuments
	}
	t.Result = t.Income.Sub(t.Expense)
	t.MarginPct = Margin(t.Result, t.Income)
	return t
}
