package models

import "github.com/shopspring/decimal"

// PeriodResult is one row of the period table
type PeriodResult struct {
	Period            string          `json:"period"` // YYYY-MM, YYYY-Tn or YYYY
	Income            decimal.Decimal `json:"income"`
	Expense           decimal.Decimal `json:"expense"`
	Result            decimal.Decimal `json:"result"`
	MarginPct         decimal.Decimal `json:"margin_pct"`
	SaleDocuments     int             `json:"sale_documents"`
	PurchaseDocuments int             `json:"purchase_documents"`
}

// Totals aggregates every period of one run
type Totals struct {
	Income            decimal.Decimal `json:"income_total"`
	Expense           decimal.Decimal `json:"expense_total"`
	Result            decimal.Decimal `json:"result_total"`
	MarginPct         decimal.Decimal `json:"margin_total"`
	SaleDocuments     int             `json:"doc_count_sale"`
	PurchaseDocuments int             `json:"doc_count_purchase"`
}

// Documents is the total number of documents across both ledgers
func (t Totals) Documents() int {
	return t.SaleDocuments + t.PurchaseDocuments
}

// Statistics holds descriptive figures over the normalized documents
type Statistics struct {
	CreditNotesSale     int             `json:"credit_notes_sale_count"`
	CreditNotesPurchase int             `json:"credit_notes_purchase_count"`
	SaleCount           int             `json:"sale_count"`
	PurchaseCount       int             `json:"purchase_count"`
	AvgSaleAmount       decimal.Decimal `json:"avg_sale_amount"`
	AvgPurchaseAmount   decimal.Decimal `json:"avg_purchase_amount"`
}
