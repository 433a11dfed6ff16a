package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category tells which ledger a document came from
type Category string

const (
	CategorySale     Category = "sale"     // Registro de ventas
	CategoryPurchase Category = "purchase" // Registro de compras
)

// SII document type codes that carry special meaning
const (
	DocTypeInvoice    = 33 // Factura electrónica
	DocTypeExempt     = 34 // Factura no afecta o exenta electrónica
	DocTypeDebitNote  = 56 // Nota de débito electrónica
	DocTypeCreditNote = 61 // Nota de crédito electrónica
)

// ParseCategory accepts the English names and the Spanish ledger names
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sale", "sales", "venta", "ventas":
		return CategorySale, nil
	case "purchase", "purchases", "compra", "compras":
		return CategoryPurchase, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// SignFactor returns -1 for credit notes and +1 for every other type code
func SignFactor(typeCode int) decimal.Decimal {
	if typeCode == DocTypeCreditNote {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// RawDocumentRow is one ledger line with every optional field already
// resolved to a concrete value (zero when absent or malformed).
type RawDocumentRow struct {
	Index           int                        `json:"index"`            // 0-based position in the source file
	TypeCode        int                        `json:"type_code"`        // Tipo Doc
	Folio           string                     `json:"folio"`            // Folio / Nro
	IssueDate       string                     `json:"issue_date"`       // Fecha Docto, unparsed
	CounterpartRUT  string                     `json:"counterpart_rut"`  // RUT cliente / proveedor
	CounterpartName string                     `json:"counterpart_name"` // Razón social
	Net             decimal.Decimal            `json:"net"`              // Monto Neto
	Exempt          decimal.Decimal            `json:"exempt"`           // Monto Exento
	VAT             decimal.Decimal            `json:"vat"`              // Monto IVA
	RecoverableVAT  decimal.Decimal            `json:"recoverable_vat"`  // Monto IVA Recuperable
	OtherTaxes      map[string]decimal.Decimal `json:"other_taxes,omitempty"`
	DeclaredTotal   decimal.Decimal            `json:"declared_total"` // Monto Total as informed
}

// IsCreditNote reports whether the row reverses a prior document
func (r RawDocumentRow) IsCreditNote() bool {
	return r.TypeCode == DocTypeCreditNote
}

// Sign is the multiplier applied to every monetary field of the row
func (r RawDocumentRow) Sign() decimal.Decimal {
	return SignFactor(r.TypeCode)
}

// OtherTaxesTotal sums every "other tax" column, unsigned
func (r RawDocumentRow) OtherTaxesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, v := range r.OtherTaxes {
		total = total.Add(v)
	}
	return total
}

// ValidatedDocument is a row plus its reconciliation outcome.
// All totals and the difference are sign-adjusted.
type ValidatedDocument struct {
	RawDocumentRow
	Category            Category        `json:"category"`
	ComputedTotal       decimal.Decimal `json:"computed_total"`
	DeclaredTotalSigned decimal.Decimal `json:"declared_total_signed"`
	Difference          decimal.Decimal `json:"difference"`
	IsValid             bool            `json:"is_valid"`
}

// ValidationBatch partitions a file's rows by reconciliation outcome
type ValidationBatch struct {
	Category Category            `json:"category"`
	Valid    []ValidatedDocument `json:"valid"`
	Invalid  []ValidatedDocument `json:"invalid"`
}

// ExcludedCount is the number of rows that failed reconciliation
func (b *ValidationBatch) ExcludedCount() int {
	return len(b.Invalid)
}

// ExcludedTotal is the signed declared total of rows that failed
// reconciliation, so the caller can judge materiality.
func (b *ValidationBatch) ExcludedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, d := range b.Invalid {
		total = total.Add(d.DeclaredTotalSigned)
	}
	return total
}

// NormalizedDocument is the aggregation-ready form of a valid document
type NormalizedDocument struct {
	Category Category  `json:"category"`
	TypeCode int       `json:"type_code"`
	Folio    string    `json:"folio"`
	Date     time.Time `json:"date"`

	// Net is tax-exclusive: (net + exempt) * sign
	Net decimal.Decimal `json:"net"`
	// Total is tax-inclusive: (net + exempt + vat + other taxes) * sign
	Total decimal.Decimal `json:"total"`

	// Purchases only
	NonRecoverableVAT decimal.Decimal `json:"non_recoverable_vat"`
	CostReal          decimal.Decimal `json:"cost_real"`
	HasCostReal       bool            `json:"has_cost_real"`
}

// IsCreditNote reports whether the normalized document is a credit note
func (d NormalizedDocument) IsCreditNote() bool {
	return d.TypeCode == DocTypeCreditNote
}
