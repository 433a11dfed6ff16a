// Package ledger reconciles SII ledger rows: it recomputes each document's
// total from its tax components, compares it with the declared total and
// derives the figures used for period aggregation.
package ledger

import (
	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultTolerance is the largest accepted |difference|, in currency units
var DefaultTolerance = decimal.NewFromInt(1)

// Validate reconciles one row. Both totals are sign-adjusted before they
// are compared, so a well-formed credit note reconciles to zero.
// Recoverable VAT plays no part here; it only affects cost_real.
func Validate(row models.RawDocumentRow, category models.Category, tolerance decimal.Decimal) models.ValidatedDocument {
	sign := row.Sign()

	computed := row.Net.
		Add(row.Exempt).
		Add(row.VAT).
		Add(row.OtherTaxesTotal()).
		Mul(sign)
	declared := row.DeclaredTotal.Mul(sign)
	difference := computed.Sub(declared).RoundBank(0)

	return models.ValidatedDocument{
		RawDocumentRow:      row,
		Category:            category,
		ComputedTotal:       computed,
		DeclaredTotalSigned: declared,
		Difference:          difference,
		IsValid:             difference.Abs().LessThanOrEqual(tolerance),
	}
}

// Validator applies Validate with a fixed tolerance
type Validator struct {
	tolerance decimal.Decimal
}

// NewValidator creates a Validator. A negative tolerance is treated as zero.
func NewValidator(tolerance decimal.Decimal) *Validator {
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	return &Validator{tolerance: tolerance}
}

// Tolerance returns the tolerance in effect
func (v *Validator) Tolerance() decimal.Decimal {
	return v.tolerance
}

// Validate reconciles one row
func (v *Validator) Validate(row models.RawDocumentRow, category models.Category) models.ValidatedDocument {
	return Validate(row, category, v.tolerance)
}

// ValidateAll reconciles a batch and partitions it. Invalid documents are
// kept, with their difference, so they can be shown to the user.
func (v *Validator) ValidateAll(rows []models.RawDocumentRow, category models.Category) *models.ValidationBatch {
	batch := &models.ValidationBatch{
		Category: category,
		Valid:    make([]models.ValidatedDocument, 0, len(rows)),
	}
	for _, row := range rows {
		doc := v.Validate(row, category)
		if doc.IsValid {
			batch.Valid = append(batch.Valid, doc)
		} else {
			batch.Invalid = append(batch.Invalid, doc)
		}
	}
	return batch
}
