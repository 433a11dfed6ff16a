// Package period buckets normalized documents into calendar periods and
// rolls them up into income, expense and margin figures.
package period

import (
	"fmt"
	"strings"

	"github.com/garyjia/sii-reconciler/internal/models"
)

// Granularity is the width of a period bucket
type Granularity string

const (
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
	Annual    Granularity = "annual"
)

// ParseGranularity accepts the English names and their Spanish equivalents
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month", "mensual":
		return Monthly, nil
	case "quarterly", "quarter", "trimestral":
		return Quarterly, nil
	case "annual", "yearly", "year", "anual":
		return Annual, nil
	}
	return "", fmt.Errorf("%w: %q", models.ErrInvalidGranularity, s)
}

// View is the accounting perspective used to read each document
type View string

const (
	// BusinessResult reads sales at net and purchases at their real cost
	// (tax-exclusive, non-recoverable VAT included in cost).
	BusinessResult View = "business_result"
	// CashMovement reads every document at its tax-inclusive total
	CashMovement View = "cash_movement"
)

// ParseView accepts the canonical names and a few short forms
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "business_result", "business", "resultado", "resultado_negocio":
		return BusinessResult, nil
	case "cash_movement", "cash", "flujo", "movimiento_caja":
		return CashMovement, nil
	}
	return "", fmt.Errorf("%w: %q", models.ErrInvalidView, s)
}
