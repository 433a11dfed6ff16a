package ledger

import "strings"

// TaxFieldClassifier decides which columns hold "other tax" amounts that
// take part in a document's total besides the primary VAT.
type TaxFieldClassifier interface {
	IsOtherTax(column string) bool
}

// PrefixClassifier matches normalized column names by prefix or exact name
type PrefixClassifier struct {
	Prefixes []string
	Names    []string
	// Columns starting with these describe a tax (rate, code) rather than carry an amount
	IgnorePrefixes []string
}

// DefaultClassifier matches the SII layout: IVA sub-columns (iva_uso_comun,
// iva_no_retenido ...) and the "Valor Otro Imp." column.
func DefaultClassifier() *PrefixClassifier {
	return &PrefixClassifier{
		Prefixes:       []string{"iva_"},
		Names:          []string{"valor_otro_imp", "valor_otro_impuesto"},
		IgnorePrefixes: []string{"tasa_", "codigo_", "cod_"},
	}
}

func (c *PrefixClassifier) IsOtherTax(column string) bool {
	for _, p := range c.IgnorePrefixes {
		if strings.HasPrefix(column, p) {
			return false
		}
	}
	for _, n := range c.Names {
		if column == n {
			return true
		}
	}
	for _, p := range c.Prefixes {
		if strings.HasPrefix(column, p) {
			return true
		}
	}
	return false
}
