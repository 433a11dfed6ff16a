package ledger

import (
	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/garyjia/sii-reconciler/pkg/utils"
	"github.com/shopspring/decimal"
)

// ColumnAliases lists, per logical field, the normalized header names that
// may carry it. The first alias present in a file wins.
type ColumnAliases struct {
	TypeCode          []string
	Folio             []string
	IssueDate         []string
	CounterpartRUT    []string
	CounterpartName   []string
	Net               []string
	Exempt            []string
	VAT               []string
	RecoverableVAT    []string
	NonRecoverableVAT []string
	DeclaredTotal     []string
}

// DefaultColumnAliases covers the SII RCV exports for both ledgers
func DefaultColumnAliases() ColumnAliases {
	return ColumnAliases{
		TypeCode:          []string{"tipo_doc", "tipo_documento", "tipo_dte"},
		Folio:             []string{"folio", "numero_documento", "nro_documento"},
		IssueDate:         []string{"fecha_docto", "fecha_documento", "fecha_emision", "fecha"},
		CounterpartRUT:    []string{"rut_cliente", "rut_proveedor", "rut_contraparte", "rut"},
		CounterpartName:   []string{"razon_social", "nombre"},
		Net:               []string{"monto_neto", "neto"},
		Exempt:            []string{"monto_exento", "exento"},
		VAT:               []string{"monto_iva", "iva"},
		RecoverableVAT:    []string{"monto_iva_recuperable", "iva_recuperable"},
		NonRecoverableVAT: []string{"monto_iva_no_recuperable", "iva_no_recuperable"},
		DeclaredTotal:     []string{"monto_total", "total"},
	}
}

// Schema maps the logical fields of a document to the columns of one file.
// It is resolved once per file; empty strings mark optional columns that are absent.
type Schema struct {
	TypeCode        string
	Folio           string
	IssueDate       string
	CounterpartRUT  string
	CounterpartName string
	Net             string
	Exempt          string
	VAT             string
	RecoverableVAT  string

	// Purchase exports split VAT into recoverable and non-recoverable
	// columns; without a VAT column the two are added up.
	NonRecoverableVAT string
	DeclaredTotal     string

	// OtherTaxes holds the columns selected by the classifier, in header order
	OtherTaxes []string
}

// ResolveSchema matches a file header against the aliases. A file without
// a type code, an issue date or a declared total is rejected with a
// *SchemaError.
func ResolveSchema(header []string, aliases ColumnAliases, classifier TaxFieldClassifier) (*Schema, error) {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	pick := func(candidates []string) string {
		for _, c := range candidates {
			if present[c] {
				return c
			}
		}
		return ""
	}

	s := &Schema{
		TypeCode:          pick(aliases.TypeCode),
		Folio:             pick(aliases.Folio),
		IssueDate:         pick(aliases.IssueDate),
		CounterpartRUT:    pick(aliases.CounterpartRUT),
		CounterpartName:   pick(aliases.CounterpartName),
		Net:               pick(aliases.Net),
		Exempt:            pick(aliases.Exempt),
		VAT:               pick(aliases.VAT),
		RecoverableVAT:    pick(aliases.RecoverableVAT),
		NonRecoverableVAT: pick(aliases.NonRecoverableVAT),
		DeclaredTotal:     pick(aliases.DeclaredTotal),
	}

	var missing []string
	for _, req := range []struct {
		column  string
		aliases []string
	}{
		{s.TypeCode, aliases.TypeCode},
		{s.IssueDate, aliases.IssueDate},
		{s.DeclaredTotal, aliases.DeclaredTotal},
	} {
		if req.column == "" {
			name := "(unnamed)"
			if len(req.aliases) > 0 {
				name = req.aliases[0]
			}
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	if classifier == nil {
		classifier = DefaultClassifier()
	}
	claimed := s.claimed()
	for _, h := range header {
		if !claimed[h] && classifier.IsOtherTax(h) {
			s.OtherTaxes = append(s.OtherTaxes, h)
		}
	}

	return s, nil
}

// claimed returns the columns already bound to a logical field, which can
// never be counted again as other taxes.
func (s *Schema) claimed() map[string]bool {
	claimed := make(map[string]bool)
	for _, c := range []string{
		s.TypeCode, s.Folio, s.IssueDate, s.CounterpartRUT, s.CounterpartName,
		s.Net, s.Exempt, s.VAT, s.RecoverableVAT, s.NonRecoverableVAT, s.DeclaredTotal,
	} {
		if c != "" {
			claimed[c] = true
		}
	}
	return claimed
}

// Row builds the typed document row for one record. Missing or malformed
// values become zero; nothing here fails.
func (s *Schema) Row(index int, rec map[string]string) models.RawDocumentRow {
	amount := func(column string) decimal.Decimal {
		if column == "" {
			return decimal.Zero
		}
		return utils.ParseAmount(rec[column])
	}
	text := func(column string) string {
		if column == "" {
			return ""
		}
		return utils.SanitizeString(rec[column])
	}

	row := models.RawDocumentRow{
		Index:           index,
		TypeCode:        utils.ParseTypeCode(rec[s.TypeCode]),
		Folio:           text(s.Folio),
		IssueDate:       text(s.IssueDate),
		CounterpartRUT:  text(s.CounterpartRUT),
		CounterpartName: text(s.CounterpartName),
		Net:             amount(s.Net),
		Exempt:          amount(s.Exempt),
		VAT:             amount(s.VAT),
		RecoverableVAT:  amount(s.RecoverableVAT),
		DeclaredTotal:   amount(s.DeclaredTotal),
	}

	// Purchase exports split VAT instead of carrying a Monto IVA column
	if s.VAT == "" && (s.RecoverableVAT != "" || s.NonRecoverableVAT != "") {
		row.VAT = row.RecoverableVAT.Add(amount(s.NonRecoverableVAT))
	}

	for _, column := range s.OtherTaxes {
		v := amount(column)
		if v.IsZero() {
			continue
		}
		if row.OtherTaxes == nil {
			row.OtherTaxes = make(map[string]decimal.Decimal, len(s.OtherTaxes))
		}
		row.OtherTaxes[column] = v
	}

	return row
}
