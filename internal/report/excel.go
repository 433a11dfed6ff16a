// Package report renders analysis reports as Excel workbooks
package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/garyjia/sii-reconciler/internal/analysis"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetNames names every sheet of the workbook
type SheetNames struct {
	Summary    string `mapstructure:"summary"`
	Statistics string `mapstructure:"statistics"`
	Files      string `mapstructure:"files"`
	Invalid    string `mapstructure:"invalid"`
	Undated    string `mapstructure:"undated"`
}

// DefaultSheetNames returns the Spanish sheet names users expect
func DefaultSheetNames() SheetNames {
	return SheetNames{
		Summary:    "Resumen",
		Statistics: "Estadisticas",
		Files:      "Archivos",
		Invalid:    "Rechazados",
		Undated:    "Sin fecha",
	}
}

const (
	amountFormat  = `#,##0;[Red]-#,##0`
	percentFormat = `0.00;[Red]-0.00`
)

// ExcelExporter writes a report as an XLSX workbook
type ExcelExporter struct {
	sheets SheetNames
	logger *zap.Logger
}

// NewExcelExporter creates a new exporter. Empty sheet names fall back to
// the defaults.
func NewExcelExporter(sheets SheetNames, logger *zap.Logger) *ExcelExporter {
	def := DefaultSheetNames()
	for _, p := range []struct{ name, fallback *string }{
		{&sheets.Summary, &def.Summary},
		{&sheets.Statistics, &def.Statistics},
		{&sheets.Files, &def.Files},
		{&sheets.Invalid, &def.Invalid},
		{&sheets.Undated, &def.Undated},
	} {
		if *p.name == "" {
			*p.name = *p.fallback
		}
	}
	return &ExcelExporter{sheets: sheets, logger: logger}
}

// styles holds the style ids registered on one workbook
type styles struct {
	header  int
	amount  int
	percent int
	total   int
}

// Export writes the workbook for r to w
func (e *ExcelExporter) Export(w io.Writer, r *analysis.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := registerStyles(f)
	if err != nil {
		return err
	}

	if err := f.SetSheetName(f.GetSheetName(0), e.sheets.Summary); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	for _, name := range []string{e.sheets.Statistics, e.sheets.Files, e.sheets.Invalid, e.sheets.Undated} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
	}

	for _, write := range []func(*excelize.File, styles, *analysis.Report) error{
		e.writeSummary,
		e.writeStatistics,
		e.writeFiles,
		e.writeInvalid,
		e.writeUndated,
	} {
		if err := write(f, st, r); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Report exported",
		zap.Int("periods", len(r.Rows)),
		zap.Int("invalid", len(r.Invalid)),
		zap.Int("undated", len(r.Undated)))
	return nil
}

// Bytes renders the workbook in memory
func (e *ExcelExporter) Bytes(r *analysis.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Export(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func registerStyles(f *excelize.File) (styles, error) {
	amount, percent := amountFormat, percentFormat
	defs := []*excelize.Style{
		{
			Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
			Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#1F4E78"}},
		},
		{CustomNumFmt: &amount},
		{CustomNumFmt: &percent},
		{
			Font:         &excelize.Font{Bold: true},
			Border:       []excelize.Border{{Type: "top", Color: "#000000", Style: 1}},
			CustomNumFmt: &amount,
		},
	}

	ids := make([]int, len(defs))
	for i, def := range defs {
		id, err := f.NewStyle(def)
		if err != nil {
			return styles{}, fmt.Errorf("failed to create style: %w", err)
		}
		ids[i] = id
	}
	return styles{header: ids[0], amount: ids[1], percent: ids[2], total: ids[3]}, nil
}

func (e *ExcelExporter) writeSummary(f *excelize.File, st styles, r *analysis.Report) error {
	sheet := e.sheets.Summary
	t := newTable(f, sheet)

	t.header(st.header, "Periodo", "Ingresos", "Egresos", "Resultado", "Margen %", "Docs venta", "Docs compra")
	for _, row := range r.Rows {
		t.row(row.Period, money(row.Income), money(row.Expense), money(row.Result),
			money(row.MarginPct), row.SaleDocuments, row.PurchaseDocuments)
	}
	first, last := 2, t.next-1
	totals := t.next
	t.row("Total", money(r.Totals.Income), money(r.Totals.Expense), money(r.Totals.Result),
		money(r.Totals.MarginPct), r.Totals.SaleDocuments, r.Totals.PurchaseDocuments)

	t.skip()
	t.row("Granularidad", string(r.Granularity))
	t.row("Vista", string(r.View))
	t.row("Tolerancia", money(r.Tolerance))
	t.row("Generado", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	if last >= first {
		t.style("B", first, "D", last, st.amount)
		t.style("E", first, "E", last, st.percent)
	}
	t.style("A", totals, "G", totals, st.total)
	t.style("E", totals, "E", totals, st.percent)
	t.widths(map[string]float64{"A": 14, "B": 16, "C": 16, "D": 16, "E": 10, "F": 12, "G": 12})
	return t.err
}

func (e *ExcelExporter) writeStatistics(f *excelize.File, st styles, r *analysis.Report) error {
	s := r.Statistics
	x := r.Exclusions
	t := newTable(f, e.sheets.Statistics)

	t.header(st.header, "Indicador", "Valor")
	t.row("Documentos de venta", s.SaleCount)
	t.row("Documentos de compra", s.PurchaseCount)
	t.row("Notas de crédito en ventas", s.CreditNotesSale)
	t.row("Notas de crédito en compras", s.CreditNotesPurchase)
	amounts := t.next
	t.row("Venta promedio", money(s.AvgSaleAmount))
	t.row("Compra promedio", money(s.AvgPurchaseAmount))
	t.row("Documentos rechazados", x.InvalidCount)
	t.row("Monto rechazado", money(x.InvalidTotal))
	t.row("Documentos sin fecha", x.UndatedCount)
	t.row("Monto sin fecha", money(x.UndatedTotal))

	t.style("B", amounts, "B", amounts+1, st.amount)
	t.style("B", amounts+3, "B", amounts+3, st.amount)
	t.style("B", amounts+5, "B", amounts+5, st.amount)
	t.widths(map[string]float64{"A": 30, "B": 16})
	return t.err
}

func (e *ExcelExporter) writeFiles(f *excelize.File, st styles, r *analysis.Report) error {
	t := newTable(f, e.sheets.Files)

	t.header(st.header, "Archivo", "Categoría", "Filas", "Válidos", "Rechazados", "Sin fecha",
		"RUT inválidos", "Mes predominante", "Participación %", "Total")
	for _, fo := range r.Files {
		t.row(fo.Name, string(fo.Category), fo.Rows, fo.Valid, fo.Invalid, fo.Undated,
			fo.InvalidRUTs, fo.Summary.PredominantMonth, money(fo.Summary.PredominantShare), money(fo.Summary.Total))
	}
	if n := len(r.Files); n > 0 {
		t.style("I", 2, "I", n+1, st.percent)
		t.style("J", 2, "J", n+1, st.amount)
	}
	t.widths(map[string]float64{"A": 30, "B": 12, "H": 18, "I": 16, "J": 16})
	return t.err
}

func (e *ExcelExporter) writeInvalid(f *excelize.File, st styles, r *analysis.Report) error {
	t := newTable(f, e.sheets.Invalid)

	t.header(st.header, "Categoría", "Fila", "Tipo", "Folio", "Fecha", "RUT", "Razón social",
		"Total calculado", "Total informado", "Diferencia")
	for _, doc := range r.Invalid {
		t.row(string(doc.Category), doc.Index+1, doc.TypeCode, doc.Folio, doc.IssueDate,
			doc.CounterpartRUT, doc.CounterpartName,
			money(doc.ComputedTotal), money(doc.DeclaredTotalSigned), money(doc.Difference))
	}
	if n := len(r.Invalid); n > 0 {
		t.style("H", 2, "J", n+1, st.amount)
	}
	t.widths(map[string]float64{"D": 12, "E": 12, "F": 14, "G": 30, "H": 16, "I": 16, "J": 14})
	return t.err
}

func (e *ExcelExporter) writeUndated(f *excelize.File, st styles, r *analysis.Report) error {
	t := newTable(f, e.sheets.Undated)

	t.header(st.header, "Categoría", "Fila", "Tipo", "Folio", "Fecha informada", "RUT", "Total informado")
	for _, doc := range r.Undated {
		t.row(string(doc.Category), doc.Index+1, doc.TypeCode, doc.Folio, doc.IssueDate,
			doc.CounterpartRUT, money(doc.DeclaredTotalSigned))
	}
	if n := len(r.Undated); n > 0 {
		t.style("G", 2, "G", n+1, st.amount)
	}
	t.widths(map[string]float64{"E": 16, "F": 14, "G": 16})
	return t.err
}

// money converts an amount for a numeric cell
func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

// table appends rows to one sheet and keeps the first error it meets
type table struct {
	f     *excelize.File
	sheet string
	next  int
	err   error
}

func newTable(f *excelize.File, sheet string) *table {
	return &table{f: f, sheet: sheet, next: 1}
}

func (t *table) row(values ...interface{}) {
	if t.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, t.next)
	if err == nil {
		err = t.f.SetSheetRow(t.sheet, cell, &values)
	}
	if err != nil {
		t.err = fmt.Errorf("failed to write %s row %d: %w", t.sheet, t.next, err)
		return
	}
	t.next++
}

func (t *table) header(style int, titles ...string) {
	values := make([]interface{}, len(titles))
	for i, title := range titles {
		values[i] = title
	}
	row := t.next
	t.row(values...)
	if len(titles) > 0 {
		last, _ := excelize.ColumnNumberToName(len(titles))
		t.style("A", row, last, row, style)
	}
}

func (t *table) skip() {
	t.next++
}

func (t *table) style(fromCol string, fromRow int, toCol string, toRow int, style int) {
	if t.err != nil {
		return
	}
	if err := t.f.SetCellStyle(t.sheet, fmt.Sprintf("%s%d", fromCol, fromRow), fmt.Sprintf("%s%d", toCol, toRow), style); err != nil {
		t.err = fmt.Errorf("failed to style %s: %w", t.sheet, err)
	}
}

func (t *table) widths(cols map[string]float64) {
	for col, width := range cols {
		if t.err != nil {
			return
		}
		if err := t.f.SetColWidth(t.sheet, col, col, width); err != nil {
			t.err = fmt.Errorf("failed to size %s column %s: %w", t.sheet, col, err)
		}
	}
}
