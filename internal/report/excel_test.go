package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/garyjia/sii-reconciler/internal/analysis"
	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/garyjia/sii-reconciler/internal/period"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func sampleReport() *analysis.Report {
	jan := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	docs := []models.NormalizedDocument{
		{Category: models.CategorySale, TypeCode: 33, Date: jan, Net: d(100000), Total: d(119000)},
		{Category: models.CategoryPurchase, TypeCode: 33, Date: jan, Net: d(30000), Total: d(35700), CostReal: d(30000), HasCostReal: true},
	}

	invalid := models.ValidatedDocument{
		RawDocumentRow: models.RawDocumentRow{
			Index: 2, TypeCode: 33, Folio: "103", IssueDate: "05/02/2025",
			CounterpartRUT: "11.111.111-2", CounterpartName: "Cliente Dos",
		},
		Category:            models.CategorySale,
		ComputedTotal:       d(11900),
		DeclaredTotalSigned: d(12000),
		Difference:          d(-100),
	}
	undated := models.ValidatedDocument{
		RawDocumentRow:      models.RawDocumentRow{Index: 3, TypeCode: 33, Folio: "104"},
		Category:            models.CategorySale,
		DeclaredTotalSigned: d(23800),
		IsValid:             true,
	}

	return &analysis.Report{
		Summary:   period.Summarize(docs, period.Monthly, period.BusinessResult),
		Tolerance: d(1),
		Files: []analysis.FileOverview{
			{Name: "ventas.csv", Category: models.CategorySale, Rows: 4, Valid: 3, Invalid: 1, Undated: 1},
		},
		Exclusions: analysis.Exclusions{
			InvalidCount: 1, InvalidTotal: d(12000),
			UndatedCount: 1, UndatedTotal: d(23800),
		},
		Invalid: []models.ValidatedDocument{invalid},
		Undated: []models.ValidatedDocument{undated},
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestExcelExporter_Export(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	exporter := NewExcelExporter(SheetNames{}, logger)

	data, err := exporter.Bytes(sampleReport())
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{"Resumen", "Estadisticas", "Archivos", "Rechazados", "Sin fecha"}, f.GetSheetList())

	t.Run("summary", func(t *testing.T) {
		rows, err := f.GetRows("Resumen", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(rows), 3)

		assert.Equal(t, "Periodo", rows[0][0])
		assert.Equal(t, []string{"2025-01", "100000", "30000", "70000", "70", "1", "1"}, rows[1])
		assert.Equal(t, "Total", rows[2][0])
		assert.Equal(t, "70000", rows[2][3])
	})

	t.Run("statistics", func(t *testing.T) {
		rows, err := f.GetRows("Estadisticas", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		values := make(map[string]string)
		for _, r := range rows[1:] {
			values[r[0]] = r[1]
		}
		assert.Equal(t, "1", values["Documentos de venta"])
		assert.Equal(t, "12000", values["Monto rechazado"])
		assert.Equal(t, "23800", values["Monto sin fecha"])
	})

	t.Run("invalid documents", func(t *testing.T) {
		rows, err := f.GetRows("Rechazados", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"sale", "3", "33", "103", "05/02/2025", "11.111.111-2", "Cliente Dos", "11900", "12000", "-100"}, rows[1])
	})

	t.Run("undated documents", func(t *testing.T) {
		rows, err := f.GetRows("Sin fecha", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "104", rows[1][3])
		assert.Equal(t, "23800", rows[1][6])
	})

	t.Run("files", func(t *testing.T) {
		rows, err := f.GetRows("Archivos", excelize.Options{RawCellValue: true})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "ventas.csv", rows[1][0])
		assert.Equal(t, "4", rows[1][2])
	})
}

func TestExcelExporter_CustomSheetNames(t *testing.T) {
	exporter := NewExcelExporter(SheetNames{Summary: "Summary", Undated: "Undated"}, zap.NewNop())

	data, err := exporter.Bytes(sampleReport())
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{"Summary", "Estadisticas", "Archivos", "Rechazados", "Undated"}, f.GetSheetList())
}

func TestExcelExporter_EmptyReport(t *testing.T) {
	exporter := NewExcelExporter(DefaultSheetNames(), zap.NewNop())

	data, err := exporter.Bytes(&analysis.Report{})
	require.NoError(t, err)

	f := openWorkbook(t, data)
	rows, err := f.GetRows("Resumen", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "Periodo", rows[0][0])
	assert.Equal(t, "Total", rows[1][0])

	rows, err = f.GetRows("Rechazados")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
