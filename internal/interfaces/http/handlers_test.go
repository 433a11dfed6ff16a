package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/sii-reconciler/internal/analysis"
	"github.com/garyjia/sii-reconciler/internal/period"
	"github.com/garyjia/sii-reconciler/internal/report"
	"github.com/garyjia/sii-reconciler/internal/session"
	"github.com/garyjia/sii-reconciler/internal/storage"
)

const salesCSV = `Tipo Doc;Rut cliente;Razon Social;Folio;Fecha Docto;Monto Exento;Monto Neto;Monto IVA;Monto total
33;76.086.428-5;Cliente Uno;101;15/01/2025;0;100000;19000;119000
33;76.086.428-5;Cliente Uno;102;05/02/2025;0;10000;1900;12000
`

const purchasesCSV = `Tipo Doc;RUT Proveedor;Razon Social;Folio;Fecha Docto;Monto Exento;Monto Neto;Monto IVA Recuperable;Monto Total
33;96.790.240-3;Proveedor Uno;501;2025-01-20;0;30000;5700;35700
`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testEnv struct {
	server   *Server
	sessions *session.Store
	exports  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	exportDir := t.TempDir()

	sessions := session.NewStore(session.DefaultConfig(), logger)
	cfg := DefaultServerConfig()
	cfg.MaxUploadMB = 1

	server := NewServer(cfg, Dependencies{
		Analysis: analysis.NewService(analysis.DefaultConfig(), logger),
		Sessions: sessions,
		Exporter: report.NewExcelExporter(report.DefaultSheetNames(), logger),
		Exports:  storage.NewExportStore(exportDir, logger),
		Defaults: analysis.DefaultOptions(),
	}, logger)

	return &testEnv{server: server, sessions: sessions, exports: exportDir}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	e.server.Router().ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != xlsxContentType {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	w, env := e.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var info session.Info
	require.NoError(t, json.Unmarshal(env.Data, &info))
	return info.ID
}

func uploadRequest(t *testing.T, url, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (e *testEnv) upload(t *testing.T, id, category, filename, content string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	return e.do(t, uploadRequest(t, "/api/sessions/"+id+"/files?category="+category, filename, content))
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(resp.Data, &health))
	assert.Equal(t, "healthy", health.Status)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	w, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	require.Equal(t, http.StatusOK, w.Code)
	var info session.Info
	require.NoError(t, json.Unmarshal(resp.Data, &info))
	assert.Equal(t, id, info.ID)
	assert.Empty(t, info.Files)

	w, _ = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp = env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "session not found")
}

func TestUploadFile(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	t.Run("accepts a sales ledger", func(t *testing.T) {
		w, resp := env.upload(t, id, "ventas", "ventas_2025.csv", salesCSV)

		require.Equal(t, http.StatusCreated, w.Code, resp.Error)
		var up UploadResponse
		require.NoError(t, json.Unmarshal(resp.Data, &up))
		assert.Equal(t, "ventas_2025.csv", up.File.Name)
		assert.Equal(t, 2, up.File.Rows)
		assert.Equal(t, 1, up.File.Valid)
		assert.Equal(t, 1, up.File.Invalid)
		assert.Equal(t, "2025-01", up.File.Summary.PredominantMonth)
	})

	t.Run("missing structural column is 422", func(t *testing.T) {
		w, resp := env.upload(t, id, "sale", "bad.csv", "Folio;Monto Neto\n1;100\n")

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var data SchemaErrorData
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, []string{"tipo_doc", "fecha_docto", "monto_total"}, data.Missing)
	})

	t.Run("unknown category is 400", func(t *testing.T) {
		w, _ := env.upload(t, id, "honorarios", "ventas.csv", salesCSV)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unsupported extension is 415", func(t *testing.T) {
		w, _ := env.upload(t, id, "sale", "ventas.pdf", salesCSV)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("empty file is 400", func(t *testing.T) {
		w, _ := env.upload(t, id, "sale", "ventas.csv", "  \n")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file field is 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/files?category=sale", nil)
		w, _ := env.do(t, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized upload is 413", func(t *testing.T) {
		big := salesCSV + string(bytes.Repeat([]byte("x"), 2<<20))
		w, _ := env.upload(t, id, "sale", "big.csv", big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		w, _ := env.upload(t, "missing", "sale", "ventas.csv", salesCSV)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRemoveFile(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	w, _ := env.upload(t, id, "sale", "ventas.csv", salesCSV)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id+"/files/sale/ventas.csv", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id+"/files/sale/ventas.csv", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id+"/files/otro/ventas.csv", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func loadedSession(t *testing.T, env *testEnv) string {
	t.Helper()
	id := env.createSession(t)
	w, resp := env.upload(t, id, "sale", "ventas.csv", salesCSV)
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	w, resp = env.upload(t, id, "purchase", "compras.csv", purchasesCSV)
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	return id
}

func TestGetReport(t *testing.T) {
	env := newTestEnv(t)
	id := loadedSession(t, env)

	t.Run("defaults to monthly business result", func(t *testing.T) {
		w, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/report", nil))
		require.Equal(t, http.StatusOK, w.Code, resp.Error)

		var rep analysis.Report
		require.NoError(t, json.Unmarshal(resp.Data, &rep))
		assert.Equal(t, period.Monthly, rep.Granularity)
		assert.Equal(t, period.BusinessResult, rep.View)
		require.Len(t, rep.Rows, 1)
		row := rep.Rows[0]
		assert.Equal(t, "2025-01", row.Period)
		assert.True(t, row.Income.Equal(decimal.NewFromInt(100000)), "income = %s", row.Income)
		assert.True(t, row.Expense.Equal(decimal.NewFromInt(30000)), "expense = %s", row.Expense)
		assert.True(t, row.MarginPct.Equal(decimal.NewFromInt(70)), "margin = %s", row.MarginPct)
		assert.Equal(t, 1, rep.Exclusions.InvalidCount)
		assert.True(t, rep.Exclusions.InvalidTotal.Equal(decimal.NewFromInt(12000)))
		assert.Len(t, rep.Files, 2)
	})

	t.Run("cash movement annual", func(t *testing.T) {
		w, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/report?granularity=anual&view=cash_movement", nil))
		require.Equal(t, http.StatusOK, w.Code, resp.Error)

		var rep analysis.Report
		require.NoError(t, json.Unmarshal(resp.Data, &rep))
		require.Len(t, rep.Rows, 1)
		assert.Equal(t, "2025", rep.Rows[0].Period)
		assert.True(t, rep.Rows[0].Income.Equal(decimal.NewFromInt(119000)))
		assert.True(t, rep.Rows[0].Expense.Equal(decimal.NewFromInt(35700)))
	})

	t.Run("bad granularity is 400", func(t *testing.T) {
		w, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/report?granularity=weekly", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad view is 400", func(t *testing.T) {
		w, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/report?view=accrual", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("empty session yields empty report", func(t *testing.T) {
		empty := env.createSession(t)
		w, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+empty+"/report", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var rep analysis.Report
		require.NoError(t, json.Unmarshal(resp.Data, &rep))
		assert.Empty(t, rep.Rows)
		assert.True(t, rep.Totals.Income.IsZero())
	})
}

func TestGetInvalid(t *testing.T) {
	env := newTestEnv(t)
	id := loadedSession(t, env)

	w, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/invalid", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var inv InvalidResponse
	require.NoError(t, json.Unmarshal(resp.Data, &inv))
	assert.Equal(t, 1, inv.Count)
	require.Len(t, inv.Documents, 1)
	assert.Equal(t, "102", inv.Documents[0].Folio)
	assert.True(t, inv.Documents[0].Difference.Equal(decimal.NewFromInt(-100)))
	assert.True(t, inv.Tolerance.Equal(decimal.NewFromInt(1)))
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	id := loadedSession(t, env)

	t.Run("download", func(t *testing.T) {
		w, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/export?granularity=quarterly", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "reporte_quarterly_business_result_")

		f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		assert.Contains(t, f.GetSheetList(), report.DefaultSheetNames().Summary)
	})

	t.Run("save on server", func(t *testing.T) {
		w, resp := env.do(t, httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/export", nil))
		require.Equal(t, http.StatusCreated, w.Code, resp.Error)

		var saved ExportResponse
		require.NoError(t, json.Unmarshal(resp.Data, &saved))
		assert.FileExists(t, saved.Path)
		info, err := os.Stat(saved.Path)
		require.NoError(t, err)
		assert.Equal(t, int64(saved.Size), info.Size())

		// deleting the session removes its exports
		w, _ = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.NoFileExists(t, saved.Path)
	})

	t.Run("unknown session is 404", func(t *testing.T) {
		w, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sessions/nope/export", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
