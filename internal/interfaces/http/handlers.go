package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/sii-reconciler/internal/analysis"
	"github.com/garyjia/sii-reconciler/internal/ingest"
	"github.com/garyjia/sii-reconciler/internal/ledger"
	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/garyjia/sii-reconciler/internal/period"
	"github.com/garyjia/sii-reconciler/internal/session"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Version is reported by the health check
var Version = "dev"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps      Dependencies
	maxUpload int64
	logger    *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, maxUpload int64, logger *zap.Logger) *Handlers {
	if deps.Defaults.Granularity == "" || deps.Defaults.View == "" {
		deps.Defaults = analysis.DefaultOptions()
	}
	return &Handlers{
		deps:      deps,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Sessions  int    `json:"sessions"`
}

// SchemaErrorData is returned with 422 when a file lacks structural columns
type SchemaErrorData struct {
	Missing []string `json:"missing"`
}

// UploadResponse describes a file accepted into a session
type UploadResponse struct {
	SessionID string                `json:"session_id"`
	File      analysis.FileOverview `json:"file"`
}

// InvalidResponse lists the documents that failed reconciliation
type InvalidResponse struct {
	Count     int                        `json:"count"`
	Total     decimal.Decimal            `json:"total"`
	Tolerance decimal.Decimal            `json:"tolerance"`
	Documents []models.ValidatedDocument `json:"documents"`
}

// ExportResponse is returned after a report was saved on the server
type ExportResponse struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

// ReportQuery holds the aggregation options of a report request
type ReportQuery struct {
	Granularity string `form:"granularity"`
	View        string `form:"view"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		Sessions:  h.deps.Sessions.Len(),
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateSession handles POST /api/sessions
func (h *Handlers) CreateSession(c *gin.Context) {
	s := h.deps.Sessions.Create()

	info, err := h.deps.Sessions.Info(s.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    info,
	})
}

// GetSession handles GET /api/sessions/:id
func (h *Handlers) GetSession(c *gin.Context) {
	info, err := h.deps.Sessions.Info(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    info,
	})
}

// DeleteSession handles DELETE /api/sessions/:id
func (h *Handlers) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.deps.Sessions.Delete(id); err != nil {
		h.respondError(c, err)
		return
	}

	if h.deps.Exports != nil {
		if err := h.deps.Exports.DeleteSession(id); err != nil {
			h.logger.Warn("Failed to remove session exports",
				zap.String("session_id", id),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// UploadFile handles POST /api/sessions/:id/files?category=sale|purchase
func (h *Handlers) UploadFile(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.deps.Sessions.Get(id); err != nil {
		h.respondError(c, err)
		return
	}

	category, err := models.ParseCategory(c.Query("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{
				Success: false,
				Error:   fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "multipart field \"file\" is required",
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	result, err := h.deps.Analysis.LoadFile(c.Request.Context(), header.Filename, category, file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.deps.Sessions.PutFile(id, result); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data: UploadResponse{
			SessionID: id,
			File:      result.Overview(),
		},
	})
}

// RemoveFile handles DELETE /api/sessions/:id/files/:category/:name
func (h *Handlers) RemoveFile(c *gin.Context) {
	category, err := models.ParseCategory(c.Param("category"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.deps.Sessions.RemoveFile(c.Param("id"), category, c.Param("name")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// GetReport handles GET /api/sessions/:id/report
func (h *Handlers) GetReport(c *gin.Context) {
	rep, ok := h.buildReport(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    rep,
	})
}

// GetInvalid handles GET /api/sessions/:id/invalid
func (h *Handlers) GetInvalid(c *gin.Context) {
	s, err := h.deps.Sessions.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := InvalidResponse{
		Tolerance: h.deps.Analysis.Tolerance(),
		Documents: make([]models.ValidatedDocument, 0),
	}
	for _, f := range s.Files() {
		resp.Documents = append(resp.Documents, f.Batch.Invalid...)
		resp.Count += f.Batch.ExcludedCount()
		resp.Total = resp.Total.Add(f.Batch.ExcludedTotal())
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// DownloadExport handles GET /api/sessions/:id/export
func (h *Handlers) DownloadExport(c *gin.Context) {
	rep, ok := h.buildReport(c)
	if !ok {
		return
	}

	content, err := h.deps.Exporter.Bytes(rep)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(rep)))
	c.Data(http.StatusOK, xlsxContentType, content)
}

// SaveExport handles POST /api/sessions/:id/export
func (h *Handlers) SaveExport(c *gin.Context) {
	if h.deps.Exports == nil {
		c.JSON(http.StatusNotImplemented, Response{
			Success: false,
			Error:   "export storage is not configured",
		})
		return
	}

	rep, ok := h.buildReport(c)
	if !ok {
		return
	}

	content, err := h.deps.Exporter.Bytes(rep)
	if err != nil {
		h.respondError(c, err)
		return
	}

	path, err := h.deps.Exports.SaveReport(c.Param("id"), exportName(rep), content)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    ExportResponse{Path: path, Size: len(content)},
	})
}

// buildReport resolves the session and options of the request and
// aggregates its files. On failure the response has been written.
func (h *Handlers) buildReport(c *gin.Context) (*analysis.Report, bool) {
	s, err := h.deps.Sessions.Get(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}

	opts, err := h.parseOptions(c)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}

	return h.deps.Analysis.Analyze(s.Files(), opts), true
}

func (h *Handlers) parseOptions(c *gin.Context) (analysis.Options, error) {
	opts := h.deps.Defaults

	var q ReportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return opts, err
	}

	if q.Granularity != "" {
		g, err := period.ParseGranularity(q.Granularity)
		if err != nil {
			return opts, err
		}
		opts.Granularity = g
	}
	if q.View != "" {
		v, err := period.ParseView(q.View)
		if err != nil {
			return opts, err
		}
		opts.View = v
	}
	return opts, nil
}

// respondError maps domain errors to status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	var schemaErr *ledger.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Data:    SchemaErrorData{Missing: schemaErr.Missing},
			Error:   err.Error(),
		})

	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrFileNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})

	case errors.Is(err, session.ErrTooManyFiles):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})

	case errors.Is(err, ingest.ErrUnsupportedFormat):
		c.JSON(http.StatusUnsupportedMediaType, Response{Success: false, Error: err.Error()})

	case errors.Is(err, models.ErrUnknownCategory),
		errors.Is(err, models.ErrInvalidGranularity),
		errors.Is(err, models.ErrInvalidView),
		errors.Is(err, ingest.ErrEmptyFile),
		errors.Is(err, ingest.ErrNoHeader),
		errors.Is(err, ingest.ErrMalformedFile):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})

	default:
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "internal error",
		})
	}
}

func exportName(rep *analysis.Report) string {
	return fmt.Sprintf("reporte_%s_%s_%s.xlsx",
		rep.Granularity, rep.View, rep.GeneratedAt.Format("20060102T150405"))
}
