// Package analysis runs uploaded ledger files through ingestion,
// reconciliation and normalization, and aggregates the results of any
// number of files into a period report.
package analysis

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/sii-reconciler/internal/ingest"
	"github.com/garyjia/sii-reconciler/internal/ledger"
	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/garyjia/sii-reconciler/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds the per-file policies. Changing any of them requires the
// files to be loaded again.
type Config struct {
	Tolerance              decimal.Decimal
	IncludeOtherTaxesInNet bool
	Aliases                ledger.ColumnAliases
	Classifier             ledger.TaxFieldClassifier
}

// DefaultConfig returns the SII defaults: tolerance 1, other taxes kept out of net
func DefaultConfig() Config {
	return Config{
		Tolerance:  ledger.DefaultTolerance,
		Aliases:    ledger.DefaultColumnAliases(),
		Classifier: ledger.DefaultClassifier(),
	}
}

// FileResult is one loaded file, reconciled and normalized
type FileResult struct {
	Name            string
	Category        models.Category
	Columns         []string
	OtherTaxColumns []string
	Rows            int
	Batch           *models.ValidationBatch
	Documents       []models.NormalizedDocument
	Undated         []models.ValidatedDocument
	InvalidRUTs     int
	Summary         FileSummary
	LoadedAt        time.Time
}

// FileOverview is the serializable digest of a FileResult
type FileOverview struct {
	Name            string          `json:"name"`
	Category        models.Category `json:"category"`
	Rows            int             `json:"rows"`
	Valid           int             `json:"valid"`
	Invalid         int             `json:"invalid"`
	Undated         int             `json:"undated"`
	InvalidRUTs     int             `json:"invalid_ruts"`
	OtherTaxColumns []string        `json:"other_tax_columns,omitempty"`
	Summary         FileSummary     `json:"summary"`
	LoadedAt        time.Time       `json:"loaded_at"`
}

// Overview returns the digest of the file
func (f *FileResult) Overview() FileOverview {
	return FileOverview{
		Name:            f.Name,
		Category:        f.Category,
		Rows:            f.Rows,
		Valid:           len(f.Batch.Valid),
		Invalid:         len(f.Batch.Invalid),
		Undated:         len(f.Undated),
		InvalidRUTs:     f.InvalidRUTs,
		OtherTaxColumns: f.OtherTaxColumns,
		Summary:         f.Summary,
		LoadedAt:        f.LoadedAt,
	}
}

// Service loads ledger files and builds reports
type Service struct {
	config     Config
	validator  *ledger.Validator
	normalizer *ledger.Normalizer
	logger     *zap.Logger
}

// NewService creates a new analysis service
func NewService(config Config, logger *zap.Logger) *Service {
	if config.Classifier == nil {
		config.Classifier = ledger.DefaultClassifier()
	}
	return &Service{
		config:    config,
		validator: ledger.NewValidator(config.Tolerance),
		normalizer: ledger.NewNormalizer(ingest.ParseDate, ledger.NormalizeOptions{
			IncludeOtherTaxesInNet: config.IncludeOtherTaxesInNet,
		}),
		logger: logger,
	}
}

// Tolerance returns the reconciliation tolerance in effect
func (s *Service) Tolerance() decimal.Decimal {
	return s.validator.Tolerance()
}

// LoadFile reads one ledger export and reconciles every row. A file that
// lacks a structural column fails with a *ledger.SchemaError; bad values
// inside rows never fail.
func (s *Service) LoadFile(ctx context.Context, name string, category models.Category, r io.Reader) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := ingest.Read(name, r)
	if err != nil {
		return nil, err
	}

	schema, err := ledger.ResolveSchema(table.Header, s.config.Aliases, s.config.Classifier)
	if err != nil {
		s.logger.Warn("File rejected",
			zap.String("file", name),
			zap.Strings("columns", table.Header),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]models.RawDocumentRow, 0, len(table.Records))
	invalidRUTs := 0
	for i, rec := range table.Records {
		row := schema.Row(i, rec)
		if row.CounterpartRUT != "" {
			if err := utils.ValidateRUT(row.CounterpartRUT); err != nil {
				invalidRUTs++
				s.logger.Debug("Counterpart RUT failed check digit",
					zap.String("file", name),
					zap.Int("row", i),
					zap.String("rut", row.CounterpartRUT))
			}
		}
		rows = append(rows, row)
	}

	batch := s.validator.ValidateAll(rows, category)
	for _, doc := range batch.Invalid {
		s.logger.Debug("Document does not reconcile",
			zap.String("file", name),
			zap.Int("row", doc.Index),
			zap.String("folio", doc.Folio),
			zap.String("difference", doc.Difference.String()))
	}

	docs, undated := s.normalizer.NormalizeAll(batch.Valid)

	result := &FileResult{
		Name:            name,
		Category:        category,
		Columns:         table.Header,
		OtherTaxColumns: schema.OtherTaxes,
		Rows:            len(rows),
		Batch:           batch,
		Documents:       docs,
		Undated:         undated,
		InvalidRUTs:     invalidRUTs,
		Summary:         Summarize(docs),
		LoadedAt:        time.Now().UTC(),
	}

	s.logger.Info("File loaded",
		zap.String("file", name),
		zap.String("category", string(category)),
		zap.Int("rows", result.Rows),
		zap.Int("valid", len(batch.Valid)),
		zap.Int("invalid", len(batch.Invalid)),
		zap.Int("undated", len(undated)),
		zap.String("excluded_total", batch.ExcludedTotal().String()),
		zap.String("predominant_month", result.Summary.PredominantMonth))

	return result, nil
}
