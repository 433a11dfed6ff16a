package analysis

import (
	"time"

	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/garyjia/sii-reconciler/internal/period"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options select how an analysis is aggregated. They can change freely
// without reloading files.
type Options struct {
	Granularity period.Granularity
	View        period.View
}

// DefaultOptions aggregates monthly under the business result view
func DefaultOptions() Options {
	return Options{Granularity: period.Monthly, View: period.BusinessResult}
}

// Exclusions accounts for every document left out of the period figures
type Exclusions struct {
	InvalidCount int             `json:"invalid_count"`
	InvalidTotal decimal.Decimal `json:"invalid_total"`
	UndatedCount int             `json:"undated_count"`
	UndatedTotal decimal.Decimal `json:"undated_total"`
}

// Report is the outcome of aggregating a set of files
type Report struct {
	period.Summary
	Tolerance   decimal.Decimal            `json:"tolerance"`
	Files       []FileOverview             `json:"files"`
	Exclusions  Exclusions                 `json:"exclusions"`
	Invalid     []models.ValidatedDocument `json:"invalid"`
	Undated     []models.ValidatedDocument `json:"undated"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// Analyze aggregates the valid, dated documents of every file. It only
// reads the files, so it can be re-run with other options at no cost.
func (s *Service) Analyze(files []*FileResult, opts Options) *Report {
	if opts.Granularity == "" {
		opts.Granularity = period.Monthly
	}
	if opts.View == "" {
		opts.View = period.BusinessResult
	}

	var docs []models.NormalizedDocument
	report := &Report{
		Tolerance:   s.validator.Tolerance(),
		Files:       make([]FileOverview, 0, len(files)),
		GeneratedAt: time.Now().UTC(),
	}

	for _, f := range files {
		docs = append(docs, f.Documents...)
		report.Files = append(report.Files, f.Overview())
		report.Invalid = append(report.Invalid, f.Batch.Invalid...)
		report.Undated = append(report.Undated, f.Undated...)

		report.Exclusions.InvalidCount += f.Batch.ExcludedCount()
		report.Exclusions.InvalidTotal = report.Exclusions.InvalidTotal.Add(f.Batch.ExcludedTotal())
		report.Exclusions.UndatedCount += len(f.Undated)
		for _, u := range f.Undated {
			report.Exclusions.UndatedTotal = report.Exclusions.UndatedTotal.Add(u.DeclaredTotalSigned)
		}
	}

	report.Summary = period.Summarize(docs, opts.Granularity, opts.View)

	s.logger.Info("Analysis completed",
		zap.Int("files", len(files)),
		zap.String("granularity", string(opts.Granularity)),
		zap.String("view", string(opts.View)),
		zap.Int("periods", len(report.Rows)),
		zap.Int("documents", report.Totals.Documents()),
		zap.Int("invalid", report.Exclusions.InvalidCount),
		zap.Int("undated", report.Exclusions.UndatedCount))

	return report
}
