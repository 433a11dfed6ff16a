package config

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/sii-reconciler/internal/analysis"
	"github.com/garyjia/sii-reconciler/internal/ingest"
	"github.com/garyjia/sii-reconciler/internal/ledger"
	"github.com/garyjia/sii-reconciler/internal/period"
	"github.com/garyjia/sii-reconciler/internal/session"
	"github.com/garyjia/sii-reconciler/pkg/utils"
)

// ToAnalysisConfig converts the file-level policies into the analysis
// service configuration.
func (c *Config) ToAnalysisConfig() analysis.Config {
	return analysis.Config{
		Tolerance:              decimal.NewFromFloat(c.Analysis.Tolerance),
		IncludeOtherTaxesInNet: c.Analysis.IncludeOtherTaxesInNet,
		Aliases:                c.Columns.Aliases(),
		Classifier:             c.Columns.Classifier(),
	}
}

// AnalysisOptions returns the default aggregation options. Both values were
// checked by Validate, so parsing cannot fail here.
func (c *Config) AnalysisOptions() analysis.Options {
	opts := analysis.DefaultOptions()
	if g, err := period.ParseGranularity(c.Analysis.Granularity); err == nil {
		opts.Granularity = g
	}
	if v, err := period.ParseView(c.Analysis.View); err == nil {
		opts.View = v
	}
	return opts
}

// ToSessionConfig converts the session section
func (c *Config) ToSessionConfig() session.Config {
	return session.Config{
		TTL:                 c.Session.TTL,
		MaxFilesPerCategory: c.Session.MaxFilesPerCategory,
	}
}

// ToLoggerConfig converts the logger section
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
	}
}

// Aliases returns the column aliases with every name normalized
func (c ColumnsConfig) Aliases() ledger.ColumnAliases {
	return ledger.ColumnAliases{
		TypeCode:          normalizeAll(c.TypeCode),
		Folio:             normalizeAll(c.Folio),
		IssueDate:         normalizeAll(c.IssueDate),
		CounterpartRUT:    normalizeAll(c.CounterpartRUT),
		CounterpartName:   normalizeAll(c.CounterpartName),
		Net:               normalizeAll(c.Net),
		Exempt:            normalizeAll(c.Exempt),
		VAT:               normalizeAll(c.VAT),
		RecoverableVAT:    normalizeAll(c.RecoverableVAT),
		NonRecoverableVAT: normalizeAll(c.NonRecoverableVAT),
		DeclaredTotal:     normalizeAll(c.DeclaredTotal),
	}
}

// Classifier returns the other-tax classifier described by the section
func (c ColumnsConfig) Classifier() *ledger.PrefixClassifier {
	return &ledger.PrefixClassifier{
		Prefixes:       lowerAll(c.OtherTaxPrefixes),
		Names:          normalizeAll(c.OtherTaxNames),
		IgnorePrefixes: lowerAll(c.IgnorePrefixes),
	}
}

func normalizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if norm := ingest.NormalizeColumn(n); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}

// lowerAll keeps prefixes as written apart from case; normalizing would
// strip their trailing underscore.
func lowerAll(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
