package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/sii-reconciler/internal/analysis"
	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/garyjia/sii-reconciler/internal/period"
	"github.com/garyjia/sii-reconciler/internal/report"
	"github.com/garyjia/sii-reconciler/pkg/utils"
)

// maxParallelLoads bounds how many files are parsed at once
const maxParallelLoads = 4

type analyzeFlags struct {
	sales             []string
	purchases         []string
	granularity       string
	view              string
	tolerance         float64
	includeOtherTaxes bool
	export            string
	asJSON            bool
}

type inputFile struct {
	path     string
	category models.Category
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var f analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Reconcile ledger files and print the period table",
		Example: `  siirecon analyze --sales ventas_01.csv --sales ventas_02.csv --purchases compras.xlsx
  siirecon analyze --sales ventas.csv --granularity quarterly --view cash_movement --export resumen.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(f.sales)+len(f.purchases) == 0 {
				return fmt.Errorf("provide at least one --sales or --purchases file")
			}

			if cmd.Flags().Changed("tolerance") {
				if f.tolerance < 0 {
					return fmt.Errorf("tolerance must not be negative")
				}
				a.cfg.Analysis.Tolerance = f.tolerance
			}
			if cmd.Flags().Changed("include-other-taxes") {
				a.cfg.Analysis.IncludeOtherTaxesInNet = f.includeOtherTaxes
			}

			opts, err := resolveOptions(a.cfg.AnalysisOptions(), f.granularity, f.view)
			if err != nil {
				return err
			}

			svc := analysis.NewService(a.cfg.ToAnalysisConfig(), a.logger)

			var inputs []inputFile
			for _, p := range f.sales {
				inputs = append(inputs, inputFile{path: p, category: models.CategorySale})
			}
			for _, p := range f.purchases {
				inputs = append(inputs, inputFile{path: p, category: models.CategoryPurchase})
			}

			files, err := loadFiles(cmd.Context(), svc, inputs)
			if err != nil {
				return err
			}

			rep := svc.Analyze(files, opts)

			if f.export != "" {
				exporter := report.NewExcelExporter(a.cfg.Export.Sheets, a.logger)
				if err := writeExport(exporter, rep, f.export); err != nil {
					return err
				}
				a.logger.Info("Report exported", zap.String("path", f.export))
			}

			out := cmd.OutOrStdout()
			if f.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printReport(out, rep)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&f.sales, "sales", nil, "sales ledger file (repeatable)")
	cmd.Flags().StringArrayVar(&f.purchases, "purchases", nil, "purchase ledger file (repeatable)")
	cmd.Flags().StringVar(&f.granularity, "granularity", "", "monthly, quarterly or annual (default from config)")
	cmd.Flags().StringVar(&f.view, "view", "", "business_result or cash_movement (default from config)")
	cmd.Flags().Float64Var(&f.tolerance, "tolerance", 1, "max |declared - computed| for a valid document")
	cmd.Flags().BoolVar(&f.includeOtherTaxes, "include-other-taxes", false, "count other taxes as part of the net amount")
	cmd.Flags().StringVar(&f.export, "export", "", "write the report to this .xlsx file")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the report as JSON")

	return cmd
}

func resolveOptions(opts analysis.Options, granularity, view string) (analysis.Options, error) {
	if granularity != "" {
		g, err := period.ParseGranularity(granularity)
		if err != nil {
			return opts, err
		}
		opts.Granularity = g
	}
	if view != "" {
		v, err := period.ParseView(view)
		if err != nil {
			return opts, err
		}
		opts.View = v
	}
	return opts, nil
}

// loadFiles parses every input concurrently. Results keep input order; the
// first failure cancels the remaining loads.
func loadFiles(ctx context.Context, svc *analysis.Service, inputs []inputFile) ([]*analysis.FileResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]*analysis.FileResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)

	for i, in := range inputs {
		g.Go(func() error {
			fh, err := os.Open(in.path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", in.path, err)
			}
			defer fh.Close()

			res, err := svc.LoadFile(ctx, filepath.Base(in.path), in.category, fh)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func writeExport(exporter *report.ExcelExporter, rep *analysis.Report, path string) error {
	content, err := exporter.Bytes(rep)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func printReport(out io.Writer, rep *analysis.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(out, "Granularity: %s   View: %s   Tolerance: %s\n\n", rep.Granularity, rep.View, rep.Tolerance)

	fmt.Fprintln(w, "Period\tIncome\tExpense\tResult\tMargin\tSales\tPurchases\t")
	for _, row := range rep.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s%%\t%d\t%d\t\n",
			row.Period,
			utils.FormatCLP(row.Income),
			utils.FormatCLP(row.Expense),
			utils.FormatCLP(row.Result),
			row.MarginPct.StringFixed(2),
			row.SaleDocuments,
			row.PurchaseDocuments)
	}
	t := rep.Totals
	fmt.Fprintf(w, "Total\t%s\t%s\t%s\t%s%%\t%d\t%d\t\n",
		utils.FormatCLP(t.Income),
		utils.FormatCLP(t.Expense),
		utils.FormatCLP(t.Result),
		t.MarginPct.StringFixed(2),
		t.SaleDocuments,
		t.PurchaseDocuments)
	w.Flush()

	s := rep.Statistics
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Sales: %d documents, %d credit notes, average %s\n",
		s.SaleCount, s.CreditNotesSale, utils.FormatCLP(s.AvgSaleAmount))
	fmt.Fprintf(out, "Purchases: %d documents, %d credit notes, average %s\n",
		s.PurchaseCount, s.CreditNotesPurchase, utils.FormatCLP(s.AvgPurchaseAmount))

	fmt.Fprintln(out)
	fw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(fw, "File\tLedger\tRows\tValid\tInvalid\tUndated\tMain month\t")
	for _, f := range rep.Files {
		fmt.Fprintf(fw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t\n",
			f.Name, f.Category, f.Rows, f.Valid, f.Invalid, f.Undated, f.Summary.PredominantMonth)
	}
	fw.Flush()

	ex := rep.Exclusions
	if ex.InvalidCount > 0 || ex.UndatedCount > 0 {
		fmt.Fprintln(out)
	}
	if ex.InvalidCount > 0 {
		fmt.Fprintf(out, "Excluded (totals do not reconcile): %d documents, %s\n",
			ex.InvalidCount, utils.FormatCLP(ex.InvalidTotal))
	}
	if ex.UndatedCount > 0 {
		fmt.Fprintf(out, "Excluded (no usable date): %d documents, %s\n",
			ex.UndatedCount, utils.FormatCLP(ex.UndatedTotal))
	}
}
