package ledger

import (
	"time"

	"github.com/garyjia/sii-reconciler/internal/models"
	"github.com/shopspring/decimal"
)

// DateResolver turns a raw issue date into a calendar date
type DateResolver func(raw string) (time.Time, bool)

// NormalizeOptions are the accounting policies applied when deriving
// aggregation figures
type NormalizeOptions struct {
	// IncludeOtherTaxesInNet folds other taxes into the tax-exclusive net.
	// By default they only count in total and cost_real.
	IncludeOtherTaxesInNet bool
}

// Normalizer derives NormalizedDocuments from validated ones
type Normalizer struct {
	resolve DateResolver
	opts    NormalizeOptions
}

// NewNormalizer creates a Normalizer using resolve for issue dates
func NewNormalizer(resolve DateResolver, opts NormalizeOptions) *Normalizer {
	return &Normalizer{resolve: resolve, opts: opts}
}

// Normalize derives the signed net, total and (for purchases) cost_real of
// a document. ok is false when its issue date cannot be resolved.
func (n *Normalizer) Normalize(doc models.ValidatedDocument) (models.NormalizedDocument, bool) {
	date, ok := n.resolve(doc.IssueDate)
	if !ok {
		return models.NormalizedDocument{}, false
	}

	sign := doc.Sign()
	base := doc.Net.Add(doc.Exempt)
	other := doc.OtherTaxesTotal()

	net := base
	if n.opts.IncludeOtherTaxesInNet {
		net = net.Add(other)
	}

	out := models.NormalizedDocument{
		Category: doc.Category,
		TypeCode: doc.TypeCode,
		Folio:    doc.Folio,
		Date:     date,
		Net:      net.Mul(sign),
		Total:    base.Add(doc.VAT).Add(other).Mul(sign),
	}

	if doc.Category == models.CategoryPurchase {
		nonRecoverable := decimal.Max(decimal.Zero, doc.VAT.Sub(doc.RecoverableVAT))
		out.NonRecoverableVAT = nonRecoverable.Mul(sign)
		out.CostReal = base.Add(nonRecoverable).Add(other).Mul(sign)
		out.HasCostReal = true
	}

	return out, true
}

// NormalizeAll normalizes every valid document. Documents whose date cannot
// be resolved are returned separately instead of being dropped.
func (n *Normalizer) NormalizeAll(valid []models.ValidatedDocument) (docs []models.NormalizedDocument, undated []models.ValidatedDocument) {
	docs = make([]models.NormalizedDocument, 0, len(valid))
	for _, v := range valid {
		d, ok := n.Normalize(v)
		if !ok {
			undated = append(undated, v)
			continue
		}
		docs = append(docs, d)
	}
	return docs, undated
}
