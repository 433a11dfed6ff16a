package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var columnReplacer = strings.NewReplacer(" ", "_", "\u00a0", "_", ".", "", "\t", "_")

// NormalizeColumn turns a raw header into its lookup key:
// " Monto IVA Recuperable " -> "monto_iva_recuperable", "Código Otro Imp." -> "codigo_otro_imp"
func NormalizeColumn(name string) string {
	s := strings.ToLower(strings.TrimSpace(stripAccents(name)))
	s = columnReplacer.Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
