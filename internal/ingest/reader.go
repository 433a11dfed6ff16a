// Package ingest turns uploaded SII ledger exports (CSV or XLSX) into
// header-keyed records. It knows about delimiters, encodings and header
// spelling; it knows nothing about what the columns mean.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Record is one data row keyed by normalized column name.
// Lookups of absent columns yield "".
type Record map[string]string

// Table is the parsed content of one file
type Table struct {
	Name    string
	Header  []string // normalized, in file order, blanks dropped
	Records []Record
}

// Read parses a ledger export, choosing the parser from the file extension
func Read(name string, r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}

	var rows [][]string
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		rows, err = readCSV(data)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%s: %w: %q", name, ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w: %w", name, ErrMalformedFile, err)
	}

	table, err := buildTable(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	table.Name = name
	return table, nil
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		// Older SII exports and Excel "CSV" saves come out as Windows-1252
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode legacy encoding: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	return reader.ReadAll()
}

// sniffDelimiter picks the most frequent of ; , and tab on the header line.
// Ties go to ';', the SII default.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	best, bestCount := ';', bytes.Count(line, []byte{';'})
	for _, c := range []rune{',', '\t'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// Raw values keep dates as serial numbers and amounts unformatted
	opts := excelize.Options{RawCellValue: true}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if hasContent(rows) {
			return rows, nil
		}
	}
	return nil, ErrEmptyFile
}

func buildTable(rows [][]string) (*Table, error) {
	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, ErrNoHeader
	}

	rawHeader := rows[start]
	header := make([]string, 0, len(rawHeader))
	keys := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		keys[i] = NormalizeColumn(h)
		if keys[i] != "" {
			header = append(header, keys[i])
		}
	}
	if len(header) == 0 {
		return nil, ErrNoHeader
	}

	table := &Table{Header: header}
	for _, row := range rows[start+1:] {
		if isBlank(row) {
			continue
		}
		rec := make(Record, len(header))
		for i, key := range keys {
			if key == "" {
				continue
			}
			if _, dup := rec[key]; dup {
				continue // first column with a given name wins
			}
			if i < len(row) {
				rec[key] = strings.TrimSpace(row[i])
			} else {
				rec[key] = ""
			}
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func hasContent(rows [][]string) bool {
	for _, row := range rows {
		if !isBlank(row) {
			return true
		}
	}
	return false
}
