package ledger

import (
	"errors"
	"strings"
)

// ErrMissingColumn means a file lacks a structural column and cannot be
// processed at all. It is never returned for bad values inside a row.
var ErrMissingColumn = errors.New("missing required column")

// SchemaError lists every structural column a file is missing
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

func (e *SchemaError) Unwrap() error {
	return ErrMissingColumn
}
