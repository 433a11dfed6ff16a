package ingest

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file has no rows")
	ErrNoHeader          = errors.New("file has no header row")
	ErrMalformedFile     = errors.New("file could not be parsed")
)
