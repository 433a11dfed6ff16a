package models

import "errors"

var (
	ErrUnknownCategory    = errors.New("unknown document category")
	ErrInvalidGranularity = errors.New("invalid period granularity")
	ErrInvalidView        = errors.New("invalid accounting view")
)
