package apperrors

import "errors"

var (
	ErrInvalidProfile    = errors.New("invalid entity profile")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrDuplicateHeader   = errors.New("duplicate header")
	ErrMappingMismatch   = errors.New("header mapping does not cover table headers")
	ErrEmptyInput        = errors.New("empty input")
	ErrInvalidOverride   = errors.New("invalid entity type override")
)
