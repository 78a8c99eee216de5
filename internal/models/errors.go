package models

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("concurrent modification")
	ErrInvalidEvent     = errors.New("invalid event")
	ErrMissingTargetRef = errors.New("missing target reference")
)
