package model

import "errors"

// Sentinel kinds for model errors.
var (
	ErrUnknownRole      = errors.New("unknown role")
	ErrInvalidSelection = errors.New("invalid selection")
)
