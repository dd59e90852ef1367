package service

import (
	"errors"
)

// Sentinel errors returned by the Service.
var (
	// ErrEmptyRoster means the service roster could not be loaded or was empty.
	ErrEmptyRoster = errors.New("roster unavailable")
	// ErrNotLoaded means no refresh has completed yet.
	ErrNotLoaded = errors.New("view not loaded")
	// ErrNotStarted means Start has not been called.
	ErrNotStarted = errors.New("service not started")
	// ErrUnknownPrecinct means the requested precinct is not in the current view.
	ErrUnknownPrecinct = errors.New("unknown precinct")
)
