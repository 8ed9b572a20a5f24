package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSource means a mandatory source table is absent; fatal for a run
	ErrMissingSource = errors.New("missing source")
	// ErrMissingCredentials means a required secret is not configured
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrSourceUnavailable wraps network or API failures from venues and feeds
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDataShape means a source exists but its rows are malformed
	ErrDataShape = errors.New("unexpected data shape")
)

// MissingSourceError names the absent source
type MissingSourceError struct {
	Source string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("missing source: %s", e.Source)
}

// Unwrap lets errors.Is match ErrMissingSource
func (e *MissingSourceError) Unwrap() error {
	return ErrMissingSource
}

// PartialSyncError reports a venue whose partition was left untouched this run
type PartialSyncError struct {
	Venue string
	Err   error
}

func (e *PartialSyncError) Error() string {
	return fmt.Sprintf("sync failed for %s: %v", e.Venue, e.Err)
}

func (e *PartialSyncError) Unwrap() error {
	return e.Err
}

// SafeDiv returns num/den, or 0 when den is not positive
func SafeDiv(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}
