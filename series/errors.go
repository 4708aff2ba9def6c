/*
errors.go - Error types for the series engine

PURPOSE:
  All error types of the densifier in one place. Callers match them with
  errors.Is / errors.As; the api package maps them to HTTP statuses.

ERROR CATEGORIES:
  1. Input errors - unparsable dates, unknown granularity, inverted range
  2. Size errors  - ranges that would enumerate too many buckets
  3. Lookup errors - unknown series source

SEE ALSO:
  - range.go: Produces RangeError
  - registry.go: Produces ErrSourceNotFound
  - api/handlers.go: Maps errors to status codes
*/
package series

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when a date is not a valid ISO calendar date.
	ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

	// ErrInvalidRange is returned when a range starts after it ends or is not
	// of the form "START,END".
	ErrInvalidRange = errors.New("invalid date range")

	// ErrInvalidGranularity is returned for anything but daily, weekly or monthly.
	ErrInvalidGranularity = errors.New("granularity must be: daily, weekly, or monthly")

	// ErrRangeTooLarge is returned when enumeration would exceed MaxBuckets.
	ErrRangeTooLarge = errors.New("date range too large for granularity")

	// ErrSourceNotFound is returned when no series source is registered under an ID.
	ErrSourceNotFound = errors.New("series source not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RangeError reports an inverted range.
type RangeError struct {
	Start Date
	End   Date
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid date range: start %s is after end %s", e.Start, e.End)
}

func (e *RangeError) Unwrap() error {
	return ErrInvalidRange
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidGranularity) ||
		errors.Is(err, ErrRangeTooLarge)
}

// IsNotFound returns true if the error indicates a missing source.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSourceNotFound)
}
