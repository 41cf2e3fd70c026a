package tracking

import "errors"

var (
	// ErrUnsupportedFormat is returned when an import payload matches none of the known shapes
	ErrUnsupportedFormat = errors.New("unsupported import format")
	// ErrRecordNotFound is returned when no tracking record exists for a (patient, condition) pair
	ErrRecordNotFound = errors.New("tracking record not found")
	// ErrEntryNotFound is returned when no entry exists at the requested timestamp
	ErrEntryNotFound = errors.New("tracking entry not found")
	// ErrDuplicateEntry is returned when an entry already exists at the exact same timestamp
	ErrDuplicateEntry = errors.New("an entry already exists at this timestamp")
	// ErrInvalidCondition is returned for a condition type outside the supported set
	ErrInvalidCondition = errors.New("invalid condition type")
)

// ErrInvalidRange is returned when a date range ends before it starts
var ErrInvalidRange = errors.New("invalid date range")
