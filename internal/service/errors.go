package service

import "errors"

var (
	// ErrNotFound is returned when a note, message or questionnaire response does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when a request fails validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoArchive is returned when a record has no archived import to download
	ErrNoArchive = errors.New("no archived import")
)
