package services

import "errors"

var (
	// ErrParsingFailed wraps failures while reading an uploaded file into
	// raw rows. Row-level problems never surface here; those degrade to
	// sentinels and the issues report.
	ErrParsingFailed = errors.New("failed to parse uploaded file")

	ErrDatasetNotFound = errors.New("dataset not found")
	ErrHouseNotFound   = errors.New("house not found")
	ErrInvalidName     = errors.New("invalid name")
)
