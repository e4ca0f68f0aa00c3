package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoTarget is returned when neither a positional argument nor
	// --list provides a URL. The CLI fills in DefaultURL first, so this
	// only surfaces for empty list files.
	ErrNoTarget = errors.New("no target specified: provide a URL or use --list")

	// ErrInvalidURL is the sentinel wrapped by InvalidURLError.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrMissingHost is returned for http(s) URLs without a host.
	ErrMissingHost = errors.New("missing host")

	// ErrUnsupportedScheme is returned for schemes the browser is not
	// asked to open.
	ErrUnsupportedScheme = errors.New("unsupported scheme: use http, https, file, about or data")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidLinger is returned when the linger duration is negative.
	ErrInvalidLinger = errors.New("invalid linger: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidQuality is returned when the quality is outside 1..100.
	ErrInvalidQuality = errors.New("invalid quality: must be between 1 and 100")

	// ErrInvalidThreshold is returned when the threshold is outside 0..1.
	ErrInvalidThreshold = errors.New("invalid threshold: must be between 0 and 1")

	// ErrInvalidWindowSize is returned for a non-positive window dimension.
	ErrInvalidWindowSize = errors.New("invalid window size: width and height must be positive")
)

// InvalidURLError describes a target URL that failed validation.
type InvalidURLError struct {
	URL string
	Err error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid URL %q: %v", e.URL, e.Err)
}

// Unwrap returns both the underlying cause and ErrInvalidURL so that
// errors.Is works for either.
func (e *InvalidURLError) Unwrap() []error {
	return []error{ErrInvalidURL, e.Err}
}
