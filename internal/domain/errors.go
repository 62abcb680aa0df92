package domain

import "errors"

// Shared failure taxonomy. Handlers map these to response codes in one
// place instead of redefining per call site.
var (
	// ErrRunDenied signals an active exclusion window. Recoverable;
	// the caller retries after the window passes.
	ErrRunDenied = errors.New("run denied")

	ErrMarkerNotFound      = errors.New("marker not found")
	ErrEnvironmentNotFound = errors.New("test environment not found")

	// ErrUnsupportedProject means no parameter mapping is configured
	// for the project's type.
	ErrUnsupportedProject = errors.New("unsupported project type")

	// ErrInvalidReport marks a malformed ingestion payload. Dropped,
	// not retried by this service.
	ErrInvalidReport = errors.New("invalid test report")
)
