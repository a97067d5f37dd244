package types

import "errors"

var (
	// ErrEmptyText is returned when an embedding is requested for blank input.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrCircuitOpen is returned while the vector store refuses calls after
	// repeated backend failures.
	ErrCircuitOpen = errors.New("vector store circuit breaker is open due to repeated failures")

	// ErrNotInitialized is returned when a service is used before Initialize.
	ErrNotInitialized = errors.New("service is not initialized")

	// ErrPDFExtraction hides parser internals from callers.
	ErrPDFExtraction = errors.New("PDF extraction failed")

	// ErrNoChunksCreated is returned when ingestion produced nothing to index.
	ErrNoChunksCreated = errors.New("no chunks were created from the provided content")
)

// DownloadError wraps a failed download with the URL that caused it.
type DownloadError struct {
	Message string
	URL     string
	Cause   error
}

func (e *DownloadError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}
