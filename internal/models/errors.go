package models

import "errors"

// Sentinel errors shared across packages. Callers classify failures
// with errors.Is; transport layers map them onto status codes.
var (
	// ErrNoDocumentsLoaded indicates every file in an ingest batch was
	// unsupported or failed to parse.
	ErrNoDocumentsLoaded = errors.New("no documents could be loaded")

	// ErrNoContentExtracted indicates a page was fetched but contained
	// no usable text.
	ErrNoContentExtracted = errors.New("no content extracted")

	// ErrFetchFailed indicates the page could not be retrieved at all:
	// timeout, connection failure or a non-success HTTP status.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrIndexMissing indicates no persisted index exists. It is the
	// expected state before the first ingestion and after a clear.
	ErrIndexMissing = errors.New("index missing")

	// ErrIndexCorrupt indicates a persisted index is present but could
	// not be loaded. Recovery is recreate-from-scratch on next ingest.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrNoDocumentsIndexed indicates a question was asked before any
	// ingestion. A client error, not a server fault.
	ErrNoDocumentsIndexed = errors.New("no documents indexed")

	// ErrModelFailure indicates the embedding model or the LLM call
	// failed. Surfaced as an external-dependency error, never retried.
	ErrModelFailure = errors.New("model call failed")
)
