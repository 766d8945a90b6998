package errors

import "errors"

// Sentinel errors for common error conditions
var (
	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstream indicates that a remote collaborator (LLM, search,
	// rerank) failed or returned something unusable
	ErrUpstream = errors.New("upstream call failed")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrEmptyCorpus indicates that no documents have been ingested yet
	ErrEmptyCorpus = errors.New("document corpus is empty")

	// ErrMalformedOutput indicates that a model emitted structured output
	// that could not be parsed
	ErrMalformedOutput = errors.New("malformed model output")
)
