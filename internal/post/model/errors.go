package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both missing ids and tombstoned posts.
	ErrNotFound = errors.New("post not found")

	// ErrVersionConflict means the caller's expected version is stale; the
	// stored post was not touched. Refetch and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidCursor means the pagination token is malformed, forged, or
	// belongs to a different filter. Callers restart from the first page.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrIndexUnavailable is returned only before the bootstrap reindex has
	// produced a first generation.
	ErrIndexUnavailable = errors.New("search index unavailable")
)

// ValidationError reports a missing or empty required field.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}
