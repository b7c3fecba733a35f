package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("note not found")
	ErrVersionConflict    = errors.New("version conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTransport          = errors.New("transport failure")
	ErrDecode             = errors.New("link invalid")
	ErrSearchUnavailable  = errors.New("search unavailable")
)

// ValidationError wraps ErrValidation with a human readable reason.
func ValidationError(reason string) error {
	return fmt.Errorf("%w: %s", ErrValidation, reason)
}

// VersionConflictError is returned when an update names a version that is no
// longer current. Current holds the stored note at the time of the check.
type VersionConflictError struct {
	NoteID   string
	Expected int64
	Current  *Note
}

func (e *VersionConflictError) Error() string {
	if e.Current == nil {
		return fmt.Sprintf("version conflict on note %s: expected version %d", e.NoteID, e.Expected)
	}
	return fmt.Sprintf("version conflict on note %s: expected version %d, current version %d",
		e.NoteID, e.Expected, e.Current.Version)
}

func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// SearchError reports a failed semantic search. Status is the HTTP status of
// the search call, or zero when the service answered with an unsuccessful
// envelope or could not be reached. Err holds the transport failure, if any.
type SearchError struct {
	Status int
	Detail string
	Err    error
}

func (e *SearchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("search failed (status %d): %s", e.Status, e.Detail)
	}
	return "search failed: " + e.Detail
}

func (e *SearchError) Is(target error) bool {
	return target == ErrSearchUnavailable
}

func (e *SearchError) Unwrap() error { return e.Err }

// Unreachable reports whether the search service failed at the transport or
// HTTP level, as opposed to answering with an unsuccessful envelope.
func (e *SearchError) Unreachable() bool {
	return e.Status != 0 || e.Err != nil
}
