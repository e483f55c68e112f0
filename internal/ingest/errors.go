// Package ingest is the write boundary of the store: it takes one parsed
// update from the feed collaborator, classifies it, validates it, and
// applies it as a single transaction.
//
// This file centralizes the error taxonomy. Validation errors mean the
// caller handed in a malformed or contract-violating update and retrying
// will not help; storage errors mean the backing store failed and the
// caller may retry. The two classes are kept distinguishable so upstream
// retry policy can branch on them.
package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPayload is returned when the inbound update carries none of
	// the fourteen payload objects. Nothing is written.
	ErrNoPayload = errors.New("update carries no payload")

	// ErrAmbiguousPayload is returned when the inbound update carries
	// more than one payload object. This is a contract violation in the
	// producer and is never silently repaired.
	ErrAmbiguousPayload = errors.New("update carries more than one payload")

	// ErrInvalidPayload wraps validation failures of the payload itself,
	// such as a missing required platform id. Nothing is written.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrStorage wraps failures of the backing store (constraint
	// violations, connectivity loss). The logical update was valid and
	// may be retried.
	ErrStorage = errors.New("storage failure")
)

// invalid marks err as a validation failure of the inbound payload.
func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
}

// storage marks err as a backing-store failure.
func storage(err error) error {
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
