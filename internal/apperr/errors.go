// Package apperr defines the sentinel errors shared across Inkwell layers.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a requested document does not exist
	// (or has been tombstoned).
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on a revision mismatch during an
	// optimistically-concurrent write or delete.
	ErrConflict = errors.New("conflict")

	// ErrIO wraps underlying storage failures.
	ErrIO = errors.New("storage failure")

	// ErrIDGeneration is returned when note-id generation exhausts its
	// collision-retry budget.
	ErrIDGeneration = errors.New("id generation failed")

	// ErrDefaultFolder is returned on an attempt to delete or rename the
	// default folder, which must always exist.
	ErrDefaultFolder = errors.New("default folder is protected")

	// ErrInvariant signals detected divergence between the document store
	// and the in-memory index.
	ErrInvariant = errors.New("invariant violation")
)
