// Package apperr holds the sentinel errors shared across layers.
// Callers wrap them with the offending family and id; edges map them with
// errors.Is (HTTP status codes, MCP tool errors, CLI exit).
package apperr

import "errors"

var (
	// ErrNotFound reports a missing record or an unknown family.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a stale If-Match checksum or an inverse claimed twice.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyExists reports a create over an existing record.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalid reports a record that fails validation.
	ErrInvalid = errors.New("invalid")
)
