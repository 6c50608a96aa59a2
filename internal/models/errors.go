package models

import "errors"

// Ledger error taxonomy. Operations wrap these sentinels with context so
// callers can classify failures with errors.Is.
var (
	// ErrNotFound means the operation referenced an entity ID that does
	// not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument means a field was malformed or out of range.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidReference means a referenced entity of another type does
	// not exist (e.g. a model's provider).
	ErrInvalidReference = errors.New("invalid reference")
	// ErrAuditWrite means the audit step of a mutation could not complete.
	// The enclosing mutation must not commit.
	ErrAuditWrite = errors.New("audit write failed")
)
