package errors

import "errors"

var (
	ErrInvalidAuditEntry = errors.New("invalid audit entry")
	ErrEntryNotFound     = errors.New("audit entry not found")
	ErrEventConflict     = errors.New("audit event conflicts with a processed event")
)
