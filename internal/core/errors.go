package core

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when an actor lacks the privilege for a mutation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotMember is returned when an actor has no membership in the tenant.
	ErrNotMember = errors.New("not a member of this tenant")

	// ErrNotFound is returned by stores when a record does not exist in the tenant.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateTag is returned by stores when the identifying tag already exists.
	// The message keeps the "duplicate key" wording so MapError classifies it.
	ErrDuplicateTag = errors.New("duplicate key: identifying tag already exists")

	// ErrUnknownSchema is returned for a schema key that was never registered.
	ErrUnknownSchema = errors.New("unknown schema")

	// ErrPreviewNotFound is returned when confirming or discarding an unknown preview.
	ErrPreviewNotFound = errors.New("preview not found")

	// ErrPreviewExpired is returned when a preview outlived its confirmation window.
	ErrPreviewExpired = errors.New("preview expired")

	// ErrEmptyDataset is returned when a preview has no headers or no rows.
	ErrEmptyDataset = errors.New("empty file")

	// ErrUnknownField is returned when an edit names a field the schema lacks.
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidValue is returned when an edit fails a fatal field rule.
	ErrInvalidValue = errors.New("invalid value")
)

// ParseError reports a malformed binary container. It is fatal: no preview
// is produced when parsing fails this way.
type ParseError struct {
	Format string // "xlsx", "csv"
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PermissionError carries the actor and tenant of a denied mutation.
type PermissionError struct {
	ActorID  string
	TenantID string
	Reason   string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for user %s in tenant %s: %s", e.ActorID, e.TenantID, e.Reason)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }
