package core

import "context"

// RecordStore persists inventory records. Every call is scoped to one tenant.
type RecordStore interface {
	// InsertRecord creates a record. A tag that already exists for the
	// tenant and schema returns ErrDuplicateTag.
	InsertRecord(ctx context.Context, rec Record) (Record, error)

	// UpdateRecord merges patch into the record and bumps UpdatedAt.
	// Returns ErrNotFound when the record is not in the tenant and
	// ErrDuplicateTag when a new tag collides with another record.
	UpdateRecord(ctx context.Context, tenantID, id string, patch RecordPatch) (Record, error)

	// GetRecord returns one record or ErrNotFound.
	GetRecord(ctx context.Context, tenantID, id string) (Record, error)

	// SelectRecords returns records matching filter, oldest first.
	SelectRecords(ctx context.Context, tenantID string, filter RecordFilter) ([]Record, error)
}

// RecordPatch is a partial update. Values are merged key by key; nil
// pointers leave the corresponding column unchanged.
type RecordPatch struct {
	Values  map[string]string
	Name    *string
	Tag     *string
	OwnerID *string
}

// AuditStore is the append-only change log.
type AuditStore interface {
	AppendAudit(ctx context.Context, recs []AuditRecord) error

	// ListAudit returns entries for one entity, newest first.
	ListAudit(ctx context.Context, tenantID, entityID string, limit int) ([]AuditRecord, error)
}

// MembershipSource resolves tenant memberships. It returns ErrNotMember
// when the user has no membership in the tenant.
type MembershipSource interface {
	GetMembership(ctx context.Context, tenantID, userID string) (Membership, error)
}

// Store bundles the persistence dependencies of the Service.
type Store interface {
	RecordStore
	AuditStore
	MembershipSource
}

// SourceArchive keeps a copy of confirmed upload files.
// internal/blob provides the implementations.
type SourceArchive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}
