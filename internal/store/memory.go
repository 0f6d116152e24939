package store

import (
	"context"
	"sort"
	"sync"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// Memory is an in-process Store. Contents are lost on exit; it backs
// DB_DRIVER=memory and the pipeline tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]core.Record
	audit   []core.AuditRecord
	members map[memberKey]core.Membership
}

type memberKey struct{ tenantID, userID string }

var _ Backend = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]core.Record),
		members: make(map[memberKey]core.Membership),
	}
}

// Driver reports "memory".
func (m *Memory) Driver() string { return DriverMemory }

// Close is a no-op.
func (m *Memory) Close() {}

// UpsertMembership creates or replaces a membership.
func (m *Memory) UpsertMembership(_ context.Context, mem core.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[memberKey{mem.TenantID, mem.UserID}] = mem
	return nil
}

func (m *Memory) GetMembership(_ context.Context, tenantID, userID string) (core.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[memberKey{tenantID, userID}]
	if !ok {
		return core.Membership{}, core.ErrNotMember
	}
	return mem, nil
}

func (m *Memory) InsertRecord(_ context.Context, rec core.Record) (core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tagTaken(rec.TenantID, rec.SchemaKey, rec.Tag, "") {
		return core.Record{}, core.ErrDuplicateTag
	}
	rec.Values = copyValues(rec.Values)
	m.records[rec.ID] = rec
	return cloneRecord(rec), nil
}

func (m *Memory) UpdateRecord(_ context.Context, tenantID, id string, patch core.RecordPatch) (core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok || rec.TenantID != tenantID {
		return core.Record{}, core.ErrNotFound
	}
	if patch.Tag != nil && *patch.Tag != rec.Tag && m.tagTaken(tenantID, rec.SchemaKey, *patch.Tag, id) {
		return core.Record{}, core.ErrDuplicateTag
	}

	applyPatch(&rec, patch)
	m.records[id] = rec
	return cloneRecord(rec), nil
}

func (m *Memory) GetRecord(_ context.Context, tenantID, id string) (core.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok || rec.TenantID != tenantID {
		return core.Record{}, core.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *Memory) SelectRecords(_ context.Context, tenantID string, f core.RecordFilter) ([]core.Record, error) {
	m.mu.RLock()
	var out []core.Record
	for _, rec := range m.records {
		if rec.TenantID != tenantID || !matches(rec, f) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return page(out, f.Offset, f.Limit), nil
}

func (m *Memory) AppendAudit(_ context.Context, recs []core.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		if r.OldValue != nil {
			old := *r.OldValue
			r.OldValue = &old
		}
		m.audit = append(m.audit, r)
	}
	return nil
}

func (m *Memory) ListAudit(_ context.Context, tenantID, entityID string, limit int) ([]core.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.AuditRecord
	for i := len(m.audit) - 1; i >= 0; i-- {
		a := m.audit[i]
		if a.TenantID != tenantID || a.EntityID != entityID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// tagTaken reports whether another record in the tenant and schema
// already uses tag. Empty tags never collide.
func (m *Memory) tagTaken(tenantID, schemaKey, tag, exceptID string) bool {
	if tag == "" {
		return false
	}
	for id, r := range m.records {
		if id != exceptID && r.TenantID == tenantID && r.SchemaKey == schemaKey && r.Tag == tag {
			return true
		}
	}
	return false
}

func matches(rec core.Record, f core.RecordFilter) bool {
	if f.SchemaKey != "" && rec.SchemaKey != f.SchemaKey {
		return false
	}
	if f.OwnerID != "" && rec.OwnerID != f.OwnerID {
		return false
	}
	if f.Tag != "" && rec.Tag != f.Tag {
		return false
	}
	return true
}

func page(recs []core.Record, offset, limit int) []core.Record {
	if offset > 0 {
		if offset >= len(recs) {
			return []core.Record{}
		}
		recs = recs[offset:]
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	if recs == nil {
		return []core.Record{}
	}
	return recs
}

func cloneRecord(r core.Record) core.Record {
	r.Values = copyValues(r.Values)
	return r
}

func copyValues(v map[string]string) map[string]string {
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
