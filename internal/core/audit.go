package core

// audit.go derives field-level change records and appends them to the
// audit store. The log is append-only: entries are never updated, and
// replaying the same change writes it again.

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Changes compares previous and next and returns one AuditRecord per
// changed field. Only keys present in next are considered; a key missing
// from next means "not provided" and is skipped, while an empty value is
// an explicit clear. OldValue is nil when the field was absent before.
//
// Records are ordered by the schema's field order, then by name. s may be
// nil, in which case canonical names are used as display names.
func Changes(s *Schema, entityID string, previous, next map[string]string, actor Actor, source AuditSource, now time.Time) []AuditRecord {
	var out []AuditRecord
	for _, field := range changeOrder(s, next) {
		newValue := next[field]
		oldValue, existed := previous[field]
		if existed && oldValue == newValue {
			continue
		}

		rec := AuditRecord{
			EntityID:         entityID,
			FieldName:        field,
			NewValue:         newValue,
			ActorID:          actor.ID,
			ActorDisplayName: actor.DisplayName(),
			Source:           source,
			Timestamp:        now,
		}
		if s != nil {
			rec.FieldName = s.FieldLabel(field)
		}
		if existed {
			old := oldValue
			rec.OldValue = &old
		}
		out = append(out, rec)
	}
	return out
}

// changeOrder returns the keys of next in schema order, with any keys the
// schema does not know sorted at the end.
func changeOrder(s *Schema, next map[string]string) []string {
	ordered := make([]string, 0, len(next))
	seen := make(map[string]bool, len(next))
	if s != nil {
		for _, f := range s.Fields {
			if _, ok := next[f.Name]; ok {
				ordered = append(ordered, f.Name)
				seen[f.Name] = true
			}
		}
		for _, d := range s.Derived {
			if _, ok := next[d.Name]; ok && !seen[d.Name] {
				ordered = append(ordered, d.Name)
				seen[d.Name] = true
			}
		}
	}

	var rest []string
	for k := range next {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

// Recorder writes change records for one tenant's entities.
type Recorder struct {
	store AuditStore
	now   func() time.Time
}

// NewRecorder creates a recorder that appends to store.
func NewRecorder(store AuditStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// RecordChanges computes the changes between previous and next and appends
// them. The computed records are returned even when the append fails, so
// callers can log what was lost.
func (r *Recorder) RecordChanges(ctx context.Context, tenantID string, s *Schema, entityID string, previous, next map[string]string, actor Actor, source AuditSource) ([]AuditRecord, error) {
	recs := Changes(s, entityID, previous, next, actor, source, r.now().UTC())
	if len(recs) == 0 {
		return nil, nil
	}
	for i := range recs {
		recs[i].ID = uuid.NewString()
		recs[i].TenantID = tenantID
	}

	if err := r.store.AppendAudit(ctx, recs); err != nil {
		auditRecordsTotal.WithLabelValues("failed").Add(float64(len(recs)))
		return recs, fmt.Errorf("append audit: %w", err)
	}
	auditRecordsTotal.WithLabelValues("written").Add(float64(len(recs)))
	return recs, nil
}
