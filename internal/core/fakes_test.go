package core

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// testSchema mirrors the shape of the asset schema without depending on
// the tables package.
func testSchema() *Schema {
	return &Schema{
		Key:        "test_assets",
		Label:      "Test assets",
		NameField:  "name",
		TagField:   "asset_tag",
		OwnerField: "custodian_id",
		Fields: []FieldSpec{
			{Name: "name", Label: "Name", Type: FieldString},
			{Name: "asset_tag", Label: "Asset tag", Aliases: []string{"tag"}, Type: FieldString},
			{Name: "status", Label: "Status", Type: FieldEnum, Default: "ready", EnumValues: []string{"ready", "deployed", "broken"}},
			{Name: "quantity", Label: "Quantity", Type: FieldInteger, Default: "1"},
			{Name: "purchase_date", Label: "Purchase date", Type: FieldDate},
			{Name: "custodian_id", Label: "Custodian", Type: FieldString},
			{Name: "notes", Label: "Notes", Type: FieldString, KeepWhitespace: true},
		},
		Derived: []DerivedField{
			{Name: "status_color", From: "status", Compute: func(v string) string {
				switch v {
				case "ready":
					return "green"
				case "broken":
					return "red"
				default:
					return "blue"
				}
			}},
		},
	}
}

var registerTestSchema sync.Once

// registeredTestSchema registers testSchema once for Service tests.
func registeredTestSchema() *Schema {
	registerTestSchema.Do(func() { Register(*testSchema()) })
	s, _ := Get("test_assets")
	return s
}

// fakeStore is an in-memory Store with failure hooks.
type fakeStore struct {
	mu          sync.Mutex
	records     map[string]Record
	audit       []AuditRecord
	members     map[string]Membership // tenantID + "/" + userID
	failTags    map[string]error      // InsertRecord fails for these tags
	failAudit   error
	insertCalls int
	onInsert    func(n int)
	onAudit     func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:  make(map[string]Record),
		members:  make(map[string]Membership),
		failTags: make(map[string]error),
	}
}

func (f *fakeStore) addMember(m Membership) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[m.TenantID+"/"+m.UserID] = m
}

func (f *fakeStore) GetMembership(_ context.Context, tenantID, userID string) (Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[tenantID+"/"+userID]
	if !ok {
		return Membership{}, ErrNotMember
	}
	return m, nil
}

func (f *fakeStore) InsertRecord(_ context.Context, rec Record) (Record, error) {
	f.mu.Lock()
	f.insertCalls++
	n := f.insertCalls
	hook := f.onInsert
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failTags[rec.Tag]; ok {
		return Record{}, err
	}
	for _, existing := range f.records {
		if rec.Tag != "" && existing.TenantID == rec.TenantID && existing.SchemaKey == rec.SchemaKey && existing.Tag == rec.Tag {
			return Record{}, ErrDuplicateTag
		}
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeStore) UpdateRecord(_ context.Context, tenantID, id string, patch RecordPatch) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.TenantID != tenantID {
		return Record{}, ErrNotFound
	}
	values := make(map[string]string, len(rec.Values))
	for k, v := range rec.Values {
		values[k] = v
	}
	for k, v := range patch.Values {
		values[k] = v
	}
	rec.Values = values
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Tag != nil {
		rec.Tag = *patch.Tag
	}
	if patch.OwnerID != nil {
		rec.OwnerID = *patch.OwnerID
	}
	f.records[id] = rec
	return rec, nil
}

func (f *fakeStore) GetRecord(_ context.Context, tenantID, id string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok || rec.TenantID != tenantID {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) SelectRecords(_ context.Context, tenantID string, filter RecordFilter) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for _, rec := range f.records {
		if rec.TenantID != tenantID || (filter.SchemaKey != "" && rec.SchemaKey != filter.SchemaKey) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) AppendAudit(_ context.Context, recs []AuditRecord) error {
	if f.onAudit != nil {
		f.onAudit()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAudit != nil {
		return f.failAudit
	}
	f.audit = append(f.audit, recs...)
	return nil
}

func (f *fakeStore) ListAudit(_ context.Context, tenantID, entityID string, limit int) ([]AuditRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AuditRecord
	for i := len(f.audit) - 1; i >= 0; i-- {
		a := f.audit[i]
		if a.TenantID == tenantID && a.EntityID == entityID {
			out = append(out, a)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) auditFor(entityID string) []AuditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []AuditRecord
	for _, a := range f.audit {
		if a.EntityID == entityID {
			out = append(out, a)
		}
	}
	return out
}

// fakeArchive records Put calls.
type fakeArchive struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (a *fakeArchive) Put(_ context.Context, key string, _ []byte, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.keys = append(a.keys, key)
	return nil
}

var errStoreDown = errors.New("connection refused")
