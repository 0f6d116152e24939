package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// backends returns every driver that can run without external services.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	lite, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(lite.Close)
	return map[string]Backend{
		DriverMemory: NewMemory(),
		DriverSQLite: lite,
	}
}

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func record(id, tenant, tag string, offset time.Duration) core.Record {
	return core.Record{
		ID:        id,
		TenantID:  tenant,
		SchemaKey: "assets",
		OwnerID:   "u1",
		Name:      "Item " + id,
		Tag:       tag,
		Values:    map[string]string{"name": "Item " + id, "asset_tag": tag, "status": "ready"},
		CreatedAt: baseTime.Add(offset),
		UpdatedAt: baseTime.Add(offset),
	}
}

func TestBackend_Records(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := b.InsertRecord(ctx, record("r1", "t1", "A-1", 0)); err != nil {
				t.Fatalf("InsertRecord: %v", err)
			}

			got, err := b.GetRecord(ctx, "t1", "r1")
			if err != nil {
				t.Fatalf("GetRecord: %v", err)
			}
			if got.Tag != "A-1" || got.Values["status"] != "ready" || !got.CreatedAt.Equal(baseTime) {
				t.Errorf("GetRecord = %+v", got)
			}

			if _, err := b.GetRecord(ctx, "t2", "r1"); !errors.Is(err, core.ErrNotFound) {
				t.Errorf("other tenant GetRecord = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestBackend_DuplicateTag(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mustInsert(t, b, record("r1", "t1", "A-1", 0))

			tests := []struct {
				name    string
				rec     core.Record
				wantErr error
			}{
				{name: "same tenant same tag", rec: record("r2", "t1", "A-1", time.Second), wantErr: core.ErrDuplicateTag},
				{name: "other tenant same tag", rec: record("r3", "t2", "A-1", time.Second)},
				{name: "empty tags never collide", rec: record("r4", "t1", "", time.Second)},
				{name: "second empty tag", rec: record("r5", "t1", "", 2 * time.Second)},
			}
			for _, tt := range tests {
				_, err := b.InsertRecord(ctx, tt.rec)
				if tt.wantErr == nil && err != nil {
					t.Errorf("%s: got %v, want nil", tt.name, err)
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("%s: got %v, want %v", tt.name, err, tt.wantErr)
				}
			}

			if msg := core.MapError(func() error {
				_, err := b.InsertRecord(ctx, record("r6", "t1", "A-1", 0))
				return err
			}()); msg.Code != "DB001" {
				t.Errorf("MapError code = %q, want DB001", msg.Code)
			}
		})
	}
}

func TestBackend_UpdateRecord(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			mustInsert(t, b, record("r1", "t1", "A-1", 0))
			mustInsert(t, b, record("r2", "t1", "A-2", time.Second))

			newName, owner := "Renamed", "u9"
			got, err := b.UpdateRecord(ctx, "t1", "r1", core.RecordPatch{
				Values:  map[string]string{"status": "broken", "notes": "cracked"},
				Name:    &newName,
				OwnerID: &owner,
			})
			if err != nil {
				t.Fatalf("UpdateRecord: %v", err)
			}
			if got.Name != "Renamed" || got.OwnerID != "u9" || got.Tag != "A-1" {
				t.Errorf("updated = %+v", got)
			}
			if got.Values["status"] != "broken" || got.Values["notes"] != "cracked" || got.Values["asset_tag"] != "A-1" {
				t.Errorf("values = %v, want merged", got.Values)
			}
			if !got.UpdatedAt.After(got.CreatedAt) {
				t.Errorf("UpdatedAt %v not after CreatedAt %v", got.UpdatedAt, got.CreatedAt)
			}

			reread, _ := b.GetRecord(ctx, "t1", "r1")
			if reread.Values["status"] != "broken" {
				t.Errorf("reread status = %q, want broken", reread.Values["status"])
			}

			taken := "A-2"
			if _, err := b.UpdateRecord(ctx, "t1", "r1", core.RecordPatch{Tag: &taken}); !errors.Is(err, core.ErrDuplicateTag) {
				t.Errorf("tag collision = %v, want ErrDuplicateTag", err)
			}
			if _, err := b.UpdateRecord(ctx, "t2", "r1", core.RecordPatch{}); !errors.Is(err, core.ErrNotFound) {
				t.Errorf("other tenant update = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestBackend_SelectRecords(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 5; i++ {
				mustInsert(t, b, record(fmt.Sprintf("r%d", i), "t1", fmt.Sprintf("A-%d", i), time.Duration(i)*time.Second))
			}
			other := record("x1", "t1", "E-1", 10*time.Second)
			other.SchemaKey = "employees"
			mustInsert(t, b, other)
			mustInsert(t, b, record("y1", "t2", "A-1", 0))

			tests := []struct {
				name    string
				filter  core.RecordFilter
				wantIDs []string
			}{
				{name: "schema", filter: core.RecordFilter{SchemaKey: "assets"}, wantIDs: []string{"r0", "r1", "r2", "r3", "r4"}},
				{name: "all schemas", filter: core.RecordFilter{}, wantIDs: []string{"r0", "r1", "r2", "r3", "r4", "x1"}},
				{name: "limit", filter: core.RecordFilter{SchemaKey: "assets", Limit: 2}, wantIDs: []string{"r0", "r1"}},
				{name: "offset", filter: core.RecordFilter{SchemaKey: "assets", Limit: 2, Offset: 3}, wantIDs: []string{"r3", "r4"}},
				{name: "offset only", filter: core.RecordFilter{SchemaKey: "assets", Offset: 4}, wantIDs: []string{"r4"}},
				{name: "tag", filter: core.RecordFilter{Tag: "A-2"}, wantIDs: []string{"r2"}},
				{name: "no match", filter: core.RecordFilter{OwnerID: "nobody"}, wantIDs: []string{}},
			}
			for _, tt := range tests {
				got, err := b.SelectRecords(ctx, "t1", tt.filter)
				if err != nil {
					t.Fatalf("%s: SelectRecords: %v", tt.name, err)
				}
				ids := make([]string, len(got))
				for i, r := range got {
					ids[i] = r.ID
				}
				if fmt.Sprint(ids) != fmt.Sprint(tt.wantIDs) {
					t.Errorf("%s: got %v, want %v", tt.name, ids, tt.wantIDs)
				}
			}
		})
	}
}

func TestBackend_Audit(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			old := "ready"
			recs := []core.AuditRecord{
				{ID: "a1", TenantID: "t1", EntityID: "r1", FieldName: "Status", NewValue: "ready", ActorID: "u1", ActorDisplayName: "Ada", Source: core.SourceImport, Timestamp: baseTime},
				{ID: "a2", TenantID: "t1", EntityID: "r1", FieldName: "Status", OldValue: &old, NewValue: "broken", ActorID: "u1", ActorDisplayName: "Ada", Source: core.SourceEdit, Timestamp: baseTime.Add(time.Minute)},
				{ID: "a3", TenantID: "t1", EntityID: "r2", FieldName: "Name", NewValue: "x", ActorID: "u1", ActorDisplayName: "Ada", Source: core.SourceImport, Timestamp: baseTime},
			}
			if err := b.AppendAudit(ctx, recs); err != nil {
				t.Fatalf("AppendAudit: %v", err)
			}

			got, err := b.ListAudit(ctx, "t1", "r1", 0)
			if err != nil {
				t.Fatalf("ListAudit: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("got %d entries, want 2", len(got))
			}
			if got[0].ID != "a2" || got[1].ID != "a1" {
				t.Errorf("order = %s, %s, want newest first", got[0].ID, got[1].ID)
			}
			if got[0].OldValue == nil || *got[0].OldValue != "ready" {
				t.Errorf("OldValue = %v, want ready", got[0].OldValue)
			}
			if got[1].OldValue != nil {
				t.Errorf("OldValue = %q, want nil", *got[1].OldValue)
			}
			if got[0].Source != core.SourceEdit || !got[0].Timestamp.Equal(baseTime.Add(time.Minute)) {
				t.Errorf("entry = %+v", got[0])
			}

			limited, _ := b.ListAudit(ctx, "t1", "r1", 1)
			if len(limited) != 1 || limited[0].ID != "a2" {
				t.Errorf("limited = %+v, want only a2", limited)
			}
			if none, _ := b.ListAudit(ctx, "t2", "r1", 0); len(none) != 0 {
				t.Errorf("other tenant got %d entries, want 0", len(none))
			}
		})
	}
}

func TestBackend_Memberships(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := b.GetMembership(ctx, "t1", "u1"); !errors.Is(err, core.ErrNotMember) {
				t.Errorf("missing membership = %v, want ErrNotMember", err)
			}

			m := core.Membership{TenantID: "t1", UserID: "u1", Role: core.RoleUser, IsOwner: true, IsPrimary: true}
			if err := b.UpsertMembership(ctx, m); err != nil {
				t.Fatalf("UpsertMembership: %v", err)
			}
			got, err := b.GetMembership(ctx, "t1", "u1")
			if err != nil {
				t.Fatalf("GetMembership: %v", err)
			}
			if got != m {
				t.Errorf("got %+v, want %+v", got, m)
			}
			if eff := got.Resolve(); eff.Role != core.RoleAdmin {
				t.Errorf("resolved role = %q, want admin", eff.Role)
			}

			m.Role, m.IsOwner = core.RoleManager, false
			if err := b.UpsertMembership(ctx, m); err != nil {
				t.Fatalf("UpsertMembership: %v", err)
			}
			if got, _ := b.GetMembership(ctx, "t1", "u1"); got.Role != core.RoleManager || got.IsOwner {
				t.Errorf("after update got %+v", got)
			}
		})
	}
}

func TestBackend_ImportPipeline(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := b.UpsertMembership(ctx, core.Membership{TenantID: "t1", UserID: "mgr", Role: core.RoleManager}); err != nil {
				t.Fatalf("UpsertMembership: %v", err)
			}
			schema := &core.Schema{
				Key: "pipeline_" + name, NameField: "name", TagField: "tag",
				Fields: []core.FieldSpec{{Name: "name"}, {Name: "tag"}},
			}
			d := core.Parse("name,tag\r\nLaptop,A-1\r\nMonitor,A-2\r\nDupe,A-1\r\n")

			recorder := core.NewRecorder(b)
			report := core.NewImporter(b, recorder).Import(ctx, core.ImportRequest{
				ImportID: "imp",
				TenantID: "t1",
				Actor:    core.Actor{ID: "mgr"},
				Role:     core.Membership{TenantID: "t1", Role: core.RoleManager}.Resolve(),
				Schema:   schema,
				Preview:  core.Validate(d, schema),
			})
			if got := report.Summary(); got != "2 succeeded, 1 failed" {
				t.Fatalf("Summary() = %q", got)
			}
			hist, err := b.ListAudit(ctx, "t1", report.Succeeded[0].RecordID, 0)
			if err != nil || len(hist) != 2 {
				t.Errorf("audit = (%d entries, %v), want 2", len(hist), err)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	b, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || b.Driver() != DriverMemory {
		t.Fatalf("Open(memory) = (%v, %v)", b, err)
	}

	b, err = Open(ctx, Config{Driver: DriverSQLite, URL: ":memory:"})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	defer b.Close()
	if b.Driver() != DriverSQLite {
		t.Errorf("Driver() = %q, want sqlite", b.Driver())
	}

	if _, err := Open(ctx, Config{Driver: "oracle"}); err == nil {
		t.Error("unknown driver should fail")
	}
}

func mustInsert(t *testing.T, b Backend, rec core.Record) {
	t.Helper()
	if _, err := b.InsertRecord(context.Background(), rec); err != nil {
		t.Fatalf("InsertRecord(%s): %v", rec.ID, err)
	}
}

func TestSQLiteError(t *testing.T) {
	t.Run("message alone is not a duplicate", func(t *testing.T) {
		err := sqliteError("insert record", errors.New("UNIQUE constraint failed: inventory_records.tag"))
		if errors.Is(err, core.ErrDuplicateTag) {
			t.Errorf("got %v, want the error passed through", err)
		}
	})

	t.Run("driver unique violation", func(t *testing.T) {
		lite, err := OpenSQLite(context.Background(), ":memory:")
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		defer lite.Close()

		ctx := context.Background()
		if _, err := lite.InsertRecord(ctx, record("r1", "t1", "A-1", 0)); err != nil {
			t.Fatalf("InsertRecord: %v", err)
		}
		_, err = lite.InsertRecord(ctx, record("r2", "t1", "A-1", time.Second))
		if !errors.Is(err, core.ErrDuplicateTag) {
			t.Errorf("got %v, want ErrDuplicateTag", err)
		}
	})
}
