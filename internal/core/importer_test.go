package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func newTestImporter(store *fakeStore) *Importer {
	return NewImporter(store, NewRecorder(store))
}

func importRequest(t *testing.T, role Role, d TabularDataset) ImportRequest {
	t.Helper()
	s := testSchema()
	return ImportRequest{
		ImportID: "imp-1",
		TenantID: "t1",
		Actor:    Actor{ID: "u1", FullName: "Ada"},
		Role:     Membership{TenantID: "t1", Role: role}.Resolve(),
		Schema:   s,
		Preview:  Validate(d, s),
	}
}

func assetRows(n int) TabularDataset {
	d := TabularDataset{Headers: []string{"name", "asset_tag", "status"}}
	for i := 0; i < n; i++ {
		d.Rows = append(d.Rows, []string{fmt.Sprintf("Item %d", i), fmt.Sprintf("T-%d", i), "ready"})
	}
	return d
}

func TestImporter_AllRowsSucceed(t *testing.T) {
	store := newFakeStore()
	report := newTestImporter(store).Import(context.Background(), importRequest(t, RoleManager, assetRows(4)))

	if len(report.Succeeded) != 4 || len(report.Failed) != 0 {
		t.Fatalf("report = %s, want 4 succeeded", report.Summary())
	}
	if got := report.Summary(); got != "4 succeeded, 0 failed" {
		t.Errorf("Summary() = %q", got)
	}

	for i, o := range report.Succeeded {
		if o.RowIndex != i {
			t.Errorf("outcome %d RowIndex = %d", i, o.RowIndex)
		}
		rec, err := store.GetRecord(context.Background(), "t1", o.RecordID)
		if err != nil {
			t.Fatalf("GetRecord: %v", err)
		}
		if rec.OwnerID != "u1" {
			t.Errorf("OwnerID = %q, want actor u1", rec.OwnerID)
		}
		if rec.Values["custodian_id"] != rec.OwnerID {
			t.Errorf("custodian_id = %q, want owner %q", rec.Values["custodian_id"], rec.OwnerID)
		}
		if rec.Values["status_color"] != "green" {
			t.Errorf("status_color = %q, want green", rec.Values["status_color"])
		}

		audit := store.auditFor(o.RecordID)
		if len(audit) == 0 {
			t.Fatalf("no audit records for %s", o.RecordID)
		}
		for _, a := range audit {
			if a.Source != SourceImport || a.OldValue != nil {
				t.Errorf("audit = %+v, want import source with nil old value", a)
			}
		}
	}
}

func TestImporter_DuplicateDoesNotStopBatch(t *testing.T) {
	store := newFakeStore()
	d := assetRows(5)
	d.Rows[3][1] = d.Rows[1][1] // row 3 repeats row 1's tag

	report := newTestImporter(store).Import(context.Background(), importRequest(t, RoleManager, d))

	if len(report.Succeeded) != 4 || len(report.Failed) != 1 {
		t.Fatalf("report = %s, want 4 succeeded, 1 failed", report.Summary())
	}
	failed := report.Failed[0]
	if failed.RowIndex != 3 {
		t.Errorf("failed RowIndex = %d, want 3", failed.RowIndex)
	}
	if failed.Identifier != "Item 3" {
		t.Errorf("failed Identifier = %q, want Item 3", failed.Identifier)
	}
	if !strings.Contains(failed.Error, "duplicate") {
		t.Errorf("failed Error = %q, want duplicate", failed.Error)
	}
	if last := report.Succeeded[len(report.Succeeded)-1]; last.RowIndex != 4 {
		t.Errorf("last succeeded RowIndex = %d, want 4", last.RowIndex)
	}
}

func TestImporter_StoreErrorIsPerRow(t *testing.T) {
	store := newFakeStore()
	store.failTags["T-0"] = errStoreDown

	report := newTestImporter(store).Import(context.Background(), importRequest(t, RoleManager, assetRows(3)))
	if len(report.Failed) != 1 || len(report.Succeeded) != 2 {
		t.Fatalf("report = %s, want 2 succeeded, 1 failed", report.Summary())
	}
	if report.Failed[0].Error != errStoreDown.Error() {
		t.Errorf("Error = %q, want %q", report.Failed[0].Error, errStoreDown.Error())
	}
}

func TestImporter_PanicIsPerRow(t *testing.T) {
	store := newFakeStore()
	store.onInsert = func(n int) {
		if n == 2 {
			panic("driver exploded")
		}
	}

	report := newTestImporter(store).Import(context.Background(), importRequest(t, RoleManager, assetRows(3)))
	if len(report.Failed) != 1 || len(report.Succeeded) != 2 {
		t.Fatalf("report = %s, want 2 succeeded, 1 failed", report.Summary())
	}
	if !strings.Contains(report.Failed[0].Error, "driver exploded") {
		t.Errorf("Error = %q, want it to carry the panic value", report.Failed[0].Error)
	}
}

func TestImporter_AuditPanicKeepsRowSucceeded(t *testing.T) {
	store := newFakeStore()
	store.onAudit = func() { panic("audit exploded") }

	report := newTestImporter(store).Import(context.Background(), importRequest(t, RoleManager, assetRows(2)))
	if len(report.Succeeded) != 2 || len(report.Failed) != 0 {
		t.Fatalf("report = %s, want 2 succeeded, 0 failed", report.Summary())
	}
	for _, o := range report.Succeeded {
		if o.RecordID == "" {
			t.Errorf("row %d has no RecordID", o.RowIndex)
		}
		if _, err := store.GetRecord(context.Background(), "t1", o.RecordID); err != nil {
			t.Errorf("GetRecord(%s): %v", o.RecordID, err)
		}
	}
}

func TestImporter_CustodianPermission(t *testing.T) {
	d := TabularDataset{
		Headers: []string{"name", "asset_tag", "custodian_id"},
		Rows: [][]string{
			{"Mine", "T-1", ""},
			{"Also mine", "T-2", "u1"},
			{"Theirs", "T-3", "u2"},
		},
	}

	t.Run("manager cannot assign to others", func(t *testing.T) {
		store := newFakeStore()
		report := newTestImporter(store).Import(context.Background(), importRequest(t, RoleManager, d))
		if len(report.Succeeded) != 2 || len(report.Failed) != 1 {
			t.Fatalf("report = %s, want 2 succeeded, 1 failed", report.Summary())
		}
		if !strings.Contains(report.Failed[0].Error, "permission denied") {
			t.Errorf("Error = %q, want permission denied", report.Failed[0].Error)
		}
		if store.insertCalls != 2 {
			t.Errorf("insertCalls = %d, want 2", store.insertCalls)
		}
	})

	t.Run("admin can assign to others", func(t *testing.T) {
		store := newFakeStore()
		report := newTestImporter(store).Import(context.Background(), importRequest(t, RoleAdmin, d))
		if len(report.Succeeded) != 3 {
			t.Fatalf("report = %s, want 3 succeeded", report.Summary())
		}
		rec, _ := store.GetRecord(context.Background(), "t1", report.Succeeded[2].RecordID)
		if rec.OwnerID != "u2" {
			t.Errorf("OwnerID = %q, want u2", rec.OwnerID)
		}
	})
}

func TestImporter_StructuralExclusion(t *testing.T) {
	store := newFakeStore()
	d := TabularDataset{
		Headers: []string{"name", "asset_tag", "status"},
		Rows: [][]string{
			{"Laptop", "T-1", "ready"},
			{"", "  ", "broken"},
			{"", "T-3", "ready"},
		},
	}

	report := newTestImporter(store).Import(context.Background(), importRequest(t, RoleManager, d))
	if len(report.Succeeded) != 2 || len(report.Excluded) != 1 || len(report.Failed) != 0 {
		t.Fatalf("succeeded/failed/excluded = %d/%d/%d, want 2/0/1",
			len(report.Succeeded), len(report.Failed), len(report.Excluded))
	}
	if ex := report.Excluded[0]; ex.Identifier != "row 2" || ex.RowIndex != 1 {
		t.Errorf("excluded = %+v, want row 2 at index 1", ex)
	}
	if report.Succeeded[1].Identifier != "T-3" {
		t.Errorf("Identifier = %q, want tag fallback T-3", report.Succeeded[1].Identifier)
	}
	if store.insertCalls != 2 {
		t.Errorf("insertCalls = %d, want 2", store.insertCalls)
	}
}

func TestImporter_RejectedRowsExcluded(t *testing.T) {
	store := newFakeStore()
	req := importRequest(t, RoleManager, assetRows(2))
	req.Preview.Rows[0].Rejected = true

	report := newTestImporter(store).Import(context.Background(), req)
	if len(report.Excluded) != 1 || len(report.Succeeded) != 1 {
		t.Fatalf("succeeded/excluded = %d/%d, want 1/1", len(report.Succeeded), len(report.Excluded))
	}
}

func TestImporter_Cancellation(t *testing.T) {
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.onInsert = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	report := newTestImporter(store).Import(ctx, importRequest(t, RoleManager, assetRows(5)))

	if !report.Cancelled {
		t.Error("Cancelled = false, want true")
	}
	if store.insertCalls != 2 {
		t.Errorf("insertCalls = %d, want 2", store.insertCalls)
	}
	if attempted := len(report.Succeeded) + len(report.Failed); attempted != 2 {
		t.Errorf("attempted %d rows, want 2", attempted)
	}
	if got := len(store.records); got != 2 {
		t.Errorf("committed %d records, want 2 kept after cancellation", got)
	}
}

func TestImporter_AuditFailureKeepsRecord(t *testing.T) {
	store := newFakeStore()
	store.failAudit = errStoreDown

	report := newTestImporter(store).Import(context.Background(), importRequest(t, RoleManager, assetRows(2)))
	if len(report.Succeeded) != 2 {
		t.Fatalf("report = %s, want 2 succeeded", report.Summary())
	}
	if len(store.records) != 2 {
		t.Errorf("got %d records, want 2", len(store.records))
	}
}

func TestImporter_FlaggedRows(t *testing.T) {
	d := assetRows(3)
	d.Rows[0][2] = "READY"
	d.Rows[2][2] = "banana"

	report := newTestImporter(newFakeStore()).Import(context.Background(), importRequest(t, RoleManager, d))
	if report.Flagged != 2 {
		t.Errorf("Flagged = %d, want 2", report.Flagged)
	}
	if len(report.Succeeded) != 3 {
		t.Errorf("report = %s, want 3 succeeded", report.Summary())
	}
}
