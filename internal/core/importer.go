package core

// importer.go commits validated rows one at a time.
//
// A batch is best effort: each row is attempted independently and its
// outcome appended to the report. A failing row never stops later rows,
// and there is no rollback; on cancellation the rows committed so far stay
// committed and the rest are left unattempted.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stockroom/internal/logging"
)

// ImportRequest describes one confirmed batch.
type ImportRequest struct {
	ImportID string
	TenantID string
	Actor    Actor
	Role     EffectiveRole // resolved once for the request
	Schema   *Schema
	Preview  PreviewResult
}

// Importer persists rows and records their audit trail.
type Importer struct {
	records  RecordStore
	recorder *Recorder
	now      func() time.Time
}

// NewImporter creates an importer writing to records and auditing through recorder.
func NewImporter(records RecordStore, recorder *Recorder) *Importer {
	return &Importer{records: records, recorder: recorder, now: time.Now}
}

// Import attempts every row of the preview in order and returns the
// aggregate report. It never returns an error: row failures are collected
// in the report, and cancellation marks the report Cancelled.
func (im *Importer) Import(ctx context.Context, req ImportRequest) ImportReport {
	start := time.Now()
	s := req.Schema

	report := ImportReport{
		ImportID:  req.ImportID,
		SchemaKey: s.Key,
		TenantID:  req.TenantID,
		Succeeded: []RowOutcome{},
		Failed:    []RowOutcome{},
		Excluded:  []RowOutcome{},
		Flagged:   flaggedRows(req.Preview.Diagnostics),
	}

	logger := logging.WithFields(ctx,
		"tenant_id", req.TenantID,
		"schema", s.Key,
		"import_id", req.ImportID,
		"actor_id", req.Actor.ID,
	)
	if ip := GetIPAddressFromContext(ctx); ip != "" {
		logger = logger.With("client_ip", ip, "user_agent", GetUserAgentFromContext(ctx))
	}

	for _, row := range req.Preview.Rows {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			logger.Warn("import cancelled", "attempted", len(report.Succeeded)+len(report.Failed), "error", err)
			break
		}

		outcome, attempted := im.importRow(ctx, req, row, logger)
		switch {
		case !attempted:
			report.Excluded = append(report.Excluded, outcome)
			importRowsTotal.WithLabelValues(s.Key, "excluded").Inc()
		case outcome.Success:
			report.Succeeded = append(report.Succeeded, outcome)
			importRowsTotal.WithLabelValues(s.Key, "succeeded").Inc()
		default:
			report.Failed = append(report.Failed, outcome)
			importRowsTotal.WithLabelValues(s.Key, "failed").Inc()
		}
	}

	report.Duration = time.Since(start)
	logger.Info("import finished",
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"excluded", len(report.Excluded),
		"flagged", report.Flagged,
		"cancelled", report.Cancelled,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report
}

// importRow commits one row. attempted is false for structural rejections,
// which never reach the store.
func (im *Importer) importRow(ctx context.Context, req ImportRequest, row CanonicalRow, logger *slog.Logger) (outcome RowOutcome, attempted bool) {
	s := req.Schema
	outcome = RowOutcome{RowIndex: row.Index, Identifier: row.Identifier(s)}

	// A panicking store or hook fails this row only. Once the record is
	// saved the row stays succeeded, as with any audit failure.
	defer func() {
		if p := recover(); p != nil {
			attempted = true
			if outcome.Success {
				logger.Error("audit write panicked", "record_id", outcome.RecordID, "row", row.Index, "panic", p)
				return
			}
			logger.Error("row commit panicked", "row", row.Index, "panic", p)
			outcome.Success = false
			outcome.Error = fmt.Sprintf("internal error: %v", p)
		}
	}()

	name := strings.TrimSpace(row.Values[s.NameField])
	tag := strings.TrimSpace(row.Values[s.TagField])
	if name == "" && tag == "" {
		outcome.Identifier = fmt.Sprintf("row %d", row.Index+1)
		outcome.Error = fmt.Sprintf("missing both %s and %s", s.NameField, s.TagField)
		return outcome, false
	}
	if row.Rejected {
		outcome.Error = "rejected by validation"
		return outcome, false
	}

	values := make(map[string]string, len(row.Values))
	for k, v := range row.Values {
		values[k] = v
	}
	renormalizeEnums(s, values)

	owner := req.Actor.ID
	if s.OwnerField != "" {
		if v := strings.TrimSpace(values[s.OwnerField]); v != "" {
			owner = v
		}
		// The stored custodian always names the owner.
		values[s.OwnerField] = owner
	}
	if err := authorizeMutation(req.Role, req.Actor, req.TenantID, owner); err != nil {
		outcome.Error = err.Error()
		return outcome, true
	}

	now := im.now().UTC()
	saved, err := im.records.InsertRecord(ctx, Record{
		ID:        uuid.NewString(),
		TenantID:  req.TenantID,
		SchemaKey: s.Key,
		OwnerID:   owner,
		Name:      name,
		Tag:       tag,
		Values:    values,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		outcome.Error = err.Error()
		return outcome, true
	}

	outcome.RecordID = saved.ID
	outcome.Success = true

	// Imports only create records, so every provided field is a change.
	if _, err := im.recorder.RecordChanges(ctx, req.TenantID, s, saved.ID, map[string]string{}, values, req.Actor, SourceImport); err != nil {
		logger.Error("audit write failed", "record_id", saved.ID, "row", row.Index, "error", err)
	}
	return outcome, true
}
