package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stockroom/internal/logging"
)

// ImportTimeout is the default maximum duration for committing one import.
var ImportTimeout = 10 * time.Minute

// DefaultPreviewTTL is how long a preview waits for confirmation.
const DefaultPreviewTTL = 15 * time.Minute

// ServiceConfig tunes the Service. Zero values take defaults.
type ServiceConfig struct {
	PreviewTTL    time.Duration
	PreviewRows   int
	ImportTimeout time.Duration
	MaxConcurrent int
	MaxWait       time.Duration
}

// Service is the entry point for the import pipeline, single-record edits,
// and the role and history queries the UI needs.
type Service struct {
	store    Store
	archive  SourceArchive
	guard    *Guard
	recorder *Recorder
	importer *Importer
	limiter  *ImportLimiter
	cfg      ServiceConfig
	now      func() time.Time

	mu       sync.Mutex
	previews map[string]*pendingPreview
}

// pendingPreview is a validated upload awaiting confirmation.
type pendingPreview struct {
	ID          string
	TenantID    string
	ActorID     string
	Schema      *Schema
	Result      PreviewResult
	FileName    string
	ContentType string
	Source      []byte
	ExpiresAt   time.Time
}

// Upload is a file submitted for preview.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// EditResult is the outcome of a single-record edit.
type EditResult struct {
	Record      Record        `json:"record"`
	Changes     []AuditRecord `json:"changes"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
}

// NewService creates a Service. archive may be nil, in which case confirmed
// sources are not kept.
func NewService(store Store, archive SourceArchive, cfg ServiceConfig) *Service {
	if cfg.PreviewTTL <= 0 {
		cfg.PreviewTTL = DefaultPreviewTTL
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = DefaultPreviewRows
	}
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = ImportTimeout
	}

	recorder := NewRecorder(store)
	return &Service{
		store:    store,
		archive:  archive,
		guard:    NewGuard(store),
		recorder: recorder,
		importer: NewImporter(store, recorder),
		limiter:  NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:      cfg,
		now:      time.Now,
		previews: make(map[string]*pendingPreview),
	}
}

// Schemas returns all registered schemas.
func (s *Service) Schemas() []*Schema {
	return All()
}

// Limiter exposes the import limiter for status reporting.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// EffectiveRole resolves the actor's role in the tenant, fresh on every call.
func (s *Service) EffectiveRole(ctx context.Context, actor Actor, tenantID string) (EffectiveRole, error) {
	return s.guard.EffectiveRole(ctx, actor, tenantID)
}

// ParsePreview parses and validates an upload and holds the result until it
// is confirmed, discarded, or expires. Nothing is persisted.
//
// A malformed spreadsheet returns a *ParseError. An empty file yields a view
// with Valid=false and no preview id; it cannot be confirmed.
func (s *Service) ParsePreview(ctx context.Context, tenantID string, actor Actor, schemaKey string, up Upload) (PreviewView, error) {
	schema, ok := Get(schemaKey)
	if !ok {
		return PreviewView{}, fmt.Errorf("%w: %s", ErrUnknownSchema, schemaKey)
	}
	if _, err := s.guard.Require(ctx, actor, tenantID, RoleManager); err != nil {
		return PreviewView{}, err
	}

	dataset, err := ParseSource(DetectKind(up.FileName, up.ContentType, up.Data), up.Data)
	if err != nil {
		return PreviewView{}, err
	}

	result := Validate(dataset, schema)
	for _, d := range result.Diagnostics {
		diagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
	}

	view := Project(result, schema, s.cfg.PreviewRows)
	if !result.Valid {
		return view, nil
	}

	p := &pendingPreview{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		ActorID:     actor.ID,
		Schema:      schema,
		Result:      result,
		FileName:    up.FileName,
		ContentType: up.ContentType,
		Source:      up.Data,
		ExpiresAt:   s.now().Add(s.cfg.PreviewTTL),
	}

	s.mu.Lock()
	s.previews[p.ID] = p
	previewsPending.Set(float64(len(s.previews)))
	s.mu.Unlock()

	view.PreviewID = p.ID
	view.ExpiresAt = p.ExpiresAt

	logging.FromContext(ctx).Info("preview created",
		"preview_id", p.ID,
		"tenant_id", tenantID,
		"schema", schemaKey,
		"rows", view.TotalRows,
		"diagnostics", len(result.Diagnostics),
	)
	return view, nil
}

// ConfirmImport commits a held preview. The preview is consumed whether or
// not rows fail; re-running requires a new preview.
func (s *Service) ConfirmImport(ctx context.Context, tenantID string, actor Actor, previewID string) (ImportReport, error) {
	eff, err := s.guard.Require(ctx, actor, tenantID, RoleManager)
	if err != nil {
		return ImportReport{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportReport{}, err
	}
	defer s.limiter.Release()

	p, err := s.takePreview(tenantID, actor.ID, previewID)
	if err != nil {
		return ImportReport{}, err
	}

	importCtx, cancel := context.WithTimeout(ctx, s.cfg.ImportTimeout)
	defer cancel()

	importID := uuid.NewString()
	sourceKey := s.archiveSource(importCtx, tenantID, importID, p)

	report := s.importer.Import(importCtx, ImportRequest{
		ImportID: importID,
		TenantID: tenantID,
		Actor:    actor,
		Role:     eff,
		Schema:   p.Schema,
		Preview:  p.Result,
	})
	report.SourceKey = sourceKey
	importsTotal.WithLabelValues(p.Schema.Key, importOutcome(report)).Inc()
	return report, nil
}

// ImportRows validates a dataset and commits it immediately, without a held
// preview. The role checks are the same as ConfirmImport.
func (s *Service) ImportRows(ctx context.Context, tenantID string, actor Actor, schemaKey string, d TabularDataset) (ImportReport, error) {
	schema, ok := Get(schemaKey)
	if !ok {
		return ImportReport{}, fmt.Errorf("%w: %s", ErrUnknownSchema, schemaKey)
	}
	eff, err := s.guard.Require(ctx, actor, tenantID, RoleManager)
	if err != nil {
		return ImportReport{}, err
	}
	result := Validate(d, schema)
	if !result.Valid {
		return ImportReport{}, ErrEmptyDataset
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return ImportReport{}, err
	}
	defer s.limiter.Release()

	importCtx, cancel := context.WithTimeout(ctx, s.cfg.ImportTimeout)
	defer cancel()

	report := s.importer.Import(importCtx, ImportRequest{
		ImportID: uuid.NewString(),
		TenantID: tenantID,
		Actor:    actor,
		Role:     eff,
		Schema:   schema,
		Preview:  result,
	})
	importsTotal.WithLabelValues(schema.Key, importOutcome(report)).Inc()
	return report, nil
}

// DiscardPreview drops a held preview without importing it.
func (s *Service) DiscardPreview(ctx context.Context, tenantID string, actor Actor, previewID string) error {
	if _, err := s.guard.EffectiveRole(ctx, actor, tenantID); err != nil {
		return err
	}
	_, err := s.takePreview(tenantID, actor.ID, previewID)
	if errors.Is(err, ErrPreviewExpired) {
		return nil
	}
	return err
}

// takePreview removes and returns a preview owned by tenant and actor.
// Previews of other tenants or actors are reported as not found.
func (s *Service) takePreview(tenantID, actorID, previewID string) (*pendingPreview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.previews[previewID]
	if !ok || p.TenantID != tenantID || p.ActorID != actorID {
		return nil, ErrPreviewNotFound
	}
	delete(s.previews, previewID)
	previewsPending.Set(float64(len(s.previews)))

	if !s.now().Before(p.ExpiresAt) {
		return nil, ErrPreviewExpired
	}
	return p, nil
}

// PurgeExpiredPreviews drops previews past their expiry and returns how many
// were removed.
func (s *Service) PurgeExpiredPreviews() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, p := range s.previews {
		if !now.Before(p.ExpiresAt) {
			delete(s.previews, id)
			purged++
		}
	}
	previewsPending.Set(float64(len(s.previews)))
	return purged
}

// PendingPreviews returns the number of held previews.
func (s *Service) PendingPreviews() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.previews)
}

// archiveSource stores the raw upload and returns its key, or "" when no
// archive is configured or the write failed.
func (s *Service) archiveSource(ctx context.Context, tenantID, importID string, p *pendingPreview) string {
	if s.archive == nil || len(p.Source) == 0 {
		return ""
	}
	name := path.Base(strings.ReplaceAll(p.FileName, `\`, "/"))
	if name == "" || name == "." || name == "/" {
		name = "upload"
	}
	key := path.Join("imports", tenantID, importID, name)

	if err := s.archive.Put(ctx, key, p.Source, p.ContentType); err != nil {
		logging.FromContext(ctx).Warn("archive import source failed",
			"import_id", importID,
			"key", key,
			"error", err,
		)
		return ""
	}
	return key
}

// UpdateRecord applies a single-record edit. The patch goes through the same
// normalization as imports, and one audit record is written per changed
// field. Permission and persistence errors are returned as is.
func (s *Service) UpdateRecord(ctx context.Context, tenantID string, actor Actor, recordID string, patch map[string]string) (EditResult, error) {
	eff, err := s.guard.EffectiveRole(ctx, actor, tenantID)
	if err != nil {
		return EditResult{}, err
	}

	current, err := s.store.GetRecord(ctx, tenantID, recordID)
	if err != nil {
		return EditResult{}, err
	}
	schema, ok := Get(current.SchemaKey)
	if !ok {
		return EditResult{}, fmt.Errorf("%w: %s", ErrUnknownSchema, current.SchemaKey)
	}
	if err := authorizeMutation(eff, actor, tenantID, current.OwnerID); err != nil {
		return EditResult{}, err
	}

	values, diags, err := NormalizePatch(schema, patch)
	if err != nil {
		return EditResult{}, err
	}

	rp := RecordPatch{Values: values}
	if v, ok := values[schema.NameField]; ok {
		v = strings.TrimSpace(v)
		rp.Name = &v
	}
	if v, ok := values[schema.TagField]; ok {
		v = strings.TrimSpace(v)
		rp.Tag = &v
	}
	if schema.OwnerField != "" {
		if v, ok := values[schema.OwnerField]; ok {
			owner := strings.TrimSpace(v)
			if owner == "" {
				owner = current.OwnerID
			}
			if owner != current.OwnerID {
				// Handing a record to someone else still requires the
				// right to mutate records that person owns.
				if err := authorizeMutation(eff, actor, tenantID, owner); err != nil {
					return EditResult{}, err
				}
			}
			rp.OwnerID = &owner
			values[schema.OwnerField] = owner
		}
	}

	updated, err := s.store.UpdateRecord(ctx, tenantID, recordID, rp)
	if err != nil {
		return EditResult{}, err
	}

	changes, err := s.recorder.RecordChanges(ctx, tenantID, schema, recordID, current.Values, values, actor, SourceEdit)
	if err != nil {
		logging.FromContext(ctx).Error("audit write failed",
			"record_id", recordID,
			"tenant_id", tenantID,
			"changes", len(changes),
			"error", err,
		)
	}

	return EditResult{Record: updated, Changes: changes, Diagnostics: diags}, nil
}

// History lists a record's audit entries, newest first.
func (s *Service) History(ctx context.Context, tenantID string, actor Actor, recordID string, limit int) ([]AuditRecord, error) {
	if _, err := s.guard.EffectiveRole(ctx, actor, tenantID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetRecord(ctx, tenantID, recordID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListAudit(ctx, tenantID, recordID, limit)
}

// ListRecords selects records visible to any tenant member.
func (s *Service) ListRecords(ctx context.Context, tenantID string, actor Actor, filter RecordFilter) ([]Record, error) {
	if _, err := s.guard.EffectiveRole(ctx, actor, tenantID); err != nil {
		return nil, err
	}
	if filter.SchemaKey != "" {
		if _, ok := Get(filter.SchemaKey); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, filter.SchemaKey)
		}
	}
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	return s.store.SelectRecords(ctx, tenantID, filter)
}

// Shutdown waits for running imports to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	slog.Info("waiting for imports to drain", "active", s.limiter.ActiveCount())
	return s.limiter.WaitForDrain(ctx)
}

// importOutcome labels a finished import for metrics.
func importOutcome(r ImportReport) string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case len(r.Failed) == 0:
		return "completed"
	case len(r.Succeeded) == 0:
		return "failed"
	default:
		return "partial"
	}
}
