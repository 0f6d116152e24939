// Package core provides the business logic for tabular inventory imports.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"strconv"
	"strings"
	"time"
)

// FieldType represents the expected data type for an imported column.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInteger
	FieldDecimal
	FieldDate
	FieldEnum
)

// String returns the lowercase type name used in diagnostics and the schema listing.
func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInteger:
		return "integer"
	case FieldDecimal:
		return "decimal"
	case FieldDate:
		return "date"
	case FieldEnum:
		return "enum"
	default:
		return "value"
	}
}

// FieldSpec defines normalization rules for a single domain field.
type FieldSpec struct {
	Name           string   // Canonical field name, also the template header
	Label          string   // Display name used in audit records (defaults to Name)
	Aliases        []string // Alternate headers accepted on import
	Type           FieldType
	Required       bool     // Absent or empty value emits MissingRequired
	FatalOnInvalid bool     // Invalid value rejects the row instead of degrading to Default
	Default        string   // Used when the value is absent or invalid
	EnumValues     []string // Canonical lowercase values for FieldEnum
	KeepWhitespace bool     // Skip TrimSpace at normalization time
}

// DisplayName returns the label shown to humans for this field.
func (f FieldSpec) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// canonicalEnum returns the canonical value matching v case-insensitively.
func (f FieldSpec) canonicalEnum(v string) (string, bool) {
	for _, ev := range f.EnumValues {
		if strings.EqualFold(ev, v) {
			return ev, true
		}
	}
	return "", false
}

// DerivedField is a column computed from another field after normalization.
// Derived columns are always rewritten and are flagged in the preview.
type DerivedField struct {
	Name    string
	From    string
	Compute func(source string) string
}

// Schema describes one importable record kind.
type Schema struct {
	Key        string // Unique identifier: "assets"
	Label      string // Display name: "Assets"
	Fields     []FieldSpec
	Derived    []DerivedField
	NameField  string // Field holding the human identifier
	TagField   string // Field holding the identifying tag
	OwnerField string // Field naming the custodian; empty value means the actor
}

// Field returns the definition of a canonical field name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Columns returns the canonical header row for the schema.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// FieldLabel returns the display name for a field or derived column.
func (s *Schema) FieldLabel(name string) string {
	if f, ok := s.Field(name); ok {
		return f.DisplayName()
	}
	return name
}

// applyDerived fills derived columns from their source fields.
func (s *Schema) applyDerived(values map[string]string) {
	for _, d := range s.Derived {
		src, ok := values[d.From]
		if !ok {
			continue
		}
		values[d.Name] = d.Compute(src)
	}
}

// TabularDataset is the raw parser output: a header row and string cells.
// Rows may be shorter or longer than Headers.
type TabularDataset struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Cell returns the value at row/col, or "" when the row is short.
func (d TabularDataset) Cell(row, col int) string {
	if row < 0 || row >= len(d.Rows) || col < 0 || col >= len(d.Rows[row]) {
		return ""
	}
	return d.Rows[row][col]
}

// DiagnosticKind classifies a value transformation made during validation.
type DiagnosticKind string

const (
	DiagCaseNormalized  DiagnosticKind = "case_normalized"
	DiagInvalidEnum     DiagnosticKind = "invalid_enum"
	DiagMissingRequired DiagnosticKind = "missing_required"
	DiagTypeMismatch    DiagnosticKind = "type_mismatch"
)

// Diagnostic is a per-cell note produced by the normalizer.
type Diagnostic struct {
	RowIndex   int            `json:"rowIndex"` // 0-based data row index
	ColumnName string         `json:"columnName"`
	RawValue   string         `json:"rawValue"`
	Kind       DiagnosticKind `json:"kind"`
	Message    string         `json:"message"`
	Fatal      bool           `json:"fatal,omitempty"`
}

// CanonicalRow is one normalized row, keyed by canonical field name.
type CanonicalRow struct {
	Index    int               `json:"index"`
	Values   map[string]string `json:"values"`
	Raw      map[string]string `json:"raw"` // source cell per field; absent when the column is missing
	Rejected bool              `json:"rejected,omitempty"`
}

// Identifier returns the best human-readable identifier for the row.
func (r CanonicalRow) Identifier(s *Schema) string {
	if v := r.Values[s.NameField]; v != "" {
		return v
	}
	return r.Values[s.TagField]
}

// PreviewResult is the validated, uncommitted outcome of one import attempt.
type PreviewResult struct {
	SchemaKey        string         `json:"schemaKey"`
	Dataset          TabularDataset `json:"dataset"`
	Rows             []CanonicalRow `json:"rows"`
	Diagnostics      []Diagnostic   `json:"diagnostics"`
	Valid            bool           `json:"valid"`
	AcceptedRowCount int            `json:"acceptedRowCount"`
	RejectedRowCount int            `json:"rejectedRowCount"`
}

// RowOutcome records the result of attempting to persist one row.
type RowOutcome struct {
	RowIndex   int    `json:"rowIndex"`
	Identifier string `json:"identifier"`
	RecordID   string `json:"recordId,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// ImportReport aggregates the outcomes of one batch import.
type ImportReport struct {
	ImportID  string        `json:"importId"`
	SchemaKey string        `json:"schemaKey"`
	TenantID  string        `json:"tenantId"`
	Succeeded []RowOutcome  `json:"succeeded"`
	Failed    []RowOutcome  `json:"failed"`
	Excluded  []RowOutcome  `json:"excluded"` // structurally rejected, never attempted
	Flagged   int           `json:"diagnosticFlaggedRows"`
	Cancelled bool          `json:"cancelled,omitempty"`
	SourceKey string        `json:"sourceKey,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Summary renders the report as "N succeeded, M failed".
func (r ImportReport) Summary() string {
	return strconv.Itoa(len(r.Succeeded)) + " succeeded, " + strconv.Itoa(len(r.Failed)) + " failed"
}

// Record is a persisted inventory record.
type Record struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	SchemaKey string            `json:"schemaKey"`
	OwnerID   string            `json:"ownerId"`
	Name      string            `json:"name"`
	Tag       string            `json:"tag"`
	Values    map[string]string `json:"values"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// RecordFilter narrows a Select call. Empty fields match everything.
type RecordFilter struct {
	SchemaKey string
	OwnerID   string
	Tag       string
	Limit     int
	Offset    int
}

// AuditSource tells which flow produced an audit record.
type AuditSource string

const (
	SourceImport AuditSource = "import"
	SourceEdit   AuditSource = "edit"
)

// AuditRecord is one append-only field change entry.
type AuditRecord struct {
	ID               string      `json:"id"`
	TenantID         string      `json:"tenantId"`
	EntityID         string      `json:"entityId"`
	FieldName        string      `json:"fieldName"`
	OldValue         *string     `json:"oldValue"`
	NewValue         string      `json:"newValue"`
	ActorID          string      `json:"actorId"`
	ActorDisplayName string      `json:"actorDisplayName"`
	Source           AuditSource `json:"source"`
	Timestamp        time.Time   `json:"timestamp"`
}

// Actor identifies the user performing an operation.
type Actor struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// DisplayName returns the full name, falling back to email, then "Unknown user".
func (a Actor) DisplayName() string {
	if n := strings.TrimSpace(a.FullName); n != "" {
		return n
	}
	if e := strings.TrimSpace(a.Email); e != "" {
		return e
	}
	return "Unknown user"
}
