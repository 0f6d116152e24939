package core

import (
	"sort"
	"strings"
	"time"
)

// DefaultPreviewRows is how many rows a preview shows.
const DefaultPreviewRows = 10

// PreviewRow is one displayed row of a preview.
type PreviewRow struct {
	Index     int               `json:"index"`
	Values    map[string]string `json:"values"`
	Rewritten []string          `json:"rewritten,omitempty"` // fields whose stored value differs from the cell
	Rejected  bool              `json:"rejected,omitempty"`
}

// DiagnosticGroup collects the diagnostics of one kind.
type DiagnosticGroup struct {
	Kind        DiagnosticKind `json:"kind"`
	Count       int            `json:"count"`
	Diagnostics []Diagnostic   `json:"diagnostics"`
}

// PreviewView is the reviewable projection of a PreviewResult.
// Nothing in it has been persisted.
type PreviewView struct {
	PreviewID        string            `json:"previewId,omitempty"`
	SchemaKey        string            `json:"schemaKey"`
	SourceHeaders    []string          `json:"sourceHeaders"`
	Columns          []string          `json:"columns"`
	RewrittenColumns []string          `json:"rewrittenColumns"`
	Rows             []PreviewRow      `json:"rows"`
	TotalRows        int               `json:"totalRows"`
	AcceptedRowCount int               `json:"acceptedRowCount"`
	RejectedRowCount int               `json:"rejectedRowCount"`
	FlaggedRowCount  int               `json:"flaggedRowCount"`
	Valid            bool              `json:"valid"`
	Diagnostics      []DiagnosticGroup `json:"diagnostics"`
	ExpiresAt        time.Time         `json:"expiresAt,omitempty"`
}

// diagnosticOrder fixes the display order of diagnostic groups.
var diagnosticOrder = map[DiagnosticKind]int{
	DiagMissingRequired: 0,
	DiagTypeMismatch:    1,
	DiagInvalidEnum:     2,
	DiagCaseNormalized:  3,
}

// Project builds the display form of a validated dataset: the first limit
// rows, diagnostics grouped by kind, and the columns and cells that will be
// rewritten on commit. A limit <= 0 uses DefaultPreviewRows.
func Project(result PreviewResult, s *Schema, limit int) PreviewView {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}

	view := PreviewView{
		SchemaKey:        result.SchemaKey,
		SourceHeaders:    result.Dataset.Headers,
		Columns:          s.Columns(),
		RewrittenColumns: rewrittenColumns(s),
		TotalRows:        len(result.Dataset.Rows),
		AcceptedRowCount: result.AcceptedRowCount,
		RejectedRowCount: result.RejectedRowCount,
		FlaggedRowCount:  flaggedRows(result.Diagnostics),
		Valid:            result.Valid,
		Diagnostics:      groupDiagnostics(result.Diagnostics),
		Rows:             []PreviewRow{},
	}
	for _, d := range s.Derived {
		view.Columns = append(view.Columns, d.Name)
	}

	flagged := make(map[int]map[string]bool)
	for _, d := range result.Diagnostics {
		if flagged[d.RowIndex] == nil {
			flagged[d.RowIndex] = make(map[string]bool)
		}
		flagged[d.RowIndex][d.ColumnName] = true
	}

	for i, row := range result.Rows {
		if i >= limit {
			break
		}
		pr := PreviewRow{Index: row.Index, Values: row.Values, Rejected: row.Rejected}
		for _, f := range s.Fields {
			raw, hadCell := row.Raw[f.Name]
			cell := CleanCell(raw, !f.KeepWhitespace)
			if flagged[row.Index][f.Name] || (hadCell && cell != row.Values[f.Name]) || (!hadCell && row.Values[f.Name] != "") {
				pr.Rewritten = append(pr.Rewritten, f.Name)
			}
		}
		for _, d := range s.Derived {
			pr.Rewritten = append(pr.Rewritten, d.Name)
		}
		view.Rows = append(view.Rows, pr)
	}

	return view
}

// rewrittenColumns lists the columns whose values are always canonicalized
// or computed: enum fields and derived columns.
func rewrittenColumns(s *Schema) []string {
	var cols []string
	for _, f := range s.Fields {
		if f.Type == FieldEnum {
			cols = append(cols, f.Name)
		}
	}
	for _, d := range s.Derived {
		cols = append(cols, d.Name)
	}
	return cols
}

func groupDiagnostics(diags []Diagnostic) []DiagnosticGroup {
	byKind := make(map[DiagnosticKind]*DiagnosticGroup)
	for _, d := range diags {
		g, ok := byKind[d.Kind]
		if !ok {
			g = &DiagnosticGroup{Kind: d.Kind}
			byKind[d.Kind] = g
		}
		g.Count++
		g.Diagnostics = append(g.Diagnostics, d)
	}

	groups := make([]DiagnosticGroup, 0, len(byKind))
	for _, g := range byKind {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		oi, iok := diagnosticOrder[groups[i].Kind]
		oj, jok := diagnosticOrder[groups[j].Kind]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return strings.Compare(string(groups[i].Kind), string(groups[j].Kind)) < 0
	})
	return groups
}

// flaggedRows counts distinct rows carrying at least one diagnostic.
func flaggedRows(diags []Diagnostic) int {
	seen := make(map[int]struct{})
	for _, d := range diags {
		seen[d.RowIndex] = struct{}{}
	}
	return len(seen)
}
