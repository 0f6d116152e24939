package core

// validation.go maps parsed rows onto a schema.
//
// Validation is permissive: a bad cell degrades to the field default and a
// Diagnostic records what happened. Only fields flagged FatalOnInvalid can
// reject a row, and PreviewResult.Valid is false only for an empty dataset.

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// HeaderIndex maps normalized header names to column positions.
type HeaderIndex map[string]int

// NormalizeHeader folds a header for tolerant matching: NFKC, lower case,
// and whitespace, underscores, hyphens and dots removed.
// "Asset Tag", "asset_tag" and "ASSET-TAG" all fold to "assettag".
func NormalizeHeader(h string) string {
	h = norm.NFKC.String(h)
	var b strings.Builder
	b.Grow(len(h))
	for _, r := range strings.ToLower(h) {
		if unicode.IsSpace(r) || r == '_' || r == '-' || r == '.' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MakeHeaderIndex indexes headers by normalized name. The first column
// with a given name wins.
func MakeHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		key := NormalizeHeader(CleanCell(h, true))
		if key == "" {
			continue
		}
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

// Locate finds the column for a field by canonical name, then by alias.
func (idx HeaderIndex) Locate(f FieldSpec) (int, bool) {
	if pos, ok := idx[NormalizeHeader(f.Name)]; ok {
		return pos, true
	}
	for _, alias := range f.Aliases {
		if pos, ok := idx[NormalizeHeader(alias)]; ok {
			return pos, true
		}
	}
	return 0, false
}

// Validate normalizes every row of d against s. It never fails.
func Validate(d TabularDataset, s *Schema) PreviewResult {
	result := PreviewResult{
		SchemaKey:   s.Key,
		Dataset:     d,
		Rows:        make([]CanonicalRow, 0, len(d.Rows)),
		Diagnostics: []Diagnostic{},
	}
	if len(d.Headers) == 0 || len(d.Rows) == 0 {
		return result
	}
	result.Valid = true

	idx := MakeHeaderIndex(d.Headers)
	positions := make([]int, len(s.Fields))
	for i, f := range s.Fields {
		if pos, ok := idx.Locate(f); ok {
			positions[i] = pos
		} else {
			positions[i] = -1
		}
	}

	for r := range d.Rows {
		row := CanonicalRow{
			Index:  r,
			Values: make(map[string]string, len(s.Fields)+len(s.Derived)),
			Raw:    make(map[string]string, len(s.Fields)),
		}

		for i, f := range s.Fields {
			present := positions[i] >= 0
			var raw string
			if present {
				raw = d.Cell(r, positions[i])
				row.Raw[f.Name] = raw
			}

			value, diag := normalizeField(f, raw, present)
			row.Values[f.Name] = value
			if diag != nil {
				diag.RowIndex = r
				result.Diagnostics = append(result.Diagnostics, *diag)
				if diag.Fatal {
					row.Rejected = true
				}
			}
		}

		s.applyDerived(row.Values)
		if row.Rejected {
			result.RejectedRowCount++
		} else {
			result.AcceptedRowCount++
		}
		result.Rows = append(result.Rows, row)
	}

	return result
}

// normalizeField coerces one cell. present is false when the column is
// absent from the file, which is reported like an empty cell.
func normalizeField(f FieldSpec, raw string, present bool) (string, *Diagnostic) {
	v := CleanCell(raw, !f.KeepWhitespace)

	if !present || strings.TrimSpace(v) == "" {
		if !f.Required {
			if present && f.KeepWhitespace {
				return v, nil
			}
			return f.Default, nil
		}
		msg := fmt.Sprintf("required value is empty; using default %q", f.Default)
		if !present {
			msg = fmt.Sprintf("required column %q not found; using default %q", f.Name, f.Default)
		}
		return f.Default, &Diagnostic{
			ColumnName: f.Name,
			RawValue:   raw,
			Kind:       DiagMissingRequired,
			Message:    msg,
			Fatal:      f.FatalOnInvalid,
		}
	}

	switch f.Type {
	case FieldEnum:
		trimmed := strings.TrimSpace(v)
		canon, ok := f.canonicalEnum(trimmed)
		if !ok {
			return f.Default, &Diagnostic{
				ColumnName: f.Name,
				RawValue:   raw,
				Kind:       DiagInvalidEnum,
				Message:    fmt.Sprintf("%q is not one of %s; using default %q", trimmed, strings.Join(f.EnumValues, ", "), f.Default),
				Fatal:      f.FatalOnInvalid,
			}
		}
		if canon != trimmed {
			return canon, &Diagnostic{
				ColumnName: f.Name,
				RawValue:   raw,
				Kind:       DiagCaseNormalized,
				Message:    fmt.Sprintf("%q normalized to %q", trimmed, canon),
			}
		}
		return canon, nil

	case FieldInteger, FieldDecimal, FieldDate:
		var (
			out string
			ok  bool
		)
		switch f.Type {
		case FieldInteger:
			out, ok = CanonicalInteger(v)
		case FieldDecimal:
			out, ok = CanonicalDecimal(v)
		default:
			out, ok = CanonicalDate(v)
		}
		if !ok {
			return f.Default, &Diagnostic{
				ColumnName: f.Name,
				RawValue:   raw,
				Kind:       DiagTypeMismatch,
				Message:    fmt.Sprintf("%q is not a valid %s; using default %q", strings.TrimSpace(v), f.Type, f.Default),
				Fatal:      f.FatalOnInvalid,
			}
		}
		return out, nil
	}

	return v, nil
}

// NormalizePatch applies the import rules to a single-record edit. Only
// fields present in patch are returned, plus any derived columns they feed.
// Unknown fields and fatal diagnostics are errors; other diagnostics are
// returned alongside the normalized values.
func NormalizePatch(s *Schema, patch map[string]string) (map[string]string, []Diagnostic, error) {
	out := make(map[string]string, len(patch))
	var diags []Diagnostic

	for name, raw := range patch {
		f, ok := s.Field(name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		value, diag := normalizeField(f, raw, true)
		if diag != nil {
			diag.RowIndex = -1
			if diag.Fatal {
				return nil, nil, fmt.Errorf("%w: %s: %s", ErrInvalidValue, name, diag.Message)
			}
			diags = append(diags, *diag)
		}
		out[name] = value
	}

	s.applyDerived(out)
	return out, diags, nil
}

// renormalizeEnums re-checks enum fields just before persistence so a
// record never carries a value outside the schema's current value set.
func renormalizeEnums(s *Schema, values map[string]string) {
	for _, f := range s.Fields {
		if f.Type != FieldEnum {
			continue
		}
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		if canon, ok := f.canonicalEnum(strings.TrimSpace(v)); ok {
			values[f.Name] = canon
		} else {
			values[f.Name] = f.Default
		}
	}
	s.applyDerived(values)
}
