package core

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SourceKind identifies the container format of an upload.
type SourceKind string

const (
	KindDelimited   SourceKind = "csv"
	KindSpreadsheet SourceKind = "xlsx"
)

// zipMagic starts every xlsx container.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// DetectKind picks the parser for an upload from its name, declared
// content type, and leading bytes. Unknown inputs are treated as text.
func DetectKind(fileName, contentType string, data []byte) SourceKind {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return KindSpreadsheet
	case ".csv", ".txt":
		return KindDelimited
	}
	if strings.Contains(contentType, "spreadsheetml") {
		return KindSpreadsheet
	}
	if bytes.HasPrefix(data, zipMagic) {
		return KindSpreadsheet
	}
	return KindDelimited
}

// ParseSource parses data according to kind.
// Only spreadsheet containers can fail.
func ParseSource(kind SourceKind, data []byte) (TabularDataset, error) {
	switch kind {
	case KindSpreadsheet:
		return ParseBinary(data, 0)
	case KindDelimited:
		return ParseBytes(data), nil
	default:
		return TabularDataset{}, &ParseError{Format: string(kind), Err: fmt.Errorf("unsupported source kind")}
	}
}

// FormatDelimited writes the dataset back to comma separated text using the
// quoting rule Parse understands. Rows end with CRLF.
func FormatDelimited(d TabularDataset) string {
	var b strings.Builder
	writeDelimitedRow(&b, d.Headers)
	for _, row := range d.Rows {
		writeDelimitedRow(&b, row)
	}
	return b.String()
}

func writeDelimitedRow(b *strings.Builder, row []string) {
	for i, cell := range row {
		if i > 0 {
			b.WriteByte(',')
		}
		if needsQuoting(cell) {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
			b.WriteByte('"')
		} else {
			b.WriteString(cell)
		}
	}
	b.WriteString("\r\n")
}

func needsQuoting(cell string) bool {
	if cell == "" {
		return false
	}
	if strings.ContainsAny(cell, ",\"\r\n") {
		return true
	}
	// A whitespace-only row would be dropped as trailing blank on reparse.
	return strings.TrimSpace(cell) != cell
}

// Template returns a blank CSV containing only the schema's header row.
func Template(s *Schema) string {
	return FormatDelimited(TabularDataset{Headers: s.Columns()})
}

// TemplateXLSX returns a workbook whose first sheet holds only the header row.
func TemplateXLSX(s *Schema) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if s.Label != "" {
		if err := f.SetSheetName(sheet, s.Label); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
		sheet = s.Label
	}

	headers := make([]interface{}, 0, len(s.Fields))
	for _, col := range s.Columns() {
		headers = append(headers, col)
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
