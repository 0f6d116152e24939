package core

// parse.go turns uploaded bytes into a TabularDataset.
//
// Delimited text is scanned by hand rather than with encoding/csv: the
// scanner must never fail on malformed quoting, must keep whitespace around
// fields, and must flush an unterminated quote instead of raising.
// Spreadsheets are read through excelize; only a broken container is fatal.

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Parse splits delimited text into a header row and data rows.
// It never fails; empty input yields an empty dataset.
func Parse(raw string) TabularDataset {
	records := scanDelimited(raw)
	if len(records) == 0 {
		return TabularDataset{Headers: []string{}, Rows: [][]string{}}
	}
	return TabularDataset{Headers: records[0], Rows: records[1:]}
}

// ParseBytes decodes data to UTF-8 and parses it as delimited text.
func ParseBytes(data []byte) TabularDataset {
	return Parse(string(decodeText(data)))
}

// ParseBinary reads one sheet of an xlsx workbook. The first row of the
// sheet is the header row; cells are returned as their formatted strings.
func ParseBinary(data []byte, sheetIndex int) (TabularDataset, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return TabularDataset{}, &ParseError{Format: "xlsx", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if sheetIndex < 0 || sheetIndex >= len(sheets) {
		return TabularDataset{}, &ParseError{
			Format: "xlsx",
			Err:    fmt.Errorf("sheet index %d out of range (workbook has %d)", sheetIndex, len(sheets)),
		}
	}

	rows, err := f.GetRows(sheets[sheetIndex])
	if err != nil {
		return TabularDataset{}, &ParseError{Format: "xlsx", Err: err}
	}

	rows = dropTrailingBlank(rows)
	if len(rows) == 0 {
		return TabularDataset{Headers: []string{}, Rows: [][]string{}}, nil
	}
	for i := range rows {
		if rows[i] == nil {
			rows[i] = []string{}
		}
	}
	return TabularDataset{Headers: rows[0], Rows: rows[1:]}, nil
}

// scanDelimited is the comma/quote state machine.
//
// Inside quotes a doubled quote is a literal quote; any other quote toggles
// quoting. Commas and line terminators (\n, \r\n, \r) only split outside
// quotes. An unterminated quote consumes to end of input.
func scanDelimited(s string) [][]string {
	var (
		records  [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
		dirty    bool // current row has content or a delimiter
	)

	endField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	endRow := func() {
		endField()
		records = append(records, row)
		row = nil
		dirty = false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			dirty = true
			if inQuotes && i+1 < len(s) && s[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			dirty = true
			endField()
		case (c == '\n' || c == '\r') && !inQuotes:
			if c == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			endRow()
		default:
			dirty = true
			field.WriteByte(c)
		}
	}
	if dirty {
		endRow()
	}

	return dropTrailingBlank(records)
}

// dropTrailingBlank removes empty or whitespace-only rows at the end.
func dropTrailingBlank(rows [][]string) [][]string {
	for len(rows) > 0 && isBlankRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}
	return rows
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// decodeText strips a byte order mark and converts UTF-16 input to UTF-8.
// Input without a BOM is treated as UTF-8; invalid sequences become U+FFFD.
func decodeText(data []byte) []byte {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, data)
	if err != nil {
		return sanitizeUTF8(data)
	}
	return sanitizeUTF8(out)
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the Unicode replacement character.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('\uFFFD')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}
