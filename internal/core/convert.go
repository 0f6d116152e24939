package core

// convert.go provides type coercion for imported cell values.
//
// These functions handle the messy reality of user-provided spreadsheets:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Excel formula prefixes (="value")
//
// The ToPg* functions return pgtype values with Valid=false for empty/invalid
// input; the Canonical* helpers render the string form stored on records.

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// DateLayout is the canonical date representation stored on records.
const DateLayout = "2006-01-02"

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "January 2, 2006",
		"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
		"20060102",
	}
)

// ToPgDate converts a string to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// cleanNumeric strips currency symbols, thousands separators and the
// accounting-format parentheses used for negatives.
func cleanNumeric(s string) string {
	s = strings.TrimSpace(s)
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}
	return s
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	s = cleanNumeric(s)
	if s == "" || !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return n
}

// ToPgInt8 converts a string to pgtype.Int8.
// Whole-valued decimals such as "3.0" are accepted; fractional values are not.
func ToPgInt8(s string) pgtype.Int8 {
	s = cleanNumeric(s)
	if s == "" || !numericRegex.MatchString(s) || strings.ContainsAny(s, "eE") {
		return pgtype.Int8{Valid: false}
	}
	// Parse the whole part exactly; a float round trip loses precision
	// past 2^53 and wraps at 2^63.
	whole, frac, _ := strings.Cut(s, ".")
	if strings.Trim(frac, "0") != "" {
		return pgtype.Int8{Valid: false}
	}
	if whole == "" || whole == "+" || whole == "-" {
		whole += "0"
	}
	i, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: i, Valid: true}
}

// CanonicalDate renders a date value as YYYY-MM-DD.
func CanonicalDate(s string) (string, bool) {
	d := ToPgDate(s)
	if !d.Valid {
		return "", false
	}
	return d.Time.Format(DateLayout), true
}

// CanonicalDecimal renders a decimal value without currency or separators.
func CanonicalDecimal(s string) (string, bool) {
	if !ToPgNumeric(s).Valid {
		return "", false
	}
	return strings.TrimPrefix(cleanNumeric(s), "+"), true
}

// CanonicalInteger renders an integer value in base 10.
func CanonicalInteger(s string) (string, bool) {
	i := ToPgInt8(s)
	if !i.Valid {
		return "", false
	}
	return strconv.FormatInt(i.Int64, 10), true
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes left by double-exported files
// Whitespace is preserved unless trim is set.
func CleanCell(s string, trim bool) string {
	if trim {
		s = strings.TrimSpace(s)
	}

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return s
}
