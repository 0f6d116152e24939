package core

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ToPgNumeric / CanonicalDecimal Tests
// ----------------------------------------------------------------------------

func TestCanonicalDecimal(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      string
	}{
		{name: "positive integer", input: "123", wantValid: true, want: "123"},
		{name: "decimal number", input: "123.45", wantValid: true, want: "123.45"},
		{name: "leading plus", input: "+7.5", wantValid: true, want: "7.5"},
		{name: "dollar sign", input: "$1,234.56", wantValid: true, want: "1234.56"},
		{name: "euro sign", input: "€99", wantValid: true, want: "99"},
		{name: "accounting negative", input: "(500.00)", wantValid: true, want: "-500.00"},
		{name: "surrounding whitespace", input: "  42 ", wantValid: true, want: "42"},
		{name: "scientific notation not supported", input: "1.5e3", wantValid: false},
		{name: "empty", input: "", wantValid: false},
		{name: "letters", input: "abc", wantValid: false},
		{name: "two decimal points", input: "1.2.3", wantValid: false},
		{name: "bare currency", input: "$", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToPgNumeric(tt.input).Valid; got != tt.wantValid {
				t.Errorf("ToPgNumeric(%q).Valid = %v, want %v", tt.input, got, tt.wantValid)
			}
			got, ok := CanonicalDecimal(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("CanonicalDecimal(%q) ok = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if ok && got != tt.want {
				t.Errorf("CanonicalDecimal(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToPgInt8 / CanonicalInteger Tests
// ----------------------------------------------------------------------------

func TestCanonicalInteger(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      string
	}{
		{name: "plain", input: "12", wantValid: true, want: "12"},
		{name: "negative", input: "-3", wantValid: true, want: "-3"},
		{name: "thousands separator", input: "1,000", wantValid: true, want: "1000"},
		{name: "whole decimal", input: "4.0", wantValid: true, want: "4"},
		{name: "fractional", input: "4.5", wantValid: false},
		{name: "scientific notation not supported", input: "1e3", wantValid: false},
		{name: "word", input: "five", wantValid: false},
		{name: "empty", input: "", wantValid: false},
		{name: "max int64", input: "9223372036854775807", wantValid: true, want: "9223372036854775807"},
		{name: "min int64 whole decimal", input: "-9223372036854775808.0", wantValid: true, want: "-9223372036854775808"},
		{name: "overflow whole decimal", input: "9223372036854775808.0", wantValid: false},
		{name: "fraction above max", input: "9223372036854775807.5", wantValid: false},
		{name: "underflow whole decimal", input: "-9223372036854775809.0", wantValid: false},
		{name: "overflow", input: "9223372036854775808", wantValid: false},
		{name: "leading dot zero", input: ".0", wantValid: true, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CanonicalInteger(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("CanonicalInteger(%q) ok = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if ok && got != tt.want {
				t.Errorf("CanonicalInteger(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToPgDate / CanonicalDate Tests
// ----------------------------------------------------------------------------

func TestCanonicalDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      string
	}{
		{name: "ISO format", input: "2024-01-15", wantValid: true, want: "2024-01-15"},
		{name: "ISO with slashes", input: "2024/03/09", wantValid: true, want: "2024-03-09"},
		{name: "US format", input: "1/15/2024", wantValid: true, want: "2024-01-15"},
		{name: "US format padded", input: "01/15/2024", wantValid: true, want: "2024-01-15"},
		{name: "month name", input: "Jan 15, 2024", wantValid: true, want: "2024-01-15"},
		{name: "day month year", input: "15 Jan 2024", wantValid: true, want: "2024-01-15"},
		{name: "compact", input: "20240115", wantValid: true, want: "2024-01-15"},
		{name: "timestamp", input: "2024-01-15 08:30:00", wantValid: true, want: "2024-01-15"},
		{name: "leap day", input: "2024-02-29", wantValid: true, want: "2024-02-29"},
		{name: "not a leap year", input: "2023-02-29", wantValid: false},
		{name: "month out of range", input: "2024-13-01", wantValid: false},
		{name: "garbage", input: "yesterday", wantValid: false},
		{name: "empty", input: "   ", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CanonicalDate(tt.input)
			if ok != tt.wantValid {
				t.Fatalf("CanonicalDate(%q) ok = %v, want %v", tt.input, ok, tt.wantValid)
			}
			if ok && got != tt.want {
				t.Errorf("CanonicalDate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestToPgDate_TwoDigitYear(t *testing.T) {
	originalPivot := TwoDigitYearPivot
	defer func() { TwoDigitYearPivot = originalPivot }()
	TwoDigitYearPivot = 20

	currentYear := time.Now().Year()

	d := ToPgDate("1/2/05")
	if !d.Valid {
		t.Fatal("1/2/05 should parse")
	}
	if d.Time.Year() != 2005 {
		t.Errorf("1/2/05 year = %d, want 2005", d.Time.Year())
	}

	// Two digit years further than the pivot into the future belong to the
	// previous century.
	yy := (currentYear + TwoDigitYearPivot + 1) % 100
	far := ToPgDate(time.Date(2000+yy, 1, 2, 0, 0, 0, 0, time.UTC).Format("1/2/06"))
	if !far.Valid {
		t.Fatal("far two digit year should parse")
	}
	if far.Time.Year() > currentYear+TwoDigitYearPivot {
		t.Errorf("year %d is beyond the pivot", far.Time.Year())
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		trim  bool
		want  string
	}{
		{name: "simple string unchanged", input: "hello", trim: true, want: "hello"},
		{name: "trims when asked", input: "  hello  ", trim: true, want: "hello"},
		{name: "keeps whitespace otherwise", input: "  hello  ", trim: false, want: "  hello  "},
		{name: "Excel formula with quotes", input: `="00123"`, trim: true, want: "00123"},
		{name: "Excel formula after trim", input: `  ="A-1"  `, trim: true, want: "A-1"},
		{name: "lone equals kept", input: "=", trim: true, want: "="},
		{name: "empty", input: "", trim: true, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input, tt.trim); got != tt.want {
				t.Errorf("CleanCell(%q, %v) = %q, want %q", tt.input, tt.trim, got, tt.want)
			}
		})
	}
}
