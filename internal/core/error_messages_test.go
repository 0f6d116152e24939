package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "duplicate tag sentinel", err: ErrDuplicateTag, wantCode: "DB001"},
		{name: "wrapped duplicate tag", err: fmt.Errorf("insert record: %w", ErrDuplicateTag), wantCode: "DB001"},
		{name: "sqlite unique constraint", err: errors.New("UNIQUE constraint failed: inventory_records.tag"), wantCode: "DB002"},
		{name: "postgres unique violation", err: errors.New("duplicate key value violates unique constraint"), wantCode: "DB001"},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), wantCode: "DB003"},
		{name: "record not found", err: ErrNotFound, wantCode: "DB005"},
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: "DB006"},
		{name: "context canceled", err: context.Canceled, wantCode: "IMP004"},
		{name: "permission error", err: &PermissionError{ActorID: "u1", TenantID: "t1", Reason: "record is owned by u2"}, wantCode: "AUTH001"},
		{name: "not a member", err: ErrNotMember, wantCode: "AUTH002"},
		{name: "preview not found", err: ErrPreviewNotFound, wantCode: "IMP002"},
		{name: "preview expired", err: ErrPreviewExpired, wantCode: "IMP003"},
		{name: "broken workbook", err: &ParseError{Format: "xlsx", Err: errors.New("zip: not a valid zip file")}, wantCode: "PRS001"},
		{name: "empty file", err: ErrEmptyDataset, wantCode: "PRS002"},
		{name: "unknown field", err: fmt.Errorf("%w: %q", ErrUnknownField, "colour"), wantCode: "VAL001"},
		{name: "unknown schema", err: fmt.Errorf("%w: vehicles", ErrUnknownSchema), wantCode: "VAL003"},
		{name: "rate limit", err: errors.New("rate limit exceeded"), wantCode: "RATE001"},
		{name: "unknown error returns default", err: errors.New("some random internal error"), wantCode: "ERR000"},
		{name: "case insensitive matching", err: errors.New("PERMISSION DENIED"), wantCode: "AUTH001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() message is empty")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrDuplicateTag)
	want := "A record with this tag already exists (Code: DB001). Use a different tag or edit the existing record"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrPermissionDenied, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("insert: %w", ErrDuplicateTag)
		userErr := NewUserError(techErr)

		if userErr.Error() != "A record with this tag already exists" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrDuplicateTag) {
			t.Error("Unwrap() should reach the original error")
		}
	})
}

func TestPermissionErrorIs(t *testing.T) {
	err := fmt.Errorf("row 3: %w", &PermissionError{ActorID: "u1", TenantID: "t1", Reason: "x"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Error("PermissionError should match ErrPermissionDenied")
	}
	var pe *PermissionError
	if !errors.As(err, &pe) || pe.ActorID != "u1" {
		t.Errorf("errors.As got %+v", pe)
	}
}
