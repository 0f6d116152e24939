// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate tag: A record with this tag already exists
//	        Patterns: "duplicate key"
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB003 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//	DB004 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//	DB005 - Not found: The record does not exist in this tenant
//	        Patterns: "record not found"
//	DB006 - Timeout: Operation timed out
//	        Patterns: "timeout", "context deadline exceeded"
//
// # Parse Errors (PRS001-PRS099)
//
//	PRS001 - Unreadable spreadsheet: The workbook could not be opened
//	         Patterns: "parse xlsx"
//	PRS002 - Empty file: The file has no header or no data rows
//	         Patterns: "empty file"
//	PRS003 - File too large: File exceeds the upload size limit
//	         Patterns: "file too large"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Unknown field: The edit names a field this record type lacks
//	         Patterns: "unknown field"
//	VAL002 - Invalid value: A value failed a required rule
//	         Patterns: "invalid value"
//	VAL003 - Unknown schema: The record type is not configured
//	         Patterns: "unknown schema"
//	VAL004 - No file: No file was provided
//	         Patterns: "no file provided"
//
// # Authorization Errors (AUTH001-AUTH099)
//
//	AUTH001 - Permission denied: Your role does not allow this change
//	          Patterns: "permission denied"
//	AUTH002 - Not a member: You are not a member of this tenant
//	          Patterns: "not a member"
//	AUTH003 - Missing actor: Request carried no X-Actor-ID header
//	          Written by the web layer before the service is reached
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - System busy: Too many imports in progress
//	         Patterns: "too many concurrent imports"
//	IMP002 - Preview not found: The preview does not exist or was already used
//	         Patterns: "preview not found"
//	IMP003 - Preview expired: The preview was not confirmed in time
//	         Patterns: "preview expired"
//	IMP004 - Request cancelled: The request was cancelled
//	         Patterns: "context canceled"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Authorization (AUTH001-AUTH002)
	// =========================================================================
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "You do not have permission for this change",
			Action:  "Ask a tenant admin to make the change or grant you a higher role",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "not a member",
		msg: UserMessage{
			Message: "You are not a member of this tenant",
			Action:  "Switch to a tenant you belong to or ask for an invitation",
			Code:    "AUTH002",
		},
	},
	// =========================================================================
	// Import lifecycle (IMP001-IMP004)
	// =========================================================================
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "Too many imports in progress",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "preview not found",
		msg: UserMessage{
			Message: "This preview does not exist or was already used",
			Action:  "Upload the file again to create a new preview",
			Code:    "IMP002",
		},
	},
	{
		pattern: "preview expired",
		msg: UserMessage{
			Message: "This preview expired before it was confirmed",
			Action:  "Upload the file again to create a new preview",
			Code:    "IMP003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP004",
		},
	},
	// =========================================================================
	// Database (DB001-DB006)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this tag already exists",
			Action:  "Use a different tag or edit the existing record",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your file",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "The record does not exist",
			Action:  "Refresh the list; the record may belong to another tenant",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "DB006",
		},
	},
	// =========================================================================
	// Parse (PRS001-PRS003)
	// =========================================================================
	{
		pattern: "parse xlsx",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Save the file as .xlsx again or export it as CSV",
			Code:    "PRS001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file has no header row or no data rows",
			Action:  "Download the template and add at least one row",
			Code:    "PRS002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the upload size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "PRS003",
		},
	},
	// =========================================================================
	// Validation (VAL001-VAL004)
	// =========================================================================
	{
		pattern: "unknown field",
		msg: UserMessage{
			Message: "This record type has no such field",
			Action:  "Check the field names against the template",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid value",
		msg: UserMessage{
			Message: "A value is not allowed for this field",
			Action:  "Correct the value and try again",
			Code:    "VAL002",
		},
	},
	{
		pattern: "unknown schema",
		msg: UserMessage{
			Message: "Unknown record type",
			Action:  "This record type is not configured",
			Code:    "VAL003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to import",
			Code:    "VAL004",
		},
	},
	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps a technical error to a UserError.
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
