package core

// error_messages.go maps technical errors to messages an operator can act on.
//
// Codes are grouped by family and quoted in API responses so a failure can
// be traced in the logs:
//
//	DB    database connectivity and constraints
//	VAL   row values rejected at insertion
//	FILE  unreadable, empty or oversized uploads
//	COR   correction script generation and execution
//	INS   insertion outcomes
//	UPL   queue and request lifecycle
//	RATE  throttling and authentication
//	ERR000 anything unrecognised; check the server log
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Correction
	{"correction attempts exhausted", UserMessage{
		Message: "The file could not be corrected automatically",
		Action:  "Fix the file by hand and upload it again",
		Code:    "COR001",
	}},
	{"unsafe correction script", UserMessage{
		Message: "The generated correction was rejected as unsafe",
		Action:  "Request a new correction",
		Code:    "COR002",
	}},
	{"invalid correction script", UserMessage{
		Message: "The generated correction could not be understood",
		Action:  "Request a new correction",
		Code:    "COR003",
	}},
	{"correction script failed", UserMessage{
		Message: "The correction failed while running on this file",
		Action:  "Request a new correction; the cached script will be bypassed",
		Code:    "COR004",
	}},
	{"generate script", UserMessage{
		Message: "The correction service is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "COR005",
	}},

	// Insertion
	{"insertion failed", UserMessage{
		Message: "No row of the file could be inserted",
		Action:  "Review the row errors and correct the file again",
		Code:    "INS001",
	}},

	// Database
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB002",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB003",
	}},
	{"violates check constraint", UserMessage{
		Message: "A value is outside what the table accepts",
		Action:  "Check tipo and status columns against the template",
		Code:    "DB004",
	}},

	// Values
	{"invalid date", UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD dates",
		Code:    "VAL001",
	}},
	{"invalid amount", UserMessage{
		Message: "Invalid amount detected",
		Action:  "Use plain decimal numbers without currency symbols",
		Code:    "VAL002",
	}},
	{"value is required", UserMessage{
		Message: "Required field is empty",
		Action:  "Ensure all required columns have values",
		Code:    "VAL003",
	}},
	{"is not credito or debito", UserMessage{
		Message: "Transaction type is not in the allowed list",
		Action:  "Use CREDITO or DEBITO",
		Code:    "VAL004",
	}},

	// Files
	{"file too large", UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a CSV file with a header and data rows",
		Code:    "FILE002",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Select one or more CSV files to upload",
		Code:    "FILE003",
	}},
	{"could not be read", UserMessage{
		Message: "The file could not be read as CSV",
		Action:  "Save the file as CSV with a header row",
		Code:    "FILE004",
	}},

	// Queue and requests
	{"session not found", UserMessage{
		Message: "File not found in the queue",
		Action:  "It may have been removed or expired. Upload it again",
		Code:    "UPL001",
	}},
	{"too many files", UserMessage{
		Message: "System is busy processing other files",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
	{"invalid status transition", UserMessage{
		Message: "That action does not apply to the file right now",
		Action:  "Refresh the queue and check the file status",
		Code:    "UPL003",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "UPL005",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "UPL005",
	}},

	// Throttling
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
	{"api key", UserMessage{
		Message: "Missing or invalid API key",
		Action:  "Send a valid key in the X-API-Key header",
		Code:    "RATE002",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil
// error maps to the zero UserMessage.
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
