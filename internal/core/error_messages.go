package core

// error_messages.go maps technical errors to user-friendly messages with codes
// for support reference. Sentinel errors from the importer and the database
// manager are matched first with errors.Is; driver errors that carry no
// sentinel fall back to substring patterns.
//
// Error codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Unsupported format (only .csv, .xlsx and .xls)
//	FILE003 - Encoding mismatch (bytes are not valid in the chosen encoding)
//	FILE004 - File not found
//	FILE005 - Sheet not found in the workbook
//	FILE006 - Parse error (delimiter, quoting or corrupt workbook)
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection failed
//	DB002 - Timeout
//	DB003 - Unsupported driver
//	DB004 - Access denied
//	DB005 - Deadlock
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - No storable columns
//	SCH002 - Column name collision
//	SCH003 - Invalid cell value for the column type
//
// # Table Errors (TBL001-TBL099)
//
//	TBL001 - Table does not exist in the database
//	TBL002 - No file loaded in this session
//	TBL003 - Row or column out of range
//
// # Write Errors (WRT001-WRT099)
//
//	WRT001 - Too many concurrent writes
//	WRT002 - Overwrite not confirmed
//	WRT003 - Operation cancelled
//	WRT004 - Another write to the same table is running
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default (ERR000)
//
//	ERR000 - Unexpected error

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
	"github.com/JonMunkholm/PreChart2DB/internal/importer"
)

// UserMessage provides a user-friendly error message with actionable guidance.
type UserMessage struct {
	Message string // User-friendly description
	Action  string // What the user can do
	Code    string // Reference code for support
}

// errorSentinel maps a sentinel error to a user message.
type errorSentinel struct {
	target error
	msg    UserMessage
}

// Order matters: ErrInvalidUTF8 and ErrSheetNotFound wrap ErrParse and
// must be checked before it.
var errorSentinels = []errorSentinel{
	{importer.ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller files",
		Code:    "FILE001",
	}},
	{importer.ErrUnsupportedFormat, UserMessage{
		Message: "Unsupported file format",
		Action:  "Use a .csv, .xlsx or .xls file",
		Code:    "FILE002",
	}},
	{importer.ErrInvalidUTF8, UserMessage{
		Message: "File encoding does not match the selected encoding",
		Action:  "Pick the encoding the file was saved with (for example cp949)",
		Code:    "FILE003",
	}},
	{importer.ErrFileNotFound, UserMessage{
		Message: "File not found",
		Action:  "Check the file path and try again",
		Code:    "FILE004",
	}},
	{importer.ErrSheetNotFound, UserMessage{
		Message: "Sheet not found in the workbook",
		Action:  "Check the sheet name or leave it empty to use the first sheet",
		Code:    "FILE005",
	}},
	{importer.ErrParse, UserMessage{
		Message: "The file could not be parsed",
		Action:  "Check the delimiter and encoding, or re-save the workbook",
		Code:    "FILE006",
	}},
	{dbsync.ErrConnection, UserMessage{
		Message: "Unable to connect to the database",
		Action:  "Check the connection settings and that the server is running",
		Code:    "DB001",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB002",
	}},
	{dbsync.ErrUnsupportedDriver, UserMessage{
		Message: "Unsupported database driver",
		Action:  "Use mysql, postgres or sqlite",
		Code:    "DB003",
	}},
	{dbsync.ErrNoColumns, UserMessage{
		Message: "No columns can be stored",
		Action:  "Give the columns names made of letters or digits",
		Code:    "SCH001",
	}},
	{dbsync.ErrColumnCollision, UserMessage{
		Message: "Two columns map to the same database column name",
		Action:  "Rename one of the columns or change the identity column name",
		Code:    "SCH002",
	}},
	{dataset.ErrInvalidValue, UserMessage{
		Message: "Value does not match the column type",
		Action:  "Enter a value of the column type or change the column type",
		Code:    "SCH003",
	}},
	{dbsync.ErrTableNotFound, UserMessage{
		Message: "Table does not exist in the database",
		Action:  "Run overwrite first to create it",
		Code:    "TBL001",
	}},
	{ErrNoTable, UserMessage{
		Message: "No file has been loaded",
		Action:  "Upload a CSV or Excel file first",
		Code:    "TBL002",
	}},
	{dataset.ErrRowRange, UserMessage{
		Message: "Row does not exist",
		Action:  "Reload the page and try again",
		Code:    "TBL003",
	}},
	{dataset.ErrColumnRange, UserMessage{
		Message: "Column does not exist",
		Action:  "Reload the page and try again",
		Code:    "TBL003",
	}},
	{ErrTooManyWrites, UserMessage{
		Message: "Too many database writes are running",
		Action:  "Please wait a moment and try again",
		Code:    "WRT001",
	}},
	{ErrNotConfirmed, UserMessage{
		Message: "Overwrite was not confirmed",
		Action:  "Press overwrite again and confirm",
		Code:    "WRT002",
	}},
	{ErrTargetBusy, UserMessage{
		Message: "Another write to this table is still running",
		Action:  "Wait for it to finish and check the status log",
		Code:    "WRT004",
	}},
	{context.Canceled, UserMessage{
		Message: "Operation was cancelled",
		Action:  "Start it again if needed",
		Code:    "WRT003",
	}},
}

// errorPattern maps substrings in driver error messages to user messages.
// Patterns are matched case-insensitively against the error message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{
		Message: "Unable to connect to the database",
		Action:  "Check the connection settings and that the server is running",
		Code:    "DB001",
	}},
	{"no such host", UserMessage{
		Message: "Unable to connect to the database",
		Action:  "Check the host name",
		Code:    "DB001",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB002",
	}},
	{"access denied", UserMessage{
		Message: "The database rejected the credentials",
		Action:  "Check the user name and password",
		Code:    "DB004",
	}},
	{"password authentication failed", UserMessage{
		Message: "The database rejected the credentials",
		Action:  "Check the user name and password",
		Code:    "DB004",
	}},
	{"deadlock", UserMessage{
		Message: "Database was busy with conflicting operations",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment and try again",
		Code:    "RATE001",
	}},
}

// defaultMessage is returned when no sentinel or pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the status log",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for a nil error and defaultMessage when
// nothing matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, es := range errorSentinels {
		if errors.Is(err, es.target) {
			return es.msg
		}
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

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message. Error returns
// the user message; Unwrap returns the technical error for logging.
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

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
