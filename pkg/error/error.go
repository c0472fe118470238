package error

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by their nature and by who is expected to
// handle them. The storage layer never retries; retry belongs to the caller
// that owns locking and transaction semantics.
type ErrorCategory int

const (
	// ErrCategoryValidation represents values that do not fit their column:
	// too long, wrong fixed length, or an invalid literal for the target type.
	// Raised at encode time; values are never silently truncated.
	ErrCategoryValidation ErrorCategory = iota

	// ErrCategoryCapacity represents a page without room for the requested
	// row. The page is left unmodified.
	ErrCategoryCapacity

	// ErrCategoryFormat represents bytes that cannot be interpreted: unknown
	// column or row types, truncated buffers, inconsistent size fields.
	ErrCategoryFormat

	// ErrCategoryNotImplemented represents paths that fail fast instead of
	// returning partial data.
	ErrCategoryNotImplemented

	// ErrCategorySystem represents errors requiring administrator intervention.
	// Examples: disk full, configuration errors, missing files, permission issues.
	ErrCategorySystem
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryValidation:
		return "validation"
	case ErrCategoryCapacity:
		return "capacity"
	case ErrCategoryFormat:
		return "format"
	case ErrCategoryNotImplemented:
		return "not_implemented"
	case ErrCategorySystem:
		return "system"
	default:
		return "unknown"
	}
}

// Error codes used across the storage engine.
const (
	CodeValueTooLong    = "VALUE_TOO_LONG"
	CodeWrongLength     = "WRONG_FIXED_LENGTH"
	CodeInvalidLiteral  = "INVALID_LITERAL"
	CodeNullNotAllowed  = "NULL_NOT_ALLOWED"
	CodeColumnNotFound  = "COLUMN_NOT_FOUND"
	CodeNotEnoughRoom   = "NOT_ENOUGH_ROOM"
	CodeUnknownType     = "UNKNOWN_TYPE"
	CodeCorruptData     = "CORRUPT_DATA"
	CodeRowNotFound     = "ROW_NOT_FOUND"
	CodePageNotFound    = "PAGE_NOT_FOUND"
	CodeForwardLoop     = "FORWARD_CHAIN_TOO_LONG"
	CodeNotImplemented  = "NOT_IMPLEMENTED"
	CodeInvalidState    = "INVALID_STATE"
	CodeIOFailure       = "IO_FAILURE"
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeSequenceGap     = "SEQUENCE_GAP"
	CodeDuplicateRowID  = "DUPLICATE_ROW_ID"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeTableNotFound   = "TABLE_NOT_FOUND"
)

// DBError represents a structured database error with rich context information.
type DBError struct {
	// Code is a unique identifier for this error type (e.g., "NOT_ENOUGH_ROOM").
	Code string

	// Category classifies the error for appropriate handling strategy.
	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail provides additional context about the specific error instance.
	Detail string

	// Hint suggests how the caller might fix or work around this error.
	Hint string

	// Operation identifies the operation that was being performed.
	// Examples: "AddRow", "EncodeValue", "ParseEntry".
	Operation string

	// Component identifies the system component where the error originated.
	// Examples: "Page", "RowCodec", "LogReader".
	Component string

	// Cause is the underlying error that triggered this database error.
	Cause error

	// Stack contains the call stack where this error was created.
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Newf is New with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...any) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  fmt.Sprintf(format, args...),
		Stack:    captureStack(),
	}
}

// Wrap wraps an existing error with database-specific context information.
// If the error is already a DBError, it enriches the existing error with
// operation and component context (only if not already set).
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// WithDetail sets Detail and returns the receiver for chaining.
func (e *DBError) WithDetail(format string, args ...any) *DBError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// In sets Operation and Component and returns the receiver for chaining.
func (e *DBError) In(operation, component string) *DBError {
	e.Operation = operation
	e.Component = component
	return e
}

// Is reports whether err, or any error it wraps, is a DBError with the given code.
func Is(err error, code string) bool {
	var dbErr *DBError
	if !errors.As(err, &dbErr) {
		return false
	}
	return dbErr.Code == code
}

// CategoryOf returns the category of the first DBError in err's chain.
// The second result is false when err carries no DBError.
func CategoryOf(err error) (ErrorCategory, bool) {
	var dbErr *DBError
	if !errors.As(err, &dbErr) {
		return 0, false
	}
	return dbErr.Category, true
}

// captureStack skips captureStack, New/Wrap and the immediate caller.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error implements the standard Go error interface
//
// The format follows the pattern:
// [ERROR_CODE] Message: Detail (operation: Operation, component: Component) caused by: underlying error
func (e *DBError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Detail != "" {
		b.WriteString(fmt.Sprintf(": %s", e.Detail))
	}

	if e.Operation != "" {
		b.WriteString(fmt.Sprintf(" (operation: %s", e.Operation))
		if e.Component != "" {
			b.WriteString(fmt.Sprintf(", component: %s", e.Component))
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" caused by: %v", e.Cause))
	}

	return b.String()
}

// Unwrap returns the underlying cause error, enabling error chain traversal
// with errors.Is and errors.As.
func (e *DBError) Unwrap() error {
	return e.Cause
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		b.WriteString(fmt.Sprintf("  %s\n    %s:%d\n",
			f.Function, f.File, f.Line))
		if !more {
			break
		}
	}

	return b.String()
}
