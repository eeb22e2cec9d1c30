// Package errors provides structured error types for shelf.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for shelf.
const (
	// Initialization errors
	CodeNotInitialized     Code = "SHELF_NOT_INITIALIZED"
	CodeAlreadyInitialized Code = "SHELF_ALREADY_INITIALIZED"

	// Hierarchy and task state errors
	CodeValidation            Code = "VALIDATION_FAILED"
	CodeNotFound              Code = "NOT_FOUND"
	CodeUnsupportedController Code = "UNSUPPORTED_CONTROLLER"
	CodeConsistency           Code = "CONSISTENCY_VIOLATION"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeConfigMissing Code = "CONFIG_MISSING"

	// External service errors
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
)

// Category groups error codes for status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
	CategoryTimeout
	CategoryUnavailable
)

// codeCategories maps error codes to their categories.
var codeCategories = map[Code]Category{
	CodeNotInitialized:        CategoryBadRequest,
	CodeAlreadyInitialized:    CategoryConflict,
	CodeValidation:            CategoryBadRequest,
	CodeNotFound:              CategoryNotFound,
	CodeUnsupportedController: CategoryBadRequest,
	CodeConsistency:           CategoryConflict,
	CodeConfigInvalid:         CategoryBadRequest,
	CodeConfigMissing:         CategoryBadRequest,
	CodeServiceUnavailable:    CategoryUnavailable,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	case CategoryTimeout:
		return 504
	case CategoryUnavailable:
		return 503
	default:
		return 500
	}
}

// ShelfError is the structured error type for shelf.
type ShelfError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`
}

// Error implements the error interface.
func (e *ShelfError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ShelfError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *ShelfError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for status mapping.
func (e *ShelfError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *ShelfError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *ShelfError) MarshalJSON() ([]byte, error) {
	type alias ShelfError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a ShelfError with the same code.
func (e *ShelfError) Is(target error) bool {
	t, ok := target.(*ShelfError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *ShelfError) WithCause(err error) *ShelfError {
	return &ShelfError{
		Code:  e.Code,
		What:  e.What,
		Why:   e.Why,
		Fix:   e.Fix,
		Cause: err,
	}
}

// Sentinels for errors.Is matching by code.
var (
	ErrNotFound              = &ShelfError{Code: CodeNotFound, What: "not found"}
	ErrValidation            = &ShelfError{Code: CodeValidation, What: "validation failed"}
	ErrUnsupportedController = &ShelfError{Code: CodeUnsupportedController, What: "unsupported controller"}
	ErrConsistency           = &ShelfError{Code: CodeConsistency, What: "consistency violation"}
)

// --- Error constructors ---

// ErrNotInitialized returns an error for an uninitialized shelf directory.
func ErrNotInitialized() *ShelfError {
	return &ShelfError{
		Code: CodeNotInitialized,
		What: "shelf is not initialized in this directory",
		Why:  "No .shelf/ directory found in the current path",
		Fix:  "Run 'shelf init' to initialize shelf in this directory",
	}
}

// ErrAlreadyInitialized returns an error when shelf is already initialized.
func ErrAlreadyInitialized(path string) *ShelfError {
	return &ShelfError{
		Code: CodeAlreadyInitialized,
		What: "shelf is already initialized",
		Why:  fmt.Sprintf("Found existing .shelf/ directory at %s", path),
		Fix:  "Use 'shelf init --force' to reinitialize, or remove .shelf/ manually",
	}
}

// NotFound returns an error for a referenced entity that does not exist.
func NotFound(kind, id string) *ShelfError {
	return &ShelfError{
		Code: CodeNotFound,
		What: fmt.Sprintf("%s %s not found", kind, id),
		Why:  fmt.Sprintf("No %s with this ID exists", kind),
	}
}

// Validation returns an error for malformed input.
func Validation(what, why string) *ShelfError {
	return &ShelfError{
		Code: CodeValidation,
		What: what,
		Why:  why,
	}
}

// UnsupportedController returns an error when an item cannot supply the
// state a controller needs.
func UnsupportedController(itemID, controller, why string) *ShelfError {
	return &ShelfError{
		Code: CodeUnsupportedController,
		What: fmt.Sprintf("item %s cannot use the %s controller", itemID, controller),
		Why:  why,
		Fix:  "Use the manual controller, or attach the item to a service or list first",
	}
}

// Consistency returns an error for an operation that would break a
// structural invariant.
func Consistency(what, why string) *ShelfError {
	return &ShelfError{
		Code: CodeConsistency,
		What: what,
		Why:  why,
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *ShelfError {
	return &ShelfError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .shelf/config.yaml and fix the invalid field",
	}
}

// ErrConfigMissing returns an error for missing configuration.
func ErrConfigMissing(field string) *ShelfError {
	return &ShelfError{
		Code: CodeConfigMissing,
		What: fmt.Sprintf("missing required configuration: %s", field),
		Why:  "This field is required but not set in configuration",
		Fix:  fmt.Sprintf("Add '%s' to .shelf/config.yaml", field),
	}
}

// ErrServiceUnavailable returns an error when an external service cannot be reached.
func ErrServiceUnavailable(service string, cause error) *ShelfError {
	return &ShelfError{
		Code:  CodeServiceUnavailable,
		What:  fmt.Sprintf("service %s is unavailable", service),
		Cause: cause,
	}
}

// AsShelfError attempts to convert an error to a ShelfError.
// Returns nil if the error is not a ShelfError.
func AsShelfError(err error) *ShelfError {
	var shelfErr *ShelfError
	if stderrors.As(err, &shelfErr) {
		return shelfErr
	}
	return nil
}

// HasCode reports whether err wraps a ShelfError with the given code.
func HasCode(err error, code Code) bool {
	if e := AsShelfError(err); e != nil {
		return e.Code == code
	}
	return false
}

// Wrap wraps a generic error into a ShelfError with unknown code.
func Wrap(err error, what string) *ShelfError {
	return &ShelfError{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
