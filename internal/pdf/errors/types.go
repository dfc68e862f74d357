package errors

import (
	"errors"
	"fmt"
	"time"
)

// PDFError describes a failure while accepting or processing a document, with
// enough context for the caller to decide whether to reject, retry or degrade.
type PDFError struct {
	Type        ErrorType `json:"type"`
	Message     string    `json:"message"`
	Context     string    `json:"context,omitempty"`
	PageNumber  int       `json:"page_number,omitempty"`
	Recoverable bool      `json:"recoverable"`
	Timestamp   time.Time `json:"timestamp"`
	cause       error
}

// ErrorType represents different categories of document processing errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeInvalidInput
	ErrorTypeEmptyInput
	ErrorTypeFileTooLarge
	ErrorTypeInvalidHeader
	ErrorTypeCorruptedData
	ErrorTypeMalformedPage
	ErrorTypeMalformedCandidate
	ErrorTypeOCRUnavailable
	ErrorTypeProviderFailure
	ErrorTypeTimeout
)

// Category groups error types by how the pipeline reacts to them.
type Category string

const (
	// CategoryInput errors are detected before the pipeline runs; the request is rejected.
	CategoryInput Category = "input"
	// CategoryDegraded conditions never abort a parse; they become warnings.
	CategoryDegraded Category = "degraded"
	// CategoryFatal errors terminate the whole parse call.
	CategoryFatal Category = "fatal"
)

// Error implements the error interface
func (e *PDFError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type.String(), e.Message, e.Context)
	}
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *PDFError) Unwrap() error {
	return e.cause
}

// String returns a string representation of the ErrorType
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeInvalidInput:
		return "INVALID_INPUT"
	case ErrorTypeEmptyInput:
		return "EMPTY_INPUT"
	case ErrorTypeFileTooLarge:
		return "FILE_TOO_LARGE"
	case ErrorTypeInvalidHeader:
		return "INVALID_HEADER"
	case ErrorTypeCorruptedData:
		return "CORRUPTED_DATA"
	case ErrorTypeMalformedPage:
		return "MALFORMED_PAGE"
	case ErrorTypeMalformedCandidate:
		return "MALFORMED_CANDIDATE"
	case ErrorTypeOCRUnavailable:
		return "OCR_UNAVAILABLE"
	case ErrorTypeProviderFailure:
		return "PROVIDER_FAILURE"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Category returns how the pipeline treats an error of this type
func (et ErrorType) Category() Category {
	switch et {
	case ErrorTypeInvalidInput, ErrorTypeEmptyInput, ErrorTypeFileTooLarge, ErrorTypeInvalidHeader:
		return CategoryInput
	case ErrorTypeMalformedPage, ErrorTypeMalformedCandidate, ErrorTypeOCRUnavailable:
		return CategoryDegraded
	default:
		return CategoryFatal
	}
}

// IsRecoverable determines if an error type is generally recoverable
func (et ErrorType) IsRecoverable() bool {
	return et.Category() == CategoryDegraded
}

// NewPDFError creates a new PDFError
func NewPDFError(errorType ErrorType, message string) *PDFError {
	return &PDFError{
		Type:        errorType,
		Message:     message,
		Recoverable: errorType.IsRecoverable(),
		Timestamp:   time.Now(),
	}
}

// NewPDFErrorWithContext creates a new PDFError with additional context
func NewPDFErrorWithContext(errorType ErrorType, message, context string) *PDFError {
	e := NewPDFError(errorType, message)
	e.Context = context
	return e
}

// WrapError wraps a standard error as a PDFError, keeping it reachable through errors.Is/As
func WrapError(errorType ErrorType, err error) *PDFError {
	e := NewPDFError(errorType, err.Error())
	e.cause = err
	return e
}

// WithContext adds context to an existing PDFError
func (e *PDFError) WithContext(context string) *PDFError {
	e.Context = context
	return e
}

// WithPage adds page number information to an existing PDFError
func (e *PDFError) WithPage(pageNumber int) *PDFError {
	e.PageNumber = pageNumber
	return e
}

// Category returns the pipeline category of this error
func (e *PDFError) Category() Category {
	return e.Type.Category()
}

// IsInputError reports whether err is a PDFError rejecting the request before processing.
func IsInputError(err error) bool {
	var pe *PDFError
	return errors.As(err, &pe) && pe.Category() == CategoryInput
}

// IsFatal reports whether err terminates a parse call.
func IsFatal(err error) bool {
	var pe *PDFError
	return errors.As(err, &pe) && pe.Category() == CategoryFatal
}

// ErrorCollection accumulates degraded conditions seen during one parse
type ErrorCollection struct {
	Warnings []*PDFError `json:"warnings"`
}

// NewErrorCollection creates a new error collection
func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Warnings: make([]*PDFError, 0),
	}
}

// Add records a degraded condition
func (ec *ErrorCollection) Add(err *PDFError) {
	ec.Warnings = append(ec.Warnings, err)
}

// Count returns the number of recorded warnings
func (ec *ErrorCollection) Count() int {
	return len(ec.Warnings)
}

// Messages returns the warnings rendered as strings, in insertion order
func (ec *ErrorCollection) Messages() []string {
	out := make([]string, 0, len(ec.Warnings))
	for _, w := range ec.Warnings {
		if w.PageNumber > 0 {
			out = append(out, fmt.Sprintf("page %d: %s", w.PageNumber, w.Error()))
			continue
		}
		out = append(out, w.Error())
	}
	return out
}

// Summary returns a text summary of all warnings
func (ec *ErrorCollection) Summary() string {
	if ec.Count() == 0 {
		return "No warnings"
	}
	return fmt.Sprintf("Found %d warning(s)", ec.Count())
}
