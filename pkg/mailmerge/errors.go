// Package mailmerge error types. Malformed source documents and invalid
// arguments produce typed errors; ErrSkipRecord is expected control flow.
package mailmerge

import (
	"errors"
	"fmt"
)

// ErrSkipRecord is returned by a ValueFunc to abandon the current data row
// during MergeTemplates. The row's body copy is discarded and processing
// continues with the next row. It never escapes MergeTemplates.
var ErrSkipRecord = errors.New("mailmerge: skip record")

// ErrClosed is returned by operations on a closed document.
var ErrClosed = errors.New("mailmerge: document is closed")

// ErrNoRows is returned by MergeTemplates when called without data rows.
var ErrNoRows = errors.New("mailmerge: no data rows")

// MalformedFieldError reports a complex field whose begin marker has no
// matching end marker. Instr holds the instruction text collected before
// the document ran out, which usually identifies the broken field.
type MalformedFieldError struct {
	Instr string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed complex field: begin without end near %q", e.Instr)
}

// NewMalformedFieldError creates a MalformedFieldError.
func NewMalformedFieldError(instr string) error {
	return &MalformedFieldError{Instr: instr}
}

// InvalidSeparatorError reports a MergeTemplates separator outside the
// fixed set of Separator values.
type InvalidSeparatorError struct {
	Value string
}

func (e *InvalidSeparatorError) Error() string {
	return fmt.Sprintf("invalid separator argument: %q", e.Value)
}

// NewInvalidSeparatorError creates an InvalidSeparatorError.
func NewInvalidSeparatorError(value string) error {
	return &InvalidSeparatorError{Value: value}
}

// IDSchemeError reports an identifier whose textual scheme the unique-ID
// manager does not recognize. This is a programming error, not a document
// defect.
type IDSchemeError struct {
	ID string
}

func (e *IDSchemeError) Error() string {
	return fmt.Sprintf("unrecognized id scheme: %q", e.ID)
}

// PartNotFoundError reports a required package part or part category that
// is absent from the document.
type PartNotFoundError struct {
	Name string
}

func (e *PartNotFoundError) Error() string {
	return fmt.Sprintf("document part not found: %s", e.Name)
}

// DocumentError represents a failure during a document-level operation.
type DocumentError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *DocumentError) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("document error during %s of '%s': %v", e.Operation, e.Path, e.Cause)
	} else if e.Path != "" {
		return fmt.Sprintf("document error during %s of '%s'", e.Operation, e.Path)
	} else if e.Cause != nil {
		return fmt.Sprintf("document error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("document error during %s", e.Operation)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// NewDocumentError creates a new document error.
func NewDocumentError(operation, path string, cause error) error {
	return &DocumentError{
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// IsMalformedFieldError checks if an error is a malformed field error.
func IsMalformedFieldError(err error) bool {
	var target *MalformedFieldError
	return errors.As(err, &target)
}

// IsInvalidSeparatorError checks if an error is an invalid separator error.
func IsInvalidSeparatorError(err error) bool {
	var target *InvalidSeparatorError
	return errors.As(err, &target)
}
