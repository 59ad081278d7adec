// Package importerrs holds the error taxonomy shared by the import pipeline.
package importerrs

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindParse        Kind = "parse"
	KindMapping      Kind = "mapping"
	KindDuplicate    Kind = "duplicate"
	KindInsert       Kind = "insert"
	KindAborted      Kind = "aborted"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindValidation   Kind = "validation"
)

// RowError is implemented by every failure that is recorded against a single row.
type RowError interface {
	error
	Kind() Kind
	FieldName() string
}

// ParseError means the file could not be read at all.
type ParseError struct {
	Format string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s file: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s file: %s", e.Format, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Kind() Kind    { return KindParse }

// MappingError reports the first required field that had no usable value.
type MappingError struct {
	Field string
	Label string
}

func (e *MappingError) Error() string {
	label := e.Label
	if label == "" {
		label = e.Field
	}
	return fmt.Sprintf("Missing required field: %s", label)
}

func (e *MappingError) Kind() Kind        { return KindMapping }
func (e *MappingError) FieldName() string { return e.Field }

// DuplicateError reports a natural-key match against a stored record or an earlier row of the same file.
type DuplicateError struct {
	EntityType string
	Key        string
	Value      string
	Keys       []string
	// DuplicateOfRow is set when the match is an earlier row of the same file.
	DuplicateOfRow int
}

func (e *DuplicateError) Error() string {
	if e.DuplicateOfRow > 0 {
		return fmt.Sprintf("Duplicate: %s with %s %q already appears in row %d of this file", e.EntityType, e.Key, e.Value, e.DuplicateOfRow)
	}
	return fmt.Sprintf("Duplicate: %s with %s %q already exists", e.EntityType, e.Key, e.Value)
}

func (e *DuplicateError) Kind() Kind        { return KindDuplicate }
func (e *DuplicateError) FieldName() string { return strings.Join(e.Keys, "/") }

// InsertError carries the storage-reported reason a row was rejected.
type InsertError struct {
	Field string
	Err   error
}

func (e *InsertError) Error() string {
	if e.Err == nil {
		return "insert failed"
	}
	return e.Err.Error()
}

func (e *InsertError) Unwrap() error     { return e.Err }
func (e *InsertError) Kind() Kind        { return KindInsert }
func (e *InsertError) FieldName() string { return e.Field }

// AbortedError marks rows that were never processed because the run was cancelled.
type AbortedError struct{}

func (e *AbortedError) Error() string     { return "import aborted before row was processed" }
func (e *AbortedError) Kind() Kind        { return KindAborted }
func (e *AbortedError) FieldName() string { return "" }

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Kind() Kind { return KindNotFound }

type InvalidStateError struct {
	ID   string
	From string
	To   string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("batch %s cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *InvalidStateError) Kind() Kind { return KindInvalidState }

// ValidationError rejects a request before any batch is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Kind() Kind { return KindValidation }
