package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Sentinels for the pipeline error taxonomy. Every typed pipeline error
// reports true for errors.Is against its sentinel, so callers can branch on
// the category without a type switch.
var (
	ErrSourceUnavailable = New("source unavailable")
	ErrSchemaMismatch    = New("schema mismatch")
	ErrKeyCoercion       = New("key coercion failed")
	ErrEmptyJoinResult   = New("empty join result")
	ErrDegenerateSplit   = New("degenerate split")
)

// SourceUnavailableError is returned when an input table cannot be opened or parsed.
type SourceUnavailableError struct {
	Source string
	Path   string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bechdel: source %q unavailable at %s: %v", e.Source, e.Path, e.Err)
	}
	return fmt.Sprintf("bechdel: source %q unavailable at %s", e.Source, e.Path)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

func (e *SourceUnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *SourceUnavailableError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("source", e.Source).
		Str("path", e.Path).
		Str("type", "SourceUnavailableError")
}

// NewSourceUnavailableError creates a SourceUnavailableError with a stack trace.
func NewSourceUnavailableError(source, path string, err error) error {
	return errors.WithStack(&SourceUnavailableError{Source: source, Path: path, Err: err})
}

// SchemaMismatchError is returned when expected columns are absent from a table.
type SchemaMismatchError struct {
	Source  string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("bechdel: source %q is missing columns [%s]", e.Source, strings.Join(e.Missing, ", "))
}

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *SchemaMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("source", e.Source).
		Strs("missing", e.Missing).
		Str("type", "SchemaMismatchError")
}

// NewSchemaMismatchError creates a SchemaMismatchError with a stack trace.
func NewSchemaMismatchError(source string, missing []string) error {
	return errors.WithStack(&SchemaMismatchError{Source: source, Missing: missing})
}

// KeyCoercionError is returned when an identifier cannot be turned into a join key.
type KeyCoercionError struct {
	Column string
	Value  string
	Row    int // -1 when the value was not read from a table
}

func (e *KeyCoercionError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("bechdel: cannot coerce %q in column %q (row %d) to a numeric key", e.Value, e.Column, e.Row)
	}
	return fmt.Sprintf("bechdel: cannot coerce %q in column %q to a numeric key", e.Value, e.Column)
}

func (e *KeyCoercionError) Is(target error) bool { return target == ErrKeyCoercion }

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *KeyCoercionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("value", e.Value).
		Int("row", e.Row).
		Str("type", "KeyCoercionError")
}

// NewKeyCoercionError creates a KeyCoercionError with a stack trace.
func NewKeyCoercionError(column, value string, row int) error {
	return errors.WithStack(&KeyCoercionError{Column: column, Value: value, Row: row})
}

// EmptyJoinResultError is returned when an inner join keeps no rows.
type EmptyJoinResultError struct {
	Left  string
	Right string
	Key   string
}

func (e *EmptyJoinResultError) Error() string {
	return fmt.Sprintf("bechdel: joining %s with %s on %q produced no rows", e.Left, e.Right, e.Key)
}

func (e *EmptyJoinResultError) Is(target error) bool { return target == ErrEmptyJoinResult }

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *EmptyJoinResultError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("left", e.Left).
		Str("right", e.Right).
		Str("key", e.Key).
		Str("type", "EmptyJoinResultError")
}

// NewEmptyJoinResultError creates an EmptyJoinResultError with a stack trace.
func NewEmptyJoinResultError(left, right, key string) error {
	return errors.WithStack(&EmptyJoinResultError{Left: left, Right: right, Key: key})
}

// DegenerateSplitError is returned when a train/test split leaves one side empty.
type DegenerateSplitError struct {
	Rows       int
	Proportion float64
	Train      int
	Test       int
}

func (e *DegenerateSplitError) Error() string {
	return fmt.Sprintf("bechdel: splitting %d rows with proportion %.3f gives %d train and %d test rows",
		e.Rows, e.Proportion, e.Train, e.Test)
}

func (e *DegenerateSplitError) Is(target error) bool { return target == ErrDegenerateSplit }

// MarshalZerologObject adds the structured fields to a zerolog event.
func (e *DegenerateSplitError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("rows", e.Rows).
		Float64("proportion", e.Proportion).
		Int("train", e.Train).
		Int("test", e.Test).
		Str("type", "DegenerateSplitError")
}

// NewDegenerateSplitError creates a DegenerateSplitError with a stack trace.
func NewDegenerateSplitError(rows int, proportion float64, train, test int) error {
	return errors.WithStack(&DegenerateSplitError{Rows: rows, Proportion: proportion, Train: train, Test: test})
}
