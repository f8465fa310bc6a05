// Package storyerrors defines the error taxonomy shared by the archive,
// query, and search subsystems: ArchiveError, IndexError, QueryError, and
// UsageError. Each is a distinct type so callers can dispatch with
// errors.As while still getting one message shape via Error().
package storyerrors

import "fmt"

// ArchiveError reports a problem opening or reading the container: the file
// is missing, the ZIP structure is unreadable, or a named entry is missing
// or corrupt.
type ArchiveError struct {
	Op         string
	Underlying error
}

func NewArchiveError(op string, err error) *ArchiveError {
	return &ArchiveError{Op: op, Underlying: err}
}

func (e *ArchiveError) Error() string {
	if e.Underlying == nil {
		return fmt.Sprintf("archive error, %s", lower(e.Op))
	}
	return fmt.Sprintf("archive error, %s: %v", lower(e.Op), e.Underlying)
}

func (e *ArchiveError) Unwrap() error { return e.Underlying }

// IndexError reports a problem while streaming and decoding the metadata
// index: a malformed line, a key/id mismatch, a schema violation (including
// an unknown field), a duplicate id, or wrapper lines that are not exactly
// "{}".
type IndexError struct {
	Op         string
	Line       int
	Underlying error
}

func NewIndexError(op string, err error) *IndexError {
	return &IndexError{Op: op, Underlying: err}
}

func (e *IndexError) WithLine(n int) *IndexError {
	e.Line = n
	return e
}

func (e *IndexError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("index error, %s at line %d: %v", lower(e.Op), e.Line, e.Underlying)
	}
	if e.Underlying == nil {
		return fmt.Sprintf("index error, %s", lower(e.Op))
	}
	return fmt.Sprintf("index error, %s: %v", lower(e.Op), e.Underlying)
}

func (e *IndexError) Unwrap() error { return e.Underlying }

// QueryError reports a problem parsing or compiling a filter query: a parse
// failure at a position (counted in runes of the query, not bytes), an
// unknown field, an operator that does not
// apply to the field's type, a value that fails to parse, or a regular
// expression that exceeds the size cap.
type QueryError struct {
	Message  string
	Position int
	HasPos   bool
}

func NewQueryError(message string) *QueryError {
	return &QueryError{Message: message}
}

func NewQueryErrorAt(message string, position int) *QueryError {
	return &QueryError{Message: message, Position: position, HasPos: true}
}

func (e *QueryError) Error() string {
	if e.HasPos {
		return fmt.Sprintf("query error, %s at %d", lower(e.Message), e.Position)
	}
	return fmt.Sprintf("query error, %s", lower(e.Message))
}

// UsageError reports a bad CLI invocation.
type UsageError struct {
	Message string
}

func NewUsageError(message string) *UsageError {
	return &UsageError{Message: message}
}

func (e *UsageError) Error() string {
	return e.Message
}

func lower(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
