package compiler

import "fmt"

// Static errors are detected before any execution begins and abort
// compilation entirely; no partial program is ever returned. Each
// carries a source span for an external reporter.

// LexError is a malformed token: an unrecognized character, a bad
// number, or an unterminated string or character literal.
type LexError struct {
	Span   Span
	Reason string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Reason)
}

// ParseError is a grammar violation.
type ParseError struct {
	Span     Span
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: expected %s, found %s",
		e.Span.Start.Line, e.Span.Start.Column, e.Expected, e.Found)
}

// CompileErrorKind classifies a compile failure.
type CompileErrorKind int

const (
	UnboundName CompileErrorKind = iota
	ArityMismatch
)

func (k CompileErrorKind) String() string {
	switch k {
	case UnboundName:
		return "unbound name"
	case ArityMismatch:
		return "arity mismatch"
	}
	return fmt.Sprintf("CompileErrorKind(%d)", int(k))
}

// CompileError is a name-resolution or stack-arity failure.
type CompileError struct {
	Kind CompileErrorKind
	Span Span
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Span.Start.Line, e.Span.Start.Column, e.Msg)
}

func compileErrorf(kind CompileErrorKind, span Span, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Span: span, Msg: fmt.Sprintf(format, args...)}
}

// ErrorSpan extracts the source span from any static error produced by
// this package. ok is false for other errors.
func ErrorSpan(err error) (Span, bool) {
	switch e := err.(type) {
	case *LexError:
		return e.Span, true
	case *ParseError:
		return e.Span, true
	case *CompileError:
		return e.Span, true
	}
	return Span{}, false
}
