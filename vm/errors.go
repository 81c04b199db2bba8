package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Runtime errors
// ---------------------------------------------------------------------------

// ErrorKind classifies a runtime failure.
type ErrorKind int

const (
	ShapeMismatch ErrorKind = iota
	TypeMismatch
	StackUnderflow
	IndexOutOfBounds
	DivisionByZero
	Interrupted
	SysFailure
)

var errorKindNames = map[ErrorKind]string{
	ShapeMismatch:    "shape mismatch",
	TypeMismatch:     "type mismatch",
	StackUnderflow:   "stack underflow",
	IndexOutOfBounds: "index out of bounds",
	DivisionByZero:   "division by zero",
	Interrupted:      "interrupted",
	SysFailure:       "system failure",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// RuntimeError aborts the current top-level execution. It carries the
// operand shapes and element kinds that triggered it so a front end can
// render a diagnostic without re-deriving them. The machine, compiled
// programs, and all array values stay valid for later executions.
type RuntimeError struct {
	Kind   ErrorKind
	Msg    string
	Shapes []Shape // operand shapes, when the failure is shape-driven
	Kinds  []Kind  // operand element kinds, when kind-driven
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if len(e.Shapes) > 0 {
		parts := make([]string, len(e.Shapes))
		for i, s := range e.Shapes {
			parts[i] = s.String()
		}
		fmt.Fprintf(&sb, " (shapes %s)", strings.Join(parts, " and "))
	}
	return sb.String()
}

// runtimeErrorf builds a RuntimeError with no operand context.
func runtimeErrorf(kind ErrorKind, format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// shapeErrorf builds a ShapeMismatch carrying the operand shapes.
func shapeErrorf(shapes []Shape, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Kind:   ShapeMismatch,
		Msg:    fmt.Sprintf(format, args...),
		Shapes: shapes,
	}
}

// kindErrorf builds a TypeMismatch carrying the operand kinds.
func kindErrorf(kinds []Kind, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Kind:   TypeMismatch,
		Msg:    fmt.Sprintf(format, args...),
		Kinds:  kinds,
	}
}

// valueErrorf builds a TypeMismatch describing the operand values.
func valueErrorf(format string, vals ...Value) *RuntimeError {
	kinds := make([]Kind, len(vals))
	shapes := make([]Shape, len(vals))
	for i, v := range vals {
		kinds[i] = v.Kind()
		shapes[i] = v.Shape()
	}
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v.Kind()
	}
	return &RuntimeError{
		Kind:   TypeMismatch,
		Msg:    fmt.Sprintf(format, args...),
		Kinds:  kinds,
		Shapes: shapes,
	}
}
