package compiler

import "github.com/chazu/quill/vm"

// ---------------------------------------------------------------------------
// Source positions
// ---------------------------------------------------------------------------

// Position is a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number, counted in runes
}

// Span is a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Cover returns the smallest span containing both s and o.
func (s Span) Cover(o Span) Span {
	out := s
	if o.Start.Offset < out.Start.Offset {
		out.Start = o.Start
	}
	if o.End.Offset > out.End.Offset {
		out.End = o.End
	}
	return out
}

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

// Node is implemented by every AST node.
type Node interface {
	Span() Span
	node() // marker method
}

// Word is one element of a stack expression. Words evaluate right to
// left; the parser keeps source order and the compiler reverses at
// emission.
type Word interface {
	Node
	word() // marker method
}

// NumberLit is a number literal, including the named constants.
type NumberLit struct {
	SpanVal Span
	Value   float64
}

func (n *NumberLit) Span() Span { return n.SpanVal }
func (n *NumberLit) node()      {}
func (n *NumberLit) word()      {}

// CharLit is a character literal (@a).
type CharLit struct {
	SpanVal Span
	Value   rune
}

func (n *CharLit) Span() Span { return n.SpanVal }
func (n *CharLit) node()      {}
func (n *CharLit) word()      {}

// StringLit is a string literal, evaluating to a character list.
type StringLit struct {
	SpanVal Span
	Value   string
}

func (n *StringLit) Span() Span { return n.SpanVal }
func (n *StringLit) node()      {}
func (n *StringLit) word()      {}

// Ident is a name reference: a binding, or a primitive spelled by name.
type Ident struct {
	SpanVal Span
	Name    string
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) word()      {}

// PrimWord is a primitive glyph.
type PrimWord struct {
	SpanVal Span
	Prim    vm.Primitive
}

func (n *PrimWord) Span() Span { return n.SpanVal }
func (n *PrimWord) node()      {}
func (n *PrimWord) word()      {}

// ArrayLit is a bracketed array literal. The bracketed words run as a
// stack expression; every value they leave becomes one row.
type ArrayLit struct {
	SpanVal Span
	Words   []Word
}

func (n *ArrayLit) Span() Span { return n.SpanVal }
func (n *ArrayLit) node()      {}
func (n *ArrayLit) word()      {}

// StrandLit is an underscore-joined array literal (1_2_3).
type StrandLit struct {
	SpanVal Span
	Items   []Word
}

func (n *StrandLit) Span() Span { return n.SpanVal }
func (n *StrandLit) node()      {}
func (n *StrandLit) word()      {}

// FuncLit is a parenthesized function literal. Functions take no named
// parameters; their stack effect is inferred from the body.
type FuncLit struct {
	SpanVal Span
	Words   []Word
}

func (n *FuncLit) Span() Span { return n.SpanVal }
func (n *FuncLit) node()      {}
func (n *FuncLit) word()      {}

// ModApp is a modifier applied to the function operands that follow it
// in the source.
type ModApp struct {
	SpanVal  Span
	Prim     vm.Primitive
	Operands []Word
}

func (n *ModApp) Span() Span { return n.SpanVal }
func (n *ModApp) node()      {}
func (n *ModApp) word()      {}

// ---------------------------------------------------------------------------
// Lines
// ---------------------------------------------------------------------------

// Line is one statement: a binding or a bare expression.
type Line interface {
	Node
	line() // marker method
}

// Binding binds the value of an expression to a name (name ← words).
type Binding struct {
	SpanVal  Span
	Name     string
	NameSpan Span
	Words    []Word
}

func (n *Binding) Span() Span { return n.SpanVal }
func (n *Binding) node()      {}
func (n *Binding) line()      {}

// ExprLine is a bare expression statement.
type ExprLine struct {
	SpanVal Span
	Words   []Word
}

func (n *ExprLine) Span() Span { return n.SpanVal }
func (n *ExprLine) node()      {}
func (n *ExprLine) line()      {}

// File is a parsed source file.
type File struct {
	Lines []Line
}
