package vm

import (
	"fmt"
	"math"
)

// ---------------------------------------------------------------------------
// Primitive identifiers
// ---------------------------------------------------------------------------

// Primitive identifies a built-in operation. The set is closed: the
// compiler resolves every glyph and name to one of these ids, and the
// machine dispatches on the id alone. Unknown names are compile errors,
// never runtime ones.
type Primitive int

// Stack manipulation
const (
	PrimDup Primitive = iota
	PrimOver
	PrimFlip
	PrimPop
	PrimIdentity

	// Monadic pervasive
	PrimNot
	PrimNeg
	PrimSign
	PrimAbs
	PrimSqrt
	PrimSin
	PrimCos
	PrimTan
	PrimAsin
	PrimAcos
	PrimFloor
	PrimCeil
	PrimRound

	// Dyadic pervasive
	PrimAdd
	PrimSub
	PrimMul
	PrimDiv
	PrimMod
	PrimPow
	PrimLog
	PrimMin
	PrimMax
	PrimAtan
	PrimEq
	PrimNe
	PrimLt
	PrimLe
	PrimGt
	PrimGe

	// Structure
	PrimLen
	PrimShape
	PrimRange
	PrimFirst
	PrimReverse
	PrimDeshape
	PrimTranspose
	PrimReshape
	PrimJoin
	PrimCouple
	PrimTake
	PrimDrop
	PrimRotate
	PrimPick
	PrimSelect
	PrimIndexOf
	PrimMember
	PrimFind
	PrimRise
	PrimFall
	PrimMatch
	PrimBox
	PrimUnbox
	PrimCall
	PrimRand

	// System
	PrimSysPrint
	PrimSysFileRead
	PrimSysFileWrite
	PrimSysNow
	PrimSysArgs

	// Modifiers
	PrimReduce
	PrimScan
	PrimEach
	PrimRows
	PrimTable
	PrimRepeat
	PrimFill
	PrimDip
	PrimIf

	primCount
)

// primSpec is the static metadata for one primitive.
type primSpec struct {
	name     string // ascii name; identifiers spelling it resolve to the primitive
	glyph    rune   // 0 when the primitive has no glyph
	args     int    // stack values consumed, counting pushed function operands
	outputs  int    // stack values produced
	operands int    // function operands taken from the following syntax
	identty  bool   // has a reduction identity
	idVal    float64
	doc      string
}

var primSpecs = [primCount]primSpec{
	PrimDup:      {name: "dup", glyph: '.', args: 1, outputs: 2, doc: "duplicate the top value"},
	PrimOver:     {name: "over", glyph: ',', args: 2, outputs: 3, doc: "copy the second value to the top"},
	PrimFlip:     {name: "flip", glyph: '∶', args: 2, outputs: 2, doc: "swap the top two values"},
	PrimPop:      {name: "pop", glyph: ';', args: 1, outputs: 0, doc: "discard the top value"},
	PrimIdentity: {name: "identity", glyph: '∘', args: 1, outputs: 1, doc: "pass the top value through unchanged"},

	PrimNot:   {name: "not", glyph: '¬', args: 1, outputs: 1, doc: "one minus each number"},
	PrimNeg:   {name: "neg", args: 1, outputs: 1, doc: "negate each number"},
	PrimSign:  {name: "sign", glyph: '±', args: 1, outputs: 1, doc: "sign of each number"},
	PrimAbs:   {name: "abs", glyph: '⌵', args: 1, outputs: 1, doc: "absolute value of each number"},
	PrimSqrt:  {name: "sqrt", glyph: '√', args: 1, outputs: 1, doc: "square root of each number"},
	PrimSin:   {name: "sin", glyph: '○', args: 1, outputs: 1, doc: "sine of each number"},
	PrimCos:   {name: "cos", args: 1, outputs: 1, doc: "cosine of each number"},
	PrimTan:   {name: "tan", args: 1, outputs: 1, doc: "tangent of each number"},
	PrimAsin:  {name: "asin", args: 1, outputs: 1, doc: "arcsine of each number"},
	PrimAcos:  {name: "acos", args: 1, outputs: 1, doc: "arccosine of each number"},
	PrimFloor: {name: "floor", glyph: '⌊', args: 1, outputs: 1, doc: "round each number down"},
	PrimCeil:  {name: "ceil", glyph: '⌈', args: 1, outputs: 1, doc: "round each number up"},
	PrimRound: {name: "round", glyph: '⁅', args: 1, outputs: 1, doc: "round each number to the nearest integer"},

	PrimAdd: {name: "add", glyph: '+', args: 2, outputs: 1, identty: true, idVal: 0, doc: "add values"},
	PrimSub: {name: "sub", glyph: '-', args: 2, outputs: 1, doc: "subtract the first value from the second"},
	PrimMul: {name: "mul", glyph: '×', args: 2, outputs: 1, identty: true, idVal: 1, doc: "multiply values"},
	PrimDiv: {name: "div", glyph: '÷', args: 2, outputs: 1, doc: "divide the second value by the first"},
	PrimMod: {name: "mod", glyph: '◿', args: 2, outputs: 1, doc: "second value modulo the first"},
	PrimPow: {name: "pow", glyph: 'ⁿ', args: 2, outputs: 1, doc: "second value to the power of the first"},
	PrimLog: {name: "log", glyph: 'ₙ', args: 2, outputs: 1, doc: "logarithm of the second value in the base of the first"},
	PrimMin: {name: "min", glyph: '↧', args: 2, outputs: 1, identty: true, idVal: math.Inf(1), doc: "smaller of two values"},
	PrimMax: {name: "max", glyph: '↥', args: 2, outputs: 1, identty: true, idVal: math.Inf(-1), doc: "larger of two values"},
	PrimAtan: {name: "atan", glyph: '∠', args: 2, outputs: 1, doc: "arctangent of the second value over the first"},
	PrimEq:  {name: "eq", glyph: '=', args: 2, outputs: 1, doc: "1 where values are equal"},
	PrimNe:  {name: "ne", glyph: '≠', args: 2, outputs: 1, doc: "1 where values differ"},
	PrimLt:  {name: "lt", glyph: '<', args: 2, outputs: 1, doc: "1 where the second value is less than the first"},
	PrimLe:  {name: "le", glyph: '≤', args: 2, outputs: 1, doc: "1 where the second value is at most the first"},
	PrimGt:  {name: "gt", glyph: '>', args: 2, outputs: 1, doc: "1 where the second value is greater than the first"},
	PrimGe:  {name: "ge", glyph: '≥', args: 2, outputs: 1, doc: "1 where the second value is at least the first"},

	PrimLen:       {name: "len", glyph: '⧻', args: 1, outputs: 1, doc: "number of rows"},
	PrimShape:     {name: "shape", glyph: '△', args: 1, outputs: 1, doc: "dimension sizes"},
	PrimRange:     {name: "range", glyph: '⇡', args: 1, outputs: 1, doc: "numbers from 0 up to a value"},
	PrimFirst:     {name: "first", glyph: '⊢', args: 1, outputs: 1, doc: "first row"},
	PrimReverse:   {name: "reverse", glyph: '⇌', args: 1, outputs: 1, doc: "reverse the rows"},
	PrimDeshape:   {name: "deshape", glyph: '♭', args: 1, outputs: 1, doc: "flatten to rank 1"},
	PrimTranspose: {name: "transpose", glyph: '⍉', args: 1, outputs: 1, doc: "move the first axis to the end"},
	PrimReshape:   {name: "reshape", glyph: '↯', args: 2, outputs: 1, doc: "change the shape, cycling or truncating elements"},
	PrimJoin:      {name: "join", glyph: '⊂', args: 2, outputs: 1, doc: "concatenate along the leading axis"},
	PrimCouple:    {name: "couple", glyph: '⊟', args: 2, outputs: 1, doc: "stack two values as the rows of a new array"},
	PrimTake:      {name: "take", glyph: '↙', args: 2, outputs: 1, doc: "keep rows from the start, or the end when negative"},
	PrimDrop:      {name: "drop", glyph: '↘', args: 2, outputs: 1, doc: "remove rows from the start, or the end when negative"},
	PrimRotate:    {name: "rotate", glyph: '↻', args: 2, outputs: 1, doc: "rotate the rows"},
	PrimPick:      {name: "pick", glyph: '⊡', args: 2, outputs: 1, doc: "cell at an index"},
	PrimSelect:    {name: "select", glyph: '⊏', args: 2, outputs: 1, doc: "rows at indices"},
	PrimIndexOf:   {name: "indexof", glyph: '⊗', args: 2, outputs: 1, doc: "index of each row in another array"},
	PrimMember:    {name: "member", glyph: '∊', args: 2, outputs: 1, doc: "1 where a cell occurs in another array"},
	PrimFind:      {name: "find", glyph: '⌕', args: 2, outputs: 1, doc: "1 at each start of an occurrence"},
	PrimRise:      {name: "rise", glyph: '⍋', args: 1, outputs: 1, doc: "indices that would sort ascending"},
	PrimFall:      {name: "fall", glyph: '⍒', args: 1, outputs: 1, doc: "indices that would sort descending"},
	PrimMatch:     {name: "match", glyph: '≍', args: 2, outputs: 1, doc: "1 if values are structurally equal"},
	PrimBox:       {name: "box", glyph: '□', args: 1, outputs: 1, doc: "wrap a value as a scalar box"},
	PrimUnbox:     {name: "unbox", glyph: '⊔', args: 1, outputs: 1, doc: "take the value out of a box"},
	PrimCall:      {name: "call", glyph: '!', args: 1, outputs: 0, doc: "call a function value"},
	PrimRand:      {name: "rand", glyph: '⚂', args: 0, outputs: 1, doc: "pseudorandom number in [0, 1)"},

	PrimSysPrint:     {name: "&p", args: 1, outputs: 0, doc: "print a value and a newline"},
	PrimSysFileRead:  {name: "&fr", args: 1, outputs: 1, doc: "read a file as characters"},
	PrimSysFileWrite: {name: "&fw", args: 2, outputs: 0, doc: "write characters to a file"},
	PrimSysNow:       {name: "&now", args: 0, outputs: 1, doc: "seconds since the epoch"},
	PrimSysArgs:      {name: "&args", args: 0, outputs: 1, doc: "boxed command-line arguments"},

	PrimReduce: {name: "reduce", glyph: '/', args: 2, outputs: 1, operands: 1, doc: "fold the rows with a function"},
	PrimScan:   {name: "scan", glyph: '\\', args: 2, outputs: 1, operands: 1, doc: "fold the rows, keeping intermediate results"},
	PrimEach:   {name: "each", glyph: '∵', args: 2, outputs: 1, operands: 1, doc: "apply a function to each element"},
	PrimRows:   {name: "rows", glyph: '≡', args: 2, outputs: 1, operands: 1, doc: "apply a function to each row"},
	PrimTable:  {name: "table", glyph: '⊞', args: 3, outputs: 1, operands: 1, doc: "apply a function to all row pairings"},
	PrimRepeat: {name: "repeat", glyph: '⍥', args: 2, outputs: 0, operands: 1, doc: "call a function a number of times"},
	PrimFill:   {name: "fill", glyph: '⬚', args: 2, outputs: 0, operands: 2, doc: "run a function with a fill value"},
	PrimDip:    {name: "dip", glyph: '⊙', args: 2, outputs: 1, operands: 1, doc: "set the top value aside, run a function, put it back"},
	PrimIf:     {name: "if", glyph: '?', args: 1, outputs: 0, operands: 2, doc: "pop a condition and run one of two functions"},
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

var (
	primByName  = map[string]Primitive{}
	primByGlyph = map[rune]Primitive{}
)

func init() {
	for p := Primitive(0); p < primCount; p++ {
		spec := primSpecs[p]
		primByName[spec.name] = p
		if spec.glyph != 0 {
			primByGlyph[spec.glyph] = p
		}
	}
}

// PrimitiveByName resolves an ascii name like "add" or "&p".
func PrimitiveByName(name string) (Primitive, bool) {
	p, ok := primByName[name]
	return p, ok
}

// GlyphPrimitive resolves a glyph rune like '+' or '⊂'.
func GlyphPrimitive(r rune) (Primitive, bool) {
	p, ok := primByGlyph[r]
	return p, ok
}

// AllPrimitives lists every primitive id in declaration order.
func AllPrimitives() []Primitive {
	out := make([]Primitive, primCount)
	for i := range out {
		out[i] = Primitive(i)
	}
	return out
}

// PrimitiveCount returns the size of the closed primitive set.
func PrimitiveCount() int { return int(primCount) }

func (p Primitive) valid() bool { return p >= 0 && p < primCount }

// Name returns the ascii name.
func (p Primitive) Name() string {
	if !p.valid() {
		return fmt.Sprintf("Primitive(%d)", int(p))
	}
	return primSpecs[p].name
}

// Glyph returns the glyph rune, or 0 when the primitive is name-only.
func (p Primitive) Glyph() rune {
	if !p.valid() {
		return 0
	}
	return primSpecs[p].glyph
}

// Sig returns the declared stack signature. Modifier signatures assume
// the common monadic operand; the compiler refines them per call site.
func (p Primitive) Sig() Signature {
	if !p.valid() {
		return Signature{}
	}
	return Signature{Args: primSpecs[p].args, Outputs: primSpecs[p].outputs}
}

// Operands returns how many function operands a modifier takes from the
// following syntax; 0 for ordinary primitives.
func (p Primitive) Operands() int {
	if !p.valid() {
		return 0
	}
	return primSpecs[p].operands
}

// IsModifier reports whether the primitive takes function operands.
func (p Primitive) IsModifier() bool { return p.Operands() > 0 }

// Doc returns the one-line description.
func (p Primitive) Doc() string {
	if !p.valid() {
		return ""
	}
	return primSpecs[p].doc
}

// Identity returns the reduction identity for an empty fold, if the
// primitive has one.
func (p Primitive) Identity() (float64, bool) {
	if !p.valid() || !primSpecs[p].identty {
		return 0, false
	}
	return primSpecs[p].idVal, true
}

func (p Primitive) String() string { return p.Name() }
