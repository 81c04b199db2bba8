package vm

import "math"

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Kind identifies a value's element kind.
type Kind int

const (
	KindNum Kind = iota
	KindByte
	KindChar
	KindBox
	KindFn
)

var kindNames = map[Kind]string{
	KindNum:  "number",
	KindByte: "number", // bytes are a storage optimization, not a user-visible kind
	KindChar: "character",
	KindBox:  "box",
	KindFn:   "function",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsNumeric reports whether the kind stores numbers.
func (k Kind) IsNumeric() bool { return k == KindNum || k == KindByte }

// Value is any runtime value: an array of one element kind, or a
// function. Every value answers its shape; functions are rank 0.
type Value interface {
	Kind() Kind
	Shape() Shape
	Rank() int
	FlatLen() int
	Rows() int
	Row(i int) Value
	Retain() Value
	Release()
}

func kindOf[T Elem]() Kind {
	var z T
	switch any(z).(type) {
	case float64:
		return KindNum
	case byte:
		return KindByte
	case rune:
		return KindChar
	default:
		return KindBox
	}
}

// ---------------------------------------------------------------------------
// Constructors used by the compiler and front ends
// ---------------------------------------------------------------------------

// Num builds a scalar number.
func Num(x float64) Value { return Scalar(x) }

// Char builds a scalar character.
func Char(r rune) Value { return Scalar(r) }

// FromString builds a rank-1 character array.
func FromString(s string) Value { return List([]rune(s)) }

// Nums builds a rank-1 number array.
func Nums(xs ...float64) Value { return List(xs) }

// Box wraps an entire value as a single scalar element.
func Box(v Value) Value { return Scalar(Boxed{V: v}) }

// ToString extracts a Go string from a rank-0 or rank-1 character array.
func ToString(v Value) (string, bool) {
	c, ok := v.(*Array[rune])
	if !ok || c.Rank() > 1 {
		return "", false
	}
	return string(c.elems()), true
}

// ---------------------------------------------------------------------------
// Coercions
// ---------------------------------------------------------------------------

// asNums returns v's elements as a number array, promoting bytes.
func asNums(v Value) (*Array[float64], error) {
	switch a := v.(type) {
	case *Array[float64]:
		return a, nil
	case *Array[byte]:
		return bytesToNums(a), nil
	default:
		return nil, valueErrorf("expected numbers, got %v", v)
	}
}

func bytesToNums(a *Array[byte]) *Array[float64] {
	src := a.elems()
	out := make([]float64, len(src))
	for i, b := range src {
		out[i] = float64(b)
	}
	return NewArray(a.Shape().Clone(), out)
}

func isInt(x float64) bool {
	return x == math.Trunc(x) && !math.IsInf(x, 0) && !math.IsNaN(x)
}

// asInt extracts a scalar integer.
func asInt(v Value) (int, error) {
	n, err := asNums(v)
	if err != nil {
		return 0, err
	}
	if n.Rank() != 0 {
		return 0, &RuntimeError{
			Kind:   TypeMismatch,
			Msg:    "expected a scalar integer, got shape " + n.Shape().String(),
			Shapes: []Shape{n.Shape()},
		}
	}
	x := n.elems()[0]
	if !isInt(x) {
		return 0, runtimeErrorf(TypeMismatch, "expected an integer, got %v", x)
	}
	return int(x), nil
}

// asInts extracts a rank-0 or rank-1 integer sequence.
func asInts(v Value) ([]int, error) {
	n, err := asNums(v)
	if err != nil {
		return nil, err
	}
	if n.Rank() > 1 {
		return nil, &RuntimeError{
			Kind:   TypeMismatch,
			Msg:    "expected a list of integers, got rank " + n.Shape().String(),
			Shapes: []Shape{n.Shape()},
		}
	}
	out := make([]int, n.FlatLen())
	for i, x := range n.elems() {
		if !isInt(x) {
			return nil, runtimeErrorf(TypeMismatch, "expected an integer, got %v", x)
		}
		out[i] = int(x)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Row assembly
// ---------------------------------------------------------------------------

// fromRows stacks values as the rows of one array, unifying element
// kinds (bytes promote to numbers when mixed) and, when a fill is
// available, padding differing row shapes up to their per-dimension
// maximum.
func fromRows(rows []Value, fill Value) (Value, error) {
	if len(rows) == 0 {
		return List[float64](nil), nil
	}
	kind, err := unifyRowKinds(rows)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindNum:
		nums := make([]*Array[float64], len(rows))
		for i, r := range rows {
			n, err := asNums(r)
			if err != nil {
				return nil, err
			}
			nums[i] = n
		}
		return stackRows(nums, fillNumOf(fill))
	case KindByte:
		if fill != nil && fillByteOf(fill) == nil && fillNumOf(fill) != nil {
			// A numeric fill that does not fit a byte promotes the result.
			nums := make([]*Array[float64], len(rows))
			for i, r := range rows {
				nums[i] = bytesToNums(r.(*Array[byte]))
			}
			return stackRows(nums, fillNumOf(fill))
		}
		bs := make([]*Array[byte], len(rows))
		for i, r := range rows {
			bs[i] = r.(*Array[byte])
		}
		return stackRows(bs, fillByteOf(fill))
	case KindChar:
		cs := make([]*Array[rune], len(rows))
		for i, r := range rows {
			cs[i] = r.(*Array[rune])
		}
		return stackRows(cs, fillCharOf(fill))
	default:
		bs := make([]*Array[Boxed], len(rows))
		for i, r := range rows {
			bs[i] = r.(*Array[Boxed])
		}
		return stackRows(bs, fillBoxOf(fill))
	}
}

// unifyRowKinds decides the element kind of a stacked result.
func unifyRowKinds(rows []Value) (Kind, error) {
	kind := rows[0].Kind()
	for _, r := range rows[1:] {
		k := r.Kind()
		switch {
		case k == kind:
		case k.IsNumeric() && kind.IsNumeric():
			kind = KindNum
		default:
			return 0, kindErrorf([]Kind{kind, k}, "cannot make an array mixing %v and %v rows", kind, k)
		}
	}
	if kind == KindFn {
		return 0, kindErrorf([]Kind{kind}, "cannot make an array of functions; box them first")
	}
	return kind, nil
}

// stackRows concatenates same-kind rows. Shapes must agree unless a
// fill element is available to pad them to a common shape.
func stackRows[T Elem](rows []*Array[T], fill *T) (Value, error) {
	target := rows[0].Shape()
	ragged := false
	for _, r := range rows[1:] {
		if !r.Shape().Eq(target) {
			ragged = true
			if r.Rank() != target.Rank() {
				return nil, shapeErrorf([]Shape{target, r.Shape()}, "cannot make an array of differing-rank rows")
			}
		}
	}
	if ragged {
		if fill == nil {
			shapes := make([]Shape, len(rows))
			for i, r := range rows {
				shapes[i] = r.Shape()
			}
			return nil, shapeErrorf(shapes, "cannot make an array of differing-shape rows without a fill")
		}
		target = target.Clone()
		for _, r := range rows[1:] {
			for d, n := range r.Shape() {
				if n > target[d] {
					target[d] = n
				}
			}
		}
	}
	elems := make([]T, 0, len(rows)*target.Elements())
	for _, r := range rows {
		if r.Shape().Eq(target) {
			elems = append(elems, r.elems()...)
		} else {
			elems = append(elems, padTo(r, target, *fill).elems()...)
		}
	}
	shape := append(Shape{len(rows)}, target.Clone()...)
	return NewArray(shape, elems), nil
}

// ---------------------------------------------------------------------------
// Fill extraction
// ---------------------------------------------------------------------------

// fillNumOf returns the numeric fill element, if the ambient fill value
// is a number scalar.
func fillNumOf(fill Value) *float64 {
	switch f := fill.(type) {
	case *Array[float64]:
		if f.Rank() == 0 {
			x := f.elems()[0]
			return &x
		}
	case *Array[byte]:
		if f.Rank() == 0 {
			x := float64(f.elems()[0])
			return &x
		}
	}
	return nil
}

func fillByteOf(fill Value) *byte {
	x := fillNumOf(fill)
	if x == nil || !isInt(*x) || *x < 0 || *x > 255 {
		return nil
	}
	b := byte(*x)
	return &b
}

func fillCharOf(fill Value) *rune {
	if f, ok := fill.(*Array[rune]); ok && f.Rank() == 0 {
		r := f.elems()[0]
		return &r
	}
	return nil
}

func fillBoxOf(fill Value) *Boxed {
	if f, ok := fill.(*Array[Boxed]); ok && f.Rank() == 0 {
		b := f.elems()[0]
		return &b
	}
	return nil
}

func filledArr[T Elem](shape Shape, fill T) *Array[T] {
	out := make([]T, shape.Elements())
	for i := range out {
		out[i] = fill
	}
	return NewArray(shape.Clone(), out)
}

// fillRow builds one row of v's shape from the ambient fill, matching
// v's element kind. Returns nil when the fill does not apply; a
// numeric fill that cannot be a byte promotes a byte row to numbers.
func fillRow(fill Value, v Value) Value {
	return fillCell(fill, v, v.Shape().Row())
}

// fillCell is fillRow for an arbitrary cell shape.
func fillCell(fill Value, v Value, shape Shape) Value {
	switch v.(type) {
	case *Array[float64]:
		if x := fillNumOf(fill); x != nil {
			return filledArr(shape, *x)
		}
	case *Array[byte]:
		if b := fillByteOf(fill); b != nil {
			return filledArr(shape, *b)
		}
		if x := fillNumOf(fill); x != nil {
			return filledArr(shape, *x)
		}
	case *Array[rune]:
		if r := fillCharOf(fill); r != nil {
			return filledArr(shape, *r)
		}
	case *Array[Boxed]:
		if b := fillBoxOf(fill); b != nil {
			out := make([]Boxed, shape.Elements())
			for i := range out {
				out[i] = Boxed{V: b.V.Retain()}
			}
			return NewArray(shape.Clone(), out)
		}
	}
	return nil
}
