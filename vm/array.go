package vm

import "fmt"

// ---------------------------------------------------------------------------
// Arrays
// ---------------------------------------------------------------------------

// Elem constrains the element kinds an array can store: double-precision
// numbers, compact byte integers, characters, and boxed values.
type Elem interface {
	float64 | byte | rune | Boxed
}

// Boxed is a single opaque element wrapping an entire value. Boxing lets
// a homogeneous array nest heterogeneous or ragged data one level down.
type Boxed struct {
	V Value
}

// Array is a rank-polymorphic array: a shape plus a flat row-major
// buffer of exactly product(shape) elements of one kind. Arrays are
// immutable once constructed; operations build new arrays, sharing
// storage where the result is a reinterpretation of the same elements.
type Array[T Elem] struct {
	shape Shape
	data  *storage[T]
}

// NewArray builds an array over elems. The element count must equal the
// shape product; a violation is a programmer error, not a language one.
func NewArray[T Elem](shape Shape, elems []T) *Array[T] {
	if shape.Elements() != len(elems) {
		panic(fmt.Sprintf("vm: shape %s needs %d elements, have %d", shape, shape.Elements(), len(elems)))
	}
	return &Array[T]{shape: shape, data: newStorage(elems)}
}

// Scalar builds a rank-0 array holding one element.
func Scalar[T Elem](v T) *Array[T] {
	return &Array[T]{shape: nil, data: newStorage([]T{v})}
}

// List builds a rank-1 array over elems.
func List[T Elem](elems []T) *Array[T] {
	return &Array[T]{shape: Shape{len(elems)}, data: newStorage(elems)}
}

// reshaped returns a with its shape reinterpreted. Storage is shared;
// the new shape's product must equal the current element count.
func (a *Array[T]) reshaped(shape Shape) *Array[T] {
	if shape.Elements() != len(a.data.elems) {
		panic(fmt.Sprintf("vm: reshaped %s to %s", a.shape, shape))
	}
	return &Array[T]{shape: shape, data: a.data.retain()}
}

func (a *Array[T]) Shape() Shape { return a.shape }
func (a *Array[T]) Rank() int    { return len(a.shape) }

// FlatLen returns the flat element count.
func (a *Array[T]) FlatLen() int { return len(a.data.elems) }

// Rows returns the leading-axis size. A scalar has one row.
func (a *Array[T]) Rows() int { return a.shape.Rows() }

// RowLen returns the flat element count of one row.
func (a *Array[T]) RowLen() int { return a.shape.RowLen() }

func (a *Array[T]) Kind() Kind { return kindOf[T]() }

// Retain marks one more value as sharing this array's storage.
func (a *Array[T]) Retain() Value {
	a.data.retain()
	return a
}

// Release drops one sharer.
func (a *Array[T]) Release() { a.data.release() }

// elems exposes the flat buffer for in-package kernels. Callers must
// not write through it; use mutElems for that.
func (a *Array[T]) elems() []T { return a.data.elems }

// mutElems returns a buffer this array may write, cloning shared
// storage first.
func (a *Array[T]) mutElems() []T {
	a.data = a.data.mut()
	return a.data.elems
}

// rowSlice returns the flat elements of row i without copying.
func (a *Array[T]) rowSlice(i int) []T {
	rl := a.shape.RowLen()
	return a.data.elems[i*rl : (i+1)*rl]
}

// Row materializes row i as an independent value. The row of a scalar
// is the scalar itself.
func (a *Array[T]) Row(i int) Value {
	if a.Rank() == 0 {
		return a.Retain()
	}
	return NewArray(a.shape.Row().Clone(), append([]T(nil), a.rowSlice(i)...))
}

// takeRows returns rows [lo, hi) as a new array sharing no storage.
func (a *Array[T]) takeRows(lo, hi int) *Array[T] {
	rl := a.shape.RowLen()
	elems := append([]T(nil), a.data.elems[lo*rl:hi*rl]...)
	return NewArray(a.shape.WithRows(hi-lo), elems)
}

func (a *Array[T]) String() string { return Show(a) }

// padTo embeds a at the origin of a zero-based region of shape target,
// filling the rest with fill. Ranks must already agree.
func padTo[T Elem](a *Array[T], target Shape, fill T) *Array[T] {
	out := make([]T, target.Elements())
	for i := range out {
		out[i] = fill
	}
	if a.FlatLen() > 0 {
		copyRegion(out, target, a.data.elems, a.shape)
	}
	return NewArray(target.Clone(), out)
}

// copyRegion copies src (shape ss) into the origin corner of dst
// (shape ds), axis by axis. Every ss dimension must fit within ds.
func copyRegion[T Elem](dst []T, ds Shape, src []T, ss Shape) {
	if len(ss) <= 1 {
		copy(dst, src)
		return
	}
	dstStride := ds[1:].Elements()
	srcStride := ss[1:].Elements()
	for i := 0; i < ss[0]; i++ {
		copyRegion(dst[i*dstStride:(i+1)*dstStride], ds[1:], src[i*srcStride:(i+1)*srcStride], ss[1:])
	}
}
