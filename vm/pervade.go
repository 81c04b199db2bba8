package vm

import "golang.org/x/sync/errgroup"

// Pervasive primitives apply elementwise, pairing each element of the
// shorter-ranked operand with a whole cell of the longer one. The only
// agreement rule is that the shorter shape must be a prefix of the
// longer; fills never apply here.

// pervadeParallelMin is the element count at which a kernel is split
// across workers. Each chunk writes a disjoint slice of the output, so
// chunked execution is deterministic.
const pervadeParallelMin = 10000

// parallelFor runs body over disjoint chunks of [0, n). Small inputs
// run inline on the calling goroutine.
func parallelFor(n, workers int, body func(lo, hi int)) {
	if n < pervadeParallelMin || workers <= 1 {
		body(0, n)
		return
	}
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		lo := lo
		g.Go(func() error {
			body(lo, hi)
			return nil
		})
	}
	g.Wait()
}

// pervade1 maps f over every element. It consumes a: storage is
// reused in place when a holds the only reference and the element
// types line up, otherwise a is released.
func pervade1[A, R Elem](workers int, a *Array[A], f func(A) R) *Array[R] {
	n := a.FlatLen()
	if same, ok := any(a).(*Array[R]); ok && same.data.unique() {
		dst := same.data.elems
		src := a.elems()
		parallelFor(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				dst[i] = f(src[i])
			}
		})
		return same
	}
	out := make([]R, n)
	src := a.elems()
	parallelFor(n, workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = f(src[i])
		}
	})
	res := NewArray(a.Shape(), out)
	a.Release()
	return res
}

// pervade2 maps f over paired elements of a and b under prefix
// agreement. Both operands are consumed; the result may reuse the
// storage of an operand that holds the only reference.
func pervade2[A, B, R Elem](workers int, a *Array[A], b *Array[B], f func(A, B) R) (*Array[R], error) {
	sa, sb := a.Shape(), b.Shape()
	var long Shape
	repA, repB := 1, 1
	switch {
	case sa.IsPrefixOf(sb):
		long = sb
		repA = Shape(sb[sa.Rank():]).Elements()
	case sb.IsPrefixOf(sa):
		long = sa
		repB = Shape(sa[sb.Rank():]).Elements()
	default:
		a.Release()
		b.Release()
		return nil, shapeErrorf([]Shape{sa.Clone(), sb.Clone()}, "shapes %v and %v do not agree", sa, sb)
	}
	n := long.Elements()
	ad, bd := a.elems(), b.elems()

	var out []R
	res := (*Array[R])(nil)
	if ra, ok := any(a).(*Array[R]); ok && repA == 1 && ra.FlatLen() == n && ra.data.unique() {
		res, out = ra, ra.data.elems
	} else if rb, ok := any(b).(*Array[R]); ok && repB == 1 && rb.FlatLen() == n && rb.data.unique() {
		res, out = rb, rb.data.elems
	} else {
		out = make([]R, n)
	}

	switch {
	case repA == 1 && repB == 1:
		parallelFor(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				out[i] = f(ad[i], bd[i])
			}
		})
	case len(ad) == 1:
		a0 := ad[0]
		parallelFor(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				out[i] = f(a0, bd[i])
			}
		})
	case len(bd) == 1:
		b0 := bd[0]
		parallelFor(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				out[i] = f(ad[i], b0)
			}
		})
	default:
		parallelFor(n, workers, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				out[i] = f(ad[i/repA], bd[i/repB])
			}
		})
	}

	if res == nil {
		res = NewArray(long.Clone(), out)
		a.Release()
		b.Release()
	} else if any(a) == any(res) {
		b.Release()
	} else {
		a.Release()
	}
	return res, nil
}

// pervade2v is pervade2 with the result as a Value, keeping a nil
// interface on the error path.
func pervade2v[A, B, R Elem](workers int, a *Array[A], b *Array[B], f func(A, B) R) (Value, error) {
	res, err := pervade2(workers, a, b, f)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// asNumArray views a numeric value as a number array, promoting bytes.
// Consumes v on success. Character, box and function values are
// rejected with the given verb in the message.
func asNumArray(verb string, v Value) (*Array[float64], error) {
	switch a := v.(type) {
	case *Array[float64]:
		return a, nil
	case *Array[byte]:
		n := bytesToNums(a)
		a.Release()
		return n, nil
	default:
		return nil, kindErrorf([]Kind{v.Kind()}, "cannot %s a %s", verb, v.Kind())
	}
}

// pervadeNum1 applies a numeric function elementwise, promoting bytes
// to numbers.
func pervadeNum1(workers int, verb string, v Value, f func(float64) float64) (Value, error) {
	a, err := asNumArray(verb, v)
	if err != nil {
		return nil, err
	}
	return pervade1(workers, a, f), nil
}

// pervadeNum2 applies a numeric function over paired elements,
// promoting bytes to numbers.
func pervadeNum2(workers int, verb string, a, b Value, f func(float64, float64) float64) (Value, error) {
	na, err := asNumArray(verb, a)
	if err != nil {
		b.Release()
		return nil, err
	}
	nb, err := asNumArray(verb, b)
	if err != nil {
		na.Release()
		return nil, err
	}
	return pervade2(workers, na, nb, f)
}

// ---------------------------------------------------------------------------
// Box recursion
// ---------------------------------------------------------------------------

// Pervasives recurse into boxes: each box pairs with a cell of the
// other operand, the operation runs on the contents, and the result is
// boxed again. Box kernels can fail, so they run sequentially.

// monBox applies a monadic value operation inside every box.
func monBox(workers int, a *Array[Boxed], op func(int, Value) (Value, error)) (Value, error) {
	src := a.elems()
	out := make([]Boxed, len(src))
	for i, bx := range src {
		res, err := op(workers, bx.V.Retain())
		if err != nil {
			return nil, err
		}
		out[i] = Boxed{V: res}
	}
	res := NewArray(a.Shape().Clone(), out)
	a.Release()
	return res, nil
}

// boxCells views a value as a box array, wrapping each scalar element.
// Box arrays pass through; the source is consumed.
func boxCells(v Value) *Array[Boxed] {
	switch a := v.(type) {
	case *Array[Boxed]:
		return a
	case *Array[float64]:
		out := make([]Boxed, a.FlatLen())
		for i, x := range a.elems() {
			out[i] = Boxed{V: Num(x)}
		}
		res := NewArray(a.Shape().Clone(), out)
		a.Release()
		return res
	case *Array[byte]:
		out := make([]Boxed, a.FlatLen())
		for i, x := range a.elems() {
			out[i] = Boxed{V: Scalar[byte](x)}
		}
		res := NewArray(a.Shape().Clone(), out)
		a.Release()
		return res
	case *Array[rune]:
		out := make([]Boxed, a.FlatLen())
		for i, x := range a.elems() {
			out[i] = Boxed{V: Char(x)}
		}
		res := NewArray(a.Shape().Clone(), out)
		a.Release()
		return res
	default:
		return Scalar[Boxed](Boxed{V: v})
	}
}

// pervadeBox2 pairs box elements under the prefix rule and applies op
// to the unboxed contents.
func pervadeBox2(a, b *Array[Boxed], op func(Value, Value) (Value, error)) (Value, error) {
	sa, sb := a.Shape(), b.Shape()
	repA, repB := 1, 1
	var long Shape
	switch {
	case sa.IsPrefixOf(sb):
		long = sb
		repA = Shape(sb[sa.Rank():]).Elements()
	case sb.IsPrefixOf(sa):
		long = sa
		repB = Shape(sa[sb.Rank():]).Elements()
	default:
		return nil, shapeErrorf([]Shape{sa.Clone(), sb.Clone()}, "shapes %v and %v do not agree", sa, sb)
	}
	n := long.Elements()
	ad, bd := a.elems(), b.elems()
	out := make([]Boxed, n)
	for i := 0; i < n; i++ {
		res, err := op(ad[i/repA].V.Retain(), bd[i/repB].V.Retain())
		if err != nil {
			return nil, err
		}
		out[i] = Boxed{V: res}
	}
	res := NewArray(long.Clone(), out)
	a.Release()
	b.Release()
	return res, nil
}
