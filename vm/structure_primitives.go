package vm

func init() {
	register(PrimJoin, primJoin)
	register(PrimCouple, primCouple)
	register(PrimTake, primTake)
	register(PrimDrop, primDrop)
	register(PrimRotate, primRotate)
}

// ---------------------------------------------------------------------------
// Join and couple
// ---------------------------------------------------------------------------

func primJoin(m *Machine) error {
	a, err := m.pop("join")
	if err != nil {
		return err
	}
	b, err := m.pop("join")
	if err != nil {
		return err
	}
	res, err := joinValues(a, b, m.fill)
	if err != nil {
		return err
	}
	m.push(res)
	return nil
}

// joinValues concatenates along the leading axis. The first operand's
// rows come first; an operand one rank lower is a single row on its
// own side.
func joinValues(a, b Value, fill Value) (Value, error) {
	if err := noFn("join", a); err != nil {
		return nil, err
	}
	if err := noFn("join", b); err != nil {
		return nil, err
	}
	ra, rb := a.Rank(), b.Rank()
	switch {
	case ra == rb:
		if res, ok := concatSameKind(a, b); ok {
			return res, nil
		}
		if ra == 0 {
			return stackAndRelease([]Value{a.Retain(), b.Retain()}, fill, a, b)
		}
		rows := make([]Value, 0, a.Rows()+b.Rows())
		for i := 0; i < a.Rows(); i++ {
			rows = append(rows, a.Row(i))
		}
		for i := 0; i < b.Rows(); i++ {
			rows = append(rows, b.Row(i))
		}
		return stackAndRelease(rows, fill, a, b)
	case ra == rb+1:
		rows := make([]Value, 0, a.Rows()+1)
		for i := 0; i < a.Rows(); i++ {
			rows = append(rows, a.Row(i))
		}
		rows = append(rows, b.Retain())
		return stackAndRelease(rows, fill, a, b)
	case rb == ra+1:
		rows := make([]Value, 0, b.Rows()+1)
		rows = append(rows, a.Retain())
		for i := 0; i < b.Rows(); i++ {
			rows = append(rows, b.Row(i))
		}
		return stackAndRelease(rows, fill, a, b)
	default:
		return nil, shapeErrorf([]Shape{a.Shape().Clone(), b.Shape().Clone()},
			"cannot join shape %v with shape %v", a.Shape(), b.Shape())
	}
}

// stackAndRelease stacks rows and releases them along with the source
// operands.
func stackAndRelease(rows []Value, fill Value, a, b Value) (Value, error) {
	res, err := fromRows(rows, fill)
	for _, r := range rows {
		r.Release()
	}
	if err != nil {
		return nil, err
	}
	if a != nil {
		a.Release()
	}
	if b != nil {
		b.Release()
	}
	return res, nil
}

// concatSameKind joins two equal-rank arrays of one kind and row shape
// without materializing rows.
func concatSameKind(a, b Value) (Value, bool) {
	if a.Rank() != 0 && !a.Shape().Row().Eq(b.Shape().Row()) {
		return nil, false
	}
	switch va := a.(type) {
	case *Array[float64]:
		if vb, ok := b.(*Array[float64]); ok {
			return concatArr(va, vb), true
		}
	case *Array[byte]:
		if vb, ok := b.(*Array[byte]); ok {
			return concatArr(va, vb), true
		}
	case *Array[rune]:
		if vb, ok := b.(*Array[rune]); ok {
			return concatArr(va, vb), true
		}
	case *Array[Boxed]:
		if vb, ok := b.(*Array[Boxed]); ok {
			return concatArr(va, vb), true
		}
	}
	return nil, false
}

func concatArr[T Elem](a, b *Array[T]) *Array[T] {
	out := make([]T, 0, a.FlatLen()+b.FlatLen())
	out = append(out, a.elems()...)
	out = append(out, b.elems()...)
	shape := a.Shape().WithRows(a.Rows() + b.Rows())
	res := NewArray(shape, out)
	a.Release()
	b.Release()
	return res
}

func primCouple(m *Machine) error {
	a, err := m.pop("couple")
	if err != nil {
		return err
	}
	b, err := m.pop("couple")
	if err != nil {
		return err
	}
	res, err := stackAndRelease([]Value{a.Retain(), b.Retain()}, m.fill, a, b)
	if err != nil {
		return err
	}
	m.push(res)
	return nil
}

// ---------------------------------------------------------------------------
// Take, drop, rotate
// ---------------------------------------------------------------------------

func primTake(m *Machine) error {
	nv, err := m.pop("take")
	if err != nil {
		return err
	}
	v, err := m.pop("take")
	if err != nil {
		return err
	}
	n, err := asInt(nv)
	if err != nil {
		return err
	}
	nv.Release()
	if err := noFn("take from", v); err != nil {
		return err
	}
	if v.Rank() == 0 {
		return shapeErrorf([]Shape{nil}, "cannot take from a scalar")
	}
	rows := v.Rows()
	want := n
	if want < 0 {
		want = -want
	}
	if want > rows {
		res := overtake(v, n, m.fill)
		if res == nil {
			return runtimeErrorf(IndexOutOfBounds,
				"cannot take %d rows from an array with %d without a fill", want, rows)
		}
		v.Release()
		m.push(res)
		return nil
	}
	lo, hi := 0, want
	if n < 0 {
		lo, hi = rows-want, rows
	}
	m.push(takeRowsValue(v, lo, hi))
	return nil
}

// overtake pads past the end: extra fill rows go after the data for a
// positive count and before it for a negative one. Returns nil when
// no applicable fill is set.
func overtake(v Value, n int, fill Value) Value {
	if fill == nil {
		return nil
	}
	switch a := v.(type) {
	case *Array[float64]:
		if x := fillNumOf(fill); x != nil {
			return overtakeArr(a, n, *x)
		}
	case *Array[byte]:
		if b := fillByteOf(fill); b != nil {
			return overtakeArr(a, n, *b)
		}
		if x := fillNumOf(fill); x != nil {
			nums := bytesToNums(a)
			res := overtakeArr(nums, n, *x)
			nums.Release()
			return res
		}
	case *Array[rune]:
		if r := fillCharOf(fill); r != nil {
			return overtakeArr(a, n, *r)
		}
	case *Array[Boxed]:
		if b := fillBoxOf(fill); b != nil {
			return overtakeArr(a, n, *b)
		}
	}
	return nil
}

func overtakeArr[T Elem](a *Array[T], n int, fill T) *Array[T] {
	rows, rl := a.Rows(), a.RowLen()
	want := n
	if want < 0 {
		want = -want
	}
	out := make([]T, want*rl)
	for i := range out {
		out[i] = fill
	}
	if n >= 0 {
		copy(out, a.elems())
	} else {
		copy(out[(want-rows)*rl:], a.elems())
	}
	return NewArray(a.Shape().WithRows(want), out)
}

func takeRowsValue(v Value, lo, hi int) Value {
	var res Value
	switch a := v.(type) {
	case *Array[float64]:
		res = a.takeRows(lo, hi)
	case *Array[byte]:
		res = a.takeRows(lo, hi)
	case *Array[rune]:
		res = a.takeRows(lo, hi)
	case *Array[Boxed]:
		res = a.takeRows(lo, hi)
	}
	v.Release()
	return res
}

func primDrop(m *Machine) error {
	nv, err := m.pop("drop")
	if err != nil {
		return err
	}
	v, err := m.pop("drop")
	if err != nil {
		return err
	}
	n, err := asInt(nv)
	if err != nil {
		return err
	}
	nv.Release()
	if err := noFn("drop from", v); err != nil {
		return err
	}
	if v.Rank() == 0 {
		return shapeErrorf([]Shape{nil}, "cannot drop from a scalar")
	}
	rows := v.Rows()
	lo, hi := 0, rows
	if n >= 0 {
		lo = min(n, rows)
	} else {
		hi = rows - min(-n, rows)
	}
	m.push(takeRowsValue(v, lo, hi))
	return nil
}

func primRotate(m *Machine) error {
	nv, err := m.pop("rotate")
	if err != nil {
		return err
	}
	v, err := m.pop("rotate")
	if err != nil {
		return err
	}
	n, err := asInt(nv)
	if err != nil {
		return err
	}
	nv.Release()
	rows := v.Rows()
	if v.Rank() == 0 || rows == 0 {
		m.push(v)
		return nil
	}
	k := ((n % rows) + rows) % rows
	if k == 0 {
		m.push(v)
		return nil
	}
	switch a := v.(type) {
	case *Array[float64]:
		m.push(rotateArr(a, k))
	case *Array[byte]:
		m.push(rotateArr(a, k))
	case *Array[rune]:
		m.push(rotateArr(a, k))
	case *Array[Boxed]:
		m.push(rotateArr(a, k))
	default:
		return noFn("rotate", v)
	}
	return nil
}

// rotateArr shifts rows left by k, which is already reduced mod the
// row count.
func rotateArr[T Elem](a *Array[T], k int) *Array[T] {
	rows, rl := a.Rows(), a.RowLen()
	src := a.elems()
	out := make([]T, len(src))
	for i := 0; i < rows; i++ {
		copy(out[i*rl:(i+1)*rl], src[((i+k)%rows)*rl:((i+k)%rows+1)*rl])
	}
	res := NewArray(a.Shape().Clone(), out)
	a.Release()
	return res
}
