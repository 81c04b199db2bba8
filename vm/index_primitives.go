package vm

func init() {
	register(PrimPick, primPick)
	register(PrimSelect, primSelect)
	register(PrimIndexOf, primIndexOf)
	register(PrimMember, primMember)
	register(PrimFind, primFind)
}

// intElems extracts every element of an index array as an integer,
// regardless of rank.
func intElems(verb string, v Value) ([]int, error) {
	n, err := asNums(v)
	if err != nil {
		return nil, err
	}
	out := make([]int, n.FlatLen())
	for i, x := range n.elems() {
		if !isInt(x) {
			return nil, runtimeErrorf(TypeMismatch, "%s requires integer indices, got %v", verb, x)
		}
		out[i] = int(x)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Pick and select
// ---------------------------------------------------------------------------

func primPick(m *Machine) error {
	iv, err := m.pop("pick")
	if err != nil {
		return err
	}
	v, err := m.pop("pick")
	if err != nil {
		return err
	}
	if err := noFn("pick from", v); err != nil {
		return err
	}
	ixs, err := intElems("pick", iv)
	if err != nil {
		return err
	}
	ishape := iv.Shape()
	if ishape.Rank() <= 1 {
		res, err := pickCell(v, ixs, m.fill)
		if err != nil {
			return err
		}
		iv.Release()
		v.Release()
		m.push(res)
		return nil
	}

	// The trailing axis of a higher-rank index array holds one index
	// vector per frame position.
	l := ishape[ishape.Rank()-1]
	frame := Shape(ishape[:ishape.Rank()-1]).Clone()
	count := frame.Elements()
	cells := make([]Value, 0, count)
	for c := 0; c < count; c++ {
		cell, err := pickCell(v, ixs[c*l:(c+1)*l], m.fill)
		if err != nil {
			for _, prev := range cells {
				prev.Release()
			}
			return err
		}
		cells = append(cells, cell)
	}
	cellShape := Shape(v.Shape()[min(l, v.Rank()):])
	res, err := stackAndRelease(cells, m.fill, iv, v)
	if err != nil {
		return err
	}
	m.push(reshapeOwned(res, append(frame, cellShape...)))
	return nil
}

// pickCell drills ixs through v's leading axes and copies out the
// remaining cell. An out-of-bounds index yields a cell of fill when
// one applies.
func pickCell(v Value, ixs []int, fill Value) (Value, error) {
	shape := v.Shape()
	if len(ixs) > len(shape) {
		return nil, runtimeErrorf(IndexOutOfBounds,
			"cannot pick with an index of %d axes from a rank %d array", len(ixs), len(shape))
	}
	cellShape := Shape(shape[len(ixs):])
	off := 0
	for k, ix := range ixs {
		d := shape[k]
		i := ix
		if i < 0 {
			i += d
		}
		if i < 0 || i >= d {
			if res := fillCell(fill, v, cellShape); res != nil {
				return res, nil
			}
			return nil, runtimeErrorf(IndexOutOfBounds,
				"index %d is out of bounds of length %d", ix, d)
		}
		off = off*d + i
	}
	return cellValue(v, off*cellShape.Elements(), cellShape), nil
}

// cellValue copies n contiguous elements starting at off into a fresh
// array of the given shape.
func cellValue(v Value, off int, cellShape Shape) Value {
	n := cellShape.Elements()
	switch a := v.(type) {
	case *Array[float64]:
		return NewArray(cellShape.Clone(), append([]float64(nil), a.elems()[off:off+n]...))
	case *Array[byte]:
		return NewArray(cellShape.Clone(), append([]byte(nil), a.elems()[off:off+n]...))
	case *Array[rune]:
		return NewArray(cellShape.Clone(), append([]rune(nil), a.elems()[off:off+n]...))
	case *Array[Boxed]:
		return NewArray(cellShape.Clone(), append([]Boxed(nil), a.elems()[off:off+n]...))
	}
	return nil
}

// reshapeOwned views an array the caller exclusively owns under a new
// shape with the same element count, consuming the original.
func reshapeOwned(v Value, shape Shape) Value {
	switch a := v.(type) {
	case *Array[float64]:
		defer a.Release()
		return a.reshaped(shape)
	case *Array[byte]:
		defer a.Release()
		return a.reshaped(shape)
	case *Array[rune]:
		defer a.Release()
		return a.reshaped(shape)
	case *Array[Boxed]:
		defer a.Release()
		return a.reshaped(shape)
	}
	return v
}

func primSelect(m *Machine) error {
	iv, err := m.pop("select")
	if err != nil {
		return err
	}
	v, err := m.pop("select")
	if err != nil {
		return err
	}
	if err := noFn("select from", v); err != nil {
		return err
	}
	if v.Rank() == 0 {
		return shapeErrorf([]Shape{v.Shape().Clone()}, "cannot select from a scalar")
	}
	ints, err := intElems("select", iv)
	if err != nil {
		return err
	}
	rows := v.Rows()
	oob := false
	for k, i := range ints {
		orig := i
		if i < 0 {
			i += rows
		}
		if i < 0 || i >= rows {
			oob = true
			if m.fill == nil {
				return runtimeErrorf(IndexOutOfBounds,
					"index %d is out of bounds of length %d", orig, rows)
			}
		}
		ints[k] = i
	}
	outShape := append(iv.Shape().Clone(), v.Shape().Row()...)
	if !oob {
		m.push(selectRowsValue(v, ints, outShape))
		iv.Release()
		return nil
	}
	picked := make([]Value, 0, len(ints))
	for _, i := range ints {
		var row Value
		if i >= 0 && i < rows {
			row = v.Row(i)
		} else if row = fillRow(m.fill, v); row == nil {
			for _, prev := range picked {
				prev.Release()
			}
			return runtimeErrorf(IndexOutOfBounds,
				"index %d is out of bounds of length %d", i, rows)
		}
		picked = append(picked, row)
	}
	res, err := stackAndRelease(picked, m.fill, iv, v)
	if err != nil {
		return err
	}
	m.push(reshapeOwned(res, outShape))
	return nil
}

func selectRowsValue(v Value, idcs []int, shape Shape) Value {
	var res Value
	switch a := v.(type) {
	case *Array[float64]:
		res = selectRows(a, idcs, shape)
	case *Array[byte]:
		res = selectRows(a, idcs, shape)
	case *Array[rune]:
		res = selectRows(a, idcs, shape)
	case *Array[Boxed]:
		res = selectRows(a, idcs, shape)
	}
	v.Release()
	return res
}

func selectRows[T Elem](a *Array[T], idcs []int, shape Shape) *Array[T] {
	rl := a.RowLen()
	out := make([]T, len(idcs)*rl)
	for k, i := range idcs {
		copy(out[k*rl:(k+1)*rl], a.rowSlice(i))
	}
	return NewArray(shape, out)
}

// ---------------------------------------------------------------------------
// Searching
// ---------------------------------------------------------------------------

// searchFrame checks that the searched-for array's shape ends with the
// haystack's row shape and returns the leading frame along with the
// flat length of one row.
func searchFrame(verb string, needle, hay Value) (Shape, int, error) {
	cell := hay.Shape().Row()
	ns := needle.Shape()
	fr := len(ns) - len(cell)
	if fr < 0 || !Shape(ns[fr:]).Eq(cell) {
		return nil, 0, shapeErrorf([]Shape{ns.Clone(), hay.Shape().Clone()},
			"cannot %s cells of shape %v in an array of shape %v", verb, ns, hay.Shape())
	}
	return Shape(ns[:fr]).Clone(), cell.Elements(), nil
}

func primIndexOf(m *Machine) error {
	a, err := m.pop("indexof")
	if err != nil {
		return err
	}
	b, err := m.pop("indexof")
	if err != nil {
		return err
	}
	if err := noFn("search for", a); err != nil {
		return err
	}
	if err := noFn("search in", b); err != nil {
		return err
	}
	frame, cl, err := searchFrame("search for", a, b)
	if err != nil {
		return err
	}
	hayRows := b.Rows()
	out := make([]float64, frame.Elements())
	for c := range out {
		hit := float64(hayRows)
		for r := 0; r < hayRows; r++ {
			if flatEq(a, c*cl, b, r*cl, cl) {
				hit = float64(r)
				break
			}
		}
		out[c] = hit
	}
	a.Release()
	b.Release()
	m.push(NewArray(frame, out))
	return nil
}

func primMember(m *Machine) error {
	a, err := m.pop("member")
	if err != nil {
		return err
	}
	b, err := m.pop("member")
	if err != nil {
		return err
	}
	if err := noFn("search for", a); err != nil {
		return err
	}
	if err := noFn("search in", b); err != nil {
		return err
	}
	frame, cl, err := searchFrame("search for", a, b)
	if err != nil {
		return err
	}
	hayRows := b.Rows()
	out := make([]byte, frame.Elements())
	for c := range out {
		for r := 0; r < hayRows; r++ {
			if flatEq(a, c*cl, b, r*cl, cl) {
				out[c] = 1
				break
			}
		}
	}
	a.Release()
	b.Release()
	m.push(NewArray(frame, out))
	return nil
}

func primFind(m *Machine) error {
	a, err := m.pop("find")
	if err != nil {
		return err
	}
	b, err := m.pop("find")
	if err != nil {
		return err
	}
	if err := noFn("search for", a); err != nil {
		return err
	}
	if err := noFn("search in", b); err != nil {
		return err
	}
	m.push(findMask(a, b))
	a.Release()
	b.Release()
	return nil
}

// findMask marks each position of hay where needle occurs as a
// contiguous subarray. The needle's shape is aligned to hay's trailing
// axes; a needle that cannot fit anywhere yields all zeros.
func findMask(needle, hay Value) *Array[byte] {
	hs := hay.Shape()
	out := make([]byte, hay.FlatLen())
	done := func() *Array[byte] { return NewArray(hs.Clone(), out) }

	ns := needle.Shape()
	if len(ns) > len(hs) {
		return done()
	}
	ka, kb := needle.Kind(), hay.Kind()
	if ka != kb && !(ka.IsNumeric() && kb.IsNumeric()) {
		return done()
	}
	window := make(Shape, len(hs))
	for i := range window {
		window[i] = 1
	}
	copy(window[len(hs)-len(ns):], ns)
	for k, d := range window {
		if d > hs[k] {
			return done()
		}
	}

	hstr := make([]int, len(hs))
	nstr := make([]int, len(hs))
	sh, sn := 1, 1
	for i := len(hs) - 1; i >= 0; i-- {
		hstr[i], nstr[i] = sh, sn
		sh *= hs[i]
		sn *= window[i]
	}

	var match func(axis, hOff, nOff int) bool
	match = func(axis, hOff, nOff int) bool {
		if axis == len(window) {
			return flatEq(needle, nOff, hay, hOff, 1)
		}
		if axis == len(window)-1 {
			return flatEq(needle, nOff, hay, hOff, window[axis])
		}
		for j := 0; j < window[axis]; j++ {
			if !match(axis+1, hOff+j*hstr[axis], nOff+j*nstr[axis]) {
				return false
			}
		}
		return true
	}

	pos := make([]int, len(hs))
	for off := range out {
		fits := true
		for k := range pos {
			if pos[k]+window[k] > hs[k] {
				fits = false
				break
			}
		}
		if fits && match(0, off, 0) {
			out[off] = 1
		}
		for k := len(pos) - 1; k >= 0; k-- {
			pos[k]++
			if pos[k] < hs[k] {
				break
			}
			pos[k] = 0
		}
	}
	return done()
}
