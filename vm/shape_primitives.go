package vm

func init() {
	register(PrimLen, primLen)
	register(PrimShape, primShape)
	register(PrimRange, primRange)
	register(PrimFirst, primFirst)
	register(PrimReverse, primReverse)
	register(PrimDeshape, primDeshape)
	register(PrimTranspose, primTranspose)
	register(PrimReshape, primReshape)
}

// noFn rejects function values where only arrays make sense.
func noFn(verb string, v Value) error {
	if _, ok := v.(*FnValue); ok {
		return kindErrorf([]Kind{KindFn}, "cannot %s a function", verb)
	}
	return nil
}

func primLen(m *Machine) error {
	v, err := m.pop("len")
	if err != nil {
		return err
	}
	n := v.Rows()
	v.Release()
	m.push(Num(float64(n)))
	return nil
}

func primShape(m *Machine) error {
	v, err := m.pop("shape")
	if err != nil {
		return err
	}
	dims := v.Shape()
	out := make([]float64, len(dims))
	for i, d := range dims {
		out[i] = float64(d)
	}
	v.Release()
	m.push(List(out))
	return nil
}

// primRange counts up to a scalar, or enumerates the index vectors of
// a shape given as a list.
func primRange(m *Machine) error {
	v, err := m.pop("range")
	if err != nil {
		return err
	}
	if v.Rank() == 0 {
		n, err := asInt(v)
		if err != nil {
			return err
		}
		v.Release()
		if n < 0 {
			return runtimeErrorf(TypeMismatch, "range needs a non-negative integer, got %d", n)
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = float64(i)
		}
		m.push(List(out))
		return nil
	}
	dims, err := asInts(v)
	if err != nil {
		return err
	}
	v.Release()
	for _, d := range dims {
		if d < 0 {
			return runtimeErrorf(TypeMismatch, "range needs non-negative dimensions, got %d", d)
		}
	}
	k := len(dims)
	if k == 0 {
		m.push(List[float64](nil))
		return nil
	}
	total := 1
	for _, d := range dims {
		total *= d
	}
	out := make([]float64, total*k)
	idx := make([]int, k)
	for e := 0; e < total; e++ {
		for j := 0; j < k; j++ {
			out[e*k+j] = float64(idx[j])
		}
		for j := k - 1; j >= 0; j-- {
			idx[j]++
			if idx[j] < dims[j] {
				break
			}
			idx[j] = 0
		}
	}
	shape := append(Shape(dims).Clone(), k)
	m.push(NewArray(shape, out))
	return nil
}

func primFirst(m *Machine) error {
	v, err := m.pop("first")
	if err != nil {
		return err
	}
	if v.Rank() == 0 {
		m.push(v)
		return nil
	}
	if v.Rows() == 0 {
		if m.fill != nil {
			if row := fillRow(m.fill, v); row != nil {
				v.Release()
				m.push(row)
				return nil
			}
		}
		shape := v.Shape().Clone()
		v.Release()
		return shapeErrorf([]Shape{shape}, "cannot take the first row of an empty array")
	}
	row := v.Row(0)
	v.Release()
	m.push(row)
	return nil
}

func primReverse(m *Machine) error {
	v, err := m.pop("reverse")
	if err != nil {
		return err
	}
	if v.Rank() == 0 {
		m.push(v)
		return nil
	}
	switch a := v.(type) {
	case *Array[float64]:
		m.push(reverseArr(a))
	case *Array[byte]:
		m.push(reverseArr(a))
	case *Array[rune]:
		m.push(reverseArr(a))
	case *Array[Boxed]:
		m.push(reverseArr(a))
	}
	return nil
}

func reverseArr[T Elem](a *Array[T]) *Array[T] {
	rows, rl := a.Rows(), a.RowLen()
	if a.data.unique() {
		buf := a.elems()
		for i, j := 0, rows-1; i < j; i, j = i+1, j-1 {
			ri := buf[i*rl : (i+1)*rl]
			rj := buf[j*rl : (j+1)*rl]
			for k := range ri {
				ri[k], rj[k] = rj[k], ri[k]
			}
		}
		return a
	}
	src := a.elems()
	out := make([]T, len(src))
	for i := 0; i < rows; i++ {
		copy(out[(rows-1-i)*rl:(rows-i)*rl], src[i*rl:(i+1)*rl])
	}
	res := NewArray(a.Shape().Clone(), out)
	a.Release()
	return res
}

// primDeshape flattens to rank 1 without copying.
func primDeshape(m *Machine) error {
	v, err := m.pop("deshape")
	if err != nil {
		return err
	}
	if err := noFn("deshape", v); err != nil {
		return err
	}
	switch a := v.(type) {
	case *Array[float64]:
		m.push(deshapeArr(a))
	case *Array[byte]:
		m.push(deshapeArr(a))
	case *Array[rune]:
		m.push(deshapeArr(a))
	case *Array[Boxed]:
		m.push(deshapeArr(a))
	}
	return nil
}

func deshapeArr[T Elem](a *Array[T]) *Array[T] {
	res := a.reshaped(Shape{a.FlatLen()})
	a.Release()
	return res
}

// primTranspose moves the first axis to the end.
func primTranspose(m *Machine) error {
	v, err := m.pop("transpose")
	if err != nil {
		return err
	}
	if v.Rank() <= 1 {
		m.push(v)
		return nil
	}
	switch a := v.(type) {
	case *Array[float64]:
		m.push(transposeArr(a))
	case *Array[byte]:
		m.push(transposeArr(a))
	case *Array[rune]:
		m.push(transposeArr(a))
	case *Array[Boxed]:
		m.push(transposeArr(a))
	}
	return nil
}

func transposeArr[T Elem](a *Array[T]) *Array[T] {
	n := a.Shape()[0]
	rl := a.RowLen()
	src := a.elems()
	out := make([]T, len(src))
	for i := 0; i < n; i++ {
		for r := 0; r < rl; r++ {
			out[r*n+i] = src[i*rl+r]
		}
	}
	shape := append(a.Shape().Row().Clone(), n)
	res := NewArray(shape, out)
	a.Release()
	return res
}

// primReshape changes an array's shape, cycling elements when the
// target is larger and truncating when smaller. A scalar count
// repeats the whole array as rows; one dimension may be ¯1 to infer
// its size from the element count.
func primReshape(m *Machine) error {
	sv, err := m.pop("reshape")
	if err != nil {
		return err
	}
	v, err := m.pop("reshape")
	if err != nil {
		return err
	}
	if err := noFn("reshape", v); err != nil {
		return err
	}
	scalarRepeat := sv.Rank() == 0
	dims, err := asInts(sv)
	if err != nil {
		return err
	}
	sv.Release()

	var target Shape
	if scalarRepeat {
		if dims[0] < 0 {
			return runtimeErrorf(TypeMismatch, "reshape needs a non-negative count, got %d", dims[0])
		}
		target = append(Shape{dims[0]}, v.Shape()...)
	} else {
		infer := -1
		known := 1
		for i, d := range dims {
			switch {
			case d == -1:
				if infer >= 0 {
					return runtimeErrorf(TypeMismatch, "reshape allows only one inferred dimension")
				}
				infer = i
			case d < 0:
				return runtimeErrorf(TypeMismatch, "reshape dimensions must be non-negative, got %d", d)
			default:
				known *= d
			}
		}
		if infer >= 0 {
			if known == 0 {
				return runtimeErrorf(DivisionByZero, "cannot infer a reshape dimension alongside a zero dimension")
			}
			dims[infer] = v.FlatLen() / known
		}
		target = Shape(dims)
	}

	var res Value
	switch a := v.(type) {
	case *Array[float64]:
		res, err = reshapeArr(a, target, fillNumOf(m.fill))
	case *Array[byte]:
		res, err = reshapeArr(a, target, fillByteOf(m.fill))
	case *Array[rune]:
		res, err = reshapeArr(a, target, fillCharOf(m.fill))
	case *Array[Boxed]:
		res, err = reshapeArr(a, target, fillBoxOf(m.fill))
	}
	if err != nil {
		return err
	}
	m.push(res)
	return nil
}

func reshapeArr[T Elem](a *Array[T], target Shape, fill *T) (Value, error) {
	n := target.Elements()
	if n == a.FlatLen() {
		res := a.reshaped(target.Clone())
		a.Release()
		return res, nil
	}
	src := a.elems()
	if len(src) == 0 {
		if fill == nil {
			return nil, shapeErrorf([]Shape{a.Shape().Clone(), target.Clone()},
				"cannot reshape an empty array to %v without a fill", target)
		}
		out := make([]T, n)
		for i := range out {
			out[i] = *fill
		}
		a.Release()
		return NewArray(target.Clone(), out), nil
	}
	out := make([]T, n)
	for i := range out {
		out[i] = src[i%len(src)]
	}
	a.Release()
	return NewArray(target.Clone(), out), nil
}
