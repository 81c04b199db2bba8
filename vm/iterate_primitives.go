package vm

import "math"

func init() {
	register(PrimReduce, primReduce)
	register(PrimScan, primScan)
	register(PrimEach, primEach)
	register(PrimRows, primRows)
	register(PrimTable, primTable)
	register(PrimRepeat, primRepeat)
	register(PrimFill, primFill)
	register(PrimDip, primDip)
}

// ---------------------------------------------------------------------------
// Operand plumbing
// ---------------------------------------------------------------------------

// popOperand pops a modifier's function operand.
func (m *Machine) popOperand(verb string) (*FnValue, error) {
	v, err := m.pop(verb)
	if err != nil {
		return nil, err
	}
	fv, ok := v.(*FnValue)
	if !ok {
		return nil, kindErrorf([]Kind{v.Kind()}, "%s requires a function, got a %v", verb, v.Kind())
	}
	return fv, nil
}

// staticSig rejects operands whose stack effect is not exactly
// args to outputs.
func staticSig(verb string, fv *FnValue, args, outputs int) error {
	if fv.Fn.Dynamic || fv.Fn.Sig != (Signature{Args: args, Outputs: outputs}) {
		return runtimeErrorf(TypeMismatch,
			"%s requires a |%d.%d function, got %s", verb, args, outputs, fv.Fn)
	}
	return nil
}

// mapSig admits |1.1 and |2.1 operands and returns the argument count.
func mapSig(verb string, fv *FnValue) (int, error) {
	if fv.Fn.Dynamic || fv.Fn.Sig.Outputs != 1 || fv.Fn.Sig.Args < 1 || fv.Fn.Sig.Args > 2 {
		return 0, runtimeErrorf(TypeMismatch,
			"%s requires a |1.1 or |2.1 function, got %s", verb, fv.Fn)
	}
	return fv.Fn.Sig.Args, nil
}

// singlePrimitive reports the primitive a function body consists of,
// when the body is exactly one primitive call.
func singlePrimitive(fv *FnValue) (Primitive, bool) {
	code := fv.Fn.Prog.Code
	if len(code) == 3 && Opcode(code[0]) == OpCallPrimitive {
		return Primitive(uint16(code[1]) | uint16(code[2])<<8), true
	}
	return 0, false
}

// apply1 runs fn on one value and pops the result.
func (m *Machine) apply1(fn *FnValue, x Value) (Value, error) {
	m.push(x)
	if err := m.callValue(fn); err != nil {
		return nil, err
	}
	return m.pop(fn.Fn.Name)
}

// apply2 runs fn on two values, left on top, and pops the result.
func (m *Machine) apply2(fn *FnValue, left, right Value) (Value, error) {
	m.push(right)
	m.push(left)
	if err := m.callValue(fn); err != nil {
		return nil, err
	}
	return m.pop(fn.Fn.Name)
}

func releaseAll(vs []Value) {
	for _, v := range vs {
		v.Release()
	}
}

// ---------------------------------------------------------------------------
// Reduce and scan
// ---------------------------------------------------------------------------

func primReduce(m *Machine) error {
	fn, err := m.popOperand("reduce")
	if err != nil {
		return err
	}
	if err := staticSig("reduce", fn, 2, 1); err != nil {
		return err
	}
	xs, err := m.pop("reduce")
	if err != nil {
		return err
	}
	if err := noFn("reduce", xs); err != nil {
		return err
	}
	rows := xs.Rows()
	if rows == 0 {
		if p, ok := singlePrimitive(fn); ok {
			if id, ok := p.Identity(); ok {
				res := filledArr(xs.Shape().Row(), id)
				xs.Release()
				m.push(res)
				return nil
			}
		}
		return runtimeErrorf(TypeMismatch, "cannot reduce an empty array without an identity")
	}
	if p, ok := singlePrimitive(fn); ok {
		if res, ok := foldFast(p, xs); ok {
			m.push(res)
			return nil
		}
	}
	acc := xs.Row(rows - 1)
	for i := rows - 2; i >= 0; i-- {
		if acc, err = m.apply2(fn, acc, xs.Row(i)); err != nil {
			return err
		}
	}
	xs.Release()
	m.push(acc)
	return nil
}

// foldFast folds flat buffers directly for the primitives where the
// general path would only add call overhead. Results match the
// general path step for step.
func foldFast(p Primitive, xs Value) (Value, bool) {
	switch p {
	case PrimAdd, PrimMul, PrimMin, PrimMax:
	default:
		return nil, false
	}
	switch a := xs.(type) {
	case *Array[float64]:
		return foldNum(p, a), true
	case *Array[byte]:
		if p == PrimMin || p == PrimMax {
			return foldByte(p, a), true
		}
		nums := bytesToNums(a)
		res := foldNum(p, nums)
		a.Release()
		return res, true
	}
	return nil, false
}

func numKernel(p Primitive) func(x, y float64) float64 {
	switch p {
	case PrimAdd:
		return func(x, y float64) float64 { return x + y }
	case PrimMul:
		return func(x, y float64) float64 { return x * y }
	case PrimMin:
		return math.Min
	default:
		return math.Max
	}
}

func foldNum(p Primitive, a *Array[float64]) Value {
	rows := a.Rows()
	f := numKernel(p)
	acc := append([]float64(nil), a.rowSlice(rows-1)...)
	for i := rows - 2; i >= 0; i-- {
		row := a.rowSlice(i)
		for k := range acc {
			acc[k] = f(acc[k], row[k])
		}
	}
	res := NewArray(a.Shape().Row().Clone(), acc)
	a.Release()
	return res
}

func foldByte(p Primitive, a *Array[byte]) Value {
	rows := a.Rows()
	f := minByte
	if p == PrimMax {
		f = maxByte
	}
	acc := append([]byte(nil), a.rowSlice(rows-1)...)
	for i := rows - 2; i >= 0; i-- {
		row := a.rowSlice(i)
		for k := range acc {
			acc[k] = f(acc[k], row[k])
		}
	}
	res := NewArray(a.Shape().Row().Clone(), acc)
	a.Release()
	return res
}

func primScan(m *Machine) error {
	fn, err := m.popOperand("scan")
	if err != nil {
		return err
	}
	if err := staticSig("scan", fn, 2, 1); err != nil {
		return err
	}
	xs, err := m.pop("scan")
	if err != nil {
		return err
	}
	if err := noFn("scan", xs); err != nil {
		return err
	}
	if xs.Rank() == 0 {
		return shapeErrorf([]Shape{xs.Shape().Clone()}, "cannot scan a scalar")
	}
	rows := xs.Rows()
	if rows <= 1 {
		m.push(xs)
		return nil
	}
	if p, ok := singlePrimitive(fn); ok {
		if res, ok := scanFast(p, xs); ok {
			m.push(res)
			return nil
		}
	}
	accs := make([]Value, 0, rows)
	accs = append(accs, xs.Row(0))
	for i := 1; i < rows; i++ {
		next, err := m.apply2(fn, accs[len(accs)-1].Retain(), xs.Row(i))
		if err != nil {
			releaseAll(accs)
			return err
		}
		accs = append(accs, next)
	}
	res, err := stackAndRelease(accs, m.fill, xs, nil)
	if err != nil {
		return err
	}
	m.push(res)
	return nil
}

func scanFast(p Primitive, xs Value) (Value, bool) {
	switch p {
	case PrimAdd, PrimMul, PrimMin, PrimMax:
	default:
		return nil, false
	}
	switch a := xs.(type) {
	case *Array[float64]:
		return scanNum(p, a), true
	case *Array[byte]:
		if p == PrimMin || p == PrimMax {
			return scanByte(p, a), true
		}
		nums := bytesToNums(a)
		res := scanNum(p, nums)
		a.Release()
		return res, true
	}
	return nil, false
}

func scanNum(p Primitive, a *Array[float64]) Value {
	rows, rl := a.Rows(), a.RowLen()
	f := numKernel(p)
	src := a.elems()
	out := make([]float64, len(src))
	copy(out[:rl], src[:rl])
	for i := 1; i < rows; i++ {
		for k := 0; k < rl; k++ {
			out[i*rl+k] = f(out[(i-1)*rl+k], src[i*rl+k])
		}
	}
	res := NewArray(a.Shape().Clone(), out)
	a.Release()
	return res
}

func scanByte(p Primitive, a *Array[byte]) Value {
	rows, rl := a.Rows(), a.RowLen()
	f := minByte
	if p == PrimMax {
		f = maxByte
	}
	src := a.elems()
	out := make([]byte, len(src))
	copy(out[:rl], src[:rl])
	for i := 1; i < rows; i++ {
		for k := 0; k < rl; k++ {
			out[i*rl+k] = f(out[(i-1)*rl+k], src[i*rl+k])
		}
	}
	res := NewArray(a.Shape().Clone(), out)
	a.Release()
	return res
}

// ---------------------------------------------------------------------------
// Each, rows, table
// ---------------------------------------------------------------------------

// elemValue copies flat element i out as a scalar.
func elemValue(v Value, i int) Value {
	switch a := v.(type) {
	case *Array[float64]:
		return Scalar(a.elems()[i])
	case *Array[byte]:
		return Scalar(a.elems()[i])
	case *Array[rune]:
		return Scalar(a.elems()[i])
	case *Array[Boxed]:
		return Scalar(a.elems()[i])
	}
	return nil
}

func primEach(m *Machine) error {
	fn, err := m.popOperand("each")
	if err != nil {
		return err
	}
	k, err := mapSig("each", fn)
	if err != nil {
		return err
	}
	if k == 1 {
		xs, err := m.pop("each")
		if err != nil {
			return err
		}
		if err := noFn("iterate over", xs); err != nil {
			return err
		}
		n := xs.FlatLen()
		results := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			r, err := m.apply1(fn, elemValue(xs, i))
			if err != nil {
				releaseAll(results)
				return err
			}
			results = append(results, r)
		}
		frame := xs.Shape().Clone()
		res, err := stackAndRelease(results, m.fill, xs, nil)
		if err != nil {
			return err
		}
		m.push(reshapeOwned(res, append(frame, res.Shape().Row()...)))
		return nil
	}

	a, err := m.pop("each")
	if err != nil {
		return err
	}
	b, err := m.pop("each")
	if err != nil {
		return err
	}
	if err := noFn("iterate over", a); err != nil {
		return err
	}
	if err := noFn("iterate over", b); err != nil {
		return err
	}
	sa, sb := a.Shape(), b.Shape()
	if !sa.IsPrefixOf(sb) && !sb.IsPrefixOf(sa) {
		return shapeErrorf([]Shape{sa.Clone(), sb.Clone()},
			"shapes %v and %v do not agree", sa, sb)
	}
	frame := sa
	if len(sb) > len(sa) {
		frame = sb
	}
	frame = frame.Clone()
	n := frame.Elements()
	results := make([]Value, 0, n)
	if n > 0 {
		repA, repB := n/a.FlatLen(), n/b.FlatLen()
		for i := 0; i < n; i++ {
			r, err := m.apply2(fn, elemValue(a, i/repA), elemValue(b, i/repB))
			if err != nil {
				releaseAll(results)
				return err
			}
			results = append(results, r)
		}
	}
	res, err := stackAndRelease(results, m.fill, a, b)
	if err != nil {
		return err
	}
	m.push(reshapeOwned(res, append(frame, res.Shape().Row()...)))
	return nil
}

func primRows(m *Machine) error {
	fn, err := m.popOperand("rows")
	if err != nil {
		return err
	}
	k, err := mapSig("rows", fn)
	if err != nil {
		return err
	}
	if k == 1 {
		xs, err := m.pop("rows")
		if err != nil {
			return err
		}
		if err := noFn("iterate over", xs); err != nil {
			return err
		}
		rows := xs.Rows()
		results := make([]Value, 0, rows)
		for i := 0; i < rows; i++ {
			r, err := m.apply1(fn, xs.Row(i))
			if err != nil {
				releaseAll(results)
				return err
			}
			results = append(results, r)
		}
		res, err := stackAndRelease(results, m.fill, xs, nil)
		if err != nil {
			return err
		}
		m.push(res)
		return nil
	}

	a, err := m.pop("rows")
	if err != nil {
		return err
	}
	b, err := m.pop("rows")
	if err != nil {
		return err
	}
	if err := noFn("iterate over", a); err != nil {
		return err
	}
	if err := noFn("iterate over", b); err != nil {
		return err
	}
	ra, rb := a.Rows(), b.Rows()
	if ra != rb && a.Rank() != 0 && b.Rank() != 0 {
		return shapeErrorf([]Shape{a.Shape().Clone(), b.Shape().Clone()},
			"cannot iterate rows of shapes %v and %v together", a.Shape(), b.Shape())
	}
	n := max(ra, rb)
	results := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		r, err := m.apply2(fn, a.Row(i), b.Row(i))
		if err != nil {
			releaseAll(results)
			return err
		}
		results = append(results, r)
	}
	res, err := stackAndRelease(results, m.fill, a, b)
	if err != nil {
		return err
	}
	m.push(res)
	return nil
}

func primTable(m *Machine) error {
	fn, err := m.popOperand("table")
	if err != nil {
		return err
	}
	if err := staticSig("table", fn, 2, 1); err != nil {
		return err
	}
	a, err := m.pop("table")
	if err != nil {
		return err
	}
	b, err := m.pop("table")
	if err != nil {
		return err
	}
	if err := noFn("iterate over", a); err != nil {
		return err
	}
	if err := noFn("iterate over", b); err != nil {
		return err
	}
	ra, rb := a.Rows(), b.Rows()
	results := make([]Value, 0, ra*rb)
	for i := 0; i < ra; i++ {
		for j := 0; j < rb; j++ {
			r, err := m.apply2(fn, a.Row(i), b.Row(j))
			if err != nil {
				releaseAll(results)
				return err
			}
			results = append(results, r)
		}
	}
	res, err := stackAndRelease(results, m.fill, a, b)
	if err != nil {
		return err
	}
	m.push(reshapeOwned(res, append(Shape{ra, rb}, res.Shape().Row()...)))
	return nil
}

// ---------------------------------------------------------------------------
// Repeat, fill, dip
// ---------------------------------------------------------------------------

func primRepeat(m *Machine) error {
	fn, err := m.popOperand("repeat")
	if err != nil {
		return err
	}
	nv, err := m.pop("repeat")
	if err != nil {
		return err
	}
	n, err := asInt(nv)
	if err != nil {
		return err
	}
	nv.Release()
	if n < 0 {
		return runtimeErrorf(TypeMismatch, "repeat requires a non-negative count, got %d", n)
	}
	for i := 0; i < n; i++ {
		if err := m.callValue(fn); err != nil {
			return err
		}
	}
	return nil
}

func primFill(m *Machine) error {
	f, err := m.popOperand("fill")
	if err != nil {
		return err
	}
	g, err := m.popOperand("fill")
	if err != nil {
		return err
	}
	if err := m.callValue(f); err != nil {
		return err
	}
	fv, err := m.pop("fill")
	if err != nil {
		return err
	}
	if _, ok := fv.(*FnValue); ok {
		return kindErrorf([]Kind{KindFn}, "cannot fill with a function")
	}
	if fv.Rank() != 0 {
		return shapeErrorf([]Shape{fv.Shape().Clone()}, "fill value must be a scalar")
	}
	old := m.fill
	m.fill = fv
	err = m.callValue(g)
	m.fill = old
	fv.Release()
	return err
}

func primDip(m *Machine) error {
	fn, err := m.popOperand("dip")
	if err != nil {
		return err
	}
	x, err := m.pop("dip")
	if err != nil {
		return err
	}
	if err := m.callValue(fn); err != nil {
		return err
	}
	m.push(x)
	return nil
}
