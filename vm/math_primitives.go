package vm

import "math"

func init() {
	register(PrimNeg, monImpl("negate", monNumOp("negate", func(x float64) float64 { return -x })))
	register(PrimNot, monImpl("invert", monNumOp("invert", func(x float64) float64 { return 1 - x })))
	register(PrimSign, monImpl("take the sign of", signValues))
	register(PrimAbs, monImpl("take the absolute value of", monNumOp("take the absolute value of", math.Abs)))
	register(PrimSqrt, monImpl("take the square root of", monNumOp("take the square root of", math.Sqrt)))
	register(PrimSin, monImpl("take the sine of", monNumOp("take the sine of", math.Sin)))
	register(PrimCos, monImpl("take the cosine of", monNumOp("take the cosine of", math.Cos)))
	register(PrimTan, monImpl("take the tangent of", monNumOp("take the tangent of", math.Tan)))
	register(PrimAsin, monImpl("take the arcsine of", monNumOp("take the arcsine of", math.Asin)))
	register(PrimAcos, monImpl("take the arccosine of", monNumOp("take the arccosine of", math.Acos)))
	register(PrimFloor, monImpl("take the floor of", monIntFixOp("take the floor of", math.Floor)))
	register(PrimCeil, monImpl("take the ceiling of", monIntFixOp("take the ceiling of", math.Ceil)))
	register(PrimRound, monImpl("round", monIntFixOp("round", math.Round)))

	register(PrimAdd, dyImpl("add", addValues))
	register(PrimSub, dyImpl("subtract", subValues))
	register(PrimMul, dyImpl("multiply", dyNumOp("multiply", func(x, y float64) float64 { return x * y })))
	register(PrimDiv, dyImpl("divide", dyNumOp("divide", func(x, y float64) float64 { return y / x })))
	register(PrimMod, dyImpl("take the modulus of", dyNumOp("take the modulus of", modKernel)))
	register(PrimPow, dyImpl("exponentiate", dyNumOp("exponentiate", func(x, y float64) float64 { return math.Pow(y, x) })))
	register(PrimLog, dyImpl("take the logarithm of", dyNumOp("take the logarithm of", func(x, y float64) float64 { return math.Log(y) / math.Log(x) })))
	register(PrimMin, dyImpl("compare", minMaxOp("take the minimum of", math.Min, minByte, minRune)))
	register(PrimMax, dyImpl("compare", minMaxOp("take the maximum of", math.Max, maxByte, maxRune)))
	register(PrimAtan, dyImpl("take the arctangent of", dyNumOp("take the arctangent of", func(x, y float64) float64 { return math.Atan2(y, x) })))

	register(PrimEq, dyImpl("compare", cmpOp("compare",
		func(x, y float64) byte { return b1(y == x) },
		func(cx, cy rune) byte { return b1(cy == cx) }, 0, 0)))
	register(PrimNe, dyImpl("compare", cmpOp("compare",
		func(x, y float64) byte { return b1(y != x) },
		func(cx, cy rune) byte { return b1(cy != cx) }, 1, 1)))
	register(PrimLt, dyImpl("compare", cmpOp("compare",
		func(x, y float64) byte { return b1(y < x) },
		func(cx, cy rune) byte { return b1(cy < cx) }, 1, 0)))
	register(PrimLe, dyImpl("compare", cmpOp("compare",
		func(x, y float64) byte { return b1(y <= x) },
		func(cx, cy rune) byte { return b1(cy <= cx) }, 1, 0)))
	register(PrimGt, dyImpl("compare", cmpOp("compare",
		func(x, y float64) byte { return b1(y > x) },
		func(cx, cy rune) byte { return b1(cy > cx) }, 0, 1)))
	register(PrimGe, dyImpl("compare", cmpOp("compare",
		func(x, y float64) byte { return b1(y >= x) },
		func(cx, cy rune) byte { return b1(cy >= cx) }, 0, 1)))

	register(PrimRand, func(m *Machine) error {
		m.push(Num(m.rng.Float64()))
		return nil
	})
}

// ---------------------------------------------------------------------------
// Adapters
// ---------------------------------------------------------------------------

func monImpl(verb string, op func(int, Value) (Value, error)) func(*Machine) error {
	return func(m *Machine) error {
		v, err := m.pop(verb)
		if err != nil {
			return err
		}
		res, err := op(m.workers, v)
		if err != nil {
			return err
		}
		m.push(res)
		return nil
	}
}

func dyImpl(verb string, op func(int, Value, Value) (Value, error)) func(*Machine) error {
	return func(m *Machine) error {
		a, err := m.pop(verb)
		if err != nil {
			return err
		}
		b, err := m.pop(verb)
		if err != nil {
			return err
		}
		res, err := op(m.workers, a, b)
		if err != nil {
			return err
		}
		m.push(res)
		return nil
	}
}

func boxOperand(a, b Value) bool {
	_, ba := a.(*Array[Boxed])
	_, bb := b.(*Array[Boxed])
	return ba || bb
}

func b1(cond bool) byte {
	if cond {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// Monadic operations
// ---------------------------------------------------------------------------

// monNumOp builds a monadic operation over numbers. Bytes promote,
// boxes recurse into their contents, characters and functions are
// rejected.
func monNumOp(verb string, f func(float64) float64) func(int, Value) (Value, error) {
	var op func(int, Value) (Value, error)
	op = func(w int, v Value) (Value, error) {
		if bx, ok := v.(*Array[Boxed]); ok {
			return monBox(w, bx, op)
		}
		return pervadeNum1(w, verb, v, f)
	}
	return op
}

// monIntFixOp is monNumOp for functions that fix integers; byte arrays
// pass through untouched.
func monIntFixOp(verb string, f func(float64) float64) func(int, Value) (Value, error) {
	var op func(int, Value) (Value, error)
	op = func(w int, v Value) (Value, error) {
		switch a := v.(type) {
		case *Array[Boxed]:
			return monBox(w, a, op)
		case *Array[byte]:
			return a, nil
		}
		return pervadeNum1(w, verb, v, f)
	}
	return op
}

func signValues(w int, v Value) (Value, error) {
	switch a := v.(type) {
	case *Array[Boxed]:
		return monBox(w, a, signValues)
	case *Array[byte]:
		return pervade1(w, a, func(x byte) byte {
			if x > 1 {
				return 1
			}
			return x
		}), nil
	}
	return pervadeNum1(w, "take the sign of", v, func(x float64) float64 {
		switch {
		case math.IsNaN(x):
			return x
		case x > 0:
			return 1
		case x < 0:
			return -1
		default:
			return 0
		}
	})
}

// ---------------------------------------------------------------------------
// Dyadic operations
// ---------------------------------------------------------------------------

// dyNumOp builds a numbers-only dyadic operation with box recursion.
// The kernel receives the first-popped operand as x.
func dyNumOp(verb string, f func(x, y float64) float64) func(int, Value, Value) (Value, error) {
	var op func(int, Value, Value) (Value, error)
	op = func(w int, a, b Value) (Value, error) {
		if boxOperand(a, b) {
			return pervadeBox2(boxCells(a), boxCells(b), func(x, y Value) (Value, error) { return op(w, x, y) })
		}
		return pervadeNum2(w, verb, a, b, f)
	}
	return op
}

// modKernel is a flooring modulus; the result takes the sign of the
// divisor x.
func modKernel(x, y float64) float64 {
	r := math.Mod(y, x)
	if r != 0 && (r < 0) != (x < 0) {
		r += x
	}
	return r
}

func addValues(w int, a, b Value) (Value, error) {
	if boxOperand(a, b) {
		return pervadeBox2(boxCells(a), boxCells(b), func(x, y Value) (Value, error) { return addValues(w, x, y) })
	}
	ca, aChar := a.(*Array[rune])
	cb, bChar := b.(*Array[rune])
	switch {
	case aChar && bChar:
		return nil, kindErrorf([]Kind{KindChar, KindChar}, "cannot add characters to characters")
	case aChar:
		nb, err := asNumArray("add", b)
		if err != nil {
			return nil, err
		}
		return pervade2v(w, ca, nb, func(c rune, n float64) rune { return charShift(c, n) })
	case bChar:
		na, err := asNumArray("add", a)
		if err != nil {
			return nil, err
		}
		return pervade2v(w, na, cb, func(n float64, c rune) rune { return charShift(c, n) })
	default:
		return pervadeNum2(w, "add", a, b, func(x, y float64) float64 { return x + y })
	}
}

func subValues(w int, a, b Value) (Value, error) {
	if boxOperand(a, b) {
		return pervadeBox2(boxCells(a), boxCells(b), func(x, y Value) (Value, error) { return subValues(w, x, y) })
	}
	ca, aChar := a.(*Array[rune])
	cb, bChar := b.(*Array[rune])
	switch {
	case aChar && bChar:
		// Subtracting characters measures their codepoint distance.
		return pervade2v(w, ca, cb, func(cx, cy rune) float64 { return float64(cy) - float64(cx) })
	case bChar:
		na, err := asNumArray("subtract", a)
		if err != nil {
			return nil, err
		}
		return pervade2v(w, na, cb, func(n float64, c rune) rune { return charShift(c, -n) })
	case aChar:
		return nil, kindErrorf([]Kind{KindChar, b.Kind()}, "cannot subtract a character from a number")
	default:
		return pervadeNum2(w, "subtract", a, b, func(x, y float64) float64 { return y - x })
	}
}

func minByte(x, y byte) byte {
	if y < x {
		return y
	}
	return x
}

func maxByte(x, y byte) byte {
	if y > x {
		return y
	}
	return x
}

func minRune(x, y rune) rune {
	if y < x {
		return y
	}
	return x
}

func maxRune(x, y rune) rune {
	if y > x {
		return y
	}
	return x
}

// minMaxOp keeps byte operands byte and orders characters by
// codepoint; characters and numbers do not mix.
func minMaxOp(verb string, fn func(x, y float64) float64, fb func(x, y byte) byte, fc func(x, y rune) rune) func(int, Value, Value) (Value, error) {
	var op func(int, Value, Value) (Value, error)
	op = func(w int, a, b Value) (Value, error) {
		if boxOperand(a, b) {
			return pervadeBox2(boxCells(a), boxCells(b), func(x, y Value) (Value, error) { return op(w, x, y) })
		}
		if ba, ok := a.(*Array[byte]); ok {
			if bb, ok := b.(*Array[byte]); ok {
				return pervade2v(w, ba, bb, fb)
			}
		}
		ca, aChar := a.(*Array[rune])
		cb, bChar := b.(*Array[rune])
		switch {
		case aChar && bChar:
			return pervade2v(w, ca, cb, fc)
		case aChar || bChar:
			return nil, kindErrorf([]Kind{a.Kind(), b.Kind()}, "cannot %s a character and a number", verb)
		default:
			return pervadeNum2(w, verb, a, b, fn)
		}
	}
	return op
}

// cmpOp builds an ordered comparison producing bytes. Characters
// compare by codepoint; a character never equals a number and always
// orders after one.
func cmpOp(verb string, fn func(x, y float64) byte, fc func(cx, cy rune) byte, whenAChar, whenBChar byte) func(int, Value, Value) (Value, error) {
	var op func(int, Value, Value) (Value, error)
	op = func(w int, a, b Value) (Value, error) {
		if boxOperand(a, b) {
			return pervadeBox2(boxCells(a), boxCells(b), func(x, y Value) (Value, error) { return op(w, x, y) })
		}
		ca, aChar := a.(*Array[rune])
		cb, bChar := b.(*Array[rune])
		switch {
		case aChar && bChar:
			return pervade2v(w, ca, cb, fc)
		case aChar:
			nb, err := asNumArray(verb, b)
			if err != nil {
				return nil, err
			}
			c := whenAChar
			return pervade2v(w, ca, nb, func(rune, float64) byte { return c })
		case bChar:
			na, err := asNumArray(verb, a)
			if err != nil {
				return nil, err
			}
			c := whenBChar
			return pervade2v(w, na, cb, func(float64, rune) byte { return c })
		default:
			na, err := asNumArray(verb, a)
			if err != nil {
				return nil, err
			}
			nb, err := asNumArray(verb, b)
			if err != nil {
				return nil, err
			}
			return pervade2v(w, na, nb, fn)
		}
	}
	return op
}

// charShift moves a codepoint by an offset, truncating the offset
// toward zero. Results outside the valid range become U+FFFD.
func charShift(c rune, by float64) rune {
	n := int64(c) + int64(by)
	if n < 0 || n > 0x10FFFF || (n >= 0xD800 && n <= 0xDFFF) {
		return '�'
	}
	return rune(n)
}
