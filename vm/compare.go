package vm

import "math"

// ---------------------------------------------------------------------------
// Structural equality and ordering
// ---------------------------------------------------------------------------

// eqNum is numeric equality where NaN equals NaN. Structural comparison
// must be an equivalence relation or grading and matching would not be
// deterministic.
func eqNum(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// cmpNum is a total order over numbers with NaN after everything.
func cmpNum(a, b float64) int {
	switch {
	case eqNum(a, b):
		return 0
	case math.IsNaN(a):
		return 1
	case math.IsNaN(b):
		return -1
	case a < b:
		return -1
	default:
		return 1
	}
}

// valuesMatch is deep structural equality: same shape, elementwise
// equal, with bytes and numbers comparing numerically.
func valuesMatch(a, b Value) bool {
	if !a.Shape().Eq(b.Shape()) {
		return false
	}
	ka, kb := a.Kind(), b.Kind()
	if ka != kb && !(ka.IsNumeric() && kb.IsNumeric()) {
		return false
	}
	return flatEq(a, 0, b, 0, a.FlatLen())
}

// flatEq compares n flat elements of a starting at ai against n flat
// elements of b starting at bi.
func flatEq(a Value, ai int, b Value, bi, n int) bool {
	switch x := a.(type) {
	case *Array[float64]:
		switch y := b.(type) {
		case *Array[float64]:
			xe, ye := x.elems(), y.elems()
			for i := 0; i < n; i++ {
				if !eqNum(xe[ai+i], ye[bi+i]) {
					return false
				}
			}
			return true
		case *Array[byte]:
			xe, ye := x.elems(), y.elems()
			for i := 0; i < n; i++ {
				if !eqNum(xe[ai+i], float64(ye[bi+i])) {
					return false
				}
			}
			return true
		}
	case *Array[byte]:
		switch y := b.(type) {
		case *Array[byte]:
			xe, ye := x.elems(), y.elems()
			for i := 0; i < n; i++ {
				if xe[ai+i] != ye[bi+i] {
					return false
				}
			}
			return true
		case *Array[float64]:
			return flatEq(y, bi, x, ai, n)
		}
	case *Array[rune]:
		if y, ok := b.(*Array[rune]); ok {
			xe, ye := x.elems(), y.elems()
			for i := 0; i < n; i++ {
				if xe[ai+i] != ye[bi+i] {
					return false
				}
			}
			return true
		}
	case *Array[Boxed]:
		if y, ok := b.(*Array[Boxed]); ok {
			xe, ye := x.elems(), y.elems()
			for i := 0; i < n; i++ {
				if !valuesMatch(xe[ai+i].V, ye[bi+i].V) {
					return false
				}
			}
			return true
		}
	case *FnValue:
		if y, ok := b.(*FnValue); ok {
			return x.Fn == y.Fn
		}
	}
	return false
}

// rowCmp lexicographically compares rows ri and rj of a single array.
// Callers reject box and function operands before ordering.
func rowCmp(v Value, ri, rj int) int {
	rl := v.Shape().RowLen()
	switch a := v.(type) {
	case *Array[float64]:
		xs := a.elems()
		for k := 0; k < rl; k++ {
			if c := cmpNum(xs[ri*rl+k], xs[rj*rl+k]); c != 0 {
				return c
			}
		}
	case *Array[byte]:
		xs := a.elems()
		for k := 0; k < rl; k++ {
			x, y := xs[ri*rl+k], xs[rj*rl+k]
			if x != y {
				if x < y {
					return -1
				}
				return 1
			}
		}
	case *Array[rune]:
		xs := a.elems()
		for k := 0; k < rl; k++ {
			x, y := xs[ri*rl+k], xs[rj*rl+k]
			if x != y {
				if x < y {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}
