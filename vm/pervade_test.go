package vm

import "testing"

func TestPervadeScalarBroadcast(t *testing.T) {
	v := runPrim(t, PrimAdd, Nums(1, 2, 3), Num(10))
	if got := Show(v); got != "[11 12 13]" {
		t.Errorf("10 + [1 2 3] = %s, want [11 12 13]", got)
	}
}

func TestPervadePrefixBroadcast(t *testing.T) {
	// A list pairs each of its elements with a whole row of a matrix.
	m := NewArray(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	v := runPrim(t, PrimAdd, m, Nums(10, 20))
	if got := Show(v); got != "[[11 12 13] [24 25 26]]" {
		t.Errorf("[10 20] + matrix = %s, want [[11 12 13] [24 25 26]]", got)
	}
}

func TestPervadeShapeDisagreement(t *testing.T) {
	re := runPrimErr(t, PrimAdd, Nums(1, 2), Nums(1, 2, 3))
	if re.Kind != ShapeMismatch {
		t.Errorf("kind = %v, want shape mismatch", re.Kind)
	}
	if len(re.Shapes) != 2 {
		t.Errorf("error shapes = %v, want both operand shapes", re.Shapes)
	}
}

func TestPervadeSubtractOrder(t *testing.T) {
	// The second-from-top operand is the minuend.
	v := runPrim(t, PrimSub, Num(10), Num(3))
	if got := Show(v); got != "7" {
		t.Errorf("- 3 10 = %s, want 7", got)
	}
}

func TestPervadeDivideOrder(t *testing.T) {
	v := runPrim(t, PrimDiv, Num(10), Num(2))
	if got := Show(v); got != "5" {
		t.Errorf("÷ 2 10 = %s, want 5", got)
	}
}

func TestPervadeFlooringMod(t *testing.T) {
	tests := []struct {
		y, x float64
		want string
	}{
		{7, 3, "1"},
		{-7, 3, "2"},
		{7, -3, "¯2"},
		{-7, -3, "¯1"},
	}
	for _, tc := range tests {
		v := runPrim(t, PrimMod, Num(tc.y), Num(tc.x))
		if got := Show(v); got != tc.want {
			t.Errorf("%v mod %v = %s, want %s", tc.y, tc.x, got, tc.want)
		}
	}
}

func TestPervadeComparisonYieldsBytes(t *testing.T) {
	v := runPrim(t, PrimLt, Nums(1, 2, 3), Num(2))
	if v.Kind() != KindByte {
		t.Errorf("comparison kind = %v, want byte", v.Kind())
	}
	if got := Show(v); got != "[1 0 0]" {
		t.Errorf("< 2 [1 2 3] = %s, want [1 0 0]", got)
	}
}

func TestPervadeCharNumberOrdering(t *testing.T) {
	// A character never equals a number and always orders after one.
	if got := Show(runPrim(t, PrimEq, Num(97), Char('a'))); got != "0" {
		t.Errorf("= @a 97 = %s, want 0", got)
	}
	if got := Show(runPrim(t, PrimLt, Num(97), Char('a'))); got != "1" {
		t.Errorf("< @a 97 = %s, want 1", got)
	}
	if got := Show(runPrim(t, PrimGt, Num(97), Char('a'))); got != "0" {
		t.Errorf("> @a 97 = %s, want 0", got)
	}
}

func TestPervadeCharShift(t *testing.T) {
	if got := Show(runPrim(t, PrimAdd, Char('a'), Num(2))); got != "@c" {
		t.Errorf("+ 2 @a = %s, want @c", got)
	}
	if got := Show(runPrim(t, PrimSub, Char('e'), Num(1))); got != "@d" {
		t.Errorf("- 1 @e = %s, want @d", got)
	}
}

func TestPervadeCharDistance(t *testing.T) {
	v := runPrim(t, PrimSub, Char('e'), Char('a'))
	if v.Kind() != KindNum {
		t.Fatalf("character distance kind = %v, want number", v.Kind())
	}
	if got := Show(v); got != "4" {
		t.Errorf("- @a @e = %s, want 4", got)
	}
}

func TestPervadeCharAddCharFails(t *testing.T) {
	re := runPrimErr(t, PrimAdd, Char('a'), Char('b'))
	if re.Kind != TypeMismatch {
		t.Errorf("kind = %v, want type mismatch", re.Kind)
	}
}

func TestPervadeMinKeepsBytes(t *testing.T) {
	v := runPrim(t, PrimMin, List([]byte{1, 5, 3}), List([]byte{4, 2, 3}))
	if v.Kind() != KindByte {
		t.Errorf("min of bytes kind = %v, want byte", v.Kind())
	}
	if got := Show(v); got != "[1 2 3]" {
		t.Errorf("min = %s, want [1 2 3]", got)
	}
}

func TestPervadeMaxOfChars(t *testing.T) {
	v := runPrim(t, PrimMax, FromString("adz"), FromString("bca"))
	if got := Show(v); got != `"bdz"` {
		t.Errorf("max of strings = %s, want \"bdz\"", got)
	}
}

func TestPervadeBoxRecursion(t *testing.T) {
	v := runPrim(t, PrimAdd, Box(Nums(1, 2)), Num(10))
	b, ok := v.(*Array[Boxed])
	if !ok {
		t.Fatalf("result = %T, want a box array", v)
	}
	if got := Show(b); got != "□[11 12]" {
		t.Errorf("10 + boxed = %s, want □[11 12]", got)
	}
}

func TestPervadeFloorPassesBytesThrough(t *testing.T) {
	v := runPrim(t, PrimFloor, List([]byte{1, 2}))
	if v.Kind() != KindByte {
		t.Errorf("floor of bytes kind = %v, want byte", v.Kind())
	}
}

func TestPervadeNotRejectsCharacters(t *testing.T) {
	re := runPrimErr(t, PrimNot, Char('a'))
	if re.Kind != TypeMismatch {
		t.Errorf("kind = %v, want type mismatch", re.Kind)
	}
}

func TestParallelForCoversRange(t *testing.T) {
	n := pervadeParallelMin + 17
	seen := make([]int32, n)
	parallelFor(n, 4, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			seen[i]++
		}
	})
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times", i, c)
		}
	}
}
