package vm

import "testing"

func TestConstructors(t *testing.T) {
	n := Num(2.5)
	if n.Kind() != KindNum || n.Rank() != 0 {
		t.Errorf("Num: kind %v rank %d, want scalar number", n.Kind(), n.Rank())
	}
	c := Char('q')
	if c.Kind() != KindChar || c.Rank() != 0 {
		t.Errorf("Char: kind %v rank %d, want scalar character", c.Kind(), c.Rank())
	}
	s := FromString("héllo")
	if s.Kind() != KindChar || !s.Shape().Eq(Shape{5}) {
		t.Errorf("FromString: kind %v shape %v, want 5 characters", s.Kind(), s.Shape())
	}
	b := Box(Nums(1, 2))
	if b.Kind() != KindBox || b.Rank() != 0 {
		t.Errorf("Box: kind %v rank %d, want scalar box", b.Kind(), b.Rank())
	}
}

func TestToString(t *testing.T) {
	if got, ok := ToString(FromString("abc")); !ok || got != "abc" {
		t.Errorf("ToString = %q %v, want abc true", got, ok)
	}
	if got, ok := ToString(Char('x')); !ok || got != "x" {
		t.Errorf("ToString of a scalar = %q %v, want x true", got, ok)
	}
	if _, ok := ToString(Nums(1, 2)); ok {
		t.Error("ToString accepted a number array")
	}
	if _, ok := ToString(NewArray(Shape{1, 2}, []rune("ab"))); ok {
		t.Error("ToString accepted a rank-2 character array")
	}
}

func TestArrayRow(t *testing.T) {
	a := NewArray(Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	r := a.Row(1)
	if !r.Shape().Eq(Shape{3}) {
		t.Fatalf("row shape = %v, want [3]", r.Shape())
	}
	got := r.(*Array[float64]).elems()
	for i, want := range []float64{4, 5, 6} {
		if got[i] != want {
			t.Errorf("row[%d] = %v, want %v", i, got[i], want)
		}
	}

	// A materialized row is independent of its source.
	r.(*Array[float64]).mutElems()[0] = 99
	if a.elems()[3] != 4 {
		t.Error("writing a row changed the source array")
	}
}

func TestStorageCopyOnWrite(t *testing.T) {
	s := newStorage([]float64{1, 2, 3})
	if !s.unique() {
		t.Fatal("fresh storage is not unique")
	}
	s.retain()
	if s.unique() {
		t.Fatal("retained storage reports unique")
	}
	if m := s.mut(); m == s {
		t.Error("mut on shared storage returned the same buffer")
	}
	s.release()
	if m := s.mut(); m != s {
		t.Error("mut on unique storage cloned needlessly")
	}
}

func TestArrayMutElemsClonesSharedStorage(t *testing.T) {
	a := List([]float64{1, 2, 3})
	b := a.reshaped(Shape{3, 1})
	b.mutElems()[0] = 42
	if a.elems()[0] != 1 {
		t.Error("mutating one sharer changed the other")
	}
}

func TestFromRowsEmpty(t *testing.T) {
	v, err := fromRows(nil, nil)
	if err != nil {
		t.Fatalf("fromRows(nil): %v", err)
	}
	if v.Kind() != KindNum || !v.Shape().Eq(Shape{0}) {
		t.Errorf("empty rows = %v %v, want an empty number list", v.Kind(), v.Shape())
	}
}

func TestFromRowsStacksLists(t *testing.T) {
	v, err := fromRows([]Value{Nums(1, 2), Nums(3, 4)}, nil)
	if err != nil {
		t.Fatalf("fromRows: %v", err)
	}
	if !v.Shape().Eq(Shape{2, 2}) {
		t.Errorf("shape = %v, want [2 2]", v.Shape())
	}
}

func TestFromRowsPromotesMixedNumerics(t *testing.T) {
	v, err := fromRows([]Value{Scalar[byte](1), Num(2.5)}, nil)
	if err != nil {
		t.Fatalf("fromRows: %v", err)
	}
	if v.Kind() != KindNum {
		t.Errorf("kind = %v, want number", v.Kind())
	}
}

func TestFromRowsRejectsMixedKinds(t *testing.T) {
	_, err := fromRows([]Value{Num(1), Char('a')}, nil)
	if err == nil {
		t.Fatal("expected an error mixing numbers and characters")
	}
	if re, ok := err.(*RuntimeError); !ok || re.Kind != TypeMismatch {
		t.Errorf("error = %v, want a type mismatch", err)
	}
}

func TestFromRowsRejectsFunctions(t *testing.T) {
	fn := &FnValue{Fn: &Function{Name: "f", Prog: &Program{}}}
	_, err := fromRows([]Value{fn, fn}, nil)
	if err == nil {
		t.Fatal("expected an error stacking functions")
	}
}

func TestStackRowsRaggedWithoutFill(t *testing.T) {
	_, err := fromRows([]Value{Nums(1, 2), Nums(3, 4, 5)}, nil)
	re, ok := err.(*RuntimeError)
	if !ok || re.Kind != ShapeMismatch {
		t.Fatalf("error = %v, want a shape mismatch", err)
	}
	if len(re.Shapes) != 2 {
		t.Errorf("error shapes = %v, want both row shapes", re.Shapes)
	}
}

func TestStackRowsRaggedWithFill(t *testing.T) {
	v, err := fromRows([]Value{Nums(1, 2), Nums(3, 4, 5)}, Num(0))
	if err != nil {
		t.Fatalf("fromRows with fill: %v", err)
	}
	if !v.Shape().Eq(Shape{2, 3}) {
		t.Fatalf("shape = %v, want [2 3]", v.Shape())
	}
	got := v.(*Array[float64]).elems()
	for i, want := range []float64{1, 2, 0, 3, 4, 5} {
		if got[i] != want {
			t.Errorf("elems[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestStackRowsDifferingRank(t *testing.T) {
	_, err := fromRows([]Value{Nums(1, 2), Num(3)}, Num(0))
	re, ok := err.(*RuntimeError)
	if !ok || re.Kind != ShapeMismatch {
		t.Fatalf("error = %v, want a shape mismatch even with a fill", err)
	}
}

func TestStackRowsNumericFillPromotesBytes(t *testing.T) {
	rows := []Value{List([]byte{1, 2}), List([]byte{3, 4, 5})}
	v, err := fromRows(rows, Num(0.5))
	if err != nil {
		t.Fatalf("fromRows: %v", err)
	}
	if v.Kind() != KindNum {
		t.Errorf("kind = %v, want number after a fractional fill", v.Kind())
	}
}

func TestAsIntErrors(t *testing.T) {
	if _, err := asInt(Nums(1, 2)); err == nil {
		t.Error("asInt accepted a list")
	}
	if _, err := asInt(Num(1.5)); err == nil {
		t.Error("asInt accepted a fraction")
	}
	if n, err := asInt(Scalar[byte](7)); err != nil || n != 7 {
		t.Errorf("asInt(byte 7) = %d %v, want 7", n, err)
	}
}
