package vm

import "testing"

func TestShapeElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{nil, 1},
		{Shape{0}, 0},
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{2, 0, 4}, 0},
	}

	for _, tc := range tests {
		if got := tc.shape.Elements(); got != tc.want {
			t.Errorf("%v.Elements() = %d, want %d", tc.shape, got, tc.want)
		}
	}
}

func TestShapeRows(t *testing.T) {
	if got := (Shape{}).Rows(); got != 1 {
		t.Errorf("scalar rows = %d, want 1", got)
	}
	if got := (Shape{4, 2}).Rows(); got != 4 {
		t.Errorf("[4 2] rows = %d, want 4", got)
	}
	if got := (Shape{4, 2}).RowLen(); got != 2 {
		t.Errorf("[4 2] row length = %d, want 2", got)
	}
	if got := (Shape{4, 2, 3}).Row(); !got.Eq(Shape{2, 3}) {
		t.Errorf("[4 2 3] row shape = %v, want [2 3]", got)
	}
	if got := (Shape{}).Row(); got != nil {
		t.Errorf("scalar row shape = %v, want nil", got)
	}
}

func TestShapeIsPrefixOf(t *testing.T) {
	tests := []struct {
		s, o Shape
		want bool
	}{
		{nil, Shape{3, 4}, true},
		{Shape{3}, Shape{3, 4}, true},
		{Shape{3, 4}, Shape{3, 4}, true},
		{Shape{4}, Shape{3, 4}, false},
		{Shape{3, 4, 5}, Shape{3, 4}, false},
	}

	for _, tc := range tests {
		if got := tc.s.IsPrefixOf(tc.o); got != tc.want {
			t.Errorf("%v.IsPrefixOf(%v) = %v, want %v", tc.s, tc.o, got, tc.want)
		}
	}
}

func TestShapeWithRows(t *testing.T) {
	s := Shape{3, 4}
	got := s.WithRows(7)
	if !got.Eq(Shape{7, 4}) {
		t.Errorf("WithRows(7) = %v, want [7 4]", got)
	}
	if s[0] != 3 {
		t.Error("WithRows mutated the receiver")
	}
	if got := (Shape{}).WithRows(2); !got.Eq(Shape{2}) {
		t.Errorf("scalar WithRows(2) = %v, want [2]", got)
	}
}

func TestShapeCloneIsIndependent(t *testing.T) {
	s := Shape{1, 2}
	c := s.Clone()
	c[0] = 9
	if s[0] != 1 {
		t.Error("Clone shares backing storage with the original")
	}
	if Shape(nil).Clone() != nil {
		t.Error("nil shape should clone to nil")
	}
}

func TestShapeString(t *testing.T) {
	if got := (Shape{2, 3}).String(); got != "[2 3]" {
		t.Errorf("String = %q, want [2 3]", got)
	}
	if got := (Shape{}).String(); got != "[]" {
		t.Errorf("scalar String = %q, want []", got)
	}
}
