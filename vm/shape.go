package vm

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Shape
// ---------------------------------------------------------------------------

// Shape is an array's ordered dimension sizes. Rank is its length; the
// empty shape denotes a scalar.
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int { return len(s) }

// Elements returns the flat element count, the product of all dimensions.
func (s Shape) Elements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Clone returns an independent copy.
func (s Shape) Clone() Shape {
	if s == nil {
		return nil
	}
	return append(Shape{}, s...)
}

// Eq reports dimension-for-dimension equality.
func (s Shape) Eq(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i, d := range s {
		if o[i] != d {
			return false
		}
	}
	return true
}

// Rows returns the size of the leading axis. A scalar has one row.
func (s Shape) Rows() int {
	if len(s) == 0 {
		return 1
	}
	return s[0]
}

// Row returns the shape of a single row.
func (s Shape) Row() Shape {
	if len(s) == 0 {
		return nil
	}
	return s[1:]
}

// RowLen returns the flat element count of a single row.
func (s Shape) RowLen() int {
	return s.Row().Elements()
}

// IsPrefixOf reports whether s is a leading prefix of o. The scalar
// shape is a prefix of every shape.
func (s Shape) IsPrefixOf(o Shape) bool {
	if len(s) > len(o) {
		return false
	}
	for i, d := range s {
		if o[i] != d {
			return false
		}
	}
	return true
}

// WithRows returns s with the leading axis replaced by n, or [n] for a
// scalar shape.
func (s Shape) WithRows(n int) Shape {
	if len(s) == 0 {
		return Shape{n}
	}
	out := s.Clone()
	out[0] = n
	return out
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
