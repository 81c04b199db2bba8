package vm

import "slices"

func init() {
	register(PrimRise, primRise)
	register(PrimFall, primFall)
	register(PrimMatch, primMatch)
}

func primRise(m *Machine) error {
	return grade(m, "rise", false)
}

func primFall(m *Machine) error {
	return grade(m, "fall", true)
}

// grade pushes the row permutation that sorts v. The sort is stable,
// so equal rows keep their original order under both directions.
func grade(m *Machine, verb string, desc bool) error {
	v, err := m.pop(verb)
	if err != nil {
		return err
	}
	if err := noFn(verb, v); err != nil {
		return err
	}
	if v.Rank() == 0 {
		return shapeErrorf([]Shape{v.Shape().Clone()}, "cannot %s a scalar", verb)
	}
	if _, ok := v.(*Array[Boxed]); ok {
		return kindErrorf([]Kind{v.Kind()}, "cannot %s boxes", verb)
	}
	idx := make([]int, v.Rows())
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		if desc {
			return rowCmp(v, b, a)
		}
		return rowCmp(v, a, b)
	})
	out := make([]float64, len(idx))
	for i, x := range idx {
		out[i] = float64(x)
	}
	v.Release()
	m.push(List(out))
	return nil
}

func primMatch(m *Machine) error {
	a, err := m.pop("match")
	if err != nil {
		return err
	}
	b, err := m.pop("match")
	if err != nil {
		return err
	}
	m.push(Scalar(b1(valuesMatch(a, b))))
	a.Release()
	b.Release()
	return nil
}
