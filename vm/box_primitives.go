package vm

func init() {
	register(PrimBox, primBox)
	register(PrimUnbox, primUnbox)
}

func primBox(m *Machine) error {
	v, err := m.pop("box")
	if err != nil {
		return err
	}
	m.push(Scalar(Boxed{V: v}))
	return nil
}

func primUnbox(m *Machine) error {
	v, err := m.pop("unbox")
	if err != nil {
		return err
	}
	bx, ok := v.(*Array[Boxed])
	if !ok {
		return kindErrorf([]Kind{v.Kind()}, "cannot unbox a %v", v.Kind())
	}
	if bx.Rank() != 0 {
		return shapeErrorf([]Shape{bx.Shape().Clone()}, "cannot unbox an array of boxes")
	}
	inner := bx.elems()[0].V.Retain()
	bx.Release()
	m.push(inner)
	return nil
}
