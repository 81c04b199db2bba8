package vm

func init() {
	register(PrimDup, primDup)
	register(PrimOver, primOver)
	register(PrimFlip, primFlip)
	register(PrimPop, primPop)
	register(PrimIdentity, func(*Machine) error { return nil })
	register(PrimCall, primCall)
}

func primDup(m *Machine) error {
	v, err := m.pop("dup")
	if err != nil {
		return err
	}
	m.push(v)
	m.push(v.Retain())
	return nil
}

func primOver(m *Machine) error {
	a, err := m.pop("over")
	if err != nil {
		return err
	}
	b, err := m.pop("over")
	if err != nil {
		return err
	}
	m.push(b)
	m.push(a)
	m.push(b.Retain())
	return nil
}

func primFlip(m *Machine) error {
	a, err := m.pop("flip")
	if err != nil {
		return err
	}
	b, err := m.pop("flip")
	if err != nil {
		return err
	}
	m.push(a)
	m.push(b)
	return nil
}

func primPop(m *Machine) error {
	v, err := m.pop("pop")
	if err != nil {
		return err
	}
	v.Release()
	return nil
}

// primCall invokes a function value. Calling anything else leaves it
// where it was.
func primCall(m *Machine) error {
	v, err := m.pop("call")
	if err != nil {
		return err
	}
	fv, ok := v.(*FnValue)
	if !ok {
		m.push(v)
		return nil
	}
	return m.callValue(fv)
}
