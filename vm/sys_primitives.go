package vm

func init() {
	register(PrimSysPrint, primSysPrint)
	register(PrimSysFileRead, primSysFileRead)
	register(PrimSysFileWrite, primSysFileWrite)
	register(PrimSysNow, primSysNow)
	register(PrimSysArgs, primSysArgs)
}

func sysErr(name string, err error) error {
	return runtimeErrorf(SysFailure, "%s: %v", name, err)
}

// primSysPrint writes a value and a newline. Character arrays print
// raw; everything else prints in value notation.
func primSysPrint(m *Machine) error {
	v, err := m.pop("&p")
	if err != nil {
		return err
	}
	s, ok := ToString(v)
	if !ok {
		s = Show(v)
	}
	if err := m.sys.Print(s + "\n"); err != nil {
		return sysErr("&p", err)
	}
	v.Release()
	return nil
}

func primSysFileRead(m *Machine) error {
	v, err := m.pop("&fr")
	if err != nil {
		return err
	}
	path, ok := ToString(v)
	if !ok {
		return valueErrorf("&fr requires a path string, got a %v", v)
	}
	data, err := m.sys.FileRead(path)
	if err != nil {
		return sysErr("&fr", err)
	}
	v.Release()
	m.push(FromString(data))
	return nil
}

func primSysFileWrite(m *Machine) error {
	pv, err := m.pop("&fw")
	if err != nil {
		return err
	}
	cv, err := m.pop("&fw")
	if err != nil {
		return err
	}
	path, ok := ToString(pv)
	if !ok {
		return valueErrorf("&fw requires a path string, got a %v", pv)
	}
	content, ok := ToString(cv)
	if !ok {
		return valueErrorf("&fw writes character data, got a %v", cv)
	}
	if err := m.sys.FileWrite(path, content); err != nil {
		return sysErr("&fw", err)
	}
	pv.Release()
	cv.Release()
	return nil
}

func primSysNow(m *Machine) error {
	m.push(Num(m.sys.Now()))
	return nil
}

func primSysArgs(m *Machine) error {
	argv := m.sys.Args()
	boxes := make([]Boxed, len(argv))
	for i, s := range argv {
		boxes[i] = Boxed{V: FromString(s)}
	}
	m.push(List(boxes))
	return nil
}
