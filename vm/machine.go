package vm

import (
	"context"
	"math/rand/v2"
	"runtime"
)

// ---------------------------------------------------------------------------
// Machine
// ---------------------------------------------------------------------------

// pollInterval is how many instructions run between cancellation
// checks.
const pollInterval = 128

// scope is one entry in the scope arena. Scopes are addressed by
// index so that function values can keep a handle to their defining
// scope without creating ownership cycles. Entries live until the end
// of the run; a handle held by an escaped function value stays valid.
type scope struct {
	parent   int // arena index, -1 above the root
	bindings map[string]Value
}

// frame is one active call. All frames share the machine's value
// stack; a frame only tracks where to resume.
type frame struct {
	prog  *Program
	ip    int
	scope int
}

// Machine executes compiled programs. A machine may be reused for any
// number of runs, including after a failed one; stack and scopes are
// per-run state. It is not safe for concurrent use.
type Machine struct {
	workers int
	rng     *rand.Rand
	sys     SysBackend
	globals map[string]Value

	ctx    context.Context
	budget int
	fill   Value // scalar fill, nil when disabled
	stack  []Value
	scopes []scope
	frames []frame
}

// Option configures a Machine.
type Option func(*Machine)

// WithSys sets the system backend used by the &-primitives.
func WithSys(sys SysBackend) Option {
	return func(m *Machine) { m.sys = sys }
}

// WithSeed makes the random primitive deterministic.
func WithSeed(seed uint64) Option {
	return func(m *Machine) { m.rng = rand.New(rand.NewPCG(seed, 0)) }
}

// WithWorkers caps the goroutines used for large elementwise
// operations. One worker forces sequential execution.
func WithWorkers(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithGlobals gives the machine a binding table that outlives single
// runs. Before each run its entries seed the root scope; after a
// successful run the root scope's bindings are written back. The REPL
// uses this to carry definitions from line to line.
func WithGlobals(globals map[string]Value) Option {
	return func(m *Machine) { m.globals = globals }
}

func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		workers: runtime.GOMAXPROCS(0),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sys:     NativeSys{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run executes a program against an initial stack and returns the
// final stack, bottom first. The initial values are retained, not
// consumed. A static program that declares more inputs than the
// initial stack holds fails before executing anything. Cancelling ctx
// stops execution between instructions.
func (m *Machine) Run(ctx context.Context, prog *Program, initial []Value) ([]Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !prog.Dynamic && prog.Sig.Args > len(initial) {
		return nil, runtimeErrorf(StackUnderflow,
			"program needs %d values but the stack has %d", prog.Sig.Args, len(initial))
	}

	m.ctx = ctx
	m.budget = pollInterval
	m.fill = nil
	m.stack = m.stack[:0]
	for _, v := range initial {
		m.push(v.Retain())
	}
	m.scopes = m.scopes[:0]
	m.scopes = append(m.scopes, scope{parent: -1})
	if len(m.globals) > 0 {
		root := &m.scopes[0]
		root.bindings = make(map[string]Value, len(m.globals))
		for name, v := range m.globals {
			root.bindings[name] = v.Retain()
		}
	}
	m.frames = m.frames[:0]
	m.frames = append(m.frames, frame{prog: prog})

	if err := m.exec(0); err != nil {
		for _, v := range m.stack {
			v.Release()
		}
		m.reset()
		return nil, err
	}

	if m.globals != nil {
		for name, v := range m.scopes[0].bindings {
			if old, ok := m.globals[name]; ok {
				if old == v {
					continue
				}
				old.Release()
			}
			m.globals[name] = v.Retain()
		}
	}
	out := append([]Value(nil), m.stack...)
	m.stack = m.stack[:0]
	m.reset()
	return out, nil
}

// reset drops per-run state, releasing scope-held values.
func (m *Machine) reset() {
	for i := range m.scopes {
		for _, v := range m.scopes[i].bindings {
			v.Release()
		}
	}
	m.scopes = m.scopes[:0]
	m.frames = m.frames[:0]
	m.stack = m.stack[:0]
	m.fill = nil
	m.ctx = nil
}

// ---------------------------------------------------------------------------
// Fetch-execute loop
// ---------------------------------------------------------------------------

// exec runs until the frame stack unwinds to base. Primitives that
// take function operands re-enter it to run them.
func (m *Machine) exec(base int) error {
	for len(m.frames) > base {
		fr := &m.frames[len(m.frames)-1]
		code := fr.prog.Code
		if fr.ip >= len(code) {
			m.frames = m.frames[:len(m.frames)-1]
			continue
		}

		m.budget--
		if m.budget <= 0 {
			m.budget = pollInterval
			if err := m.ctx.Err(); err != nil {
				return runtimeErrorf(Interrupted, "interrupted: %v", err)
			}
		}

		if fr.ip+3 > len(code) {
			return runtimeErrorf(TypeMismatch, "truncated instruction at %d", fr.ip)
		}
		op := Opcode(code[fr.ip])
		arg := uint16(code[fr.ip+1]) | uint16(code[fr.ip+2])<<8
		fr.ip += 3

		switch op {
		case OpPushConstant:
			c := fr.prog.Constants[arg]
			if fv, ok := c.(*FnValue); ok {
				// A function constant closes over the scope
				// where it is pushed, not where it was compiled.
				m.push(&FnValue{Fn: fv.Fn, Scope: fr.scope})
			} else {
				m.push(c.Retain())
			}

		case OpCallPrimitive:
			if err := m.callPrimitive(Primitive(arg)); err != nil {
				return err
			}

		case OpCallFunction:
			// Named functions are defined at the top level; their
			// defining scope is the root.
			if err := m.enterFunction(fr.prog.Functions[arg], 0); err != nil {
				return err
			}

		case OpBind:
			v, err := m.pop("binding")
			if err != nil {
				return err
			}
			sc := &m.scopes[fr.scope]
			name := fr.prog.Names[arg]
			if old, ok := sc.bindings[name]; ok {
				old.Release()
			}
			if sc.bindings == nil {
				sc.bindings = make(map[string]Value)
			}
			sc.bindings[name] = v

		case OpLoadBinding:
			name := fr.prog.Names[arg]
			v, ok := m.lookup(fr.scope, name)
			if !ok {
				return runtimeErrorf(TypeMismatch, "name %q is not bound to a value", name)
			}
			m.push(v.Retain())

		case OpBranch:
			fr.ip += int(int16(arg))

		case OpBranchZero:
			v, err := m.pop("branch condition")
			if err != nil {
				return err
			}
			zero, err := scalarIsZero(v)
			v.Release()
			if err != nil {
				return err
			}
			if zero {
				fr.ip += int(int16(arg))
			}

		case OpMakeArray:
			n := int(arg)
			if len(m.stack) < n {
				return runtimeErrorf(StackUnderflow,
					"array of %d values needs %d more on the stack", n, n-len(m.stack))
			}
			rows := make([]Value, n)
			for i := range rows {
				rows[i] = m.stack[len(m.stack)-1]
				m.stack = m.stack[:len(m.stack)-1]
			}
			v, err := fromRows(rows, m.fill)
			for _, r := range rows {
				r.Release()
			}
			if err != nil {
				return err
			}
			m.push(v)

		default:
			return runtimeErrorf(TypeMismatch, "invalid opcode %#02x", byte(op))
		}
	}
	return nil
}

// scalarIsZero reads a branch condition.
func scalarIsZero(v Value) (bool, error) {
	if v.Rank() != 0 {
		return false, shapeErrorf([]Shape{v.Shape().Clone()},
			"branch condition must be a scalar, got shape %v", v.Shape())
	}
	switch a := v.(type) {
	case *Array[float64]:
		return a.elems()[0] == 0, nil
	case *Array[byte]:
		return a.elems()[0] == 0, nil
	default:
		return false, kindErrorf([]Kind{v.Kind()}, "branch condition must be a number, got %s", v.Kind())
	}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// enterFunction pushes a call frame with a fresh scope under defScope.
// The function's body runs on the shared value stack.
func (m *Machine) enterFunction(fn *Function, defScope int) error {
	if !fn.Dynamic && fn.Sig.Args > len(m.stack) {
		return runtimeErrorf(StackUnderflow,
			"%s needs %d values but the stack has %d", fn, fn.Sig.Args, len(m.stack))
	}
	m.frames = append(m.frames, frame{prog: fn.Prog, scope: m.newScope(defScope)})
	return nil
}

// callValue runs a function value to completion and returns when its
// frame has unwound. Modifier primitives use this to apply their
// operands.
func (m *Machine) callValue(fv *FnValue) error {
	base := len(m.frames)
	if err := m.enterFunction(fv.Fn, fv.Scope); err != nil {
		return err
	}
	return m.exec(base)
}

// callPrimitive checks the declared arity and dispatches. Primitives
// with dynamic extra inputs check those as they pop.
func (m *Machine) callPrimitive(p Primitive) error {
	if need := p.Sig().Args; len(m.stack) < need {
		return runtimeErrorf(StackUnderflow,
			"%s needs %d values but the stack has %d", p, need, len(m.stack))
	}
	impl := primImpls[p]
	if impl == nil {
		return runtimeErrorf(TypeMismatch, "%s cannot be called as a value", p)
	}
	return impl(m)
}

// ---------------------------------------------------------------------------
// Stack and scopes
// ---------------------------------------------------------------------------

func (m *Machine) push(v Value) {
	m.stack = append(m.stack, v)
}

// pop removes the top value. what names the consumer for the
// underflow message.
func (m *Machine) pop(what string) (Value, error) {
	if len(m.stack) == 0 {
		return nil, runtimeErrorf(StackUnderflow, "%s needs a value but the stack is empty", what)
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// peek returns the top value without popping.
func (m *Machine) peek() (Value, bool) {
	if len(m.stack) == 0 {
		return nil, false
	}
	return m.stack[len(m.stack)-1], true
}

func (m *Machine) newScope(parent int) int {
	m.scopes = append(m.scopes, scope{parent: parent})
	return len(m.scopes) - 1
}

func (m *Machine) lookup(sc int, name string) (Value, bool) {
	for s := sc; s >= 0; s = m.scopes[s].parent {
		if v, ok := m.scopes[s].bindings[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// primImpls is the dispatch table, populated by the register functions
// in the primitive implementation files.
var primImpls [primCount]func(*Machine) error

func register(p Primitive, impl func(*Machine) error) {
	primImpls[p] = impl
}
