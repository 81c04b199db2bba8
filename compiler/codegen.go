package compiler

import (
	"github.com/chazu/quill/vm"
)

// ---------------------------------------------------------------------------
// Compiler
// ---------------------------------------------------------------------------

// Compile compiles source text into a runnable program.
func Compile(source string) (*vm.Program, error) {
	return NewCompiler().Compile(source)
}

// bindKind classifies what a name is bound to at compile time.
type bindKind int

const (
	bindValue bindKind = iota // bound at runtime, loaded from scope
	bindFunc                  // a named compiled function
)

type nameBinding struct {
	kind bindKind
	fn   *vm.Function
}

// Compiler turns parsed files into programs. The name environment
// persists across calls, so a REPL can feed it one line at a time and
// later lines see earlier definitions.
type Compiler struct {
	names   map[string]nameBinding
	primFns map[vm.Primitive]*vm.Function
}

// NewCompiler creates a compiler with an empty name environment.
func NewCompiler() *Compiler {
	return &Compiler{
		names:   make(map[string]nameBinding),
		primFns: make(map[vm.Primitive]*vm.Function),
	}
}

// Compile parses and compiles source text.
func (c *Compiler) Compile(source string) (*vm.Program, error) {
	file, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return c.CompileFile(file)
}

// CompileFile compiles a parsed file.
func (c *Compiler) CompileFile(file *File) (*vm.Program, error) {
	pb := newProgBuilder(c)
	for _, line := range file.Lines {
		var err error
		switch ln := line.(type) {
		case *Binding:
			err = pb.compileBinding(ln)
		case *ExprLine:
			err = pb.compileWords(ln.Words)
		}
		if err != nil {
			return nil, err
		}
	}
	return pb.finish(), nil
}

// primFunction wraps a primitive as a compiled function. The body is a
// single primitive call, which the machine recognizes when it looks for
// reduction identities and fast folds.
func (c *Compiler) primFunction(p vm.Primitive) *vm.Function {
	if fn, ok := c.primFns[p]; ok {
		return fn
	}
	code := vm.NewBytecodeBuilder()
	code.EmitUint16(vm.OpCallPrimitive, uint16(p))
	fn := &vm.Function{
		Name: p.Name(),
		Prog: &vm.Program{Code: code.Bytes(), Sig: p.Sig()},
		Sig:  p.Sig(),
	}
	if p == vm.PrimCall {
		fn.Dynamic = true
		fn.Prog.Dynamic = true
	}
	c.primFns[p] = fn
	return fn
}

// ---------------------------------------------------------------------------
// Stack effect tracking
// ---------------------------------------------------------------------------

// effect tracks the net stack motion of the code emitted so far. cur is
// the height relative to the start; min is the lowest point reached,
// which determines how many values the code needs from below.
type effect struct {
	cur     int
	min     int
	dynamic bool
}

func (e *effect) push(n int) { e.cur += n }

func (e *effect) pop(n int) {
	e.cur -= n
	if e.cur < e.min {
		e.min = e.cur
	}
}

func (e *effect) sig() vm.Signature {
	return vm.Signature{Args: -e.min, Outputs: e.cur - e.min}
}

// ---------------------------------------------------------------------------
// Program builder
// ---------------------------------------------------------------------------

// fnTables dedupes function references within one program. Builders
// that share a program share these.
type fnTables struct {
	consts map[*vm.Function]int
	calls  map[*vm.Function]int
}

type progBuilder struct {
	c    *Compiler
	prog *vm.Program
	code *vm.BytecodeBuilder
	eff  effect
	fns  *fnTables
}

func newProgBuilder(c *Compiler) *progBuilder {
	return &progBuilder{
		c:    c,
		prog: &vm.Program{},
		code: vm.NewBytecodeBuilder(),
		fns: &fnTables{
			consts: make(map[*vm.Function]int),
			calls:  make(map[*vm.Function]int),
		},
	}
}

// childCode makes a builder that emits into a separate instruction
// buffer but shares this builder's program tables. The inlined branch
// arms use it.
func (pb *progBuilder) childCode() *progBuilder {
	return &progBuilder{c: pb.c, prog: pb.prog, code: vm.NewBytecodeBuilder(), fns: pb.fns}
}

// finish seals the program with the inferred signature.
func (pb *progBuilder) finish() *vm.Program {
	pb.prog.Code = pb.code.Bytes()
	pb.prog.Sig = pb.eff.sig()
	pb.prog.Dynamic = pb.eff.dynamic
	return pb.prog
}

func (pb *progBuilder) pushConst(v vm.Value) {
	idx := pb.prog.AddConstant(v)
	pb.code.EmitUint16(vm.OpPushConstant, uint16(idx))
	pb.eff.push(1)
}

// pushFn pushes a function value constant.
func (pb *progBuilder) pushFn(fn *vm.Function) {
	idx, ok := pb.fns.consts[fn]
	if !ok {
		idx = pb.prog.AddConstant(&vm.FnValue{Fn: fn})
		pb.fns.consts[fn] = idx
	}
	pb.code.EmitUint16(vm.OpPushConstant, uint16(idx))
	pb.eff.push(1)
}

// callFn emits a call to a named function.
func (pb *progBuilder) callFn(fn *vm.Function) {
	idx, ok := pb.fns.calls[fn]
	if !ok {
		idx = pb.prog.AddFunction(fn)
		pb.fns.calls[fn] = idx
	}
	pb.code.EmitUint16(vm.OpCallFunction, uint16(idx))
	if fn.Dynamic {
		pb.eff.dynamic = true
		return
	}
	pb.eff.pop(fn.Sig.Args)
	pb.eff.push(fn.Sig.Outputs)
}

// callPrim emits a primitive call and applies its stack effect.
func (pb *progBuilder) callPrim(p vm.Primitive) {
	pb.code.EmitUint16(vm.OpCallPrimitive, uint16(p))
	if p == vm.PrimCall {
		// call's effect is that of whatever function it pops.
		pb.eff.pop(1)
		pb.eff.dynamic = true
		return
	}
	sig := p.Sig()
	pb.eff.pop(sig.Args)
	pb.eff.push(sig.Outputs)
}

// ---------------------------------------------------------------------------
// Lines
// ---------------------------------------------------------------------------

// compileBinding compiles name ← expression. A right side that is a
// single function literal becomes a named function; anything else is
// evaluated and bound in the current scope.
func (pb *progBuilder) compileBinding(b *Binding) error {
	if fl, ok := singleFuncLit(b.Words); ok {
		fn, err := pb.c.compileFunction(b.Name, fl.Words)
		if err != nil {
			return err
		}
		pb.c.names[b.Name] = nameBinding{kind: bindFunc, fn: fn}
		return nil
	}
	if err := pb.compileWords(b.Words); err != nil {
		return err
	}
	idx := pb.prog.AddName(b.Name)
	pb.code.EmitUint16(vm.OpBind, uint16(idx))
	pb.eff.pop(1)
	pb.c.names[b.Name] = nameBinding{kind: bindValue}
	return nil
}

func singleFuncLit(words []Word) (*FuncLit, bool) {
	if len(words) == 1 {
		if fl, ok := words[0].(*FuncLit); ok {
			return fl, true
		}
	}
	return nil, false
}

// compileFunction compiles a word sequence into a standalone function
// with an inferred signature.
func (c *Compiler) compileFunction(name string, words []Word) (*vm.Function, error) {
	pb := newProgBuilder(c)
	if err := pb.compileWords(words); err != nil {
		return nil, err
	}
	prog := pb.finish()
	return &vm.Function{Name: name, Prog: prog, Sig: prog.Sig, Dynamic: prog.Dynamic}, nil
}

// ---------------------------------------------------------------------------
// Words
// ---------------------------------------------------------------------------

// compileWords emits a word sequence. Source order is right to left, so
// emission walks the words backwards.
func (pb *progBuilder) compileWords(words []Word) error {
	for i := len(words) - 1; i >= 0; i-- {
		if err := pb.compileWord(words[i]); err != nil {
			return err
		}
	}
	return nil
}

func (pb *progBuilder) compileWord(w Word) error {
	switch w := w.(type) {
	case *NumberLit:
		pb.pushConst(vm.Num(w.Value))
		return nil

	case *CharLit:
		pb.pushConst(vm.Char(w.Value))
		return nil

	case *StringLit:
		pb.pushConst(vm.FromString(w.Value))
		return nil

	case *Ident:
		return pb.compileIdent(w)

	case *PrimWord:
		pb.callPrim(w.Prim)
		return nil

	case *StrandLit:
		return pb.compileStrand(w)

	case *ArrayLit:
		return pb.compileArrayLit(w)

	case *FuncLit:
		fn, err := pb.c.compileFunction("fn", w.Words)
		if err != nil {
			return err
		}
		pb.pushFn(fn)
		return nil

	case *ModApp:
		return pb.compileModApp(w)
	}
	return compileErrorf(UnboundName, w.Span(), "cannot compile %T", w)
}

func (pb *progBuilder) compileIdent(id *Ident) error {
	b, ok := pb.c.names[id.Name]
	if !ok {
		return compileErrorf(UnboundName, id.Span(), "name %q is not bound", id.Name)
	}
	if b.kind == bindFunc {
		pb.callFn(b.fn)
		return nil
	}
	idx := pb.prog.AddName(id.Name)
	pb.code.EmitUint16(vm.OpLoadBinding, uint16(idx))
	pb.eff.push(1)
	return nil
}

// compileStrand compiles an underscore strand. Every item must leave
// exactly one value, so the element count is the item count.
func (pb *progBuilder) compileStrand(s *StrandLit) error {
	savedMin := pb.eff.min
	savedDyn := pb.eff.dynamic
	for i := len(s.Items) - 1; i >= 0; i-- {
		item := s.Items[i]
		base := pb.eff.cur
		pb.eff.min = base
		pb.eff.dynamic = false
		if err := pb.compileWord(item); err != nil {
			return err
		}
		if pb.eff.dynamic || pb.eff.cur != base+1 || pb.eff.min < base {
			return compileErrorf(ArityMismatch, item.Span(),
				"strand items must each produce one value")
		}
	}
	pb.eff.min = savedMin
	pb.eff.dynamic = savedDyn
	pb.code.EmitUint16(vm.OpMakeArray, uint16(len(s.Items)))
	pb.eff.pop(len(s.Items))
	pb.eff.push(1)
	return nil
}

// compileArrayLit compiles a bracketed array literal. The bracketed
// words run as ordinary stack code; the element count is how many
// values they leave above the lowest stack point they touch, which
// must be statically known.
func (pb *progBuilder) compileArrayLit(a *ArrayLit) error {
	savedMin := pb.eff.min
	savedDyn := pb.eff.dynamic
	pb.eff.min = pb.eff.cur
	pb.eff.dynamic = false

	if err := pb.compileWords(a.Words); err != nil {
		return err
	}
	if pb.eff.dynamic {
		return compileErrorf(ArityMismatch, a.Span(),
			"array literal requires a statically known element count")
	}
	count := pb.eff.cur - pb.eff.min
	if pb.eff.min < savedMin {
		savedMin = pb.eff.min
	}
	pb.eff.min = savedMin
	pb.eff.dynamic = savedDyn

	pb.code.EmitUint16(vm.OpMakeArray, uint16(count))
	pb.eff.pop(count)
	pb.eff.push(1)
	return nil
}

// ---------------------------------------------------------------------------
// Modifiers
// ---------------------------------------------------------------------------

// operandSig is what the compiler knows about a pushed operand.
type operandSig struct {
	sig   vm.Signature
	known bool
}

// emitOperand emits code leaving one function value on the stack for a
// modifier to pop. Non-function words wrap as constant functions.
func (pb *progBuilder) emitOperand(w Word) (operandSig, error) {
	switch w := w.(type) {
	case *PrimWord:
		fn := pb.c.primFunction(w.Prim)
		pb.pushFn(fn)
		return operandSig{sig: fn.Sig, known: !fn.Dynamic}, nil

	case *FuncLit:
		fn, err := pb.c.compileFunction("fn", w.Words)
		if err != nil {
			return operandSig{}, err
		}
		pb.pushFn(fn)
		return operandSig{sig: fn.Sig, known: !fn.Dynamic}, nil

	case *ModApp:
		child := newProgBuilder(pb.c)
		if err := child.compileModApp(w); err != nil {
			return operandSig{}, err
		}
		prog := child.finish()
		fn := &vm.Function{Name: w.Prim.Name(), Prog: prog, Sig: prog.Sig, Dynamic: prog.Dynamic}
		pb.pushFn(fn)
		return operandSig{sig: fn.Sig, known: !fn.Dynamic}, nil

	case *Ident:
		b, ok := pb.c.names[w.Name]
		if !ok {
			return operandSig{}, compileErrorf(UnboundName, w.Span(), "name %q is not bound", w.Name)
		}
		if b.kind == bindFunc {
			pb.pushFn(b.fn)
			return operandSig{sig: b.fn.Sig, known: !b.fn.Dynamic}, nil
		}
		// A runtime binding may hold a function value; its effect is
		// unknown until it is popped.
		idx := pb.prog.AddName(w.Name)
		pb.code.EmitUint16(vm.OpLoadBinding, uint16(idx))
		pb.eff.push(1)
		return operandSig{}, nil
	}

	// Literal operands become constant functions, as fill wants.
	fn, err := pb.c.compileFunction("fn", []Word{w})
	if err != nil {
		return operandSig{}, err
	}
	if fn.Dynamic || fn.Sig != (vm.Signature{Args: 0, Outputs: 1}) {
		return operandSig{}, compileErrorf(ArityMismatch, w.Span(),
			"modifier operand must be a function or a value")
	}
	pb.pushFn(fn)
	return operandSig{sig: fn.Sig, known: true}, nil
}

func (pb *progBuilder) compileModApp(ma *ModApp) error {
	switch ma.Prim {
	case vm.PrimReduce, vm.PrimScan, vm.PrimTable:
		op, err := pb.emitOperand(ma.Operands[0])
		if err != nil {
			return err
		}
		if op.known && op.sig != (vm.Signature{Args: 2, Outputs: 1}) {
			return compileErrorf(ArityMismatch, ma.Span(),
				"%s requires a |2.1 function, got %s", ma.Prim.Name(), op.sig)
		}
		pb.callPrim(ma.Prim)
		return nil

	case vm.PrimEach, vm.PrimRows:
		op, err := pb.emitOperand(ma.Operands[0])
		if err != nil {
			return err
		}
		pb.code.EmitUint16(vm.OpCallPrimitive, uint16(ma.Prim))
		switch {
		case !op.known:
			pb.eff.pop(2)
			pb.eff.push(1)
			pb.eff.dynamic = true
		case op.sig == (vm.Signature{Args: 1, Outputs: 1}):
			pb.eff.pop(2)
			pb.eff.push(1)
		case op.sig == (vm.Signature{Args: 2, Outputs: 1}):
			pb.eff.pop(3)
			pb.eff.push(1)
		default:
			return compileErrorf(ArityMismatch, ma.Span(),
				"%s requires a |1.1 or |2.1 function, got %s", ma.Prim.Name(), op.sig)
		}
		return nil

	case vm.PrimRepeat:
		op, err := pb.emitOperand(ma.Operands[0])
		if err != nil {
			return err
		}
		pb.code.EmitUint16(vm.OpCallPrimitive, uint16(ma.Prim))
		pb.eff.pop(2) // the function and the count
		if op.known && op.sig.Args == op.sig.Outputs {
			pb.eff.pop(op.sig.Args)
			pb.eff.push(op.sig.Outputs)
		} else {
			// The body's net motion multiplies by a runtime count.
			pb.eff.dynamic = true
		}
		return nil

	case vm.PrimFill:
		// The machine pops the fill maker first, so it goes on top.
		body, err := pb.emitOperand(ma.Operands[1])
		if err != nil {
			return err
		}
		maker, err := pb.emitOperand(ma.Operands[0])
		if err != nil {
			return err
		}
		if maker.known && maker.sig != (vm.Signature{Args: 0, Outputs: 1}) {
			return compileErrorf(ArityMismatch, ma.Operands[0].Span(),
				"fill requires a |0.1 function for the fill value, got %s", maker.sig)
		}
		pb.code.EmitUint16(vm.OpCallPrimitive, uint16(vm.PrimFill))
		pb.eff.pop(2)
		if body.known {
			pb.eff.pop(body.sig.Args)
			pb.eff.push(body.sig.Outputs)
		} else {
			pb.eff.dynamic = true
		}
		if !maker.known {
			pb.eff.dynamic = true
		}
		return nil

	case vm.PrimDip:
		op, err := pb.emitOperand(ma.Operands[0])
		if err != nil {
			return err
		}
		pb.code.EmitUint16(vm.OpCallPrimitive, uint16(vm.PrimDip))
		pb.eff.pop(2) // the function and the value set aside
		if op.known {
			pb.eff.pop(op.sig.Args)
			pb.eff.push(op.sig.Outputs)
		} else {
			pb.eff.dynamic = true
		}
		pb.eff.push(1) // the value comes back
		return nil

	case vm.PrimIf:
		return pb.compileIf(ma)
	}

	return compileErrorf(ArityMismatch, ma.Span(), "%s is not a modifier", ma.Prim.Name())
}

// compileIf inlines both branches around a conditional jump. There is
// no runtime form; the arms must agree on a static signature so the
// surrounding code sees one stack effect.
func (pb *progBuilder) compileIf(ma *ModApp) error {
	truthy := pb.childCode()
	if err := truthy.compileArm(ma.Operands[0]); err != nil {
		return err
	}
	falsy := pb.childCode()
	if err := falsy.compileArm(ma.Operands[1]); err != nil {
		return err
	}
	if truthy.eff.dynamic || falsy.eff.dynamic {
		return compileErrorf(ArityMismatch, ma.Span(),
			"if branches must have static signatures")
	}
	tsig, fsig := truthy.eff.sig(), falsy.eff.sig()
	if tsig != fsig {
		return compileErrorf(ArityMismatch, ma.Span(),
			"if branches must have matching signatures, got %s and %s", tsig, fsig)
	}

	pb.eff.pop(1) // the condition
	elseLabel := pb.code.NewLabel()
	endLabel := pb.code.NewLabel()
	pb.code.EmitBranch(vm.OpBranchZero, elseLabel)
	pb.code.Append(truthy.code.Bytes())
	pb.code.EmitBranch(vm.OpBranch, endLabel)
	pb.code.Mark(elseLabel)
	pb.code.Append(falsy.code.Bytes())
	pb.code.Mark(endLabel)
	pb.eff.pop(tsig.Args)
	pb.eff.push(tsig.Outputs)
	return nil
}

// compileArm emits one branch arm inline. Function literals splice
// their bodies directly instead of pushing a value.
func (pb *progBuilder) compileArm(w Word) error {
	if fl, ok := w.(*FuncLit); ok {
		return pb.compileWords(fl.Words)
	}
	return pb.compileWord(w)
}
