package vm

import (
	"context"
	"errors"
	"testing"
)

// runProg executes a hand-assembled program on a fresh machine.
func runProg(t *testing.T, prog *Program, initial ...Value) []Value {
	t.Helper()
	out, err := NewMachine(WithWorkers(1)).Run(context.Background(), prog, initial)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out
}

// primProg builds a dynamic program that pushes the given constants
// bottom to top and then calls one primitive.
func primProg(p Primitive, args ...Value) *Program {
	prog := &Program{Dynamic: true}
	b := NewBytecodeBuilder()
	for _, a := range args {
		b.EmitUint16(OpPushConstant, uint16(prog.AddConstant(a)))
	}
	b.EmitUint16(OpCallPrimitive, uint16(p))
	prog.Code = b.Bytes()
	return prog
}

func runPrim(t *testing.T, p Primitive, args ...Value) Value {
	t.Helper()
	out := runProg(t, primProg(p, args...))
	if len(out) != 1 {
		t.Fatalf("%s left %d values, want 1", p, len(out))
	}
	return out[0]
}

func runPrimErr(t *testing.T, p Primitive, args ...Value) *RuntimeError {
	t.Helper()
	_, err := NewMachine(WithWorkers(1)).Run(context.Background(), primProg(p, args...), nil)
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("%s: error = %v, want a runtime error", p, err)
	}
	return re
}

func TestRunPushAndAdd(t *testing.T) {
	v := runPrim(t, PrimAdd, Num(2), Num(3))
	if got := Show(v); got != "5" {
		t.Errorf("2 + 3 = %s, want 5", got)
	}
}

func TestRunStaticUnderflowPrecheck(t *testing.T) {
	prog := &Program{Sig: Signature{Args: 2, Outputs: 1}}
	b := NewBytecodeBuilder()
	b.EmitUint16(OpCallPrimitive, uint16(PrimAdd))
	prog.Code = b.Bytes()

	_, err := NewMachine().Run(context.Background(), prog, []Value{Num(1)})
	var re *RuntimeError
	if !errors.As(err, &re) || re.Kind != StackUnderflow {
		t.Errorf("error = %v, want a stack underflow before execution", err)
	}
}

func TestRunInitialStackIsRetained(t *testing.T) {
	init := Nums(1, 2, 3)
	prog := primProg(PrimReverse)
	out := runProg(t, prog, init)
	if got := Show(out[0]); got != "[3 2 1]" {
		t.Errorf("reverse = %s, want [3 2 1]", got)
	}
	// The caller's value must survive the run untouched.
	if got := Show(init); got != "[1 2 3]" {
		t.Errorf("initial value after run = %s, want [1 2 3]", got)
	}
}

func TestRunBindAndLoad(t *testing.T) {
	prog := &Program{Dynamic: true}
	ci := prog.AddConstant(Num(7))
	ni := prog.AddName("x")
	b := NewBytecodeBuilder()
	b.EmitUint16(OpPushConstant, uint16(ci))
	b.EmitUint16(OpBind, uint16(ni))
	b.EmitUint16(OpLoadBinding, uint16(ni))
	b.EmitUint16(OpLoadBinding, uint16(ni))
	prog.Code = b.Bytes()

	out := runProg(t, prog)
	if len(out) != 2 || Show(out[0]) != "7" || Show(out[1]) != "7" {
		t.Errorf("bound loads = %v, want 7 7", out)
	}
}

func TestRunLoadUnboundName(t *testing.T) {
	prog := &Program{Dynamic: true}
	ni := prog.AddName("ghost")
	b := NewBytecodeBuilder()
	b.EmitUint16(OpLoadBinding, uint16(ni))
	prog.Code = b.Bytes()

	_, err := NewMachine().Run(context.Background(), prog, nil)
	if err == nil {
		t.Fatal("expected an error loading an unbound name")
	}
}

func TestRunBranchZero(t *testing.T) {
	build := func(cond float64) *Program {
		prog := &Program{Dynamic: true}
		ci := prog.AddConstant(Num(cond))
		ti := prog.AddConstant(Num(10))
		fi := prog.AddConstant(Num(20))
		b := NewBytecodeBuilder()
		elseL := b.NewLabel()
		endL := b.NewLabel()
		b.EmitUint16(OpPushConstant, uint16(ci))
		b.EmitBranch(OpBranchZero, elseL)
		b.EmitUint16(OpPushConstant, uint16(ti))
		b.EmitBranch(OpBranch, endL)
		b.Mark(elseL)
		b.EmitUint16(OpPushConstant, uint16(fi))
		b.Mark(endL)
		prog.Code = b.Bytes()
		return prog
	}

	if got := Show(runProg(t, build(1))[0]); got != "10" {
		t.Errorf("nonzero condition = %s, want 10", got)
	}
	if got := Show(runProg(t, build(0))[0]); got != "20" {
		t.Errorf("zero condition = %s, want 20", got)
	}
}

func TestRunBranchConditionMustBeScalar(t *testing.T) {
	prog := &Program{Dynamic: true}
	ci := prog.AddConstant(Nums(1, 2))
	b := NewBytecodeBuilder()
	end := b.NewLabel()
	b.EmitUint16(OpPushConstant, uint16(ci))
	b.EmitBranch(OpBranchZero, end)
	b.Mark(end)
	prog.Code = b.Bytes()

	_, err := NewMachine().Run(context.Background(), prog, nil)
	var re *RuntimeError
	if !errors.As(err, &re) || re.Kind != ShapeMismatch {
		t.Errorf("error = %v, want a shape mismatch", err)
	}
}

func TestRunMakeArray(t *testing.T) {
	prog := &Program{Dynamic: true}
	b := NewBytecodeBuilder()
	for _, x := range []float64{1, 2, 3} {
		b.EmitUint16(OpPushConstant, uint16(prog.AddConstant(Num(x))))
	}
	b.EmitUint16(OpMakeArray, 3)
	prog.Code = b.Bytes()

	out := runProg(t, prog)
	// The top of the stack is the first row.
	if got := Show(out[0]); got != "[3 2 1]" {
		t.Errorf("collected array = %s, want [3 2 1]", got)
	}
}

func TestRunMakeArrayUnderflow(t *testing.T) {
	prog := &Program{Dynamic: true}
	b := NewBytecodeBuilder()
	b.EmitUint16(OpMakeArray, 2)
	prog.Code = b.Bytes()

	_, err := NewMachine().Run(context.Background(), prog, nil)
	var re *RuntimeError
	if !errors.As(err, &re) || re.Kind != StackUnderflow {
		t.Errorf("error = %v, want a stack underflow", err)
	}
}

func TestRunInvalidOpcode(t *testing.T) {
	prog := &Program{Dynamic: true, Code: []byte{0x7f, 0, 0}}
	_, err := NewMachine().Run(context.Background(), prog, nil)
	if err == nil {
		t.Fatal("expected an error for an invalid opcode")
	}
}

func TestRunTruncatedInstruction(t *testing.T) {
	prog := &Program{Dynamic: true, Code: []byte{byte(OpPushConstant), 0}}
	_, err := NewMachine().Run(context.Background(), prog, nil)
	if err == nil {
		t.Fatal("expected an error for a truncated instruction")
	}
}

func TestRunCancellation(t *testing.T) {
	// Enough instructions to cross the poll interval.
	prog := &Program{Dynamic: true}
	ci := prog.AddConstant(Num(1))
	b := NewBytecodeBuilder()
	for i := 0; i < pollInterval; i++ {
		b.EmitUint16(OpPushConstant, uint16(ci))
		b.EmitUint16(OpCallPrimitive, uint16(PrimPop))
	}
	prog.Code = b.Bytes()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMachine().Run(ctx, prog, nil)
	var re *RuntimeError
	if !errors.As(err, &re) || re.Kind != Interrupted {
		t.Errorf("error = %v, want interrupted", err)
	}
}

func TestRunGlobalsSeedAndWriteBack(t *testing.T) {
	globals := map[string]Value{"x": Num(5)}
	m := NewMachine(WithGlobals(globals))

	// Read the seeded global and bind a new one.
	prog := &Program{Dynamic: true}
	xi := prog.AddName("x")
	yi := prog.AddName("y")
	ci := prog.AddConstant(Num(9))
	b := NewBytecodeBuilder()
	b.EmitUint16(OpLoadBinding, uint16(xi))
	b.EmitUint16(OpPushConstant, uint16(ci))
	b.EmitUint16(OpBind, uint16(yi))
	prog.Code = b.Bytes()

	out, err := m.Run(context.Background(), prog, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(out) != 1 || Show(out[0]) != "5" {
		t.Errorf("loaded global = %v, want 5", out)
	}
	y, ok := globals["y"]
	if !ok {
		t.Fatal("binding did not write back to the globals table")
	}
	if got := Show(y); got != "9" {
		t.Errorf("globals[y] = %s, want 9", got)
	}
}

func TestRunMachineReusableAfterError(t *testing.T) {
	m := NewMachine(WithWorkers(1))
	bad := primProg(PrimAdd, Num(1), Char('a'), Char('b'))
	if _, err := m.Run(context.Background(), bad, nil); err == nil {
		t.Fatal("expected adding characters to fail")
	}
	out, err := m.Run(context.Background(), primProg(PrimAdd, Num(1), Num(2)), nil)
	if err != nil {
		t.Fatalf("run after a failure: %v", err)
	}
	if got := Show(out[0]); got != "3" {
		t.Errorf("result = %s, want 3", got)
	}
}

func TestRunSeededRandIsDeterministic(t *testing.T) {
	first := func() string {
		m := NewMachine(WithSeed(42))
		out, err := m.Run(context.Background(), primProg(PrimRand), nil)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return Show(out[0])
	}
	if a, b := first(), first(); a != b {
		t.Errorf("seeded rand differs across machines: %s vs %s", a, b)
	}
}
