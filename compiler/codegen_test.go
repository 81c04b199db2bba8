package compiler

import (
	"testing"

	"github.com/chazu/quill/vm"
)

func mustCompile(t *testing.T, src string) *vm.Program {
	t.Helper()
	prog, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return prog
}

func TestCompileSignatures(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1", "|0.1"},
		{"+", "|2.1"},
		{"+ 1", "|1.1"},
		{"+ 1 2", "|0.1"},
		{". 1", "|0.2"},         // dup
		{"∘", "|1.1"},           // identity
		{"/ +", "|1.1"},         // reduce
		{"\\ ×", "|1.1"},        // scan
		{"∵ (+ 1)", "|1.1"},     // each with a monadic body
		{"∵ +", "|2.1"},         // each with a dyadic body
		{"⊞ +", "|2.1"},         // table
		{"⊙ +", "|3.2"},         // dip
		{"⬚ 0 ⊂", "|2.1"},       // fill keeps the body's effect
		{"? (+ 1) (- 1)", "|2.1"}, // condition plus one operand
		{"? 1 0", "|1.1"},
		{"⍥ (+ 1) 3", "|1.1"},
		{"[1 2 3]", "|0.1"},
		{"[. 1]", "|0.1"},
		{"[+]", "|2.1"},
	}

	for _, tc := range tests {
		prog := mustCompile(t, tc.src)
		if prog.Dynamic {
			t.Errorf("Compile(%q): dynamic, want static %s", tc.src, tc.want)
			continue
		}
		if got := prog.Sig.String(); got != tc.want {
			t.Errorf("Compile(%q): signature = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestCompileDynamic(t *testing.T) {
	for _, src := range []string{"!", "⍥ . 3"} {
		prog := mustCompile(t, src)
		if !prog.Dynamic {
			t.Errorf("Compile(%q): static %s, want dynamic", src, prog.Sig)
		}
	}
}

func TestCompileUnboundName(t *testing.T) {
	_, err := Compile("frobnicate 1")
	ce, ok := err.(*CompileError)
	if !ok {
		t.Fatalf("error = %v (%T), want *CompileError", err, err)
	}
	if ce.Kind != UnboundName {
		t.Errorf("kind = %v, want unbound name", ce.Kind)
	}
}

func TestCompileArityErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"reduce needs dyadic", "/ (+ 1) 1_2_3"},
		{"reduce of constant", "/ 5 1_2_3"},
		{"table needs dyadic", "⊞ ∘ 1_2 3_4"},
		{"fill maker arity", "⬚ + ⊂ 1_2 3_4"},
		{"if arm mismatch", "? + (× 2) 1 5"},
		{"each bad arity", "∵ (⊂ 1 2) 1_2_3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(tc.src)
			ce, ok := err.(*CompileError)
			if !ok {
				t.Fatalf("Compile(%q): error = %v (%T), want *CompileError", tc.src, err, err)
			}
			if ce.Kind != ArityMismatch {
				t.Errorf("Compile(%q): kind = %v, want arity mismatch", tc.src, ce.Kind)
			}
		})
	}
}

func TestCompileArrayLiteralNeedsStaticCount(t *testing.T) {
	_, err := Compile("[! 1]")
	ce, ok := err.(*CompileError)
	if !ok {
		t.Fatalf("error = %v (%T), want *CompileError", err, err)
	}
	if ce.Kind != ArityMismatch {
		t.Errorf("kind = %v, want arity mismatch", ce.Kind)
	}
}

func TestCompileBindingPersists(t *testing.T) {
	c := NewCompiler()
	if _, err := c.Compile("x ← 5"); err != nil {
		t.Fatalf("binding line: %v", err)
	}
	if _, err := c.Compile("+ x 1"); err != nil {
		t.Fatalf("use line: %v", err)
	}

	if _, err := Compile("+ x 1"); err == nil {
		t.Error("a fresh compiler should not see x")
	}
}

func TestCompileNamedFunction(t *testing.T) {
	prog := mustCompile(t, "double ← (× 2)\ndouble 7")
	if prog.Dynamic {
		t.Fatal("program is dynamic")
	}
	if got := prog.Sig.String(); got != "|0.1" {
		t.Errorf("signature = %s, want |0.1", got)
	}
	if len(prog.Functions) != 1 {
		t.Fatalf("functions = %d, want 1", len(prog.Functions))
	}
	fn := prog.Functions[0]
	if fn.Name != "double" {
		t.Errorf("function name = %q, want double", fn.Name)
	}
	if got := fn.Sig.String(); got != "|1.1" {
		t.Errorf("function signature = %s, want |1.1", got)
	}
}

func TestCompileValueBindingEmitsBindOps(t *testing.T) {
	prog := mustCompile(t, "x ← 5\nx")
	if len(prog.Names) != 1 || prog.Names[0] != "x" {
		t.Fatalf("names = %v, want [x]", prog.Names)
	}
	r := vm.NewBytecodeReader(prog.Code)
	var ops []vm.Opcode
	for r.HasMore() {
		ops = append(ops, r.ReadOpcode())
		r.ReadUint16()
	}
	want := []vm.Opcode{vm.OpPushConstant, vm.OpBind, vm.OpLoadBinding}
	if len(ops) != len(want) {
		t.Fatalf("opcodes = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("opcodes = %v, want %v", ops, want)
		}
	}
}

func TestCompileIfEmitsBranches(t *testing.T) {
	prog := mustCompile(t, "? 1 0 5")
	r := vm.NewBytecodeReader(prog.Code)
	sawZero, sawJump := false, false
	for r.HasMore() {
		switch r.ReadOpcode() {
		case vm.OpBranchZero:
			sawZero = true
		case vm.OpBranch:
			sawJump = true
		}
		r.ReadUint16()
	}
	if !sawZero || !sawJump {
		t.Errorf("branch opcodes missing: zero=%v jump=%v", sawZero, sawJump)
	}
}

func TestCompileReduceOperandIsSinglePrimitive(t *testing.T) {
	prog := mustCompile(t, "/ + 1_2_3")
	var fn *vm.Function
	for _, c := range prog.Constants {
		if fv, ok := c.(*vm.FnValue); ok {
			fn = fv.Fn
		}
	}
	if fn == nil {
		t.Fatal("no function constant emitted for the operand")
	}
	// A one-primitive body is what unlocks identity reductions and
	// fast folds, so the wrapper must stay minimal.
	if len(fn.Prog.Code) != 3 || vm.Opcode(fn.Prog.Code[0]) != vm.OpCallPrimitive {
		t.Errorf("operand body = %v, want a single primitive call", fn.Prog.Code)
	}
}
