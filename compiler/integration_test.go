package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/chazu/quill/vm"
)

func runSource(t *testing.T, src string, opts ...vm.Option) ([]vm.Value, error) {
	t.Helper()
	prog, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	opts = append([]vm.Option{vm.WithWorkers(1)}, opts...)
	m := vm.NewMachine(opts...)
	return m.Run(context.Background(), prog, nil)
}

func evalShow(t *testing.T, src string) string {
	t.Helper()
	out, err := runSource(t, src)
	if err != nil {
		t.Fatalf("Run(%q): %v", src, err)
	}
	if len(out) != 1 {
		t.Fatalf("Run(%q): %d results, want 1", src, len(out))
	}
	return vm.Show(out[0])
}

func wantKind(t *testing.T, src string, kind vm.ErrorKind) {
	t.Helper()
	_, err := runSource(t, src)
	var re *vm.RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("Run(%q): error = %v (%T), want *vm.RuntimeError", src, err, err)
	}
	if re.Kind != kind {
		t.Errorf("Run(%q): kind = %v, want %v", src, re.Kind, kind)
	}
}

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"+ 1 2", "3"},
		{"- 3 10", "7"},
		{"× 3 4", "12"},
		{"÷ 2 10", "5"},
		{"mod 3 10", "1"},
		{"pow 2 3", "9"},
		{"neg 5", "¯5"},
		{"¬ 0_1", "[1 0]"},
		{"⌊ 2.7", "2"},
		{"× 3 ⇡ 4", "[0 3 6 9]"},
		{"+ 10 1_2_3", "[11 12 13]"},
		{"+ 1_2 [3_4 5_6]", "[[4 5] [7 8]]"},
		{"< 3 5", "0"},
		{"< 7 5", "1"},
		{"= 2 2", "1"},
		{"≥ 2 1_2_3", "[0 1 1]"},
		{"↥ 3 1_4_2", "[3 4 3]"},
	}
	for _, tc := range tests {
		if got := evalShow(t, tc.src); got != tc.want {
			t.Errorf("%q = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestEvalStructure(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"⊂ 1 2", "[1 2]"},
		{"⊂ 1_2 3_4", "[1 2 3 4]"},
		{"⊟ 1_2 3_4", "[[1 2] [3 4]]"},
		{"↙ 2 1_2_3", "[1 2]"},
		{"↙ ¯2 1_2_3", "[2 3]"},
		{"↘ 1 1_2_3", "[2 3]"},
		{"↻ 1 1_2_3", "[2 3 1]"},
		{"↯ 2_3 ⇡ 6", "[[0 1 2] [3 4 5]]"},
		{"↯ 2_¯1 ⇡ 6", "[[0 1 2] [3 4 5]]"},
		{"↯ 4 1_2", "[[1 2] [1 2] [1 2] [1 2]]"},
		{"♭ ↯ 2_3 ⇡ 6", "[0 1 2 3 4 5]"},
		{"⍉ ↯ 2_3 ⇡ 6", "[[0 3] [1 4] [2 5]]"},
		{"⇌ ⇡ 4", "[3 2 1 0]"},
		{"⊢ 1_2_3", "1"},
		{"⧻ ↯ 3_2 0", "3"},
		{"△ ↯ 3_2 0", "[3 2]"},
		{"[1_2 3_4]", "[[1 2] [3 4]]"},
		{"[. 5]", "[5 5]"},
		{"[⇡ 2]", "[[0 1]]"},
	}
	for _, tc := range tests {
		if got := evalShow(t, tc.src); got != tc.want {
			t.Errorf("%q = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestEvalIndexing(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"⊡ 1 4_5_6", "5"},
		{"⊡ ¯1 4_5_6", "6"},
		{"⊏ 1_0 4_5_6", "[5 4]"},
		{"⊗ 5 4_5_6", "1"},
		{"⊗ 9 4_5_6", "3"},
		{"∊ 5 4_5_6", "1"},
		{"⌕ 2_3 1_2_3_4", "[0 1 0 0]"},
		{"⍋ 3_1_2", "[1 2 0]"},
		{"⍒ 3_1_2", "[0 2 1]"},
		{"⊏ ⍋ . 3_1_2", "[1 2 3]"},
		{"≍ 1_2 [1 2]", "1"},
		{"≍ 1_2 2_1", "0"},
	}
	for _, tc := range tests {
		if got := evalShow(t, tc.src); got != tc.want {
			t.Errorf("%q = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestEvalCharacters(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"+ 1 @a", "@b"},
		{"- 1 @b", "@a"},
		{"- @a @c", "2"},
		{`⊂ "ab" "cd"`, `"abcd"`},
		{"@a_@b", `"ab"`},
		{`⇌ "abc"`, `"cba"`},
		{`= @b "abc"`, "[0 1 0]"},
	}
	for _, tc := range tests {
		if got := evalShow(t, tc.src); got != tc.want {
			t.Errorf("%q = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestEvalModifiers(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"/ + ⇡ 5", "10"},
		{"/ + []", "0"},
		{"/ × []", "1"},
		{"/ ↧ []", "∞"},
		{"/ ↥ []", "¯∞"},
		{`\ + 1_2_3`, "[1 3 6]"},
		{"∵ (× 2) 1_2_3", "[2 4 6]"},
		{"∵ + 1_2 10_20", "[11 22]"},
		{"≡ / + ↯ 2_3 ⇡ 6", "[3 12]"},
		{"⊞ × 1_2_3 4_5", "[[4 5] [8 10] [12 15]]"},
		{"⍥ (× 2) 3 1", "8"},
		{"? (+ 1) (× 2) 1 10", "11"},
		{"? (+ 1) (× 2) 0 10", "20"},
	}
	for _, tc := range tests {
		if got := evalShow(t, tc.src); got != tc.want {
			t.Errorf("%q = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestEvalFill(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"⬚ 0 ⊟ 1_2_3 4_5", "[[1 2 3] [4 5 0]]"},
		{"⬚ 0 ↙ 5 1_2_3", "[1 2 3 0 0]"},
		{"⬚ 9 ⊡ 5 1_2_3", "9"},
		{"⬚ 0 ↯ 2_2 []", "[[0 0] [0 0]]"},
		{"⬚ 0 [1_2 3_4_5]", "[[1 2 0] [3 4 5]]"},
	}
	for _, tc := range tests {
		if got := evalShow(t, tc.src); got != tc.want {
			t.Errorf("%q = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestEvalBoxes(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"□ 5", "□5"},
		{"⊔ □ 1_2", "[1 2]"},
		{`[□ 1_2 □ "ab"]`, `[□[1 2] □"ab"]`},
		{"+ 1 [□ 1 □ 2_3]", "[□2 □[3 4]]"},
	}
	for _, tc := range tests {
		if got := evalShow(t, tc.src); got != tc.want {
			t.Errorf("%q = %s, want %s", tc.src, got, tc.want)
		}
	}
}

func TestEvalStackOps(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"⊂ ∶ 1 2", "[2 1]"},
		{"× . 7", "49"},
	}
	for _, tc := range tests {
		if got := evalShow(t, tc.src); got != tc.want {
			t.Errorf("%q = %s, want %s", tc.src, got, tc.want)
		}
	}

	// over copies the second value to the top, leaving three values.
	out, err := runSource(t, "⊂ , 1 2")
	if err != nil {
		t.Fatalf("over: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("over results = %d, want 2", len(out))
	}
	if got := vm.Show(out[1]); got != "[2 1]" {
		t.Errorf("over join = %s, want [2 1]", got)
	}
	if got := vm.Show(out[0]); got != "2" {
		t.Errorf("over bottom = %s, want 2", got)
	}
}

func TestEvalDip(t *testing.T) {
	out, err := runSource(t, "⊙ (× 2) 100 3")
	if err != nil {
		t.Fatalf("dip: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("results = %d, want 2", len(out))
	}
	if got := vm.Show(out[0]); got != "6" {
		t.Errorf("below = %s, want 6", got)
	}
	if got := vm.Show(out[1]); got != "100" {
		t.Errorf("top = %s, want 100", got)
	}
}

func TestEvalBindings(t *testing.T) {
	src := "x ← 5\ndouble ← (× 2)\ndouble + x 1"
	if got := evalShow(t, src); got != "12" {
		t.Errorf("program = %s, want 12", got)
	}
}

func TestEvalBindingIsUnaffectedByUse(t *testing.T) {
	src := "x ← 1_2_3\ny ← ⇌ x\n⊂ x y"
	if got := evalShow(t, src); got != "[1 2 3 3 2 1]" {
		t.Errorf("program = %s, want [1 2 3 3 2 1]", got)
	}
}

func TestEvalRuntimeErrors(t *testing.T) {
	tests := []struct {
		src  string
		kind vm.ErrorKind
	}{
		{"+ 1_2 1_2_3", vm.ShapeMismatch},
		{"+ 1", vm.StackUnderflow},
		{"+ @a @b", vm.TypeMismatch},
		{"⊡ 5 1_2_3", vm.IndexOutOfBounds},
		{"/ ⊂ []", vm.TypeMismatch},
		{"[1_2 3]", vm.ShapeMismatch},
		{"↯ 0_¯1 ⇡ 6", vm.DivisionByZero},
		{"⊏ 0 (+ 1)", vm.TypeMismatch}, // cannot select from a function
	}
	for _, tc := range tests {
		wantKind(t, tc.src, tc.kind)
	}
}

func TestEvalInterrupt(t *testing.T) {
	prog, err := Compile("⍥ (+ 1) 1000000 0")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := vm.NewMachine(vm.WithWorkers(1))
	_, err = m.Run(ctx, prog, nil)
	var re *vm.RuntimeError
	if !errors.As(err, &re) || re.Kind != vm.Interrupted {
		t.Fatalf("error = %v, want interrupted", err)
	}
}

func TestEvalDeterministicAcrossWorkers(t *testing.T) {
	src := "× 1.5 ⇡ 30000"
	seq, err := runSource(t, src, vm.WithWorkers(1))
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	par, err := runSource(t, src, vm.WithWorkers(8))
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if vm.Show(seq[0]) != vm.Show(par[0]) {
		t.Error("parallel result differs from sequential")
	}
}

func TestEvalSeededRand(t *testing.T) {
	a, err := runSource(t, "⚂", vm.WithSeed(42))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := runSource(t, "⚂", vm.WithSeed(42))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if vm.Show(a[0]) != vm.Show(b[0]) {
		t.Errorf("seeded runs differ: %s vs %s", vm.Show(a[0]), vm.Show(b[0]))
	}
}

func TestEvalInitialStack(t *testing.T) {
	prog, err := Compile("+ 1")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m := vm.NewMachine(vm.WithWorkers(1))
	out, err := m.Run(context.Background(), prog, []vm.Value{vm.Num(41)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := vm.Show(out[0]); got != "42" {
		t.Errorf("result = %s, want 42", got)
	}
}

func TestEvalReplSession(t *testing.T) {
	c := NewCompiler()
	globals := map[string]vm.Value{}
	m := vm.NewMachine(vm.WithWorkers(1), vm.WithGlobals(globals))

	p1, err := c.Compile("x ← 10")
	if err != nil {
		t.Fatalf("line 1 compile: %v", err)
	}
	if _, err := m.Run(context.Background(), p1, nil); err != nil {
		t.Fatalf("line 1 run: %v", err)
	}

	p2, err := c.Compile("× x x")
	if err != nil {
		t.Fatalf("line 2 compile: %v", err)
	}
	out, err := m.Run(context.Background(), p2, nil)
	if err != nil {
		t.Fatalf("line 2 run: %v", err)
	}
	if got := vm.Show(out[0]); got != "100" {
		t.Errorf("x squared = %s, want 100", got)
	}
}

func TestEvalSysBackend(t *testing.T) {
	rec := &vm.RecordSys{Files: map[string]string{"greeting.txt": "hi"}}
	prog, err := Compile(`&p &fr "greeting.txt"`)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	m := vm.NewMachine(vm.WithWorkers(1), vm.WithSys(rec))
	if _, err := m.Run(context.Background(), prog, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.Outputs) != 1 || rec.Outputs[0] != "hi\n" {
		t.Fatalf("outputs = %q, want [%q]", rec.Outputs, "hi\n")
	}
}
