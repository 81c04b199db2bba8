package compiler

import (
	"math"
	"testing"

	"github.com/chazu/quill/vm"
)

func TestLexerBasicTokens(t *testing.T) {
	input := "[ ] ( ) _ ← <-"
	expected := []struct {
		typ TokenType
		lit string
	}{
		{TokenLBracket, "["},
		{TokenRBracket, "]"},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenStrand, "_"},
		{TokenArrow, "←"},
		{TokenArrow, "<-"},
		{TokenEOF, ""},
	}

	l := NewLexer(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ {
			t.Errorf("token[%d] type = %v, want %v", i, tok.Type, exp.typ)
		}
		if tok.Literal != exp.lit {
			t.Errorf("token[%d] literal = %q, want %q", i, tok.Literal, exp.lit)
		}
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"42", 42},
		{"0", 0},
		{"3.5", 3.5},
		{"¯2", -2},
		{"1.5e-3", 1.5e-3},
		{"1.5e¯3", 1.5e-3},
		{"2E+5", 2e5},
		{"π", math.Pi},
		{"τ", 2 * math.Pi},
		{"η", math.Pi / 2},
		{"¯π", -math.Pi},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != TokenNumber {
			t.Errorf("Lexer(%q): type = %v, want NUMBER", tc.input, tok.Type)
			continue
		}
		if tok.Num != tc.want {
			t.Errorf("Lexer(%q): value = %v, want %v", tc.input, tok.Num, tc.want)
		}
	}
}

func TestLexerInfinity(t *testing.T) {
	l := NewLexer("∞ ¯∞")
	tok := l.NextToken()
	if tok.Type != TokenNumber || !math.IsInf(tok.Num, 1) {
		t.Errorf("∞ = %v %v, want +Inf number", tok.Type, tok.Num)
	}
	tok = l.NextToken()
	if tok.Type != TokenNumber || !math.IsInf(tok.Num, -1) {
		t.Errorf("¯∞ = %v %v, want -Inf number", tok.Type, tok.Num)
	}
}

func TestLexerNumberErrors(t *testing.T) {
	for _, input := range []string{"1.", "1.x", "2e", "2e-", "¯", "¯."} {
		l := NewLexer(input)
		tok := l.NextToken()
		if tok.Type != TokenError {
			t.Errorf("Lexer(%q): type = %v, want ERROR", input, tok.Type)
		}
	}
}

func TestLexerChars(t *testing.T) {
	tests := []struct {
		input string
		want  rune
	}{
		{"@a", 'a'},
		{"@ ", ' '},
		{"@@", '@'},
		{`@\n`, '\n'},
		{`@\t`, '\t'},
		{`@\0`, 0},
		{`@\s`, ' '},
		{`@\\`, '\\'},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != TokenChar {
			t.Errorf("Lexer(%q): type = %v, want CHARACTER", tc.input, tok.Type)
			continue
		}
		if tok.Ch != tc.want {
			t.Errorf("Lexer(%q): rune = %q, want %q", tc.input, tok.Ch, tc.want)
		}
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"a\"b"`, `a"b`},
		{`"line\nbreak"`, "line\nbreak"},
		{`"back\\slash"`, `back\slash`},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != TokenString {
			t.Errorf("Lexer(%q): type = %v, want STRING", tc.input, tok.Type)
			continue
		}
		if tok.Str != tc.want {
			t.Errorf("Lexer(%q): value = %q, want %q", tc.input, tok.Str, tc.want)
		}
	}
}

func TestLexerStringErrors(t *testing.T) {
	for _, input := range []string{`"open`, "\"line\nbreak\"", `"bad\q"`} {
		l := NewLexer(input)
		tok := l.NextToken()
		if tok.Type != TokenError {
			t.Errorf("Lexer(%q): type = %v, want ERROR", input, tok.Type)
		}
	}
}

func TestLexerPrimitives(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		prim  vm.Primitive
	}{
		{"+", TokenPrimitive, vm.PrimAdd},
		{"-", TokenPrimitive, vm.PrimSub},
		{"*", TokenPrimitive, vm.PrimMul},
		{"%", TokenPrimitive, vm.PrimDiv},
		{"×", TokenPrimitive, vm.PrimMul},
		{"÷", TokenPrimitive, vm.PrimDiv},
		{"<=", TokenPrimitive, vm.PrimLe},
		{">=", TokenPrimitive, vm.PrimGe},
		{"!=", TokenPrimitive, vm.PrimNe},
		{"⇡", TokenPrimitive, vm.PrimRange},
		{"⊂", TokenPrimitive, vm.PrimJoin},
		{"/", TokenModifier, vm.PrimReduce},
		{`\`, TokenModifier, vm.PrimScan},
		{"⬚", TokenModifier, vm.PrimFill},
		{"?", TokenModifier, vm.PrimIf},
		{"add", TokenPrimitive, vm.PrimAdd},
		{"reduce", TokenModifier, vm.PrimReduce},
		{"reverse", TokenPrimitive, vm.PrimReverse},
		{"&p", TokenPrimitive, vm.PrimSysPrint},
		{"&fr", TokenPrimitive, vm.PrimSysFileRead},
	}

	for _, tc := range tests {
		l := NewLexer(tc.input)
		tok := l.NextToken()
		if tok.Type != tc.typ {
			t.Errorf("Lexer(%q): type = %v, want %v", tc.input, tok.Type, tc.typ)
			continue
		}
		if tok.Prim != tc.prim {
			t.Errorf("Lexer(%q): primitive = %v, want %v", tc.input, tok.Prim, tc.prim)
		}
	}
}

func TestLexerIdentifiers(t *testing.T) {
	l := NewLexer("foo Bar")
	tok := l.NextToken()
	if tok.Type != TokenIdent || tok.Literal != "foo" {
		t.Errorf("got %v %q, want IDENTIFIER foo", tok.Type, tok.Literal)
	}
	tok = l.NextToken()
	if tok.Type != TokenIdent || tok.Literal != "Bar" {
		t.Errorf("got %v %q, want IDENTIFIER Bar", tok.Type, tok.Literal)
	}
}

func TestLexerComments(t *testing.T) {
	tokens, err := Tokenize("1 # the rest\n2")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	types := make([]TokenType, len(tokens))
	for i, tok := range tokens {
		types[i] = tok.Type
	}
	want := []TokenType{TokenNumber, TokenNewline, TokenNumber, TokenEOF}
	if len(types) != len(want) {
		t.Fatalf("token types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("token types = %v, want %v", types, want)
		}
	}
}

func TestLexerKeepComments(t *testing.T) {
	l := NewLexer("# note\n1")
	l.KeepComments = true
	tok := l.NextToken()
	if tok.Type != TokenComment || tok.Literal != "# note" {
		t.Errorf("got %v %q, want COMMENT %q", tok.Type, tok.Literal, "# note")
	}
}

func TestLexerPositions(t *testing.T) {
	tokens, err := Tokenize("1 2\n 3")
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	checks := []struct {
		idx       int
		line, col int
	}{
		{0, 1, 1}, // 1
		{1, 1, 3}, // 2
		{3, 2, 2}, // 3
	}
	for _, c := range checks {
		got := tokens[c.idx].Span.Start
		if got.Line != c.line || got.Column != c.col {
			t.Errorf("token[%d] start = %d:%d, want %d:%d", c.idx, got.Line, got.Column, c.line, c.col)
		}
	}
}

func TestTokenizeError(t *testing.T) {
	_, err := Tokenize("1 $ 2")
	if err == nil {
		t.Fatal("expected an error for an unrecognized character")
	}
	le, ok := err.(*LexError)
	if !ok {
		t.Fatalf("error type = %T, want *LexError", err)
	}
	if le.Span.Start.Column != 3 {
		t.Errorf("error column = %d, want 3", le.Span.Start.Column)
	}
}
